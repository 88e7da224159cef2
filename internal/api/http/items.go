package http

import (
	"context"
	"net/http"

	"github.com/mind-engage/mindengage-cat/internal/pool"
)

// ItemImporter stores calibrated items; pool.SQLProvider implements it.
type ItemImporter interface {
	Upsert(ctx context.Context, items []pool.Item) error
}

// ImportItemsHandler accepts a YAML pool document (see pool.File).
// POST /items/import
func ImportItemsHandler(imp ItemImporter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, 8<<20)
		items, err := pool.Parse(r.Body)
		if err != nil {
			writeErr(w, http.StatusBadRequest, "BadRequest", err.Error())
			return
		}
		if err := imp.Upsert(r.Context(), items); err != nil {
			writeErr(w, http.StatusInternalServerError, "Internal", "import failed")
			return
		}
		writeJSON(w, http.StatusOK, map[string]int{"imported": len(items)})
	}
}
