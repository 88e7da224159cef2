package http

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/mind-engage/mindengage-cat/internal/session"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errResp struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeErr(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errResp{Error: msg, Code: code})
}

// writeSessionErr maps engine errors onto HTTP statuses.
func writeSessionErr(w http.ResponseWriter, err error) {
	code := session.Code(err)
	status := http.StatusInternalServerError
	switch code {
	case session.CodeInvalidConfig:
		status = http.StatusBadRequest
	case session.CodeSessionNotFound:
		status = http.StatusNotFound
	case session.CodeSessionNotInProgress, session.CodeItemMismatch,
		session.CodeSessionStillInProgress, session.CodeConflict:
		status = http.StatusConflict
	}
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	writeErr(w, status, code, msg)
}

func parseIntDefault(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return def
	}
	return n
}
