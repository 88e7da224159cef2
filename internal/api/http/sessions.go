package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/mindengage-cat/internal/marking"
	"github.com/mind-engage/mindengage-cat/internal/platform/logger"
	"github.com/mind-engage/mindengage-cat/internal/pool"
	"github.com/mind-engage/mindengage-cat/internal/rbac"
	"github.com/mind-engage/mindengage-cat/internal/session"
)

// SessionHandlers exposes the session manager over JSON.
type SessionHandlers struct {
	Manager  *session.Manager
	Provider pool.Provider
	Log      *logger.Logger
}

type startBody struct {
	CandidateID string         `json:"candidate_id"`
	Scope       pool.Scope     `json:"scope"`
	Marking     marking.Config `json:"marking"`
	Config      session.Config `json:"config"`
}

// POST /sessions
// Students always start sessions for themselves; proctors may name a
// candidate.
func (h *SessionHandlers) Start(w http.ResponseWriter, r *http.Request) {
	// Marking fields the request leaves out keep their defaults.
	body := startBody{Marking: marking.DefaultConfig()}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		writeErr(w, http.StatusBadRequest, "BadRequest", "bad json: "+err.Error())
		return
	}
	candidate := rbac.SubjectFromContext(r.Context())
	if rbac.Can(r.Context(), rbac.PermSessionViewAll) && strings.TrimSpace(body.CandidateID) != "" {
		candidate = strings.TrimSpace(body.CandidateID)
	}
	started, err := h.Manager.StartSession(r.Context(), h.Provider, session.StartRequest{
		CandidateID: candidate,
		Scope:       body.Scope,
		Marking:     body.Marking,
		Config:      body.Config,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, started)
}

// GET /sessions?candidate_id=&status=&limit=&offset=
func (h *SessionHandlers) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := session.ListOpts{
		CandidateID: strings.TrimSpace(q.Get("candidate_id")),
		Status:      session.Status(strings.TrimSpace(q.Get("status"))),
		Limit:       parseIntDefault(q.Get("limit"), 50),
		Offset:      parseIntDefault(q.Get("offset"), 0),
	}
	if opts.Limit > 500 {
		opts.Limit = 500
	}
	if !rbac.Can(r.Context(), rbac.PermSessionViewAll) {
		opts.CandidateID = rbac.SubjectFromContext(r.Context())
	}
	list, err := h.Manager.ListSessions(r.Context(), opts)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": list})
}

type sessionView struct {
	SessionID       string           `json:"session_id"`
	CandidateID     string           `json:"candidate_id,omitempty"`
	Status          session.Status   `json:"status"`
	StartedAt       time.Time        `json:"started_at"`
	ItemsAsked      int              `json:"items_asked"`
	AbilityEstimate float64          `json:"ability_estimate"`
	StandardError   float64          `json:"standard_error"`
	CurrentItem     *pool.PublicItem `json:"current_item,omitempty"`
	AskedItems      []session.Turn   `json:"asked_items"`
	Config          session.Config   `json:"config"`
	Result          *session.Result  `json:"result,omitempty"`
}

func viewOf(st *session.State) sessionView {
	v := sessionView{
		SessionID:       st.SessionID,
		CandidateID:     st.CandidateID,
		Status:          st.Status,
		StartedAt:       st.StartedAt,
		ItemsAsked:      len(st.AskedItems),
		AbilityEstimate: st.AbilityEstimate,
		StandardError:   st.StandardError,
		AskedItems:      st.AskedItems,
		Config:          st.Config,
		Result:          st.Result,
	}
	if v.AskedItems == nil {
		v.AskedItems = []session.Turn{}
	}
	if it, ok := st.CurrentItem(); ok {
		pub := it.Public()
		v.CurrentItem = &pub
	}
	return v
}

// GET /sessions/{sessionID}
func (h *SessionHandlers) Get(w http.ResponseWriter, r *http.Request) {
	st, ok := h.authorized(w, r, rbac.PermSessionViewAll)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, viewOf(st))
}

type answerBody struct {
	ItemID   string          `json:"item_id"`
	Response json.RawMessage `json:"response"`
}

// POST /sessions/{sessionID}/answers  {"item_id": "...", "response": ... | null}
func (h *SessionHandlers) Answer(w http.ResponseWriter, r *http.Request) {
	var body answerBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeErr(w, http.StatusBadRequest, "BadRequest", "bad json")
		return
	}
	if strings.TrimSpace(body.ItemID) == "" {
		writeErr(w, http.StatusBadRequest, "BadRequest", "item_id required")
		return
	}
	response, err := decodeResponse(body.Response)
	if err != nil {
		writeErr(w, http.StatusBadRequest, "BadRequest", "bad response: "+err.Error())
		return
	}
	// Only the candidate answers; proctors watch.
	st, ok := h.authorized(w, r, "")
	if !ok {
		return
	}
	out, err := h.Manager.SubmitAnswer(r.Context(), st.SessionID, body.ItemID, response)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// decodeResponse turns an absent or null response into nil (unanswered).
func decodeResponse(raw json.RawMessage) (any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

// GET /sessions/{sessionID}/result
func (h *SessionHandlers) Result(w http.ResponseWriter, r *http.Request) {
	st, ok := h.authorized(w, r, rbac.PermSessionViewAll)
	if !ok {
		return
	}
	res, err := h.Manager.GetResult(r.Context(), st.SessionID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// POST /sessions/{sessionID}/abort
func (h *SessionHandlers) Abort(w http.ResponseWriter, r *http.Request) {
	st, ok := h.authorized(w, r, rbac.PermSessionAbort)
	if !ok {
		return
	}
	res, err := h.Manager.AbortSession(r.Context(), st.SessionID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": session.StatusAborted, "result": res})
}

// authorized loads the session in the URL and checks the caller owns it
// or holds perm. An empty perm means owner only.
func (h *SessionHandlers) authorized(w http.ResponseWriter, r *http.Request, perm string) (*session.State, bool) {
	st, err := h.Manager.GetSession(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		h.fail(w, r, err)
		return nil, false
	}
	sub := rbac.SubjectFromContext(r.Context())
	owner := sub != "" && sub == st.CandidateID
	if !owner && (perm == "" || !rbac.Can(r.Context(), perm)) {
		writeErr(w, http.StatusForbidden, "Forbidden", "forbidden")
		return nil, false
	}
	return st, true
}

func (h *SessionHandlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	if session.Code(err) == session.CodeInternal && !errors.Is(err, r.Context().Err()) {
		h.Log.Error("session request failed", "path", r.URL.Path, "error", err)
	}
	writeSessionErr(w, err)
}
