package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/fedragon/walltok/internal/admin"
	"github.com/fedragon/walltok/internal/db"
	"github.com/fedragon/walltok/internal/models"
)

type APIError struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
	Status int    `json:"status"`
}

func WriteJSON(w http.ResponseWriter, v any, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func WriteError(w http.ResponseWriter, status int, err error, reason string) {
	if err == nil {
		err = errors.New(http.StatusText(status))
	}
	WriteJSON(w, APIError{Error: err.Error(), Reason: reason, Status: status}, status)
}

type httpErr struct {
	msg    string
	reason string
	code   int
}

func (e httpErr) Error() string { return e.msg }

func errBadReq(reason, m string) error { return httpErr{m, reason, http.StatusBadRequest} }

// statusOf maps domain errors onto HTTP statuses.
func statusOf(err error) (int, string) {
	var he httpErr
	switch {
	case errors.As(err, &he):
		return he.code, he.reason
	case errors.Is(err, db.ErrDuplicateID):
		return http.StatusConflict, "duplicate_id"
	case errors.Is(err, admin.ErrNoMedia):
		return http.StatusBadRequest, "no_media"
	case errors.Is(err, models.ErrNegativeLikes):
		return http.StatusBadRequest, "negative_likes"
	default:
		return http.StatusInternalServerError, ""
	}
}
