// internal/handlers/respond.go
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jason-s-yu/arena/internal/apperr"
	"github.com/jason-s-yu/arena/internal/auth"
	"github.com/sirupsen/logrus"
)

type errorBody struct {
	Error   apperr.Kind `json:"error"`
	Message string      `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps a domain error onto its status code. Anything that is not
// a domain error is logged and reported as a persistence failure without
// leaking the cause.
func writeError(w http.ResponseWriter, logger logrus.FieldLogger, err error) {
	var e *apperr.Error
	if !errors.As(err, &e) {
		logger.WithError(err).Error("unclassified handler error")
		writeJSON(w, http.StatusInternalServerError, errorBody{
			Error:   apperr.PersistenceFailure,
			Message: "something went wrong, please try again",
		})
		return
	}
	status := e.Kind.HTTPStatus()
	msg := e.Message
	if status >= http.StatusInternalServerError {
		logger.WithError(err).WithField("kind", e.Kind).Error("request failed")
	}
	writeJSON(w, status, errorBody{Error: e.Kind, Message: msg})
}

// decodeJSON reads a JSON body into v. An empty body leaves v untouched.
func decodeJSON(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return apperr.New(apperr.InvalidArgument, "request body is not valid JSON")
}

func uuidParam(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, apperr.New(apperr.InvalidArgument, "%s must be a UUID", name)
	}
	return id, nil
}

// requestUser is the authenticated caller. Routes that call it sit behind
// middleware.Authenticate.
func requestUser(r *http.Request) (uuid.UUID, error) {
	uid, ok := auth.UserIDFrom(r.Context())
	if !ok {
		return uuid.Nil, apperr.New(apperr.NotAuthorized, "sign in first")
	}
	return uid, nil
}
