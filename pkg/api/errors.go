package api

import (
	"encoding/json"
	"errors"
	"net/http"
)

// apiError carries an HTTP status alongside the message so handlers can
// return errors instead of writing responses inline.
type apiError struct {
	status  int
	message string
	err     error
}

func (e *apiError) Error() string {
	if e.err != nil {
		return e.err.Error()
	}
	return e.message
}

func (e *apiError) Unwrap() error { return e.err }

func badRequest(err error, message string) error {
	return &apiError{status: http.StatusBadRequest, message: message, err: err}
}

func notFound(message string) error {
	return &apiError{status: http.StatusNotFound, message: message}
}

// handlerFunc is an error-returning HTTP handler.
type handlerFunc func(http.ResponseWriter, *http.Request) error

// handleError adapts an error-returning handler to http.HandlerFunc.
func handleError(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := h(w, r); err != nil {
			writeError(w, err)
		}
	}
}

func writeError(w http.ResponseWriter, err error) {
	type errorResponse struct {
		ErrMsg     string `json:"error"`
		ErrMsgCode int    `json:"code"`
	}

	var apiErr *apiError
	if errors.As(err, &apiErr) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(apiErr.status)
		_ = json.NewEncoder(w).Encode(&errorResponse{
			ErrMsg:     apiErr.message,
			ErrMsgCode: apiErr.status,
		})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)
	_ = json.NewEncoder(w).Encode(&errorResponse{
		ErrMsg:     "Unexpected Service Error",
		ErrMsgCode: http.StatusInternalServerError,
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
