// Package respond writes JSON responses and maps domain errors onto HTTP
// statuses.
package respond

import (
	"encoding/json"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/QQCPM/ChatChat/internal/apperrors"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Code    apperrors.Code `json:"code"`
	Message string         `json:"error"`
}

// JSON writes v with status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.WithError(err).Warn("Failed to encode response")
	}
}

// Error writes err as an ErrorBody. Causes are logged, never sent.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	code := apperrors.CodeOf(err)
	status := code.HTTPStatus()
	if status >= http.StatusInternalServerError {
		logrus.WithError(err).WithFields(logrus.Fields{
			"method": r.Method,
			"path":   r.URL.Path,
			"code":   code,
		}).Error("Request failed")
	}
	JSON(w, status, ErrorBody{Code: code, Message: apperrors.MessageOf(err)})
}

// Decode reads a JSON request body into v.
func Decode(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	if err := dec.Decode(v); err != nil {
		return apperrors.Wrap(apperrors.CodeInvalidArgument, "invalid request body", err)
	}
	return nil
}
