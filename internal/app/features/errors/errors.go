// internal/app/features/errors/errors.go
package errors

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

// envelope is the JSON error body every handler returns on failure.
type envelope struct {
	Error string `json:"error"`
}

// ErrorLogger pairs structured logging with a JSON error response, so
// handlers report failures in one call and the client never sees internals.
type ErrorLogger struct {
	log *zap.Logger
}

// NewErrorLogger constructs an ErrorLogger.
func NewErrorLogger(logger *zap.Logger) *ErrorLogger {
	return &ErrorLogger{log: logger}
}

// WriteJSON writes any payload with the given status. Shared by handlers for
// success responses too, so the content type is set in exactly one place.
func WriteJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// WriteError writes a bare JSON error envelope without logging. For expected
// client mistakes that need no operator attention.
func WriteError(w http.ResponseWriter, status int, publicMsg string) {
	WriteJSON(w, status, envelope{Error: publicMsg})
}

func (e *ErrorLogger) write(w http.ResponseWriter, r *http.Request, status int, logMsg string, err error, publicMsg string) {
	fields := []zap.Field{
		zap.Int("status", status),
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}

	if status >= http.StatusInternalServerError {
		e.log.Error(logMsg, fields...)
	} else {
		e.log.Warn(logMsg, fields...)
	}

	WriteError(w, status, publicMsg)
}

// LogServerError logs at error level and answers 500 with a public message.
func (e *ErrorLogger) LogServerError(w http.ResponseWriter, r *http.Request, logMsg string, err error, publicMsg string) {
	e.write(w, r, http.StatusInternalServerError, logMsg, err, publicMsg)
}

// LogBadRequest logs at warn level and answers 400.
func (e *ErrorLogger) LogBadRequest(w http.ResponseWriter, r *http.Request, logMsg string, err error, publicMsg string) {
	e.write(w, r, http.StatusBadRequest, logMsg, err, publicMsg)
}

// LogNotFound logs at warn level and answers 404.
func (e *ErrorLogger) LogNotFound(w http.ResponseWriter, r *http.Request, logMsg string, err error, publicMsg string) {
	e.write(w, r, http.StatusNotFound, logMsg, err, publicMsg)
}

// LogConflict logs at warn level and answers 409.
func (e *ErrorLogger) LogConflict(w http.ResponseWriter, r *http.Request, logMsg string, err error, publicMsg string) {
	e.write(w, r, http.StatusConflict, logMsg, err, publicMsg)
}
