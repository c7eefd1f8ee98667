package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/BaSui01/deepresearch/api"
	"github.com/BaSui01/deepresearch/types"
)

// maxBodyBytes bounds request bodies read by DecodeJSONBody.
const maxBodyBytes = 1 << 20 // 1 MB

// WriteJSON writes a JSON response.
func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Headers are already sent; nothing more can be written.
		return
	}
}

// WriteDetail writes the {"detail": ...} error shape used by the status and
// results endpoints.
func WriteDetail(w http.ResponseWriter, status int, detail string) {
	WriteJSON(w, status, api.DetailResponse{Detail: detail})
}

// WriteErrorMessage writes the {"error": ...} rejection shape used by the
// submission endpoint.
func WriteErrorMessage(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, api.ErrorResponse{Error: message})
}

// WriteError writes a types.Error as a submission rejection, deriving the
// HTTP status from the error when it carries none.
func WriteError(w http.ResponseWriter, err *types.Error, logger *zap.Logger) {
	status := err.HTTPStatus
	if status == 0 {
		status = mapErrorCodeToHTTPStatus(err.Code)
	}

	if logger != nil {
		logger.Error("API error",
			zap.String("code", string(err.Code)),
			zap.String("message", err.Message),
			zap.Int("status", status),
			zap.Bool("retryable", err.Retryable),
			zap.Error(err.Cause),
		)
	}

	WriteErrorMessage(w, status, err.Message)
}

func mapErrorCodeToHTTPStatus(code types.ErrorCode) int {
	switch code {
	case types.ErrInvalidRequest:
		return http.StatusBadRequest
	case types.ErrTaskNotFound:
		return http.StatusNotFound
	case types.ErrTaskNotDone:
		return http.StatusBadRequest
	case types.ErrRateLimited:
		return http.StatusTooManyRequests
	case types.ErrUpstreamTimeout:
		return http.StatusGatewayTimeout
	case types.ErrUpstreamError:
		return http.StatusBadGateway
	case types.ErrProviderUnavailable, types.ErrServiceUnavailable:
		return http.StatusServiceUnavailable
	case types.ErrInternalError, types.ErrStepReentry:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// DecodeJSONBody decodes a JSON request body into dst. On failure it writes
// the rejection response itself and returns the error.
func DecodeJSONBody(w http.ResponseWriter, r *http.Request, dst interface{}, logger *zap.Logger) error {
	if r.Body == nil {
		err := types.NewError(types.ErrInvalidRequest, "request body is empty").
			WithHTTPStatus(http.StatusBadRequest)
		WriteError(w, err, logger)
		return err
	}

	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		apiErr := types.NewError(types.ErrInvalidRequest, "invalid JSON body").
			WithCause(err).
			WithHTTPStatus(http.StatusBadRequest)
		WriteError(w, apiErr, logger)
		return apiErr
	}

	return nil
}

// ResponseWriter wraps http.ResponseWriter to capture the status code.
type ResponseWriter struct {
	http.ResponseWriter
	StatusCode int
	Written    bool
}

// NewResponseWriter creates a capturing ResponseWriter.
func NewResponseWriter(w http.ResponseWriter) *ResponseWriter {
	return &ResponseWriter{
		ResponseWriter: w,
		StatusCode:     http.StatusOK,
	}
}

// WriteHeader records the first status code written.
func (rw *ResponseWriter) WriteHeader(code int) {
	if !rw.Written {
		rw.StatusCode = code
		rw.Written = true
		rw.ResponseWriter.WriteHeader(code)
	}
}

// Write marks the response as written.
func (rw *ResponseWriter) Write(b []byte) (int, error) {
	if !rw.Written {
		rw.WriteHeader(http.StatusOK)
	}
	return rw.ResponseWriter.Write(b)
}

// Flush implements http.Flusher when the underlying writer supports it.
func (rw *ResponseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
