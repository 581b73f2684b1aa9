package httputil

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/matzehuels/stripesankey/pkg/errors"
)

// MaxBodyBytes bounds request bodies. Datasets are the largest payload.
const MaxBodyBytes = 32 << 20

// ErrorBody is the JSON shape of an error response.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail carries the code and user-facing message.
type ErrorDetail struct {
	Code    errors.Code `json:"code"`
	Message string      `json:"message"`
}

// WriteJSON writes v with status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError writes err as an [ErrorBody]. Errors without a code are
// reported as internal errors.
func WriteError(w http.ResponseWriter, err error) {
	code := errors.GetCode(err)
	if code == "" {
		code = errors.ErrCodeInternal
	}
	WriteJSON(w, errors.HTTPStatus(err), ErrorBody{Error: ErrorDetail{
		Code:    code,
		Message: errors.UserMessage(err),
	}})
}

// DecodeJSON decodes the request body into v and validates it. Failures
// are INVALID_INPUT errors.
func DecodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, MaxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if stderrors.Is(err, io.EOF) {
			return errors.New(errors.ErrCodeInvalidInput, "request body is empty")
		}
		return errors.New(errors.ErrCodeInvalidInput, "decode request: %v", err)
	}
	return errors.ValidateStruct(errors.ErrCodeInvalidInput, v)
}

// Accepts reports whether the Accept header of r lists mediaType.
func Accepts(r *http.Request, mediaType string) bool {
	for _, part := range strings.Split(r.Header.Get("Accept"), ",") {
		mt, _, err := mime.ParseMediaType(strings.TrimSpace(part))
		if err == nil && mt == mediaType {
			return true
		}
	}
	return false
}

// ContentType returns the media type of the request body without
// parameters.
func ContentType(r *http.Request) string {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return ""
	}
	return mt
}

// WriteBytes writes a binary payload with its content type.
func WriteBytes(w http.ResponseWriter, contentType string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", fmt.Sprint(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
