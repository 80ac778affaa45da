package httpx

import (
	"errors"
	"io"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/ariefcatur/go-bakery-orders/internal/apperr"
	"github.com/ariefcatur/go-bakery-orders/internal/logging"
	"github.com/ariefcatur/go-bakery-orders/internal/validation"
)

const maxBody = 1 << 20

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Code      apperr.Kind `json:"code"`
	Message   string      `json:"message"`
	Details   any         `json:"details,omitempty"`
	Retryable bool        `json:"retryable,omitempty"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
	// Orders lists what a partially failed checkout did place.
	Orders any `json:"orders,omitempty"`
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	writeErrorWith(w, r, err, nil)
}

func writeErrorWith(w http.ResponseWriter, r *http.Request, err error, placed any) {
	kind := apperr.KindOf(err)
	body := errorResponse{
		Error:  errorBody{Code: kind, Message: err.Error(), Retryable: kind.Retryable()},
		Orders: placed,
	}
	var e *apperr.Error
	switch {
	case errors.As(err, &e):
		body.Error.Details = e.Details
	case kind == apperr.KindTimeout:
		body.Error.Message = "request timed out, retry later"
	default:
		logging.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("internal error")
		body.Error.Message = "internal error"
	}
	writeJSON(w, kind.HTTPStatus(), body)
}

// decode reads a JSON body into v and runs struct validation.
func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBody))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.Validation("request body is required")
		}
		return apperr.Validation("invalid json: %v", err)
	}
	return validation.Struct(v)
}
