// Package httpx holds the request decoding and error mapping shared by the
// API handlers.
package httpx

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lochiel/hacienda/internal/auth"
	"github.com/lochiel/hacienda/internal/document"
	"github.com/lochiel/hacienda/internal/exchange"
	"github.com/lochiel/hacienda/internal/importer"
	"github.com/lochiel/hacienda/internal/matching"
	"github.com/lochiel/hacienda/internal/sale"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// decimal.Decimal validates as its float value so gt/gte/required work.
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}

		return nil
	}, decimal.Decimal{})

	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}

		return name
	})

	return v
}

type errorResponse struct {
	Error  string            `json:"error"`
	Field  string            `json:"field,omitempty"`
	Fields map[string]string `json:"fields,omitempty"`
}

// JSON writes v with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// Decode reads a JSON body into v and runs its validate tags. On failure the
// response has been written and false is returned.
func Decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		JSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON: " + err.Error()})
		return false
	}

	return Validate(w, v)
}

// Validate runs the validate tags of v.
func Validate(w http.ResponseWriter, v any) bool {
	err := validate.Struct(v)
	if err == nil {
		return true
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		Error(w, err)
		return false
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = fe.Tag()
	}

	JSON(w, http.StatusUnprocessableEntity, errorResponse{Error: "validation failed", Fields: fields})

	return false
}

// ID parses the named URL parameter as a UUID, answering 400 when it is not.
func ID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		JSON(w, http.StatusBadRequest, errorResponse{Error: "invalid " + name})
		return uuid.Nil, false
	}

	return id, true
}

// BadRequest answers 400 with msg.
func BadRequest(w http.ResponseWriter, msg string) {
	JSON(w, http.StatusBadRequest, errorResponse{Error: msg})
}

// Error maps a service error onto a status code.
func Error(w http.ResponseWriter, err error) {
	var (
		verr     *sale.ValidationError
		terr     *sale.TransitionError
		upstream *importer.UpstreamError
	)

	switch {
	case errors.As(err, &verr):
		JSON(w, http.StatusUnprocessableEntity, errorResponse{Error: err.Error(), Field: verr.Field})
	case errors.As(err, &terr):
		JSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	case errors.Is(err, sale.ErrNotFound), errors.Is(err, matching.ErrNotFound),
		errors.Is(err, auth.ErrNotFound), errors.Is(err, exchange.ErrUnknownHouse):
		JSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, sale.ErrDuplicateDocument), errors.Is(err, sale.ErrPriceAlreadyAssigned),
		errors.Is(err, sale.ErrPriceNotAssigned), errors.Is(err, sale.ErrSaleClosed):
		JSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	case errors.Is(err, matching.ErrEmptyPattern):
		JSON(w, http.StatusUnprocessableEntity, errorResponse{Error: err.Error()})
	case errors.Is(err, auth.ErrInvalidCredentials), errors.Is(err, auth.ErrInvalidToken):
		JSON(w, http.StatusUnauthorized, errorResponse{Error: err.Error()})
	case errors.Is(err, importer.ErrOCRDisabled), errors.Is(err, document.ErrStorageDisabled):
		JSON(w, http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
	case errors.As(err, &upstream), errors.Is(err, exchange.ErrUnavailable):
		slog.Warn("upstream failure", "error", err)
		JSON(w, http.StatusBadGateway, errorResponse{Error: err.Error()})
	default:
		slog.Error("request failed", "error", err)
		JSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}
