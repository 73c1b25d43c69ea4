package chi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Error codes returned in ErrorResponse.Code.
const (
	CodeBadRequest        = "bad_request"
	CodeValidationFailed  = "validation_failed"
	CodeUnauthorized      = "unauthorized"
	CodeInvalidQuery      = "invalid_query"
	CodeInvalidParams     = "invalid_params"
	CodeInvalidEntry      = "invalid_entry"
	CodeMappingFailed     = "mapping_failed"
	CodeNotFound          = "not_found"
	CodeServerUnavailable = "server_unavailable"
	CodeBackendError      = "backend_error"
	CodeInternalError     = "internal_error"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Query   string            `json:"query,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// AddEntriesRequest is the body of POST /v1/entries.
type AddEntriesRequest struct {
	Entries []map[string]any `json:"entries" validate:"required,min=1,dive,required"`
}

// AddEntriesResponse lists the ids of the written entries in request order.
type AddEntriesResponse struct {
	IDs []string `json:"ids"`
}

// QueryRequest is the body of POST /v1/query and POST /v1/delete-by-query.
type QueryRequest struct {
	Query  string `json:"query" validate:"required"`
	Params []any  `json:"params"`
}

// QueryResponse is the body returned by POST /v1/query.
type QueryResponse struct {
	TookMS  int64            `json:"took_ms"`
	Total   int              `json:"total"`
	Entries []map[string]any `json:"entries"`
	Scores  []float64        `json:"scores"`
}

// HealthResponse is the body returned by GET /health.
type HealthResponse struct {
	Status  string            `json:"status"`
	Backend string            `json:"backend"`
	Checks  map[string]string `json:"checks"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidationError wraps validator.ValidationErrors with a user-friendly message.
type ValidationError struct {
	Errors validator.ValidationErrors
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Errors))
	for _, err := range e.Errors {
		msgs = append(msgs, fmt.Sprintf("field '%s' %s", err.Field(), msgForTag(err)))
	}
	return strings.Join(msgs, "; ")
}

// Fields returns a map of field names to error messages.
func (e *ValidationError) Fields() map[string]string {
	fields := make(map[string]string, len(e.Errors))
	for _, err := range e.Errors {
		fields[err.Field()] = msgForTag(err)
	}
	return fields
}

func msgForTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must contain at least %s item(s)", fe.Param())
	default:
		return fmt.Sprintf("failed on '%s' validation", fe.Tag())
	}
}

// decodeAndValidate reads JSON from the request body into dst and validates it.
func decodeAndValidate(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode request body: %w", err)
	}
	if err := validate.Struct(dst); err != nil {
		if ve, ok := err.(validator.ValidationErrors); ok { //nolint:errorlint // validator returns the concrete type
			return &ValidationError{Errors: ve}
		}
		return fmt.Errorf("validate request: %w", err)
	}
	return nil
}
