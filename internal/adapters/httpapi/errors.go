package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/oapi-codegen/nullable"
	"go.uber.org/zap"

	"github.com/civic-assoc/membership-api/internal/app/apperr"
)

// ErrorResponse is the error envelope returned by every endpoint.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

type ErrorBody struct {
	Code      string                            `json:"code"`
	Message   string                            `json:"message"`
	Details   nullable.Nullable[map[string]any] `json:"details,omitempty"`
	Hints     []string                          `json:"hints,omitempty"`
	RequestId nullable.Nullable[string]         `json:"requestId,omitempty"`
}

var errUnauthenticated = errors.New("missing subject")

func writeAPIError(w http.ResponseWriter, r *http.Request, status int, code string, message string, details map[string]any, hints []string) {
	var er ErrorResponse
	er.Error.Code = code
	er.Error.Message = message
	er.Error.Hints = hints
	if details != nil {
		er.Error.Details = nullable.NewNullableWithValue(details)
	}
	if rid := middleware.GetReqID(r.Context()); rid != "" {
		er.Error.RequestId = nullable.NewNullableWithValue(rid)
	}
	writeJSON(w, status, er)
}

// writeError renders business errors with their own status and code. Anything else
// is logged and reported as INTERNAL without the underlying message.
func writeError(w http.ResponseWriter, r *http.Request, log *zap.Logger, err error) {
	if ae, ok := apperr.As(err); ok {
		writeAPIError(w, r, ae.Status, ae.Code, ae.Message, ae.Details, ae.Hints)
		return
	}
	if errors.Is(err, errUnauthenticated) {
		writeAPIError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing subject", nil, nil)
		return
	}
	log.Error("request failed",
		zap.Error(err),
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.String("request_id", middleware.GetReqID(r.Context())),
	)
	writeAPIError(w, r, http.StatusInternalServerError, "INTERNAL", "internal error", nil, nil)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
