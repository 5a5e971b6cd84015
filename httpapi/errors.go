package httpapi

import (
	"encoding/json"
	"net/http"

	"goa.design/responses-bridge/apperr"
)

// errorBody is the JSON error shape returned to clients on any failure.
type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code,omitempty"`
}

func writeError(w http.ResponseWriter, requestID string, err error) {
	status := apperr.HTTPStatus(err)
	detail := errorDetail{Message: err.Error(), Type: "internal"}
	if ae, ok := apperr.As(err); ok {
		detail = errorDetail{Message: ae.Message(), Type: string(ae.Kind()), Code: ae.Code()}
		if detail.Message == "" {
			detail.Message = err.Error()
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Request-Id", requestID)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Error: detail})
}
