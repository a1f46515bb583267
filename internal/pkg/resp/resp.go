/*
Package resp provides helpers for sending standardized HTTP JSON responses
on the small REST surface (health, upgrade rejections).
*/
package resp

import (
	"encoding/json"
	"net/http"

	"carshare/internal/pkg/errs"
	"carshare/internal/pkg/logx"
)

// JSONResponse is the uniform response body: a business code (0 on
// success), a message, and an optional data payload.
type JSONResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// RespondJSON writes the payload with the given HTTP status.
func RespondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")

	body, err := json.Marshal(payload)
	if err != nil {
		logx.Error(err, "Error encoding JSON response", "http_status", status)
		http.Error(w, "Error encoding JSON response", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(status)
	w.Write(body)
}

// RespondSuccess sends an HTTP 200 with code 0 and the given data.
func RespondSuccess(w http.ResponseWriter, data any) {
	RespondJSON(w, http.StatusOK, JSONResponse{Code: 0, Message: "success", Data: data})
}

// RespondError sends the coded error as a JSON response.
func RespondError(w http.ResponseWriter, customErr *errs.CustomError) {
	if customErr == nil {
		customErr = errs.NewError(errs.ErrUnknown)
	}

	status := customErr.Status
	if status == 0 {
		status = http.StatusOK
	}

	RespondJSON(w, status, JSONResponse{Code: customErr.Code, Message: customErr.Message})
}
