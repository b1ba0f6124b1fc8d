package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nacoslite/nacoslite/pkg/auth"
	"github.com/nacoslite/nacoslite/pkg/configstore"
	"github.com/nacoslite/nacoslite/pkg/log"
	"github.com/nacoslite/nacoslite/pkg/notify"
	"github.com/nacoslite/nacoslite/pkg/storage"
	"github.com/nacoslite/nacoslite/pkg/tenant"
)

// restResult is the console envelope: code 200 means success
type restResult struct {
	Code    int     `json:"code"`
	Message *string `json:"message"`
	Data    any     `json:"data"`
}

// page is the legacy paged-list envelope shared by search and history
type page struct {
	TotalCount     int64 `json:"totalCount"`
	PageNumber     int   `json:"pageNumber"`
	PagesAvailable int64 `json:"pagesAvailable"`
	PageItems      any   `json:"pageItems"`
}

func newPage(total int64, pageNo, pageSize int, items any) page {
	if pageNo < 1 {
		pageNo = 1
	}
	if pageSize < 1 {
		pageSize = 10
	}
	avail := total / int64(pageSize)
	if total%int64(pageSize) != 0 {
		avail++
	}
	return page{
		TotalCount:     total,
		PageNumber:     pageNo,
		PagesAvailable: avail,
		PageItems:      items,
	}
}

func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain;charset=UTF-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json;charset=UTF-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeRestResult(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, restResult{Code: http.StatusOK, Data: data})
}

// writeError maps a handler error to the wire taxonomy. Storage detail
// never reaches the body.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeText(w, http.StatusNotFound, "config data not exist")
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrInvalidCredentials):
		writeText(w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, notify.ErrMalformedListeningConfigs),
		errors.Is(err, configstore.ErrBadArchive),
		errors.Is(err, tenant.ErrReserved):
		writeText(w, http.StatusBadRequest, "invalid request")
	default:
		logger := log.WithComponent("api")
		logger.Error().Err(err).Msg("request failed")
		writeText(w, http.StatusInternalServerError, "internal server error")
	}
}

func badRequest(w http.ResponseWriter, msg string) {
	writeText(w, http.StatusBadRequest, msg)
}

func methodNotAllowed(w http.ResponseWriter) {
	writeText(w, http.StatusMethodNotAllowed, "method not allowed")
}
