package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/rturner/choreboard/internal/model"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func errorJSON(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeError maps domain errors onto HTTP statuses: permission failures are
// 403, validation failures 400, missing records 404, anything else a logged
// 500 with no internals leaked.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var permErr *model.PermissionError
	if errors.As(err, &permErr) {
		errorJSON(w, http.StatusForbidden, permErr.Error())
		return
	}
	var valErr *model.ValidationError
	if errors.As(err, &valErr) {
		errorJSON(w, http.StatusBadRequest, valErr.Error())
		return
	}
	if errors.Is(err, model.ErrNotFound) {
		errorJSON(w, http.StatusNotFound, "not found")
		return
	}
	logger.Error("request failed", "error", err)
	errorJSON(w, http.StatusInternalServerError, "internal error")
}

func parseIDParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(r.PathValue("id"), 10, 64)
}

// parseTimeParam accepts RFC 3339 instants and bare dates. Bare dates are
// interpreted as local midnight in loc.
func parseTimeParam(value string, loc *time.Location) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	return time.ParseInLocation("2006-01-02", value, loc)
}
