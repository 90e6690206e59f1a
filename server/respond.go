package server

import (
	"encoding/json"
	"net/http"

	"WaveDeck/apperr"
	"WaveDeck/logger"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("failed to write response", logger.ErrorField(err))
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}

// writeAppError maps err to its status code. IO and unclassified errors are logged
// and answered with fallback.
func writeAppError(w http.ResponseWriter, err error, fallback string) {
	status := apperr.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		logger.Error(fallback, logger.ErrorField(err))
	}
	writeError(w, status, apperr.Message(err, fallback))
}
