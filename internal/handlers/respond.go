package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"clipfinder/internal/service"
	"clipfinder/internal/storage"
)

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, ErrorResponse{Error: message})
}

// writeServiceError maps service layer errors to HTTP status codes.
func writeServiceError(w http.ResponseWriter, err error) {
	var ve *service.ValidationError
	switch {
	case errors.As(err, &ve):
		writeError(w, http.StatusBadRequest, ve.Error())
		return
	case errors.Is(err, service.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, service.ErrNotFound), errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
		return
	case errors.Is(err, service.ErrDuplicateJob):
		writeError(w, http.StatusConflict, "a job for this video is already queued or running")
		return
	case errors.Is(err, service.ErrJobActive):
		writeError(w, http.StatusConflict, "video has an active job; wait for it to finish")
		return
	}

	if se := service.StageErrorOf(err); se != nil {
		switch se.Kind {
		case service.EmbeddingError, service.ModelError:
			writeError(w, http.StatusBadGateway, "external service error")
			return
		case service.FetchError:
			writeError(w, http.StatusBadGateway, "source fetch error")
			return
		}
	}

	if errors.Is(err, service.ErrVectorStoreUnavailable) {
		writeError(w, http.StatusServiceUnavailable, "vector store unavailable")
		return
	}

	writeError(w, http.StatusInternalServerError, "internal server error")
}

// decodeJSON decodes a request body, rejecting unknown garbage early.
func decodeJSON(r *http.Request, dst any) error {
	return json.NewDecoder(r.Body).Decode(dst)
}
