package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"xpert-backend/internal/models"
	"xpert-backend/internal/requestid"
	"xpert-backend/internal/services"
)

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		invalidReq  *services.InvalidRequestError
		invalidImg  *services.InvalidImageError
		missing     *services.MissingUploadError
		unavailable *services.ModelUnavailableError
		prediction  *services.PredictionError
	)

	switch {
	case errors.As(err, &invalidReq):
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: invalidReq.Message})
	case errors.As(err, &invalidImg):
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: invalidImg.Message})
	case errors.As(err, &missing):
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: missing.Message})
	case errors.As(err, &unavailable):
		writeJSON(w, http.StatusServiceUnavailable, models.ErrorResponse{Error: unavailable.Message})
	case errors.As(err, &prediction):
		log.Printf("ERROR [%s] %v", requestid.FromContext(r.Context()), err)
		writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: prediction.Error()})
	default:
		log.Printf("ERROR [%s] unexpected: %v", requestid.FromContext(r.Context()), err)
		writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: "Internal server error: " + err.Error()})
	}
}
