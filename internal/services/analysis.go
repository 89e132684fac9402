package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"strconv"

	"xpert-backend/internal/models"
	"xpert-backend/internal/vision"
)

type AnalyzeInput struct {
	Image        []byte
	Filename     string
	RoleOverride string
	Message      string
	UseMock      bool
	Debug        bool
}

type AnalysisService struct {
	classifier *vision.Classifier
	uploads    *UploadStore
}

func NewAnalysisService(classifier *vision.Classifier, uploads *UploadStore) *AnalysisService {
	return &AnalysisService{classifier: classifier, uploads: uploads}
}

func (s *AnalysisService) Health() models.HealthResponse {
	loaded := s.classifier.Loaded()
	msg := "Model not loaded"
	if loaded {
		msg = "Model loaded"
	}
	return models.HealthResponse{ModelLoaded: loaded, ModelPath: s.classifier.Path(), Message: msg}
}

func (s *AnalysisService) Analyze(ctx context.Context, in AnalyzeInput) (*models.AnalysisResponse, error) {
	if len(in.Image) == 0 {
		return nil, &MissingUploadError{Message: "Upload an image in form field 'file'"}
	}

	role := ResolveRole(in.Message, in.RoleOverride)

	if !s.classifier.Loaded() && !in.UseMock {
		return nil, &ModelUnavailableError{Message: "Model not loaded on server. Use ?mock=1 to test without a model."}
	}

	path, size, err := s.uploads.Save(in.Filename, bytes.NewReader(in.Image))
	if err != nil {
		return nil, &PredictionError{Err: err}
	}
	defer s.uploads.Remove(path)

	var result models.PredictionResult
	if in.UseMock {
		result = vision.MockPredict(size)
	} else {
		if err := ctx.Err(); err != nil {
			return nil, &PredictionError{Err: err}
		}
		result, err = s.predict(path)
		if err != nil {
			return nil, err
		}
	}

	prob := clampProbability(result.Probability)
	resp := &models.AnalysisResponse{
		Role:                 role,
		Prediction:           result.Label,
		PneumoniaProbability: roundTo3(prob),
		Message:              RoleMessage(role, result.Label, prob),
	}
	if in.Debug && !in.UseMock {
		resp.RawPreds = result.Raw
	}
	return resp, nil
}

func (s *AnalysisService) predict(path string) (models.PredictionResult, error) {
	tensor, err := vision.DecodeFile(path, s.classifier.InputSpec())
	if err != nil {
		if errors.Is(err, vision.ErrInvalidImage) {
			log.Printf("Rejected upload: %v", err)
			return models.PredictionResult{}, &InvalidImageError{Message: vision.ErrInvalidImage.Error()}
		}
		return models.PredictionResult{}, &PredictionError{Err: err}
	}

	result, err := s.classifier.Predict(tensor)
	if err != nil {
		if errors.Is(err, vision.ErrModelUnavailable) {
			return models.PredictionResult{}, &ModelUnavailableError{Message: "Model not loaded on server. Use ?mock=1 to test without a model."}
		}
		return models.PredictionResult{}, &PredictionError{Err: err}
	}
	return result, nil
}

// RoleMessage renders the role-specific explanation of a prediction.
func RoleMessage(role models.UserRole, label models.PredictionLabel, prob float64) string {
	if role == models.RoleDoctor {
		if label == models.LabelPneumonia {
			return fmt.Sprintf("Pneumonia predicted (prob %.1f%%). Correlate with clinical picture and consider further evaluation as indicated.", prob*100)
		}
		return fmt.Sprintf("No pneumonia predicted (prob %.1f%%). If symptoms persist, correlate clinically.", (1-prob)*100)
	}

	if label == models.LabelPneumonia {
		return fmt.Sprintf("As a student: this likely shows pneumonia (confidence %.2f). Pneumonia often looks like white cloudy patches on the lungs.", prob)
	}
	return fmt.Sprintf("As a student: this looks normal (confidence %.2f). Lungs appear relatively clear without consolidation.", 1-prob)
}

// roundTo3 rounds the decimal representation, not the binary product.
func roundTo3(v float64) float64 {
	r, _ := strconv.ParseFloat(strconv.FormatFloat(v, 'f', 3, 64), 64)
	return r
}

func clampProbability(p float64) float64 {
	switch {
	case math.IsNaN(p), p < 0:
		return 0
	case p > 1:
		return 1
	}
	return p
}
