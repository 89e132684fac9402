package models

// UserRole is derived from request text or an explicit override.
type UserRole string

const (
	RoleDoctor  UserRole = "doctor"
	RoleStudent UserRole = "student"
)

// PredictionLabel is the classifier outcome.
type PredictionLabel string

const (
	LabelPneumonia PredictionLabel = "Pneumonia"
	LabelNormal    PredictionLabel = "Normal"
)

// PredictionResult holds the label and the probability of Pneumonia,
// whatever the label is.
type PredictionResult struct {
	Label       PredictionLabel
	Probability float64
	// Raw is the model output, nil for mock predictions.
	Raw [][]float32
}

type AnalysisResponse struct {
	Role                 UserRole        `json:"role"`
	Prediction           PredictionLabel `json:"prediction"`
	PneumoniaProbability float64         `json:"pneumonia_probability"`
	Message              string          `json:"message"`
	RawPreds             [][]float32     `json:"raw_preds,omitempty"`
}

type HealthResponse struct {
	ModelLoaded bool   `json:"model_loaded"`
	ModelPath   string `json:"model_path"`
	Message     string `json:"message"`
}
