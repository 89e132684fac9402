package vision

import (
	"errors"

	"xpert-backend/internal/models"
)

// ErrModelUnavailable is returned by Predict when no artifact is loaded.
var ErrModelUnavailable = errors.New("model not loaded")

// Model runs one forward pass. Output index 0 is Normal, index 1 Pneumonia;
// single-output models return the Pneumonia probability alone.
type Model interface {
	InputSpec() InputSpec
	Run(t *Tensor) ([]float32, error)
	Close() error
}

// Classifier is built once at startup and only read afterwards.
type Classifier struct {
	model Model
	path  string
}

// NewClassifier accepts a nil model, in which case only mock predictions
// can be served.
func NewClassifier(model Model, path string) *Classifier {
	return &Classifier{model: model, path: path}
}

func (c *Classifier) Loaded() bool { return c != nil && c.model != nil }

func (c *Classifier) Path() string { return c.path }

// InputSpec falls back to 224x224 channels-last without a model.
func (c *Classifier) InputSpec() InputSpec {
	if !c.Loaded() {
		return DefaultInputSpec()
	}
	return c.model.InputSpec()
}

func (c *Classifier) Predict(t *Tensor) (models.PredictionResult, error) {
	if !c.Loaded() {
		return models.PredictionResult{}, ErrModelUnavailable
	}

	out, err := c.model.Run(t)
	if err != nil {
		return models.PredictionResult{}, err
	}

	result := PredictionFromOutput(out)
	result.Raw = [][]float32{out}
	return result, nil
}

func (c *Classifier) Close() error {
	if !c.Loaded() {
		return nil
	}
	return c.model.Close()
}

// PredictionFromOutput applies the strict > 0.5 threshold.
func PredictionFromOutput(out []float32) models.PredictionResult {
	var prob float64
	switch {
	case len(out) >= 2:
		prob = float64(out[1])
	case len(out) == 1:
		prob = float64(out[0])
	}
	return models.PredictionResult{Label: labelFor(prob), Probability: prob}
}

func labelFor(prob float64) models.PredictionLabel {
	if prob > 0.5 {
		return models.LabelPneumonia
	}
	return models.LabelNormal
}

// MockPredict cycles through three fixed outcomes by size mod 3.
func MockPredict(size int64) models.PredictionResult {
	switch size % 3 {
	case 0:
		return models.PredictionResult{Label: models.LabelPneumonia, Probability: 0.9}
	case 1:
		return models.PredictionResult{Label: models.LabelPneumonia, Probability: 0.6}
	default:
		return models.PredictionResult{Label: models.LabelNormal, Probability: 0.12}
	}
}
