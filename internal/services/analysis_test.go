package services

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"strings"
	"testing"

	"xpert-backend/internal/models"
	"xpert-backend/internal/vision"
)

type stubModel struct {
	out     []float32
	err     error
	spec    vision.InputSpec
	lastLen int
}

func (m *stubModel) InputSpec() vision.InputSpec { return m.spec }

func (m *stubModel) Run(t *vision.Tensor) ([]float32, error) {
	m.lastLen = len(t.Data)
	return m.out, m.err
}

func (m *stubModel) Close() error { return nil }

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 10), G: uint8(y * 10), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode png: %v", err)
	}
	return buf.Bytes()
}

func newAnalysisService(t *testing.T, model vision.Model) (*AnalysisService, string) {
	t.Helper()
	dir := t.TempDir()
	return NewAnalysisService(vision.NewClassifier(model, "model/test.onnx"), NewUploadStore(dir)), dir
}

func TestAnalyze_MissingUpload(t *testing.T) {
	svc, _ := newAnalysisService(t, &stubModel{spec: vision.DefaultInputSpec()})

	for _, mock := range []bool{true, false} {
		_, err := svc.Analyze(context.Background(), AnalyzeInput{UseMock: mock, RoleOverride: "doctor"})
		var missing *MissingUploadError
		if !errors.As(err, &missing) {
			t.Fatalf("mock=%v: expected MissingUploadError, got %v", mock, err)
		}
	}
}

func TestAnalyze_ModelUnavailable(t *testing.T) {
	svc, _ := newAnalysisService(t, nil)

	_, err := svc.Analyze(context.Background(), AnalyzeInput{Image: []byte("abc"), Filename: "x.png"})
	var unavailable *ModelUnavailableError
	if !errors.As(err, &unavailable) {
		t.Fatalf("expected ModelUnavailableError, got %v", err)
	}
}

func TestAnalyze_MockWithoutModel(t *testing.T) {
	svc, dir := newAnalysisService(t, nil)

	tests := []struct {
		size     int
		label    models.PredictionLabel
		prob     float64
		expected string
	}{
		{3, models.LabelPneumonia, 0.9, "As a student: this likely shows pneumonia (confidence 0.90)."},
		{4, models.LabelPneumonia, 0.6, "As a student: this likely shows pneumonia (confidence 0.60)."},
		{5, models.LabelNormal, 0.12, "As a student: this looks normal (confidence 0.88)."},
	}

	for _, tc := range tests {
		resp, err := svc.Analyze(context.Background(), AnalyzeInput{
			Image:    bytes.Repeat([]byte{'x'}, tc.size),
			Filename: "scan.jpg",
			UseMock:  true,
			Debug:    true,
		})
		if err != nil {
			t.Fatalf("size %d: unexpected error: %v", tc.size, err)
		}
		if resp.Prediction != tc.label || resp.PneumoniaProbability != tc.prob {
			t.Errorf("size %d: got (%s, %v)", tc.size, resp.Prediction, resp.PneumoniaProbability)
		}
		if !strings.HasPrefix(resp.Message, tc.expected) {
			t.Errorf("size %d: unexpected message %q", tc.size, resp.Message)
		}
		if resp.RawPreds != nil {
			t.Errorf("mock predictions must not carry raw_preds")
		}
		if resp.Role != models.RoleStudent {
			t.Errorf("expected student role, got %q", resp.Role)
		}
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("uploads must be removed after analysis, found %d files", len(entries))
	}
}

func TestAnalyze_RealPrediction(t *testing.T) {
	model := &stubModel{out: []float32{0.2, 0.8}, spec: vision.InputSpec{Height: 8, Width: 8, Order: vision.ChannelsLast}}
	svc, _ := newAnalysisService(t, model)

	resp, err := svc.Analyze(context.Background(), AnalyzeInput{
		Image:    pngBytes(t),
		Filename: "scan.png",
		Message:  "Dr. Lee reviewing",
		Debug:    true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if model.lastLen != 8*8*3 {
		t.Errorf("expected tensor sized from model spec, got %d values", model.lastLen)
	}
	if resp.Role != models.RoleDoctor || resp.Prediction != models.LabelPneumonia {
		t.Errorf("unexpected response: %+v", resp)
	}
	if resp.Message != "Pneumonia predicted (prob 80.0%). Correlate with clinical picture and consider further evaluation as indicated." {
		t.Errorf("unexpected message %q", resp.Message)
	}
	if len(resp.RawPreds) != 1 || len(resp.RawPreds[0]) != 2 {
		t.Errorf("expected raw_preds [[p0, p1]], got %v", resp.RawPreds)
	}
}

func TestAnalyze_NoDebugOmitsRaw(t *testing.T) {
	svc, _ := newAnalysisService(t, &stubModel{out: []float32{0.9, 0.1}, spec: vision.DefaultInputSpec()})

	resp, err := svc.Analyze(context.Background(), AnalyzeInput{Image: pngBytes(t), Filename: "a.png", RoleOverride: "doctor"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.RawPreds != nil {
		t.Errorf("raw_preds only appear with debug")
	}
	if resp.Message != "No pneumonia predicted (prob 90.0%). If symptoms persist, correlate clinically." {
		t.Errorf("unexpected message %q", resp.Message)
	}
}

func TestAnalyze_InvalidImage(t *testing.T) {
	svc, _ := newAnalysisService(t, &stubModel{out: []float32{0.5, 0.5}, spec: vision.DefaultInputSpec()})

	_, err := svc.Analyze(context.Background(), AnalyzeInput{Image: []byte("not an image"), Filename: "notes.txt"})
	var invalid *InvalidImageError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidImageError, got %v", err)
	}
}

func TestAnalyze_InferenceFailure(t *testing.T) {
	svc, _ := newAnalysisService(t, &stubModel{err: errors.New("session crashed"), spec: vision.DefaultInputSpec()})

	_, err := svc.Analyze(context.Background(), AnalyzeInput{Image: pngBytes(t), Filename: "a.png"})
	var failure *PredictionError
	if !errors.As(err, &failure) {
		t.Fatalf("expected PredictionError, got %v", err)
	}
	if !strings.Contains(failure.Error(), "session crashed") {
		t.Errorf("expected cause in message, got %q", failure.Error())
	}
}

func TestRoleMessage(t *testing.T) {
	tests := []struct {
		role     models.UserRole
		label    models.PredictionLabel
		prob     float64
		expected string
	}{
		{models.RoleStudent, models.LabelPneumonia, 0.734, "As a student: this likely shows pneumonia (confidence 0.73). Pneumonia often looks like white cloudy patches on the lungs."},
		{models.RoleStudent, models.LabelNormal, 0.25, "As a student: this looks normal (confidence 0.75). Lungs appear relatively clear without consolidation."},
		{models.RoleDoctor, models.LabelPneumonia, 0.734, "Pneumonia predicted (prob 73.4%). Correlate with clinical picture and consider further evaluation as indicated."},
		{models.RoleDoctor, models.LabelNormal, 0.25, "No pneumonia predicted (prob 75.0%). If symptoms persist, correlate clinically."},
	}

	for _, tc := range tests {
		if got := RoleMessage(tc.role, tc.label, tc.prob); got != tc.expected {
			t.Errorf("RoleMessage(%s, %s, %v) = %q", tc.role, tc.label, tc.prob, got)
		}
	}
}

func TestRoundTo3(t *testing.T) {
	for _, p := range []float64{0, 0.12, 0.123456, 0.9995, 1, 0.70000001} {
		r := roundTo3(p)
		if r < 0 || r > 1 {
			t.Errorf("roundTo3(%v) = %v out of range", p, r)
		}
		if scaled := r * 1000; math.Abs(scaled-math.Round(scaled)) > 1e-9 {
			t.Errorf("roundTo3(%v) = %v has more than 3 decimals", p, r)
		}
	}
	if roundTo3(0.123456) != 0.123 {
		t.Errorf("expected 0.123, got %v", roundTo3(0.123456))
	}
	if clampProbability(1.2) != 1 || clampProbability(-0.1) != 0 || clampProbability(math.NaN()) != 0 {
		t.Errorf("clampProbability must keep values in [0,1]")
	}
}
