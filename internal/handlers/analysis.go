package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"xpert-backend/internal/models"
	"xpert-backend/internal/services"
)

type analyzer interface {
	Analyze(ctx context.Context, in services.AnalyzeInput) (*models.AnalysisResponse, error)
	Health() models.HealthResponse
}

type AnalysisHandler struct {
	svc            analyzer
	maxUploadBytes int64
}

func NewAnalysisHandler(svc analyzer, maxUploadBytes int64) *AnalysisHandler {
	return &AnalysisHandler{svc: svc, maxUploadBytes: maxUploadBytes}
}

const indexHTML = `
<h3>Pneumonia Detector (VGG16)</h3>
<form action="/analyze" method="post" enctype="multipart/form-data">
  <p><input type="file" name="file" accept="image/*" required></p>
  <p><input type="text" name="message" placeholder="e.g., I'm a student. What does this show?" style="width:320px;"></p>
  <p><button type="submit">Analyze</button></p>
  <p>Tip: add <code>?role=doctor</code> or <code>?role=student</code> to the URL to force role.</p>
</form>
`

func (h *AnalysisHandler) Index(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(indexHTML))
}

func (h *AnalysisHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Health())
}

// Analyze serves POST /analyze: multipart field "file" plus optional
// "message" and "mock"; query role, mock and debug.
func (h *AnalysisHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Uploaded file is too large"})
			return
		}
		if !errors.Is(err, http.ErrNotMultipart) {
			writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Invalid multipart form: " + err.Error()})
			return
		}
	}

	in := services.AnalyzeInput{
		RoleOverride: r.URL.Query().Get("role"),
		Message:      r.FormValue("message"),
		UseMock:      flagSet(r.URL.Query().Get("mock")) || flagSet(r.FormValue("mock")),
		Debug:        flagSet(r.URL.Query().Get("debug")),
	}

	file, header, err := r.FormFile("file")
	if err == nil {
		defer file.Close()
		data, readErr := io.ReadAll(file)
		if readErr != nil {
			writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Failed to read uploaded file"})
			return
		}
		in.Image = data
		in.Filename = header.Filename
	}

	resp, err := h.svc.Analyze(r.Context(), in)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func flagSet(v string) bool {
	return strings.TrimSpace(v) == "1"
}
