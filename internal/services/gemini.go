package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"xpert-backend/internal/models"
)

// LLMClient sends one turn to an external chat model.
type LLMClient interface {
	Generate(ctx context.Context, text string, image *models.Attachment) (string, error)
	ModelName() string
}

var errLLMNotInitialized = errors.New("LLM Client not initialized. Check API Key.")

type GeminiClient struct {
	client    *genai.Client
	model     *genai.GenerativeModel
	modelName string
}

// NewGeminiClient builds the client once at startup. An empty API key yields
// a client whose every call fails, so chat degrades instead of the server
// refusing to start.
func NewGeminiClient(ctx context.Context, apiKey, modelName string) (*GeminiClient, error) {
	g := &GeminiClient{modelName: modelName}
	if apiKey == "" {
		return g, nil
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return g, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	g.client = client
	g.model = client.GenerativeModel(modelName)
	return g, nil
}

func (g *GeminiClient) Ready() bool { return g.model != nil }

func (g *GeminiClient) ModelName() string { return g.modelName }

func (g *GeminiClient) Close() {
	if g.client != nil {
		g.client.Close()
	}
}

func (g *GeminiClient) Generate(ctx context.Context, text string, image *models.Attachment) (string, error) {
	if g.model == nil {
		return "", &LLMCallError{Stage: "client", Err: errLLMNotInitialized}
	}

	parts := []genai.Part{genai.Text(text)}
	if image != nil && len(image.Data) > 0 {
		mimeType := image.MIMEType
		if mimeType == "" {
			mimeType = "image/jpeg"
		}
		parts = append(parts, genai.Blob{MIMEType: mimeType, Data: image.Data})
	}

	resp, err := g.model.GenerateContent(ctx, parts...)
	if err != nil {
		return "", &LLMCallError{Stage: "generate", Err: fmt.Errorf("Gemini API error: %w", err)}
	}

	reply := extractText(resp)
	if strings.TrimSpace(reply) == "" {
		return "", &LLMCallError{Stage: "response", Err: errors.New("Gemini returned no text candidates")}
	}
	return reply, nil
}

func extractText(resp *genai.GenerateContentResponse) string {
	var text strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content != nil {
			for _, part := range cand.Content.Parts {
				if t, ok := part.(genai.Text); ok {
					text.WriteString(string(t))
				}
			}
		}
	}
	return text.String()
}
