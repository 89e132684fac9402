package services

import (
	"bytes"
	"context"
	"errors"
	"log"
	"os"
	"strings"
	"testing"

	"xpert-backend/internal/models"
	"xpert-backend/internal/requestid"
)

type stubLLM struct {
	reply    string
	err      error
	lastText string
	lastImg  *models.Attachment
	calls    int
}

func (s *stubLLM) Generate(ctx context.Context, text string, image *models.Attachment) (string, error) {
	s.calls++
	s.lastText = text
	s.lastImg = image
	return s.reply, s.err
}

func (s *stubLLM) ModelName() string { return "gemini-test" }

func chatRequest(contents ...string) *models.ChatRequest {
	req := &models.ChatRequest{}
	for i, c := range contents {
		role := "user"
		if i == 0 && len(contents) > 1 {
			role = "system"
		}
		req.Messages = append(req.Messages, models.ChatMessage{Role: role, Content: c})
	}
	return req
}

func TestExtractChatTurns(t *testing.T) {
	roleText, userText, err := ExtractChatTurns(chatRequest("operating in doctor mode", "first", "latest"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if roleText != "operating in doctor mode" || userText != "latest" {
		t.Fatalf("unexpected turns: role=%q user=%q", roleText, userText)
	}

	_, _, err = ExtractChatTurns(&models.ChatRequest{})
	var invalid *InvalidRequestError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidRequestError, got %v", err)
	}
}

func TestChatGateway_EmptyMessages(t *testing.T) {
	llm := &stubLLM{reply: "hi"}
	g := NewChatGateway(llm)

	_, err := g.HandleChatRequest(context.Background(), &models.ChatRequest{Messages: []models.ChatMessage{}}, nil)
	var invalid *InvalidRequestError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidRequestError, got %v", err)
	}
	if llm.calls != 0 {
		t.Fatalf("LLM must not be called for invalid requests")
	}
}

func TestChatGateway_DoctorPrompt(t *testing.T) {
	llm := &stubLLM{reply: "Consolidation in the right lower lobe."}
	g := NewChatGateway(llm)

	img := &models.Attachment{MIMEType: "image/png", Data: []byte{1, 2, 3}}
	resp, err := g.HandleChatRequest(context.Background(), chatRequest("You are Xpert, operating in doctor mode.", "Findings?"), img)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.HasPrefix(llm.lastText, doctorSystemPrompt+" ") || !strings.HasSuffix(llm.lastText, "Findings?") {
		t.Errorf("unexpected prompt text: %q", llm.lastText)
	}
	if llm.lastImg != img {
		t.Errorf("expected image attachment to be forwarded")
	}

	if len(resp.Choices) != 1 {
		t.Fatalf("expected exactly one choice, got %d", len(resp.Choices))
	}
	choice := resp.Choices[0]
	if choice.Message.Content != "Consolidation in the right lower lobe." || choice.Message.Role != "assistant" {
		t.Errorf("unexpected message: %+v", choice.Message)
	}
	if choice.FinishReason != "stop" || choice.Index != 0 {
		t.Errorf("unexpected choice metadata: %+v", choice)
	}
	if resp.Object != "chat.completion" || resp.Model != "gemini-test" || !strings.HasPrefix(resp.ID, "chatcmpl-") {
		t.Errorf("unexpected envelope: %+v", resp)
	}
}

func TestChatGateway_LLMFailureDegradesInline(t *testing.T) {
	llm := &stubLLM{err: &LLMCallError{Stage: "client", Err: errLLMNotInitialized}}
	g := NewChatGateway(llm)

	resp, err := g.HandleChatRequest(context.Background(), chatRequest("student here", "Explain"), nil)
	if err != nil {
		t.Fatalf("LLM failures must not propagate, got %v", err)
	}

	content := resp.Choices[0].Message.Content
	if !strings.Contains(content, "Error") || !strings.Contains(content, "Check API Key") {
		t.Errorf("expected inline diagnostic, got %q", content)
	}
	if resp.Choices[0].FinishReason != "stop" {
		t.Errorf("expected finish_reason stop, got %q", resp.Choices[0].FinishReason)
	}
}

func TestChatGateway_LLMFailureLogsRequestID(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(os.Stderr)

	g := NewChatGateway(&stubLLM{err: errors.New("quota exceeded")})
	ctx := requestid.NewContext(context.Background(), "req-42")
	if _, err := g.HandleChatRequest(ctx, chatRequest("hi"), nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	line := buf.String()
	if !strings.Contains(line, "[req-42]") || !strings.Contains(line, "quota exceeded") {
		t.Errorf("expected request id and cause in log, got %q", line)
	}
}

func TestChatGateway_CompleteWrapsUntypedErrors(t *testing.T) {
	g := NewChatGateway(&stubLLM{err: errors.New("connection reset")})

	c := g.Complete(context.Background(), models.RoleStudent, "hi", nil)
	if c.Failure == nil || c.Failure.Stage != "generate" {
		t.Fatalf("expected generate-stage failure, got %+v", c.Failure)
	}
	if c.Text != "" {
		t.Errorf("expected empty text on failure, got %q", c.Text)
	}
}

func TestGeminiClient_WithoutKey(t *testing.T) {
	g, err := NewGeminiClient(context.Background(), "", "gemini-2.5-flash")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if g.Ready() {
		t.Fatalf("client without key must not be ready")
	}

	_, err = g.Generate(context.Background(), "hello", nil)
	var callErr *LLMCallError
	if !errors.As(err, &callErr) || callErr.Stage != "client" {
		t.Fatalf("expected client-stage LLMCallError, got %v", err)
	}
}
