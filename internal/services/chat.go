package services

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"

	"xpert-backend/internal/models"
	"xpert-backend/internal/requestid"
)

// Completion is the outcome of one LLM call. Failure is set instead of Text
// when the provider could not answer.
type Completion struct {
	Text    string
	Failure *LLMCallError
}

type ChatGateway struct {
	llm LLMClient
}

func NewChatGateway(llm LLMClient) *ChatGateway {
	return &ChatGateway{llm: llm}
}

// ExtractChatTurns reads the role-indicating text from the first message and
// the user's latest utterance from the last one.
func ExtractChatTurns(req *models.ChatRequest) (roleText, userText string, err error) {
	if req == nil || len(req.Messages) == 0 {
		return "", "", &InvalidRequestError{Message: "'messages' must contain at least one message"}
	}
	return req.Messages[0].Content, req.Messages[len(req.Messages)-1].Content, nil
}

// Complete calls the LLM once with the role-adapted prompt.
func (g *ChatGateway) Complete(ctx context.Context, role models.UserRole, userMessage string, image *models.Attachment) Completion {
	prompt := BuildPrompt(role, userMessage)

	text, err := g.llm.Generate(ctx, prompt.CombinedText, image)
	if err != nil {
		var callErr *LLMCallError
		if !errors.As(err, &callErr) {
			callErr = &LLMCallError{Stage: "generate", Err: err}
		}
		return Completion{Failure: callErr}
	}
	return Completion{Text: text}
}

// HandleChatRequest never returns an error for LLM failures; those become
// the assistant text of a normal response.
func (g *ChatGateway) HandleChatRequest(ctx context.Context, req *models.ChatRequest, image *models.Attachment) (*models.ChatResponse, error) {
	roleText, userMessage, err := ExtractChatTurns(req)
	if err != nil {
		return nil, err
	}

	role := ResolveRole(roleText, "")
	completion := g.Complete(ctx, role, userMessage, image)

	replyText := completion.Text
	if completion.Failure != nil {
		log.Printf("LLM API Call Failed [%s] (stage=%s, role=%s): %v", requestid.FromContext(ctx), completion.Failure.Stage, role, completion.Failure.Err)
		replyText = fmt.Sprintf("LLM Integration Error: External AI failed to respond. Details: %v", completion.Failure.Err)
	}

	return NewChatResponse(g.llm.ModelName(), replyText), nil
}

// InvalidChatResponse is the envelope returned with a 400 so chat UIs can
// still render the problem as an assistant message.
func InvalidChatResponse(err error) *models.ChatResponse {
	return NewChatResponse("", fmt.Sprintf("ERROR: Invalid Request Format. %v", err))
}

// NewChatResponse wraps assistant text in a single-choice envelope.
func NewChatResponse(modelName, content string) *models.ChatResponse {
	return &models.ChatResponse{
		ID:     "chatcmpl-" + uuid.NewString(),
		Object: "chat.completion",
		Model:  modelName,
		Choices: []models.ChatChoice{
			{
				Index: 0,
				Message: models.ChatMessage{
					Role:    "assistant",
					Content: content,
				},
				FinishReason: "stop",
			},
		},
	}
}
