package models

import (
	"encoding/json"
	"errors"
	"strings"
)

// ChatMessage represents a single message in a conversation.
type ChatMessage struct {
	Role    string `json:"role"` // "system", "user" or "assistant"
	Content string `json:"content"`
}

// UnmarshalJSON requires a content field. Content may be a plain string or
// a list of {"type":"text","text":...} parts, which are joined by newlines.
func (m *ChatMessage) UnmarshalJSON(data []byte) error {
	var raw struct {
		Role    string          `json:"role"`
		Content json.RawMessage `json:"content"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw.Content) == 0 || string(raw.Content) == "null" {
		return errors.New("message is missing 'content'")
	}

	var text string
	if err := json.Unmarshal(raw.Content, &text); err != nil {
		var parts []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		}
		if err := json.Unmarshal(raw.Content, &parts); err != nil {
			return errors.New("message 'content' must be a string or a list of text parts")
		}
		var texts []string
		for _, p := range parts {
			if p.Type == "text" {
				texts = append(texts, p.Text)
			}
		}
		text = strings.Join(texts, "\n")
	}

	m.Role = raw.Role
	m.Content = text
	return nil
}

// ChatRequest is the OpenAI-style payload sent to /v1/chat/completions.
// Model is accepted for client compatibility and ignored.
type ChatRequest struct {
	Model    string        `json:"model,omitempty"`
	Messages []ChatMessage `json:"messages"`
	Image    *ImagePayload `json:"image,omitempty"`
}

// ImagePayload is an optional image sent with a chat turn; Data is base64
// on the wire.
type ImagePayload struct {
	MIMEType string `json:"mime_type"`
	Data     []byte `json:"data"`
}

// Attachment returns the request image, or nil when none was sent.
func (r *ChatRequest) Attachment() *Attachment {
	if r.Image == nil || len(r.Image.Data) == 0 {
		return nil
	}
	return &Attachment{MIMEType: r.Image.MIMEType, Data: r.Image.Data}
}

type ChatChoice struct {
	Index        int         `json:"index"`
	Message      ChatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

// ChatResponse always carries exactly one choice.
type ChatResponse struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Model   string       `json:"model"`
	Choices []ChatChoice `json:"choices"`
}

// Attachment is an optional image forwarded alongside the chat text.
type Attachment struct {
	MIMEType string
	Data     []byte
}
