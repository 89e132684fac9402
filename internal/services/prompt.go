package services

import "xpert-backend/internal/models"

const (
	studentSystemPrompt = "You are Xpert, a friendly medical tutor AI. Explain findings simply and break down the diagnostic process."
	doctorSystemPrompt  = "You are Xpert, an expert radiologist AI assistant. Respond concisely using technical terminology."
)

// Prompt is the single turn sent to the LLM. No history is forwarded.
type Prompt struct {
	SystemPrompt string
	CombinedText string
}

func BuildPrompt(role models.UserRole, userMessage string) Prompt {
	system := studentSystemPrompt
	if role == models.RoleDoctor {
		system = doctorSystemPrompt
	}
	return Prompt{
		SystemPrompt: system,
		CombinedText: system + " " + userMessage,
	}
}
