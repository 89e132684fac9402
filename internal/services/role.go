package services

import (
	"regexp"
	"strings"

	"xpert-backend/internal/models"
)

var (
	doctorWords  = regexp.MustCompile(`\b(doctor|dr|radiologist|consultant|specialist)\b`)
	studentWords = regexp.MustCompile(`\b(student|learner|exam|study|college|uni)\b`)
)

// ParseRole accepts "doctor" or "student" in any case, surrounding space ignored.
func ParseRole(s string) (models.UserRole, bool) {
	switch models.UserRole(strings.ToLower(strings.TrimSpace(s))) {
	case models.RoleDoctor:
		return models.RoleDoctor, true
	case models.RoleStudent:
		return models.RoleStudent, true
	}
	return "", false
}

// ResolveRole returns the override when it names a known role, otherwise
// detects the role from whole-word keywords in text. Doctor keywords win
// over student keywords and everything else is a student.
func ResolveRole(text, override string) models.UserRole {
	if role, ok := ParseRole(override); ok {
		return role
	}
	if text == "" {
		return models.RoleStudent
	}

	t := strings.ToLower(text)
	if doctorWords.MatchString(t) {
		return models.RoleDoctor
	}
	if studentWords.MatchString(t) {
		return models.RoleStudent
	}
	return models.RoleStudent
}
