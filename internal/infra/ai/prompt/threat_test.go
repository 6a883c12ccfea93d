package prompt

import (
	"strings"
	"testing"
)

func TestSystemPromptListsAllCategories(t *testing.T) {
	sys := GetSystemPrompt()
	for _, category := range []string{
		"theft", "land_dispute", "domestic_violence", "harassment", "assault",
		"fraud", "vandalism", "drug_related", "noise_complaint",
		"medical_emergency", "fire_emergency", "unknown",
	} {
		if !strings.Contains(sys, category) {
			t.Errorf("system prompt missing category %q", category)
		}
	}
	if !strings.Contains(sys, "threat_type") {
		t.Error("system prompt missing schema field threat_type")
	}
}

func TestUserPromptEmbedsTranscript(t *testing.T) {
	got := GetUserPrompt(`someone said "run"`)
	if !strings.Contains(got, `someone said`) {
		t.Errorf("user prompt does not carry the transcript: %q", got)
	}
}
