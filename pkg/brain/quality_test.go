package brain

import "testing"

func TestLooksCorrupted(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		corrupted bool
	}{
		{"normal sentence", "I think the coding test is a fair way to evaluate candidates.", false},
		{"empty", "", true},
		{"whitespace only", "   \n  ", true},
		{"question flood", "what?? why?? how?? when??", true},
		{"single honest question", "Could you tell me more about the role?", false},
		{"symbol soup", "@#$%^&*()!@#$%^&*()[]{}<><><>", true},
		{"repeated punctuation run", "That is great!!!! I love it", true},
		{"ellipsis is fine", "Well... I am not sure about that.", false},
		{"normal with numbers", "We interviewed 12 candidates over 3 weeks.", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := LooksCorrupted(tt.text); got != tt.corrupted {
				t.Errorf("LooksCorrupted(%q) = %v, want %v", tt.text, got, tt.corrupted)
			}
		})
	}
}
