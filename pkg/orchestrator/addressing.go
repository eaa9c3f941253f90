package orchestrator

import (
	"strings"
	"unicode"

	"github.com/parleyhq/parley/pkg/agent"
)

var greetings = map[string]bool{
	"hey":   true,
	"hi":    true,
	"hello": true,
	"ok":    true,
	"okay":  true,
	"so":    true,
}

// resolveAddressing narrows the candidate set to one agent when the
// user's utterance opens by naming them: the full name, the first name,
// or a greeting followed by either ("hey Marcus, ..."). Anything else
// keeps the full participant set.
func resolveAddressing(text string, participants []*agent.Agent) []*agent.Agent {
	lead := strings.ToLower(strings.TrimSpace(text))
	if lead == "" {
		return participants
	}

	// Strip one leading greeting word plus trailing punctuation.
	if word, rest := splitWord(lead); greetings[strings.Trim(word, ",.!:")] {
		lead = rest
	}

	for _, a := range participants {
		for _, name := range []string{strings.ToLower(a.Name), strings.ToLower(a.FirstName())} {
			if name == "" {
				continue
			}
			if matchesName(lead, name) {
				return []*agent.Agent{a}
			}
		}
	}
	return participants
}

// matchesName reports whether lead begins with name followed by a
// word boundary (end of string, space, or punctuation like "," / ":").
func matchesName(lead, name string) bool {
	if !strings.HasPrefix(lead, name) {
		return false
	}
	rest := lead[len(name):]
	if rest == "" {
		return true
	}
	r := []rune(rest)[0]
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}

func splitWord(s string) (word, rest string) {
	if i := strings.IndexByte(s, ' '); i >= 0 {
		return s[:i], strings.TrimSpace(s[i+1:])
	}
	return s, ""
}
