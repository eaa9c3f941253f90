package agent

import (
	"strings"
)

// Agent is a roundtable participant persona. Agents are loaded once at
// startup and never mutated; the orchestrator only reads them.
type Agent struct {
	ID                  string `json:"id"`
	Name                string `json:"name"`
	Role                string `json:"role"`
	Persona             string `json:"persona"`
	Voice               string `json:"voice"`
	AllowStrongLanguage bool   `json:"allow_strong_language"`
}

// FirstName returns the leading word of the agent's display name.
func (a *Agent) FirstName() string {
	name := strings.TrimSpace(a.Name)
	if i := strings.IndexByte(name, ' '); i > 0 {
		return name[:i]
	}
	return name
}

// SystemPrompt renders the persona instructions handed to the backends.
func (a *Agent) SystemPrompt(topic, userName, userRole string) string {
	var b strings.Builder
	b.WriteString("You are ")
	b.WriteString(a.Name)
	if a.Role != "" {
		b.WriteString(", ")
		b.WriteString(a.Role)
	}
	b.WriteString(", in a live spoken roundtable conversation")
	if topic != "" {
		b.WriteString(" about: ")
		b.WriteString(topic)
	}
	b.WriteString(".\n")
	if a.Persona != "" {
		b.WriteString(a.Persona)
		b.WriteString("\n")
	}
	if userName != "" {
		b.WriteString("The human participant is ")
		b.WriteString(userName)
		if userRole != "" {
			b.WriteString(" (")
			b.WriteString(userRole)
			b.WriteString(")")
		}
		b.WriteString(".\n")
	}
	b.WriteString("Speak naturally in one short conversational turn. Do not narrate actions or use markdown.")
	if !a.AllowStrongLanguage {
		b.WriteString(" Keep your language family-friendly.")
	}
	return b.String()
}
