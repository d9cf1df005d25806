package prompt

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Persona is the typed configuration document describing how Kaimu speaks.
// It is loaded once at startup from YAML and validated there; a malformed
// persona fails the boot, never a live request.
type Persona struct {
	// Name is the assistant's self-introduction name, e.g. "카이무".
	Name string `yaml:"name"`
	// Role is a one-sentence description of what the assistant is.
	Role string `yaml:"role"`
	// Tone describes the speaking style (honorifics, emoji policy, ...).
	Tone string `yaml:"tone"`
	// Rules are hard behavioural rules, rendered as a numbered list.
	Rules []string `yaml:"rules"`
	// Closing is an optional trailing instruction appended verbatim.
	Closing string `yaml:"closing,omitempty"`
}

// ParsePersona decodes and validates a persona YAML document. It is the
// canonical entry point for loading persona configuration.
func ParsePersona(data []byte) (*Persona, error) {
	var p Persona
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("persona parse: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Validate checks the persona for structural correctness. It returns the
// first validation error encountered, or nil when the document is valid.
func (p *Persona) Validate() error {
	if p == nil {
		return fmt.Errorf("persona must not be nil")
	}
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("persona: name must not be empty")
	}
	if strings.TrimSpace(p.Role) == "" {
		return fmt.Errorf("persona: role must not be empty")
	}
	for i, r := range p.Rules {
		if strings.TrimSpace(r) == "" {
			return fmt.Errorf("persona: rules[%d] must not be empty", i)
		}
	}
	return nil
}

// Render produces the system-instruction string sent as the first message on
// every provider call. Pure function of the struct; the output is stable so
// prompts stay reproducible across restarts.
func (p *Persona) Render() string {
	var sb strings.Builder
	sb.WriteString(p.Name)
	sb.WriteString(" - ")
	sb.WriteString(p.Role)
	sb.WriteString("\n")
	if p.Tone != "" {
		sb.WriteString("말투: ")
		sb.WriteString(p.Tone)
		sb.WriteString("\n")
	}
	if len(p.Rules) > 0 {
		sb.WriteString("규칙:\n")
		for i, r := range p.Rules {
			fmt.Fprintf(&sb, "%d. %s\n", i+1, r)
		}
	}
	if p.Closing != "" {
		sb.WriteString(p.Closing)
		sb.WriteString("\n")
	}
	return sb.String()
}
