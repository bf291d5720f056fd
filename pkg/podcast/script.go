package podcast

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/kaptinlin/jsonrepair"
)

// wordsPerMinute is a relaxed conversational speaking rate.
const wordsPerMinute = 150

var scriptSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	return jsonschema.For[Script](&jsonschema.ForOptions{})
})

// systemPrompt instructs the script writer.
func systemPrompt(req Request) string {
	var sb strings.Builder
	sb.WriteString("You write scripts for a short daily news podcast. ")
	fmt.Fprintf(&sb, "Write in %s. ", req.Language)
	fmt.Fprintf(&sb, "The episode lasts about %d minutes, roughly %d words in total. ",
		req.Minutes, req.Minutes*wordsPerMinute)
	sb.WriteString("Cover every article, attribute facts to their source and do not invent details. ")
	sb.WriteString("Use natural spoken sentences without markdown, stage directions or sound effects.\n\nHosts:\n")
	for _, h := range req.Hosts {
		fmt.Fprintf(&sb, "- %s", h.Name)
		if h.Persona != "" {
			fmt.Fprintf(&sb, ": %s", h.Persona)
		}
		sb.WriteByte('\n')
	}
	sb.WriteString("\nEvery line's speaker must be one of the host names exactly as written.")
	return sb.String()
}

// userPrompt lists the articles.
func userPrompt(req Request) string {
	var sb strings.Builder
	if req.Topic != "" {
		fmt.Fprintf(&sb, "Episode topic: %s\n\n", req.Topic)
	}
	for i, a := range req.Articles {
		fmt.Fprintf(&sb, "Article %d: %s\n", i+1, a.Title)
		if a.Source != "" {
			fmt.Fprintf(&sb, "Source: %s\n", a.Source)
		}
		fmt.Fprintf(&sb, "%s\n\n", strings.TrimSpace(a.Summary))
	}
	return strings.TrimRight(sb.String(), "\n")
}

// parseScript decodes model output, repairing truncated or sloppy JSON.
func parseScript(text string) (*Script, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")

	var s Script
	err := json.Unmarshal([]byte(text), &s)
	if _, ok := err.(*json.SyntaxError); ok {
		fixed, rerr := jsonrepair.JSONRepair(text)
		if rerr != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadScript, err)
		}
		err = json.Unmarshal([]byte(fixed), &s)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadScript, err)
	}
	return &s, nil
}

// Check verifies that the script has lines and that every speaker is a host.
// Speaker names are normalized to the host spelling.
func (s *Script) Check(hosts []Host) error {
	if s == nil || len(s.Lines) == 0 {
		return fmt.Errorf("%w: no lines", ErrBadScript)
	}
	names := make(map[string]string, len(hosts))
	for _, h := range hosts {
		names[strings.ToLower(strings.TrimSpace(h.Name))] = h.Name
	}
	kept := s.Lines[:0]
	for i, l := range s.Lines {
		name, ok := names[strings.ToLower(strings.TrimSpace(l.Speaker))]
		if !ok {
			return fmt.Errorf("%w: line %d has unknown speaker %q", ErrBadScript, i+1, l.Speaker)
		}
		l.Speaker = name
		l.Text = strings.TrimSpace(l.Text)
		if l.Text != "" {
			kept = append(kept, l)
		}
	}
	s.Lines = kept
	if len(s.Lines) == 0 {
		return fmt.Errorf("%w: no lines", ErrBadScript)
	}
	return nil
}

// Transcript renders the script as "Name: text" lines, the form the speech
// model voices.
func (s *Script) Transcript() string {
	var sb strings.Builder
	for _, l := range s.Lines {
		fmt.Fprintf(&sb, "%s: %s\n", l.Speaker, l.Text)
	}
	return sb.String()
}
