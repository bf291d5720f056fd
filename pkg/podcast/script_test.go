package podcast

import (
	"errors"
	"strings"
	"testing"
)

func testRequest() Request {
	return Request{
		Topic: "Morning markets",
		Articles: []Article{
			{Title: "Stocks rally on rate hopes", Source: "Wire", Summary: "Indexes rose 2%."},
			{Title: "Chip exports slow", Summary: " Shipments fell in March. "},
		},
	}.withDefaults()
}

func TestPrompts(t *testing.T) {
	req := testRequest()
	sys := systemPrompt(req)
	for _, want := range []string{"English", "about 3 minutes", "450 words", "- Ava: curious anchor", "- Leo: analyst"} {
		if !strings.Contains(sys, want) {
			t.Errorf("system prompt missing %q:\n%s", want, sys)
		}
	}
	user := userPrompt(req)
	for _, want := range []string{"Episode topic: Morning markets", "Article 1: Stocks rally on rate hopes", "Source: Wire", "Article 2: Chip exports slow\nShipments fell in March."} {
		if !strings.Contains(user, want) {
			t.Errorf("user prompt missing %q:\n%s", want, user)
		}
	}
	if strings.HasSuffix(user, "\n") {
		t.Error("user prompt ends with a newline")
	}
}

func TestParseScript(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		lines   int
		wantErr bool
	}{
		{"plain", `{"title":"T","lines":[{"speaker":"Ava","text":"Hi"}]}`, 1, false},
		{"fenced", "```json\n{\"title\":\"T\",\"lines\":[{\"speaker\":\"Ava\",\"text\":\"Hi\"}]}\n```", 1, false},
		{"trailing comma", `{"title":"T","lines":[{"speaker":"Ava","text":"Hi"},]}`, 1, false},
		{"truncated", `{"title":"T","lines":[{"speaker":"Ava","text":"Hi"},{"speaker":"Leo","text":"Hel`, 2, false},
		{"wrong type", `{"title":1,"lines":[]}`, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := parseScript(tt.text)
			if tt.wantErr {
				if !errors.Is(err, ErrBadScript) {
					t.Fatalf("error = %v, want ErrBadScript", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseScript error: %v", err)
			}
			if len(s.Lines) != tt.lines {
				t.Errorf("got %d lines, want %d: %+v", len(s.Lines), tt.lines, s)
			}
		})
	}
}

func TestScriptCheck(t *testing.T) {
	hosts := DefaultHosts
	s := &Script{Lines: []Line{
		{Speaker: " ava ", Text: "Good morning. "},
		{Speaker: "LEO", Text: "   "},
		{Speaker: "Leo", Text: "Markets are up."},
	}}
	if err := s.Check(hosts); err != nil {
		t.Fatalf("Check error: %v", err)
	}
	want := "Ava: Good morning.\nLeo: Markets are up.\n"
	if got := s.Transcript(); got != want {
		t.Errorf("Transcript() = %q, want %q", got, want)
	}

	bad := &Script{Lines: []Line{{Speaker: "Narrator", Text: "..."}}}
	if err := bad.Check(hosts); !errors.Is(err, ErrBadScript) {
		t.Errorf("unknown speaker error = %v", err)
	}
	empty := &Script{Lines: []Line{{Speaker: "Ava", Text: " "}}}
	if err := empty.Check(hosts); !errors.Is(err, ErrBadScript) {
		t.Errorf("blank script error = %v", err)
	}
	var none *Script
	if err := none.Check(hosts); !errors.Is(err, ErrBadScript) {
		t.Errorf("nil script error = %v", err)
	}
}

func TestRequestValidate(t *testing.T) {
	articles := []Article{{Title: "a", Summary: "b"}}
	tests := []struct {
		name string
		req  Request
		want error
	}{
		{"ok", Request{Articles: articles, Hosts: DefaultHosts}, nil},
		{"single host", Request{Articles: articles, Hosts: DefaultHosts[:1]}, nil},
		{"no articles", Request{Hosts: DefaultHosts}, ErrNoArticles},
		{"three hosts", Request{Articles: articles, Hosts: append(DefaultHosts[:2:2], Host{Name: "Kim", Voice: "Zephyr"})}, ErrHosts},
		{"duplicate", Request{Articles: articles, Hosts: []Host{{Name: "A", Voice: "Kore"}, {Name: "A", Voice: "Puck"}}}, ErrHosts},
		{"no voice", Request{Articles: articles, Hosts: []Host{{Name: "A"}}}, ErrHosts},
	}
	for _, tt := range tests {
		if err := tt.req.Validate(); !errors.Is(err, tt.want) {
			t.Errorf("%s: Validate() = %v, want %v", tt.name, err, tt.want)
		}
	}
}
