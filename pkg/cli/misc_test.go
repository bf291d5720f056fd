package cli

import (
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"
)

func TestFormat(t *testing.T) {
	tests := []struct{ got, want string }{
		{FormatDuration(850 * time.Millisecond), "850ms"},
		{FormatDuration(12300 * time.Millisecond), "12.3s"},
		{FormatDuration(4*time.Minute + 5200*time.Millisecond), "4m05.2s"},
		{FormatBytes(512), "512 B"},
		{FormatBytes(2048), "2.00 KB"},
		{FormatBytes(5 << 20), "5.00 MB"},
		{FormatBytes(3 << 30), "3.00 GB"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("got %q, want %q", tt.got, tt.want)
		}
	}
}

func TestParseRequest(t *testing.T) {
	type req struct {
		Voice  string `json:"voice" yaml:"voice"`
		Prompt string `json:"prompt" yaml:"prompt"`
	}
	tests := []struct {
		name, data string
		wantErr    bool
	}{
		{"s.yaml", "voice: Puck\nprompt: brief me\n", false},
		{"s.json", `{"voice":"Puck","prompt":"brief me"}`, false},
		{"s.txt", `{"voice":"Puck","prompt":"brief me"}`, false},
		{"s.json", "voice: Puck", true},
	}
	for _, tt := range tests {
		var r req
		err := ParseRequest([]byte(tt.data), tt.name, &r)
		if (err != nil) != tt.wantErr {
			t.Errorf("%s %q: error = %v", tt.name, tt.data, err)
			continue
		}
		if err == nil && (r.Voice != "Puck" || r.Prompt != "brief me") {
			t.Errorf("%s: got %+v", tt.name, r)
		}
	}
	if err := LoadRequest(filepath.Join(t.TempDir(), "missing.yaml"), &struct{}{}); err == nil {
		t.Error("missing file loaded")
	}
}

func TestLogWriter(t *testing.T) {
	w := NewLogWriter(3)
	w.Write([]byte("one\ntwo\n"))
	w.Write([]byte("three\nfour\n"))
	if got := w.Lines(); !slices.Equal(got, []string{"two", "three", "four"}) {
		t.Errorf("Lines() = %v", got)
	}
}

func TestMeter(t *testing.T) {
	if got := Meter([]float64{0, 0.5, 1, 2, -1}); got != " ▄██ " {
		t.Errorf("Meter = %q", got)
	}
}

func TestFrameRender(t *testing.T) {
	f := Frame{
		Styles: NewStyles(DefaultTheme),
		Title:  "voicelive",
		Status: "streaming",
		Sections: []Section{
			{Label: "Transcript", Lines: []string{"old", "You: a very long line that will not fit in the frame at all"}},
			{Label: "Level", Lines: []string{Meter([]float64{0.2, 0.4})}},
		},
		Help: "m mute  q quit",
	}
	out := f.Render(30, 12)
	lines := strings.Split(out, "\n")
	if len(lines) != 12 {
		t.Fatalf("rendered %d lines, want 12:\n%s", len(lines), out)
	}
	if !strings.Contains(out, "…") {
		t.Error("long line not clipped")
	}
	if (Frame{Title: "x"}).Render(0, 0) != "x" {
		t.Error("tiny frame should render the title only")
	}
}
