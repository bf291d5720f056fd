// Package podcast turns a set of news articles into a short two-host audio
// episode: a language model writes the dialogue, a multi-speaker speech
// model voices it and the result is stored as a WAV file.
package podcast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/stylehub-project/news-sub000/pkg/audio/pcm"
	"github.com/stylehub-project/news-sub000/pkg/storage"
)

var (
	ErrNoArticles = errors.New("podcast: no articles")
	ErrHosts      = errors.New("podcast: need one or two hosts with distinct names")
	ErrBadScript  = errors.New("podcast: invalid script")
)

// Article is one news item the episode covers.
type Article struct {
	Title   string `json:"title" yaml:"title"`
	Source  string `json:"source,omitzero" yaml:"source,omitempty"`
	Summary string `json:"summary" yaml:"summary"`
	URL     string `json:"url,omitzero" yaml:"url,omitempty"`
}

// Host is a speaker of the episode and the prebuilt voice reading it.
type Host struct {
	Name  string `json:"name" yaml:"name"`
	Voice string `json:"voice" yaml:"voice"`
	// Persona is a short description given to the script writer.
	Persona string `json:"persona,omitzero" yaml:"persona,omitempty"`
}

// Request describes an episode.
type Request struct {
	Topic    string    `json:"topic" yaml:"topic"`
	Articles []Article `json:"articles" yaml:"articles"`
	Hosts    []Host    `json:"hosts" yaml:"hosts"`

	// Minutes is the target length. Zero means 3.
	Minutes  int    `json:"minutes,omitzero" yaml:"minutes,omitempty"`
	Language string `json:"language,omitzero" yaml:"language,omitempty"`
}

// DefaultHosts is used when a Request names none.
var DefaultHosts = []Host{
	{Name: "Ava", Voice: "Kore", Persona: "curious anchor who frames each story"},
	{Name: "Leo", Voice: "Puck", Persona: "analyst who adds context and numbers"},
}

func (r Request) withDefaults() Request {
	if len(r.Hosts) == 0 {
		r.Hosts = DefaultHosts
	}
	if r.Minutes <= 0 {
		r.Minutes = 3
	}
	if r.Language == "" {
		r.Language = "English"
	}
	return r
}

// Validate checks that the request can produce an episode.
func (r Request) Validate() error {
	if len(r.Articles) == 0 {
		return ErrNoArticles
	}
	if len(r.Hosts) == 0 || len(r.Hosts) > 2 {
		return fmt.Errorf("%w: got %d", ErrHosts, len(r.Hosts))
	}
	seen := make(map[string]bool)
	for _, h := range r.Hosts {
		name := strings.TrimSpace(h.Name)
		if name == "" || seen[name] || h.Voice == "" {
			return fmt.Errorf("%w: %+v", ErrHosts, h)
		}
		seen[name] = true
	}
	return nil
}

// Line is one utterance of the script.
type Line struct {
	Speaker string `json:"speaker" jsonschema:"name of the host speaking, exactly as given"`
	Text    string `json:"text" jsonschema:"what the host says, plain spoken language"`
}

// Script is the dialogue of an episode.
type Script struct {
	Title string `json:"title" jsonschema:"short episode title"`
	Lines []Line `json:"lines" jsonschema:"the dialogue in speaking order"`
}

// ScriptWriter drafts the dialogue for a request.
type ScriptWriter interface {
	WriteScript(ctx context.Context, req Request) (*Script, error)
}

// Synthesizer voices a script. It returns mono PCM16 in the returned format.
type Synthesizer interface {
	Synthesize(ctx context.Context, s *Script, hosts []Host) (pcm.Format, []byte, error)
}

// Episode is a produced episode.
type Episode struct {
	Script     *Script       `json:"script"`
	AudioPath  string        `json:"audio_path"`
	ScriptPath string        `json:"script_path"`
	Format     pcm.Format    `json:"format"`
	Duration   time.Duration `json:"duration"`
}

// Generator produces episodes into a FileStore.
type Generator struct {
	Writer ScriptWriter
	Voice  Synthesizer
	Store  storage.FileStore
	Logger *slog.Logger
}

// Generate writes the script, voices it and stores <name>.wav and
// <name>.json under dir.
func (g *Generator) Generate(ctx context.Context, req Request, dir, name string) (*Episode, error) {
	logger := g.Logger
	if logger == nil {
		logger = slog.Default()
	}
	req = req.withDefaults()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	script, err := g.Writer.WriteScript(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("podcast: write script: %w", err)
	}
	if err := script.Check(req.Hosts); err != nil {
		return nil, err
	}
	logger.Info("podcast script ready", "title", script.Title, "lines", len(script.Lines), "took", time.Since(start))

	start = time.Now()
	format, audio, err := g.Voice.Synthesize(ctx, script, req.Hosts)
	if err != nil {
		return nil, fmt.Errorf("podcast: synthesize: %w", err)
	}
	if len(audio) == 0 {
		return nil, errors.New("podcast: synthesize: no audio")
	}
	logger.Info("podcast audio ready", "duration", format.Duration(int64(len(audio))), "took", time.Since(start))

	ep := &Episode{
		Script:     script,
		AudioPath:  path.Join(dir, name+".wav"),
		ScriptPath: path.Join(dir, name+".json"),
		Format:     format,
		Duration:   format.Duration(int64(len(audio))),
	}
	w, err := g.Store.Write(ctx, ep.AudioPath)
	if err != nil {
		return nil, fmt.Errorf("podcast: store audio: %w", err)
	}
	if err := pcm.WriteWAV(w, format, audio); err != nil {
		storage.Abort(w)
		return nil, fmt.Errorf("podcast: store audio: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("podcast: store audio: %w", err)
	}

	data, err := json.MarshalIndent(script, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("podcast: encode script: %w", err)
	}
	if err := storage.WriteFile(ctx, g.Store, ep.ScriptPath, data); err != nil {
		return nil, fmt.Errorf("podcast: store script: %w", err)
	}
	return ep, nil
}
