package commands

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stylehub-project/news-sub000/pkg/cli"
	"github.com/stylehub-project/news-sub000/pkg/storage"
	"github.com/stylehub-project/news-sub000/pkg/voicelive"
)

func TestActiveContext(t *testing.T) {
	tests := []struct {
		name     string
		env      map[string]string
		contexts map[string]*cli.Context
		current  string
		selected string

		wantProvider string
		wantKey      string
		wantErr      bool
	}{
		{
			name:         "gemini env",
			env:          map[string]string{"GEMINI_API_KEY": "g-key"},
			wantProvider: "gemini", wantKey: "g-key",
		},
		{
			name:         "openai env only",
			env:          map[string]string{"OPENAI_API_KEY": "o-key"},
			wantProvider: "openai", wantKey: "o-key",
		},
		{
			name:         "google fallback",
			env:          map[string]string{"GOOGLE_API_KEY": "goog"},
			wantProvider: "gemini", wantKey: "goog",
		},
		{
			name:         "context key wins",
			env:          map[string]string{"OPENAI_API_KEY": "env"},
			contexts:     map[string]*cli.Context{"a": {Name: "a", Provider: "openai", APIKey: "ctx"}},
			current:      "a",
			wantProvider: "openai", wantKey: "ctx",
		},
		{
			name:         "context without key",
			env:          map[string]string{"OPENAI_API_KEY": "env"},
			contexts:     map[string]*cli.Context{"a": {Name: "a", Provider: "openai"}},
			selected:     "a",
			wantProvider: "openai", wantKey: "env",
		},
		{
			name:     "unknown selected",
			selected: "b",
			wantErr:  true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setupTestEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			contextName = tt.selected
			defer func() { contextName = "" }()

			cfg := &cli.Config{CurrentContext: tt.current, Contexts: tt.contexts}
			if cfg.Contexts == nil {
				cfg.Contexts = map[string]*cli.Context{}
			}
			c, err := activeContext(cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if c.Provider != tt.wantProvider || c.APIKey != tt.wantKey {
				t.Errorf("context = %+v", c)
			}
		})
	}
}

func TestActiveContextDoesNotMutateConfig(t *testing.T) {
	setupTestEnv(t)
	t.Setenv("GEMINI_API_KEY", "env")
	stored := &cli.Context{Name: "a"}
	cfg := &cli.Config{CurrentContext: "a", Contexts: map[string]*cli.Context{"a": stored}}
	if _, err := activeContext(cfg); err != nil {
		t.Fatal(err)
	}
	if stored.APIKey != "" || stored.Provider != "" {
		t.Errorf("stored context changed: %+v", stored)
	}
}

func TestStorageConfig(t *testing.T) {
	p := &cli.Paths{AppName: appName, HomeDir: "/home/u"}
	t.Setenv("AWS_ACCESS_KEY_ID", "AK")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "SK")

	got := storageConfig(&cli.Context{}, p)
	if got.Dir != p.RecordingsDir() || got.Backend != "" {
		t.Errorf("default = %+v", got)
	}
	got = storageConfig(&cli.Context{Extra: map[string]string{
		extraStorageBackend:   storage.BackendS3,
		extraStorageBucket:    "rec",
		extraStorageEndpoint:  "http://minio:9000",
		extraStoragePathStyle: "true",
	}}, p)
	if got.Dir != "" || got.Bucket != "rec" || !got.PathStyle || got.AccessKeyID != "AK" || got.SecretAccessKey != "SK" {
		t.Errorf("s3 = %+v", got)
	}
}

func TestSessionConfig(t *testing.T) {
	cfg := sessionConfig(&cli.Context{Provider: "openai"})
	if cfg.Provider != voicelive.ProviderOpenAI || cfg.Model != "" || !cfg.EnableInputTranscription {
		t.Errorf("openai config = %+v", cfg)
	}
	cfg = sessionConfig(&cli.Context{Provider: "gemini", Model: "m", VoiceProfile: "Kore"})
	if cfg.Model != "m" || cfg.VoiceProfile != "Kore" {
		t.Errorf("gemini config = %+v", cfg)
	}
}

func TestTalkConfig(t *testing.T) {
	t.Cleanup(func() { talkFile, talkPrompt, talkVoice = "", "", "" })
	ctx := &cli.Context{Name: "work", Provider: "openai"}

	talkFile = writeTestFile(t, "session.yaml", `
session:
  system_prompt: Read the sports page.
  enable_output_transcription: false
  input_sample_rate_hz: 24000
  send_queue: 4
capture_block_size: 480
`)
	talkVoice = "verse"
	cfg, err := talkConfig(ctx)
	if err != nil {
		t.Fatalf("talkConfig error: %v", err)
	}
	s := cfg.Session
	if s.Provider != voicelive.ProviderOpenAI || s.SystemPrompt != "Read the sports page." || s.VoiceProfile != "verse" {
		t.Errorf("session = %+v", s)
	}
	if s.EnableOutputTranscription || !s.EnableInputTranscription || s.InputSampleRate != 24000 || s.SendQueue != 4 {
		t.Errorf("session = %+v", s)
	}
	if cfg.CaptureBlockSize != 480 {
		t.Errorf("capture block = %d", cfg.CaptureBlockSize)
	}

	talkPrompt = "  Only weather.  "
	if cfg, _ := talkConfig(ctx); cfg.Session.SystemPrompt != "Only weather." {
		t.Errorf("prompt flag not applied: %q", cfg.Session.SystemPrompt)
	}

	talkFile = writeTestFile(t, "bad.json", `{"session": {"send_queue": -1}}`)
	if _, err := talkConfig(ctx); err == nil {
		t.Error("negative send queue accepted")
	}
	talkFile = writeTestFile(t, "gemini.yaml", "session:\n  provider: gemini\n")
	if _, err := talkConfig(ctx); err == nil {
		t.Error("provider mismatch accepted")
	}
}

func TestNewOpenAITransportOptions(t *testing.T) {
	c := &cli.Context{
		Name: "work", Provider: "openai", APIKey: "sk",
		Extra: map[string]string{"organization": "org-1", "project": "proj-1"},
	}
	tr, err := newTransport(t.Context(), c, voicelive.DefaultConfig())
	if err != nil {
		t.Fatalf("newTransport error: %v", err)
	}
	if _, ok := tr.(*voicelive.OpenAITransport); !ok {
		t.Errorf("transport = %T", tr)
	}
	c.APIKey = ""
	if _, err := newTransport(t.Context(), c, voicelive.Config{}); !errors.Is(err, voicelive.ErrAuthRejected) {
		t.Errorf("missing key error = %v", err)
	}
}

func TestExplain(t *testing.T) {
	if explain(nil) != nil {
		t.Error("explain(nil) != nil")
	}
	denied := &voicelive.Error{Kind: voicelive.PermissionDenied, Op: "start", Err: errors.New("refused")}
	err := explain(denied)
	if !errors.Is(err, voicelive.ErrPermissionDenied) || !strings.Contains(err.Error(), "hint:") {
		t.Errorf("explain = %v", err)
	}
	plain := errors.New("boom")
	if explain(plain) != plain {
		t.Error("unclassified error changed")
	}
}

func TestTalkViewPlain(t *testing.T) {
	var out bytes.Buffer
	v := newTalkView(&out, nil, true)
	h := v.host()
	h.OnTranscript([]voicelive.Turn{{Speaker: voicelive.User, Text: "hi"}})
	h.OnTranscript([]voicelive.Turn{
		{Speaker: voicelive.User, Text: "hi there", Final: true},
		{Speaker: voicelive.Assistant, Text: "Hello"},
	})
	h.OnTranscript([]voicelive.Turn{
		{Speaker: voicelive.User, Text: "hi there", Final: true},
		{Speaker: voicelive.Assistant, Text: "Hello, here is the news", Final: true},
	})
	v.draw()
	want := "You: hi there\nAssistant: Hello, here is the news\n"
	if out.String() != want {
		t.Errorf("output = %q, want %q", out.String(), want)
	}
}

func TestTalkViewFrame(t *testing.T) {
	var out bytes.Buffer
	v := newTalkView(&out, cli.NewLogWriter(10), false)
	h := v.host()
	h.OnOpen()
	v.setMic(true)
	h.OnTranscript([]voicelive.Turn{{Speaker: voicelive.Assistant, Text: "Markets"}})
	h.OnSpeakingChanged(true)
	h.OnAudioLevel(0.5, []float64{0.5, 1})

	v.mu.Lock()
	f := v.frameLocked()
	v.mu.Unlock()
	if f.Status != "speaking · mic on" {
		t.Errorf("status = %q", f.Status)
	}
	if len(f.Sections) != 2 || !strings.Contains(f.Sections[0].Lines[0], "Markets …") {
		t.Errorf("sections = %+v", f.Sections)
	}
	if !strings.Contains(f.Sections[1].Lines[0], " 50%") {
		t.Errorf("meter = %q", f.Sections[1].Lines[0])
	}

	h.OnError(errors.New("socket closed"))
	v.draw()
	if !strings.Contains(out.String(), "socket closed") {
		t.Errorf("error not drawn:\n%s", out.String())
	}
	v.stop()
	n := out.Len()
	v.draw()
	if out.Len() != n {
		t.Error("drew after stop")
	}
}

func TestReadCommands(t *testing.T) {
	var got []string
	for c := range readCommands(strings.NewReader(" M \nq\n")) {
		got = append(got, c)
	}
	if strings.Join(got, ",") != "m,q" {
		t.Errorf("commands = %v", got)
	}
}
