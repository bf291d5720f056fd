package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/stylehub-project/news-sub000/cmd/voicelive/internal/device"
	"github.com/stylehub-project/news-sub000/pkg/cli"
	"github.com/stylehub-project/news-sub000/pkg/voicelive"
)

var (
	talkFile       string
	talkPrompt     string
	talkPromptFile string
	talkModel      string
	talkVoice      string
	talkMuted      bool
	talkNoMic      bool
	talkNoSpeaker  bool
	talkExport     string
	talkListen     string
	talkPlain      bool
	talkTimeout    time.Duration
)

var talkCmd = &cobra.Command{
	Use:   "talk",
	Short: "Hold a live voice conversation",
	Long: `Start a live voice conversation with the assistant of the current context.

The microphone streams to the provider and the assistant's voice plays on
the default speaker. The live view shows the transcript and an output level
meter. Type a command and press Enter:
  m   toggle the microphone
  q   end the session

When the session ends it is archived with its transcript; assistant audio
is kept as a WAV recording and can be copied out with --export.

Session settings (transcription, sample rates, send queue, capture and
visualizer tuning) can be loaded from a YAML or JSON file with -f. Flags
override the file, and the file overrides the context.

Examples:
  voicelive talk -p "You are a news anchor. Summarize today's headlines."
  voicelive talk -f session.yaml
  voicelive talk --voice Kore --export answer.wav
  voicelive talk --listen :8080     # also serve live events over HTTP`,
	RunE: runTalk,
}

// relayHost forwards to Host, which may be swapped before the engine starts.
type relayHost struct{ voicelive.Host }

func runTalk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if talkPromptFile != "" {
		data, err := os.ReadFile(talkPromptFile)
		if err != nil {
			return fmt.Errorf("read prompt: %w", err)
		}
		talkPrompt = string(data)
	}

	rt, err := openRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	cfg, err := talkConfig(rt.context)
	if err != nil {
		return err
	}
	transport, err := newTransport(ctx, rt.context, cfg.Session)
	if err != nil {
		return err
	}

	var logs *cli.LogWriter
	if !talkPlain {
		logs = cli.NewLogWriter(200)
		setupLogging(logs)
		defer setupLogging(os.Stderr)
	}
	view := newTalkView(os.Stdout, logs, talkPlain)

	relay := &relayHost{Host: view.host()}
	opts := []voicelive.EngineOption{
		voicelive.WithHost(relay),
		voicelive.WithArchive(rt.archive),
		voicelive.WithRecordingStore(rt.files, ""),
		voicelive.WithEngineMetrics(rt.metrics),
	}
	if !talkNoMic {
		opts = append(opts, voicelive.WithInput(device.Microphone()))
	}
	if !talkNoSpeaker {
		opts = append(opts, voicelive.WithOutput(device.Speaker()))
	}
	eng := voicelive.NewEngine(transport, cfg, opts...)
	view.setTitle(fmt.Sprintf("voicelive · %s · %s", eng.Config().Session.Provider, eng.Config().Session.VoiceProfile))

	if talkListen != "" {
		srv := rt.server()
		relay.Host = srv.Hub().NewHost(eng.ID(), relay.Host)
		srv.Track(eng)
		serveCtx, stop := context.WithCancel(ctx)
		defer stop()
		go func() {
			if err := srv.Serve(serveCtx, talkListen); err != nil {
				printVerbose("serve: %v", err)
			}
		}()
	}

	if err := eng.Start(ctx); err != nil {
		view.stop()
		return explain(err)
	}
	if talkMuted {
		eng.SetMicrophoneEnabled(false)
	}
	view.setMic(eng.MicrophoneEnabled())

	commands := readCommands(os.Stdin)
	var deadline <-chan time.Time
	if talkTimeout > 0 {
		deadline = time.After(talkTimeout)
	}
	interrupted := ctx.Done()
	render := time.NewTicker(100 * time.Millisecond)
	defer render.Stop()
loop:
	for {
		select {
		case <-eng.Done():
			break loop
		case <-interrupted:
			interrupted = nil
			view.setStatus("ending")
			eng.Close()
		case <-deadline:
			view.setStatus("ending")
			eng.Close()
		case c, ok := <-commands:
			if !ok {
				commands = nil
				continue
			}
			switch c {
			case "m", "mute", "unmute":
				if err := eng.SetMicrophoneEnabled(!eng.MicrophoneEnabled()); err == nil {
					view.setMic(eng.MicrophoneEnabled())
				}
			case "q", "quit", "exit":
				view.setStatus("ending")
				eng.Close()
			}
		case <-render.C:
			view.draw()
		}
	}
	view.draw()
	view.stop()

	rec := eng.Record()
	if rec != nil {
		fmt.Printf("\nSession %s %s after %s, %d turn(s)\n",
			rec.ID, rec.State, cli.FormatDuration(rec.Duration()), len(rec.Turns))
	}
	if talkExport != "" {
		data, err := eng.Export()
		switch {
		case errors.Is(err, voicelive.ErrEmptySession):
			cli.PrintWarning("Nothing to export: the assistant did not speak")
		case err != nil:
			return err
		default:
			if err := os.WriteFile(talkExport, data, 0o644); err != nil {
				return fmt.Errorf("export: %w", err)
			}
			cli.PrintSuccess("Recording saved to: %s (%s)", talkExport, cli.FormatBytes(int64(len(data))))
		}
	}
	return explain(eng.Err())
}

// talkConfig layers the -f file and the flags over the context defaults.
func talkConfig(c *cli.Context) (voicelive.EngineConfig, error) {
	cfg := voicelive.EngineConfig{Session: sessionConfig(c)}
	if talkFile != "" {
		if err := cli.LoadRequest(talkFile, &cfg); err != nil {
			return cfg, err
		}
		if cfg.Session.Provider != voicelive.Provider(c.Provider) {
			return cfg, fmt.Errorf("%s: provider %q does not match context %q (%s)",
				talkFile, cfg.Session.Provider, c.Provider, c.Name)
		}
	}
	if p := strings.TrimSpace(talkPrompt); p != "" {
		cfg.Session.SystemPrompt = p
	}
	if talkModel != "" {
		cfg.Session.Model = talkModel
	}
	if talkVoice != "" {
		cfg.Session.VoiceProfile = talkVoice
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// explain adds a hint to errors the user can act on.
func explain(err error) error {
	if err == nil {
		return nil
	}
	switch voicelive.KindOf(err) {
	case voicelive.PermissionDenied:
		return fmt.Errorf("%w\nhint: allow microphone access for this terminal, or use --no-mic", err)
	case voicelive.DeviceUnavailable:
		return fmt.Errorf("%w\nhint: check 'voicelive devices'", err)
	case voicelive.AuthRejected:
		return fmt.Errorf("%w\nhint: set an API key with 'voicelive config set' or GEMINI_API_KEY / OPENAI_API_KEY", err)
	}
	return err
}

// readCommands delivers trimmed input lines until r is exhausted.
func readCommands(r io.Reader) <-chan string {
	out := make(chan string)
	go func() {
		defer close(out)
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			out <- strings.ToLower(strings.TrimSpace(sc.Text()))
		}
	}()
	return out
}

func termSize() (int, int) {
	w, _ := strconv.Atoi(os.Getenv("COLUMNS"))
	h, _ := strconv.Atoi(os.Getenv("LINES"))
	if w <= 0 {
		w = 80
	}
	if h <= 0 {
		h = 24
	}
	return w, h
}

func init() {
	f := talkCmd.Flags()
	f.StringVarP(&talkFile, "file", "f", "", "session settings file (YAML or JSON)")
	f.StringVarP(&talkPrompt, "prompt", "p", "", "system prompt")
	f.StringVar(&talkPromptFile, "prompt-file", "", "read the system prompt from a file")
	f.StringVar(&talkModel, "model", "", "model (default from context)")
	f.StringVar(&talkVoice, "voice", "", "voice profile (default from context)")
	f.BoolVar(&talkMuted, "muted", false, "start with the microphone off")
	f.BoolVar(&talkNoMic, "no-mic", false, "do not open a microphone")
	f.BoolVar(&talkNoSpeaker, "no-speaker", false, "discard assistant audio at real-time speed")
	f.StringVar(&talkExport, "export", "", "write the assistant audio to this WAV file")
	f.StringVar(&talkListen, "listen", "", "serve live events and the archive on this address")
	f.BoolVar(&talkPlain, "plain", false, "print finished turns instead of the live view")
	f.DurationVar(&talkTimeout, "timeout", 0, "end the session after this long")
	rootCmd.AddCommand(talkCmd)
}
