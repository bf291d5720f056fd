package commands

import (
	"fmt"
	"io"
	"sync"

	"github.com/stylehub-project/news-sub000/pkg/cli"
	"github.com/stylehub-project/news-sub000/pkg/voicelive"
)

const clearScreen = "\x1b[H\x1b[2J"

// talkView renders engine callbacks, either as a redrawn frame or as plain
// lines for finished turns.
type talkView struct {
	out    io.Writer
	logs   *cli.LogWriter
	plain  bool
	styles cli.Styles

	mu       sync.Mutex
	title    string
	status   string
	turns    []voicelive.Turn
	printed  int
	volume   float64
	bars     []float64
	speaking bool
	mic      bool
	err      error
	stopped  bool
}

func newTalkView(out io.Writer, logs *cli.LogWriter, plain bool) *talkView {
	return &talkView{
		out:    out,
		logs:   logs,
		plain:  plain,
		styles: cli.NewStyles(cli.DefaultTheme),
		title:  "voicelive",
		status: "connecting",
	}
}

func (v *talkView) host() voicelive.Host {
	return voicelive.HostFuncs{
		Open: func() { v.setStatus("listening") },
		AudioLevel: func(volume float64, bars []float64) {
			v.mu.Lock()
			v.volume, v.bars = volume, bars
			v.mu.Unlock()
		},
		Transcript: v.onTranscript,
		SpeakingChanged: func(on bool) {
			v.mu.Lock()
			v.speaking = on
			v.mu.Unlock()
		},
		Error: func(err error) {
			v.mu.Lock()
			v.err = err
			v.status = "failed"
			v.mu.Unlock()
		},
		Close: func() { v.setStatus("closed") },
	}
}

func (v *talkView) onTranscript(turns []voicelive.Turn) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.turns = turns
	if !v.plain {
		return
	}
	for v.printed < len(turns) && turns[v.printed].Final {
		t := turns[v.printed]
		fmt.Fprintf(v.out, "%s: %s\n", speakerName(t.Speaker), t.Text)
		v.printed++
	}
}

func (v *talkView) setTitle(s string) {
	v.mu.Lock()
	v.title = s
	v.mu.Unlock()
}

func (v *talkView) setStatus(s string) {
	v.mu.Lock()
	v.status = s
	v.mu.Unlock()
}

func (v *talkView) setMic(on bool) {
	v.mu.Lock()
	v.mic = on
	v.mu.Unlock()
}

// stop ends redrawing.
func (v *talkView) stop() {
	v.mu.Lock()
	v.stopped = true
	v.mu.Unlock()
}

func (v *talkView) draw() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.plain || v.stopped {
		return
	}
	w, h := termSize()
	fmt.Fprint(v.out, clearScreen+v.frameLocked().Render(w, h)+"\n")
}

func (v *talkView) frameLocked() cli.Frame {
	s := v.styles
	var convo []string
	for _, t := range v.turns {
		style := s.Agent
		if t.Speaker == voicelive.User {
			style = s.User
		}
		text := t.Text
		if !t.Final {
			text += " …"
		}
		convo = append(convo, style.Render(speakerName(t.Speaker)+":")+" "+text)
	}
	if v.err != nil {
		convo = append(convo, s.Error.Render(v.err.Error()))
	}

	status := v.status
	if v.speaking {
		status = "speaking"
	}
	mic := "mic on"
	if !v.mic {
		mic = "mic off"
	}
	sections := []cli.Section{
		{Label: "Conversation", Lines: convo},
		{Label: "Output", Lines: []string{fmt.Sprintf("%s %3.0f%%", cli.Meter(v.bars), v.volume*100)}},
	}
	if v.logs != nil && verbose {
		sections = append(sections, cli.Section{Label: "Log", Lines: v.logs.Lines()})
	}
	return cli.Frame{
		Styles:   s,
		Title:    v.title,
		Status:   status + " · " + mic,
		Sections: sections,
		Help:     "m⏎ microphone · q⏎ end session · ctrl-c abort",
	}
}

func speakerName(sp voicelive.Speaker) string {
	if sp == voicelive.User {
		return "You"
	}
	return "Assistant"
}
