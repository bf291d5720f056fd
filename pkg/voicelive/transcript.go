package voicelive

import (
	"cmp"
	"slices"
	"strings"
	"sync"
)

// Speaker identifies who produced a transcript turn.
type Speaker string

const (
	User      Speaker = "user"
	Assistant Speaker = "assistant"
)

// Turn is one contiguous utterance.
type Turn struct {
	Speaker Speaker `json:"speaker" msgpack:"speaker"`
	Text    string  `json:"text" msgpack:"text"`
	Final   bool    `json:"final" msgpack:"final"`
}

type openTurn struct {
	text string
	seq  uint64
}

// Transcript merges transcript fragments into turns. Each speaker has at
// most one open turn; finalized turns are appended in finalization order.
type Transcript struct {
	mu    sync.Mutex
	open  map[Speaker]*openTurn
	turns []Turn
	seq   uint64
}

// NewTranscript returns an empty Transcript.
func NewTranscript() *Transcript {
	return &Transcript{open: make(map[Speaker]*openTurn)}
}

// Fragment sets the text of the speaker's open turn, opening one if needed.
// A fragment is the full current text of the turn, not a delta; transports
// accumulate incremental backend text before delivering it. Empty text
// keeps the current text. final finalizes the turn.
func (t *Transcript) Fragment(speaker Speaker, text string, final bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if text != "" {
		cur, ok := t.open[speaker]
		if !ok {
			t.seq++
			cur = &openTurn{seq: t.seq}
			t.open[speaker] = cur
		}
		cur.text = text
	}
	if final {
		t.completeLocked(speaker)
	}
}

// Complete finalizes the speaker's open turn, if any, and appends it.
func (t *Transcript) Complete(speaker Speaker) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.completeLocked(speaker)
}

func (t *Transcript) completeLocked(speaker Speaker) {
	cur, ok := t.open[speaker]
	if !ok {
		return
	}
	delete(t.open, speaker)
	if text := strings.TrimSpace(cur.text); text != "" {
		t.turns = append(t.turns, Turn{Speaker: speaker, Text: text, Final: true})
	}
}

// Open returns the speaker's open turn text.
func (t *Transcript) Open(speaker Speaker) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	cur, ok := t.open[speaker]
	if !ok {
		return "", false
	}
	return cur.text, true
}

// Turns returns a copy of the finalized turns.
func (t *Transcript) Turns() []Turn {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.turns)
}

// Snapshot returns the finalized turns followed by the open turns in the
// order they were opened.
func (t *Transcript) Snapshot() []Turn {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]Turn, len(t.turns), len(t.turns)+len(t.open))
	copy(out, t.turns)
	type pending struct {
		speaker Speaker
		*openTurn
	}
	open := make([]pending, 0, len(t.open))
	for sp, cur := range t.open {
		open = append(open, pending{sp, cur})
	}
	slices.SortFunc(open, func(a, b pending) int {
		return cmp.Compare(a.seq, b.seq)
	})
	for _, p := range open {
		out = append(out, Turn{Speaker: p.speaker, Text: p.text})
	}
	return out
}

// CompleteAll finalizes every open turn in the order they were opened.
func (t *Transcript) CompleteAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for len(t.open) > 0 {
		var first Speaker
		var seq uint64
		for sp, cur := range t.open {
			if seq == 0 || cur.seq < seq {
				first, seq = sp, cur.seq
			}
		}
		t.completeLocked(first)
	}
}
