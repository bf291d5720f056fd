package voicelive

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/stylehub-project/news-sub000/pkg/kv"
)

// Record is the archived summary of a finished engine session.
type Record struct {
	ID        string    `json:"id" msgpack:"id"`
	StartedAt time.Time `json:"started_at" msgpack:"started_at"`
	EndedAt   time.Time `json:"ended_at" msgpack:"ended_at"`

	Provider     Provider `json:"provider" msgpack:"provider"`
	Model        string   `json:"model" msgpack:"model"`
	VoiceProfile string   `json:"voice_profile" msgpack:"voice_profile"`

	State string `json:"state" msgpack:"state"`
	Error string `json:"error,omitzero" msgpack:"error,omitempty"`

	Turns []Turn `json:"turns" msgpack:"turns"`

	// OutputSeconds is the duration of recorded assistant audio.
	OutputSeconds float64 `json:"output_seconds" msgpack:"output_seconds"`
	// Recording is the FileStore path of the exported WAV, if any.
	Recording string `json:"recording,omitzero" msgpack:"recording,omitempty"`

	Stats          SessionStats `json:"stats" msgpack:"stats"`
	CaptureDropped int64        `json:"capture_dropped" msgpack:"capture_dropped"`
	Underruns      int64        `json:"underruns" msgpack:"underruns"`
}

// Duration returns EndedAt - StartedAt.
func (r *Record) Duration() time.Duration {
	if r.EndedAt.IsZero() {
		return 0
	}
	return r.EndedAt.Sub(r.StartedAt)
}

// ErrRecordNotFound is returned for unknown session IDs.
var ErrRecordNotFound = errors.New("voicelive: session record not found")

var archivePrefix = kv.Key{"voicelive", "sessions"}

// Archive stores session Records in a kv.Store, msgpack encoded.
type Archive struct {
	store kv.Store
}

// NewArchive creates an Archive over store.
func NewArchive(store kv.Store) *Archive {
	return &Archive{store: store}
}

func recordKey(id string) kv.Key {
	return append(slices.Clone(archivePrefix), id)
}

// Save stores r, replacing any record with the same ID.
func (a *Archive) Save(ctx context.Context, r *Record) error {
	if r.ID == "" {
		return errors.New("voicelive: record without id")
	}
	data, err := msgpack.Marshal(r)
	if err != nil {
		return fmt.Errorf("voicelive: encode record: %w", err)
	}
	if err := a.store.Set(ctx, recordKey(r.ID), data); err != nil {
		return fmt.Errorf("voicelive: save record %s: %w", r.ID, err)
	}
	return nil
}

// Get returns the record with the given ID.
func (a *Archive) Get(ctx context.Context, id string) (*Record, error) {
	data, err := a.store.Get(ctx, recordKey(id))
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrRecordNotFound, id)
		}
		return nil, fmt.Errorf("voicelive: get record %s: %w", id, err)
	}
	var r Record
	if err := msgpack.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("voicelive: decode record %s: %w", id, err)
	}
	return &r, nil
}

// List returns all records, most recent first.
func (a *Archive) List(ctx context.Context) ([]*Record, error) {
	var out []*Record
	for entry, err := range a.store.List(ctx, archivePrefix) {
		if err != nil {
			return nil, fmt.Errorf("voicelive: list records: %w", err)
		}
		var r Record
		if err := msgpack.Unmarshal(entry.Value, &r); err != nil {
			return nil, fmt.Errorf("voicelive: decode record %s: %w", entry.Key, err)
		}
		out = append(out, &r)
	}
	slices.SortFunc(out, func(a, b *Record) int {
		return cmp.Compare(b.StartedAt.UnixNano(), a.StartedAt.UnixNano())
	})
	return out, nil
}

// Delete removes a record. Deleting an unknown ID is not an error.
func (a *Archive) Delete(ctx context.Context, id string) error {
	if err := a.store.Delete(ctx, recordKey(id)); err != nil {
		return fmt.Errorf("voicelive: delete record %s: %w", id, err)
	}
	return nil
}

// Prune deletes all but the keep most recent records and returns how many
// were removed.
func (a *Archive) Prune(ctx context.Context, keep int) (int, error) {
	records, err := a.List(ctx)
	if err != nil {
		return 0, err
	}
	if keep < 0 {
		keep = 0
	}
	if len(records) <= keep {
		return 0, nil
	}
	var stale []kv.Key
	for _, r := range records[keep:] {
		stale = append(stale, recordKey(r.ID))
	}
	if err := a.store.BatchDelete(ctx, stale); err != nil {
		return 0, fmt.Errorf("voicelive: prune records: %w", err)
	}
	return len(stale), nil
}
