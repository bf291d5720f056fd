// Package kv is a small key-value store with hierarchical keys, used to
// archive session records. Keys are segment lists such as
// Key{"voicelive", "sessions", id} joined with a separator byte.
//
// Badger backs persistent stores; Memory serves tests and ephemeral runs.
package kv

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"
)

var (
	ErrNotFound   = errors.New("kv: not found")
	ErrInvalidKey = errors.New("kv: invalid key")
)

// Key is a hierarchical key. Segments must be non-empty and must not contain
// the store separator.
type Key []string

func (k Key) String() string {
	return strings.Join(k, "/")
}

// Entry is a key and its value.
type Entry struct {
	Key   Key
	Value []byte
}

// Store is a key-value store. List yields entries under prefix in encoded key
// order; a prefix matches whole segments only.
type Store interface {
	Get(ctx context.Context, key Key) ([]byte, error)
	Set(ctx context.Context, key Key, value []byte) error
	// Delete removes key. Missing keys are not an error.
	Delete(ctx context.Context, key Key) error
	List(ctx context.Context, prefix Key) iter.Seq2[Entry, error]
	// BatchDelete removes keys in one transaction.
	BatchDelete(ctx context.Context, keys []Key) error
	Close() error
}

// DefaultSeparator joins key segments when Options.Separator is zero.
const DefaultSeparator byte = ':'

// Options configures key encoding. A nil *Options uses the defaults.
type Options struct {
	Separator byte
}

func (o *Options) sep() byte {
	if o == nil || o.Separator == 0 {
		return DefaultSeparator
	}
	return o.Separator
}

func (o *Options) encode(k Key) ([]byte, error) {
	if len(k) == 0 {
		return nil, fmt.Errorf("%w: empty", ErrInvalidKey)
	}
	sep := o.sep()
	parts := make([][]byte, len(k))
	for i, seg := range k {
		if seg == "" || strings.IndexByte(seg, sep) >= 0 {
			return nil, fmt.Errorf("%w: segment %q", ErrInvalidKey, seg)
		}
		parts[i] = []byte(seg)
	}
	return bytes.Join(parts, []byte{sep}), nil
}

// prefix encodes p followed by the separator. The empty prefix matches all.
func (o *Options) prefix(p Key) ([]byte, error) {
	if len(p) == 0 {
		return nil, nil
	}
	b, err := o.encode(p)
	if err != nil {
		return nil, err
	}
	return append(b, o.sep()), nil
}

func (o *Options) decode(b []byte) Key {
	parts := bytes.Split(b, []byte{o.sep()})
	k := make(Key, len(parts))
	for i, p := range parts {
		k[i] = string(p)
	}
	return k
}

// failed yields a single error.
func failed(err error) iter.Seq2[Entry, error] {
	return func(yield func(Entry, error) bool) {
		yield(Entry{}, err)
	}
}
