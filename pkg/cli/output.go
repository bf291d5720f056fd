package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-yaml"
	"github.com/itchyny/gojq"
)

type OutputFormat string

const (
	FormatYAML OutputFormat = "yaml"
	FormatJSON OutputFormat = "json"
	FormatRaw  OutputFormat = "raw"
)

// OutputOptions configures Output.
type OutputOptions struct {
	Format OutputFormat
	// File is written instead of stdout when set.
	File string
	// Writer overrides File.
	Writer io.Writer
	// Query is a jq program applied to the JSON form of the result. Each
	// value it yields is written in Format.
	Query string
}

// Output writes result to the configured destination.
func Output(result any, opts OutputOptions) error {
	var w io.Writer = os.Stdout
	switch {
	case opts.Writer != nil:
		w = opts.Writer
	case opts.File != "":
		f, err := os.Create(opts.File)
		if err != nil {
			return fmt.Errorf("cli: create output: %w", err)
		}
		defer f.Close()
		w = f
	}

	if opts.Query == "" {
		return write(w, result, opts.Format)
	}
	values, err := Query(result, opts.Query)
	if err != nil {
		return err
	}
	for _, v := range values {
		if err := write(w, v, opts.Format); err != nil {
			return err
		}
	}
	return nil
}

// Query runs the jq program q over the JSON form of v and returns every
// value it yields.
func Query(v any, q string) ([]any, error) {
	parsed, err := gojq.Parse(q)
	if err != nil {
		return nil, fmt.Errorf("cli: parse jq %q: %w", q, err)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("cli: encode result: %w", err)
	}
	var input any
	if err := json.Unmarshal(data, &input); err != nil {
		return nil, fmt.Errorf("cli: decode result: %w", err)
	}

	var out []any
	iter := parsed.Run(input)
	for {
		v, ok := iter.Next()
		if !ok {
			return out, nil
		}
		if err, ok := v.(error); ok {
			return nil, fmt.Errorf("cli: jq: %w", err)
		}
		out = append(out, v)
	}
}

func write(w io.Writer, v any, format OutputFormat) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case FormatYAML, "":
		data, err := yaml.Marshal(v)
		if err != nil {
			return fmt.Errorf("cli: encode yaml: %w", err)
		}
		_, err = w.Write(data)
		return err
	case FormatRaw:
		switch v := v.(type) {
		case []byte:
			_, err := w.Write(v)
			return err
		case string:
			_, err := fmt.Fprintln(w, v)
			return err
		}
		return write(w, v, FormatYAML)
	}
	return fmt.Errorf("cli: unsupported output format %q", format)
}

// PrintSuccess prints a check-marked line to stdout.
func PrintSuccess(format string, args ...any) {
	fmt.Printf("✓ "+format+"\n", args...)
}

func PrintError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
}

func PrintWarning(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "⚠ "+format+"\n", args...)
}
