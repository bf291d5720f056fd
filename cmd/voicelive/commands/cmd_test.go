package commands

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/stylehub-project/news-sub000/pkg/cli"
	"github.com/stylehub-project/news-sub000/pkg/kv"
	"github.com/stylehub-project/news-sub000/pkg/storage"
	"github.com/stylehub-project/news-sub000/pkg/voicelive"
)

// setupTestEnv points the CLI at a temporary home and clears provider keys.
func setupTestEnv(t *testing.T) *cli.Paths {
	t.Helper()
	home := t.TempDir()
	t.Setenv("VOICELIVE_HOME", home)
	for _, k := range []string{"GEMINI_API_KEY", "GOOGLE_API_KEY", "OPENAI_API_KEY", "AWS_ACCESS_KEY_ID", "AWS_SECRET_ACCESS_KEY"} {
		t.Setenv(k, "")
	}
	return &cli.Paths{AppName: appName, HomeDir: home}
}

// seedArchive stores records and their recordings where the CLI finds them.
func seedArchive(t *testing.T, p *cli.Paths, records ...*voicelive.Record) {
	t.Helper()
	ctx := context.Background()
	dir, err := cli.Ensure(p.ArchiveDir())
	if err != nil {
		t.Fatal(err)
	}
	db, err := kv.NewBadger(kv.BadgerOptions{Dir: dir})
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	files, err := storage.NewLocal(p.RecordingsDir())
	if err != nil {
		t.Fatal(err)
	}
	archive := voicelive.NewArchive(db)
	for _, r := range records {
		if err := archive.Save(ctx, r); err != nil {
			t.Fatal(err)
		}
		if r.Recording != "" {
			if err := storage.WriteFile(ctx, files, r.Recording, []byte("RIFF-"+r.ID)); err != nil {
				t.Fatal(err)
			}
		}
	}
}

func testRecord(id string, started time.Time, recording bool) *voicelive.Record {
	r := &voicelive.Record{
		ID:        id,
		StartedAt: started,
		EndedAt:   started.Add(42 * time.Second),
		Provider:  voicelive.ProviderGemini,
		State:     "closed",
		Turns: []voicelive.Turn{
			{Speaker: voicelive.User, Text: "any news on " + id, Final: true},
			{Speaker: voicelive.Assistant, Text: "plenty", Final: true},
		},
	}
	if recording {
		r.Recording = id + ".wav"
		r.OutputSeconds = 1.5
	}
	return r
}

func runCmd(t *testing.T, args ...string) (stdout, stderr string, exitCode int) {
	t.Helper()

	oldStdout := os.Stdout
	oldStderr := os.Stderr

	rOut, wOut, _ := os.Pipe()
	rErr, wErr, _ := os.Pipe()
	os.Stdout = wOut
	os.Stderr = wErr

	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())

	wOut.Close()
	wErr.Close()
	os.Stdout = oldStdout
	os.Stderr = oldStderr

	var outBuf, errBuf bytes.Buffer
	outBuf.ReadFrom(rOut)
	errBuf.ReadFrom(rErr)

	stdout = outBuf.String()
	stderr = errBuf.String()
	if err != nil {
		exitCode = 1
		if stderr == "" {
			stderr = err.Error()
		}
	}

	resetFlags(rootCmd)
	setupLogging(os.Stderr)
	return
}

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		f.Changed = false
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			sv.Replace(nil)
			return
		}
		f.Value.Set(f.DefValue)
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, sub := range cmd.Commands() {
		resetFlags(sub)
	}
}

// writeTestFile writes a file to a temp dir and returns its path.
func writeTestFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}
