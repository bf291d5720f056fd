package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/stylehub-project/news-sub000/pkg/cli"
	"github.com/stylehub-project/news-sub000/pkg/voicelive"
)

var sessionsCmd = &cobra.Command{
	Use:     "sessions",
	Aliases: []string{"session", "s"},
	Short:   "Inspect archived sessions",
	Long: `Inspect, export and prune archived sessions.

Every finished talk session is archived with its transcript and audio
statistics. Sessions that produced assistant audio also keep a WAV
recording in the context's recording store.

Examples:
  voicelive sessions list
  voicelive sessions show <id> --jq '.turns[] | "\(.speaker): \(.text)"' --format raw
  voicelive sessions export <id> -o answer.wav
  voicelive sessions prune --keep 20`,
}

var sessionsLimit int

var sessionsListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List sessions, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := openRuntime()
		if err != nil {
			return err
		}
		defer rt.Close()

		records, err := rt.archive.List(cmd.Context())
		if err != nil {
			return err
		}
		if sessionsLimit > 0 && len(records) > sessionsLimit {
			records = records[:sessionsLimit]
		}
		if structured() {
			return printOutput(records, cli.FormatYAML)
		}
		if len(records) == 0 {
			fmt.Println("No sessions archived.")
			return nil
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSTARTED\tDURATION\tPROVIDER\tSTATE\tTURNS\tAUDIO")
		for _, r := range records {
			audio := "-"
			if r.Recording != "" {
				audio = cli.FormatDuration(time.Duration(r.OutputSeconds * float64(time.Second)))
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
				r.ID, r.StartedAt.Local().Format(time.DateTime), cli.FormatDuration(r.Duration()),
				r.Provider, r.State, len(r.Turns), audio)
		}
		return w.Flush()
	},
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a session record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := openRuntime()
		if err != nil {
			return err
		}
		defer rt.Close()

		rec, err := rt.archive.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printOutput(rec, cli.FormatYAML)
	},
}

var sessionsExportCmd = &cobra.Command{
	Use:   "export <id>",
	Short: "Copy a session's WAV recording to a local file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if outputFile == "" {
			return fmt.Errorf("output file is required, use -o flag")
		}
		rt, err := openRuntime()
		if err != nil {
			return err
		}
		defer rt.Close()

		rec, err := rt.archive.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if rec.Recording == "" {
			return fmt.Errorf("session %s: %w", rec.ID, voicelive.ErrEmptySession)
		}
		n, err := copyRecording(cmd.Context(), rt, rec.Recording, outputFile)
		if err != nil {
			return err
		}
		cli.PrintSuccess("Recording saved to: %s (%s)", outputFile, cli.FormatBytes(n))
		return nil
	},
}

func copyRecording(ctx context.Context, rt *runtime, src, dst string) (int64, error) {
	rc, err := rt.files.Read(ctx, src)
	if err != nil {
		return 0, fmt.Errorf("read recording: %w", err)
	}
	defer rc.Close()
	f, err := os.Create(dst)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(f, rc)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return n, fmt.Errorf("write %s: %w", dst, err)
	}
	return n, nil
}

var sessionsDeleteCmd = &cobra.Command{
	Use:     "delete <id>...",
	Aliases: []string{"rm"},
	Short:   "Delete sessions and their recordings",
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := openRuntime()
		if err != nil {
			return err
		}
		defer rt.Close()

		for _, id := range args {
			rec, err := rt.archive.Get(cmd.Context(), id)
			if err != nil {
				return err
			}
			if err := deleteSession(cmd.Context(), rt, rec); err != nil {
				return err
			}
			cli.PrintSuccess("Deleted session %s", id)
		}
		return nil
	},
}

func deleteSession(ctx context.Context, rt *runtime, rec *voicelive.Record) error {
	if rec.Recording != "" {
		if err := rt.files.Delete(ctx, rec.Recording); err != nil {
			return fmt.Errorf("delete recording %s: %w", rec.Recording, err)
		}
	}
	return rt.archive.Delete(ctx, rec.ID)
}

var pruneKeep int

var sessionsPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete all but the most recent sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		if pruneKeep < 0 {
			return fmt.Errorf("--keep must not be negative")
		}
		rt, err := openRuntime()
		if err != nil {
			return err
		}
		defer rt.Close()

		ctx := cmd.Context()
		records, err := rt.archive.List(ctx)
		if err != nil {
			return err
		}
		if len(records) > pruneKeep {
			for _, r := range records[pruneKeep:] {
				if r.Recording == "" {
					continue
				}
				if err := rt.files.Delete(ctx, r.Recording); err != nil {
					return fmt.Errorf("delete recording %s: %w", r.Recording, err)
				}
			}
		}
		n, err := rt.archive.Prune(ctx, pruneKeep)
		if err != nil {
			return err
		}
		cli.PrintSuccess("Pruned %d session(s), kept %d", n, min(pruneKeep, len(records)))
		return nil
	},
}

func init() {
	sessionsListCmd.Flags().IntVarP(&sessionsLimit, "limit", "n", 0, "show at most n sessions")
	sessionsPruneCmd.Flags().IntVar(&pruneKeep, "keep", 50, "number of recent sessions to keep")

	sessionsCmd.AddCommand(sessionsListCmd, sessionsShowCmd, sessionsExportCmd, sessionsDeleteCmd, sessionsPruneCmd)
	rootCmd.AddCommand(sessionsCmd)
}
