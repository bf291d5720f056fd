// Package commands implements the voicelive CLI.
package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/stylehub-project/news-sub000/pkg/cli"
)

const appName = "voicelive"

var (
	// Global flags
	verbose      bool
	contextName  string
	configPath   string
	envFile      string
	formatOutput string
	outputFile   string
	jqQuery      string
)

var rootCmd = &cobra.Command{
	Use:   "voicelive",
	Short: "Live voice conversations with news assistants",
	Long: `voicelive - talk to a realtime voice assistant from the terminal.

Providers:
  gemini  Gemini Live API (GEMINI_API_KEY)
  openai  OpenAI Realtime API (OPENAI_API_KEY)

Credentials and defaults live in contexts stored in
~/.voicelive/voicelive/config.yaml. Keys may also come from the
environment or a .env file in the working directory.

Examples:
  # Configure a context and start talking
  voicelive config set news --provider gemini --api-key $GEMINI_API_KEY
  voicelive config use news
  voicelive talk -p "You are a concise news anchor."

  # Review past sessions
  voicelive sessions list
  voicelive sessions show <id> --jq '.turns[].text'`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		setupLogging(os.Stderr)
		return loadEnv(envFile)
	},
}

// Execute runs the root command. SIGINT and SIGTERM cancel the command's
// context.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	pf.StringVarP(&contextName, "context", "c", "", "context to use (default: current context)")
	pf.StringVar(&configPath, "config", "", "config file (default: ~/.voicelive/voicelive/config.yaml)")
	pf.StringVar(&envFile, "env-file", ".env", "dotenv file to load if present")
	pf.StringVar(&formatOutput, "format", "", "output format: yaml, json, raw (default: table or yaml)")
	pf.StringVarP(&outputFile, "output", "o", "", "write results to this file")
	pf.StringVar(&jqQuery, "jq", "", "jq expression applied to JSON results")
}

func setupLogging(w io.Writer) {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
}

// loadEnv loads a dotenv file without overriding variables already set.
func loadEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	slog.Debug("loaded env file", "path", path)
	return nil
}

// appPaths returns the data layout, rooted at $VOICELIVE_HOME when set.
func appPaths() (*cli.Paths, error) {
	if home := os.Getenv("VOICELIVE_HOME"); home != "" {
		return &cli.Paths{AppName: appName, HomeDir: home}, nil
	}
	return cli.NewPaths(appName)
}

func getConfig() (*cli.Config, error) {
	path := configPath
	if path == "" {
		p, err := appPaths()
		if err != nil {
			return nil, fmt.Errorf("config not available: %w", err)
		}
		path = p.ConfigFile()
	}
	return cli.LoadConfigWithPath(appName, path)
}

// printOutput writes v in the selected format, defaulting to def.
func printOutput(v any, def cli.OutputFormat) error {
	format := cli.OutputFormat(formatOutput)
	if format == "" {
		format = def
	}
	return cli.Output(v, cli.OutputOptions{
		Format: format,
		File:   outputFile,
		Query:  jqQuery,
	})
}

// structured reports whether the user asked for machine output.
func structured() bool {
	return formatOutput != "" || jqQuery != ""
}

func printVerbose(format string, args ...any) {
	if verbose {
		fmt.Fprintf(os.Stderr, "[verbose] "+format+"\n", args...)
	}
}
