package commands

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/genai"

	"github.com/stylehub-project/news-sub000/pkg/cli"
	"github.com/stylehub-project/news-sub000/pkg/podcast"
	"github.com/stylehub-project/news-sub000/pkg/voicelive"
)

var (
	podcastFile   string
	podcastName   string
	podcastDir    string
	podcastWriter string
	podcastSave   string
)

var podcastCmd = &cobra.Command{
	Use:   "podcast",
	Short: "Turn news articles into a two-host audio episode",
	Long: `Write a dialogue script about a set of articles and voice it with
Gemini multi-speaker speech. The episode WAV and its script are stored in
the context's recording store under --dir.

Example request file (news.yaml):
  topic: Morning briefing
  minutes: 3
  articles:
    - title: Markets rally on rate cut hopes
      source: Reuters
      summary: Stocks rose for a third day as ...
  hosts:
    - name: Ava
      voice: Kore
    - name: Leo
      voice: Puck

Examples:
  voicelive podcast -f news.yaml
  voicelive podcast -f news.yaml --writer openai --save episode.wav`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if podcastFile == "" {
			return fmt.Errorf("request file is required, use -f flag")
		}
		var req podcast.Request
		if err := cli.LoadRequest(podcastFile, &req); err != nil {
			return err
		}

		rt, err := openRuntime()
		if err != nil {
			return err
		}
		defer rt.Close()

		ctx := cmd.Context()
		geminiKey := envKey(voicelive.ProviderGemini)
		if voicelive.Provider(rt.context.Provider) == voicelive.ProviderGemini && rt.context.APIKey != "" {
			geminiKey = rt.context.APIKey
		}
		if geminiKey == "" {
			return fmt.Errorf("podcast speech needs a Gemini API key (GEMINI_API_KEY)")
		}
		client, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  geminiKey,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			return fmt.Errorf("gemini client: %w", err)
		}

		gen := &podcast.Generator{
			Voice: &podcast.GeminiVoice{Client: client},
			Store: rt.files,
		}
		switch podcastWriter {
		case "gemini":
			gen.Writer = &podcast.GeminiWriter{Client: client}
		case "openai":
			key := envKey(voicelive.ProviderOpenAI)
			var baseURL string
			if voicelive.Provider(rt.context.Provider) == voicelive.ProviderOpenAI {
				key, baseURL = rt.context.APIKey, rt.context.Extra["chat_base_url"]
			}
			if key == "" {
				return fmt.Errorf("--writer openai needs an OpenAI API key (OPENAI_API_KEY)")
			}
			gen.Writer = podcast.NewOpenAIWriter(key, baseURL, "")
		default:
			return fmt.Errorf("unknown writer %q (want gemini or openai)", podcastWriter)
		}

		name := podcastName
		if name == "" {
			name = time.Now().Format("20060102-150405")
		}
		printVerbose("Writer: %s, articles: %d", podcastWriter, len(req.Articles))
		ep, err := gen.Generate(ctx, req, podcastDir, name)
		if err != nil {
			return err
		}
		if podcastSave != "" {
			if _, err := copyRecording(ctx, rt, ep.AudioPath, podcastSave); err != nil {
				return err
			}
		}

		if !structured() {
			cli.PrintSuccess("%q: %d lines, %s", ep.Script.Title, len(ep.Script.Lines), cli.FormatDuration(ep.Duration))
			fmt.Fprintf(os.Stdout, "  audio:  %s\n  script: %s\n", ep.AudioPath, ep.ScriptPath)
			if podcastSave != "" {
				fmt.Fprintf(os.Stdout, "  saved:  %s\n", podcastSave)
			}
			return nil
		}
		return printOutput(map[string]any{
			"title":       ep.Script.Title,
			"lines":       len(ep.Script.Lines),
			"duration":    ep.Duration.Seconds(),
			"audio_path":  ep.AudioPath,
			"script_path": ep.ScriptPath,
		}, cli.FormatYAML)
	},
}

func init() {
	f := podcastCmd.Flags()
	f.StringVarP(&podcastFile, "file", "f", "", "request file (yaml or json)")
	f.StringVar(&podcastName, "name", "", "episode name (default: timestamp)")
	f.StringVar(&podcastDir, "dir", "podcasts", "directory in the recording store")
	f.StringVar(&podcastWriter, "writer", "gemini", "script writer: gemini or openai")
	f.StringVar(&podcastSave, "save", "", "also copy the episode WAV to this local file")
	rootCmd.AddCommand(podcastCmd)
}
