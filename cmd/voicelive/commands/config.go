package commands

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/stylehub-project/news-sub000/pkg/cli"
	"github.com/stylehub-project/news-sub000/pkg/voicelive"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage provider contexts",
	Long: `Manage named provider contexts.

A context holds a provider, its API key and default model and voice.
Extra settings select where recordings are stored:
  storage_backend     local (default), s3 or memory
  storage_dir         root directory of the local backend
  storage_bucket      S3 bucket
  storage_prefix      key prefix inside the bucket
  storage_region      S3 region
  storage_endpoint    S3-compatible endpoint (MinIO, R2)
  storage_path_style  "true" for path-style addressing

Examples:
  voicelive config set news --provider gemini --api-key KEY --voice Kore
  voicelive config set cloud --provider openai --set storage_backend=s3 --set storage_bucket=rec
  voicelive config use news
  voicelive config list`,
}

var configListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List contexts",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := getConfig()
		if err != nil {
			return err
		}
		names := cfg.ContextNames()
		if structured() {
			out := make([]map[string]any, 0, len(names))
			for _, name := range names {
				out = append(out, contextView(cfg.Contexts[name], name == cfg.CurrentContext))
			}
			return printOutput(out, cli.FormatYAML)
		}
		if len(names) == 0 {
			fmt.Println("No contexts configured.")
			fmt.Println("Create one with: voicelive config set <name> --provider gemini --api-key KEY")
			return nil
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "CURRENT\tNAME\tPROVIDER\tMODEL\tVOICE\tAPI KEY")
		for _, name := range names {
			c := cfg.Contexts[name]
			current := ""
			if name == cfg.CurrentContext {
				current = "*"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				current, name, c.Provider, orDash(c.Model), orDash(c.VoiceProfile), orDash(cli.MaskAPIKey(c.APIKey)))
		}
		return w.Flush()
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show [name]",
	Short: "Show a context with its API key masked",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := getConfig()
		if err != nil {
			return err
		}
		name := contextName
		if len(args) == 1 {
			name = args[0]
		}
		c, err := cfg.ResolveContext(name)
		if err != nil {
			return err
		}
		return printOutput(contextView(c, c.Name == cfg.CurrentContext), cli.FormatYAML)
	},
}

var (
	setProvider string
	setAPIKey   string
	setBaseURL  string
	setModel    string
	setVoice    string
	setExtra    []string
)

var configSetCmd = &cobra.Command{
	Use:   "set <name>",
	Short: "Create or update a context",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := getConfig()
		if err != nil {
			return err
		}
		name := args[0]
		c := &cli.Context{}
		if existing, ok := cfg.Contexts[name]; ok {
			c = existing
		}
		f := cmd.Flags()
		if f.Changed("provider") {
			switch voicelive.Provider(setProvider) {
			case voicelive.ProviderGemini, voicelive.ProviderOpenAI:
			default:
				return fmt.Errorf("unknown provider %q (want gemini or openai)", setProvider)
			}
			c.Provider = setProvider
		}
		if f.Changed("api-key") {
			c.APIKey = setAPIKey
		}
		if f.Changed("base-url") {
			c.BaseURL = setBaseURL
		}
		if f.Changed("model") {
			c.Model = setModel
		}
		if f.Changed("voice") {
			c.VoiceProfile = setVoice
		}
		for _, kv := range setExtra {
			k, v, ok := strings.Cut(kv, "=")
			if !ok || k == "" {
				return fmt.Errorf("invalid --set %q, want key=value", kv)
			}
			if c.Extra == nil {
				c.Extra = make(map[string]string)
			}
			if v == "" {
				delete(c.Extra, k)
				continue
			}
			c.Extra[k] = v
		}
		if c.Provider == "" {
			c.Provider = string(voicelive.ProviderGemini)
		}
		if err := cfg.SetContext(name, c); err != nil {
			return err
		}
		if cfg.CurrentContext == "" {
			if err := cfg.UseContext(name); err != nil {
				return err
			}
		}
		cli.PrintSuccess("Context %q saved", name)
		return nil
	},
}

var configUseCmd = &cobra.Command{
	Use:   "use <name>",
	Short: "Set the current context",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := getConfig()
		if err != nil {
			return err
		}
		if err := cfg.UseContext(args[0]); err != nil {
			return err
		}
		cli.PrintSuccess("Switched to context %q", args[0])
		return nil
	},
}

var configDeleteCmd = &cobra.Command{
	Use:     "delete <name>",
	Aliases: []string{"rm"},
	Short:   "Delete a context",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := getConfig()
		if err != nil {
			return err
		}
		if err := cfg.DeleteContext(args[0]); err != nil {
			return err
		}
		cli.PrintSuccess("Context %q deleted", args[0])
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file path",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := getConfig()
		if err != nil {
			return err
		}
		fmt.Println(cfg.Path())
		return nil
	},
}

func contextView(c *cli.Context, current bool) map[string]any {
	v := map[string]any{
		"name":     c.Name,
		"provider": c.Provider,
		"current":  current,
	}
	if c.APIKey != "" {
		v["api_key"] = cli.MaskAPIKey(c.APIKey)
	}
	if c.BaseURL != "" {
		v["base_url"] = c.BaseURL
	}
	if c.Model != "" {
		v["model"] = c.Model
	}
	if c.VoiceProfile != "" {
		v["voice_profile"] = c.VoiceProfile
	}
	if len(c.Extra) > 0 {
		v["extra"] = c.Extra
	}
	return v
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func init() {
	f := configSetCmd.Flags()
	f.StringVar(&setProvider, "provider", "", "provider: gemini or openai")
	f.StringVar(&setAPIKey, "api-key", "", "API key")
	f.StringVar(&setBaseURL, "base-url", "", "override the provider endpoint")
	f.StringVar(&setModel, "model", "", "default model")
	f.StringVar(&setVoice, "voice", "", "default voice profile")
	f.StringArrayVar(&setExtra, "set", nil, "extra setting key=value (empty value removes it)")

	configCmd.AddCommand(configListCmd, configShowCmd, configSetCmd, configUseCmd, configDeleteCmd, configPathCmd)
	rootCmd.AddCommand(configCmd)
}
