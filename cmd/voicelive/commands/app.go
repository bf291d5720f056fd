package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/stylehub-project/news-sub000/pkg/cli"
	"github.com/stylehub-project/news-sub000/pkg/kv"
	openairealtime "github.com/stylehub-project/news-sub000/pkg/openai-realtime"
	"github.com/stylehub-project/news-sub000/pkg/storage"
	"github.com/stylehub-project/news-sub000/pkg/voicelive"
)

// Extra keys of a context that configure recording storage.
const (
	extraStorageBackend   = "storage_backend"
	extraStorageDir       = "storage_dir"
	extraStorageBucket    = "storage_bucket"
	extraStoragePrefix    = "storage_prefix"
	extraStorageRegion    = "storage_region"
	extraStorageEndpoint  = "storage_endpoint"
	extraStoragePathStyle = "storage_path_style"
)

// activeContext resolves the selected context. Without any configured
// context it falls back to API keys from the environment.
func activeContext(cfg *cli.Config) (*cli.Context, error) {
	c, err := cfg.ResolveContext(contextName)
	if err != nil {
		if contextName != "" || !errors.Is(err, cli.ErrContextNotFound) {
			return nil, err
		}
		c = &cli.Context{Name: "env"}
	}
	resolved := *c
	if resolved.Provider == "" {
		resolved.Provider = string(voicelive.ProviderGemini)
		if os.Getenv("GEMINI_API_KEY") == "" && os.Getenv("OPENAI_API_KEY") != "" {
			resolved.Provider = string(voicelive.ProviderOpenAI)
		}
	}
	if resolved.APIKey == "" {
		resolved.APIKey = envKey(voicelive.Provider(resolved.Provider))
	}
	return &resolved, nil
}

func envKey(p voicelive.Provider) string {
	switch p {
	case voicelive.ProviderOpenAI:
		return os.Getenv("OPENAI_API_KEY")
	default:
		if k := os.Getenv("GEMINI_API_KEY"); k != "" {
			return k
		}
		return os.Getenv("GOOGLE_API_KEY")
	}
}

// newTransport creates the transport for c's provider.
func newTransport(ctx context.Context, c *cli.Context, cfg voicelive.Config) (voicelive.Transport, error) {
	logger := slog.Default().With("context", c.Name)
	switch voicelive.Provider(c.Provider) {
	case voicelive.ProviderGemini:
		t, err := voicelive.NewGeminiTransport(ctx, c.APIKey)
		if err != nil {
			return nil, err
		}
		t.Logger = logger
		return t, nil
	case voicelive.ProviderOpenAI:
		if c.APIKey == "" {
			return nil, &voicelive.Error{Kind: voicelive.AuthRejected, Op: "connect", Err: errors.New("missing OpenAI API key")}
		}
		var opts []openairealtime.Option
		if c.BaseURL != "" {
			opts = append(opts, openairealtime.WithURL(c.BaseURL))
		}
		if org := c.Extra["organization"]; org != "" {
			opts = append(opts, openairealtime.WithOrganization(org))
		}
		if project := c.Extra["project"]; project != "" {
			opts = append(opts, openairealtime.WithProject(project))
		}
		if cfg.ConnectTimeout > 0 {
			opts = append(opts, openairealtime.WithHandshakeTimeout(cfg.ConnectTimeout))
		}
		t := voicelive.NewOpenAITransport(c.APIKey, opts...)
		t.Logger = logger
		return t, nil
	}
	return nil, fmt.Errorf("unknown provider %q", c.Provider)
}

// sessionConfig builds the session config from c's defaults.
func sessionConfig(c *cli.Context) voicelive.Config {
	cfg := voicelive.DefaultConfig()
	cfg.Provider = voicelive.Provider(c.Provider)
	cfg.Model = ""
	cfg.VoiceProfile = ""
	if c.Model != "" {
		cfg.Model = c.Model
	}
	if c.VoiceProfile != "" {
		cfg.VoiceProfile = c.VoiceProfile
	}
	return cfg
}

func storageConfig(c *cli.Context, p *cli.Paths) storage.Config {
	cfg := storage.Config{
		Backend:         c.Extra[extraStorageBackend],
		Dir:             c.Extra[extraStorageDir],
		Bucket:          c.Extra[extraStorageBucket],
		Prefix:          c.Extra[extraStoragePrefix],
		Region:          c.Extra[extraStorageRegion],
		Endpoint:        c.Extra[extraStorageEndpoint],
		PathStyle:       c.Extra[extraStoragePathStyle] == "true",
		AccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
		SecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
	}
	if (cfg.Backend == "" || cfg.Backend == storage.BackendLocal) && cfg.Dir == "" {
		cfg.Dir = p.RecordingsDir()
	}
	return cfg
}

// runtime is the persistent state shared by commands: the session archive,
// the recording store and the metrics registry.
type runtime struct {
	paths   *cli.Paths
	config  *cli.Config
	context *cli.Context

	db      kv.Store
	archive *voicelive.Archive
	files   storage.FileStore

	registry *prometheus.Registry
	metrics  *voicelive.Metrics
}

func openRuntime() (*runtime, error) {
	paths, err := appPaths()
	if err != nil {
		return nil, err
	}
	cfg, err := getConfig()
	if err != nil {
		return nil, err
	}
	c, err := activeContext(cfg)
	if err != nil {
		return nil, err
	}
	dir, err := cli.Ensure(paths.ArchiveDir())
	if err != nil {
		return nil, fmt.Errorf("create archive dir: %w", err)
	}
	db, err := kv.NewBadger(kv.BadgerOptions{Dir: dir, Logger: slog.Default()})
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	files, err := storage.Open(storageConfig(c, paths))
	if err != nil {
		db.Close()
		return nil, err
	}
	printVerbose("archive: %s", dir)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return &runtime{
		paths:    paths,
		config:   cfg,
		context:  c,
		db:       db,
		archive:  voicelive.NewArchive(db),
		files:    files,
		registry: reg,
		metrics:  voicelive.NewMetrics(reg),
	}, nil
}

func (r *runtime) Close() error {
	return r.db.Close()
}
