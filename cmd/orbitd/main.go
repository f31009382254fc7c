package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"orbit/internal/channels"
	"orbit/internal/channels/telegram"
	"orbit/internal/collection"
	"orbit/internal/config"
	"orbit/internal/datadir"
	"orbit/internal/embedding"
	"orbit/internal/gateway"
	"orbit/internal/store"
	"orbit/internal/version"

	"github.com/spf13/cobra"
)

var (
	cfgFile string
	verbose bool
	port    int
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "orbit",
	Short: "Orbit - multi-modal content store and retrieval engine",
	Long: `Orbit stores text, images and audio under per-user partitions,
embeds everything for semantic search, and serves an HTTP/WebSocket API.

Run without a subcommand to start the server.`,
	Version: version.Full(),
}

// serverCmd represents the server command
var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the Orbit server",
	Long: `Start the Orbit HTTP server. This is the main server mode that
accepts save/search requests and runs capture channels and maintenance.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Printf("Orbit %s\n", version.Full())
		buildInfo := version.GetBuildInfo()

		if buildInfo.GitCommit != "unknown" {
			fmt.Printf("Git commit: %s\n", buildInfo.GitCommit)
		}
		if buildInfo.GitTag != "" {
			fmt.Printf("Git tag: %s\n", buildInfo.GitTag)
		}
		if buildInfo.GitDirty {
			fmt.Printf("Git status: dirty (uncommitted changes)\n")
		}
		if buildInfo.BuildDate != "unknown" {
			fmt.Printf("Build date: %s\n", buildInfo.BuildDate)
		}
		fmt.Printf("Go version: %s\n", buildInfo.GoVersion)

		return nil
	},
}

func init() {
	cobra.OnInitialize(initLogging)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path (default: <data_dir>/config/config.json)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")

	serverCmd.Flags().IntVarP(&port, "port", "p", 0, "HTTP server port (overrides config)")

	rootCmd.AddCommand(serverCmd)
	rootCmd.AddCommand(versionCmd)

	// If no command is specified, default to server
	rootCmd.RunE = func(cmd *cobra.Command, args []string) error {
		return serverCmd.RunE(cmd, args)
	}
}

func initLogging() {
	if verbose {
		log.SetFlags(log.LstdFlags | log.Lshortfile)
		log.Println("Verbose logging enabled")
	}
}

// loadConfig resolves the data directory, loads .env files and then the
// config so ${ENV_VAR} references can expand.
func loadConfig() (*config.Config, *datadir.DataDir, error) {
	dd, err := datadir.New("")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to resolve data directory: %w", err)
	}
	if err := dd.EnsureDirs(); err != nil {
		return nil, nil, fmt.Errorf("failed to create data directories: %w", err)
	}
	if err := datadir.LoadEnv(dd.Root()); err != nil {
		log.Printf("WARNING: Failed to load .env files: %v", err)
	}

	path := cfgFile
	if path == "" {
		path = dd.FilePath("config.json")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	// The config may point at a different data root than the default.
	if cfg.DataDir != "" {
		dd, err = datadir.New(cfg.DataDir)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to resolve data directory: %w", err)
		}
		if err := dd.EnsureDirs(); err != nil {
			return nil, nil, fmt.Errorf("failed to create data directories: %w", err)
		}
	}
	return cfg, dd, nil
}

// newProvider builds the embedding provider an effective config section
// selects, wrapped with that section's per-call budget. Each modality gets
// its own instance so remote deployments can pair different models (CLIP
// for images, CLAP for audio) per store.
func newProvider(ec config.EmbeddingConfig) (embedding.Provider, error) {
	var p embedding.Provider
	switch ec.Provider {
	case "", "hashing":
		dims := ec.Dims
		if dims == 0 {
			dims = 256
		}
		p = embedding.NewHashing(dims)
	case "openai":
		dims := ec.Dims
		if dims == 0 {
			dims = 1536
		}
		var apiKey, model string
		if ec.OpenAI != nil {
			apiKey = ec.OpenAI.APIKey
			model = ec.OpenAI.Model
		}
		p = embedding.Serialized(embedding.NewOpenAI(apiKey, model, dims))
	case "remote":
		dims := ec.Dims
		if dims == 0 {
			dims = 384
		}
		p = embedding.NewRemote(ec.Remote.BaseURL, ec.Remote.Model, dims)
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", ec.Provider)
	}
	return embedding.WithBudget(p, ec.Timeout()), nil
}

// buildContentStore wires the index, registry, provider and per-modality
// stores into the content façade.
func buildContentStore(cfg *config.Config, dd *datadir.DataDir) (*store.ContentStore, *collection.Registry, *collection.Store, error) {
	indexPath := cfg.Index.Path
	if indexPath == "" {
		indexPath = "index.db"
	}
	if !filepath.IsAbs(indexPath) {
		indexPath = dd.IndexFilePath(indexPath)
	}

	index, err := collection.OpenStore(indexPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to open index at %s: %w", indexPath, err)
	}

	providers := make(map[string]embedding.Provider, 3)
	for _, modality := range []string{"text", "image", "audio"} {
		p, err := newProvider(cfg.Embedding.ForModality(modality))
		if err != nil {
			index.Close()
			return nil, nil, nil, fmt.Errorf("%s embedding: %w", modality, err)
		}
		providers[modality] = p
	}

	registry := collection.NewRegistry(index)
	cs := store.NewContentStore(
		store.NewTextStore(dd.TextsDir(), registry, providers["text"]),
		store.NewImageStore(dd.ImagesDir(), registry, providers["image"]),
		store.NewAudioStore(dd.AudioDir(), registry, providers["audio"]),
	)
	return cs, registry, index, nil
}

func runServer() error {
	cfg, dd, err := loadConfig()
	if err != nil {
		return err
	}

	if port != 0 {
		cfg.Port = port
	}
	if cfg.Debug.VerboseLogging {
		log.SetFlags(log.LstdFlags | log.Lshortfile)
	}

	cs, registry, index, err := buildContentStore(cfg, dd)
	if err != nil {
		return err
	}
	defer index.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Printf("Received signal: %v", sig)
		cancel()
	}()

	// Scheduled maintenance: orphan sweep over the modality roots plus
	// collection stats.
	scheduler := newMaintenanceScheduler(cfg, dd, registry)
	if err := scheduler.Start(); err != nil {
		return fmt.Errorf("failed to start maintenance scheduler: %w", err)
	}
	defer scheduler.Stop()

	// Capture channels.
	manager := channels.NewManager()
	manager.RegisterFactory(telegram.NewFactory(cs))
	if err := manager.Start(ctx, channelConfigs(cfg)); err != nil {
		log.Printf("WARNING: Failed to start channels: %v", err)
	}
	defer manager.Stop()

	gw := gateway.New(cfg, cs)
	log.Printf("Starting Orbit on port %d", cfg.Port)
	if err := gw.Start(ctx); err != nil {
		return fmt.Errorf("server failed: %w", err)
	}

	log.Println("Orbit stopped gracefully")
	return nil
}

// channelConfigs converts the config file's channel entries into the
// manager's wire format. Entries without a name get their type as ID.
func channelConfigs(cfg *config.Config) []channels.ChannelConfig {
	out := make([]channels.ChannelConfig, 0, len(cfg.Channels))
	for _, c := range cfg.Channels {
		id := c.Name
		if id == "" {
			id = c.Type
		}
		out = append(out, channels.ChannelConfig{
			ID:      id,
			Type:    c.Type,
			Name:    c.Name,
			Enabled: c.Enabled,
			Config:  c.Config,
		})
	}
	return out
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
