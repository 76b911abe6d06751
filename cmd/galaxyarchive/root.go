// Command galaxyarchive mirrors and extracts GOG Galaxy CDN content to a
// local, content-addressable archive root.
//
// Modeled on distribution's registry/registry.go: one *cobra.Command per
// root-level concern, flags bound with cmd.Flags().StringVar(...), and a
// configureLogging step that sets up logrus from the --log-level and
// --log-format flags before any subcommand runs.
package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	logstash "github.com/bshuster-repo/logrus-logstash-hook"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/Dimensional/GalaxyDL/internal/archiver"
	"github.com/Dimensional/GalaxyDL/internal/cdn"
	"github.com/Dimensional/GalaxyDL/internal/config"
	"github.com/Dimensional/GalaxyDL/internal/download"
	"github.com/Dimensional/GalaxyDL/internal/logctx"
	"github.com/Dimensional/GalaxyDL/internal/manifest"
	"github.com/Dimensional/GalaxyDL/internal/store"
	"github.com/Dimensional/GalaxyDL/internal/version"
)

var globalFlags struct {
	configPath    string
	archiveRoot   string
	cdnBaseURL    string
	collectorURL  string
	contentSystem string
	logLevel      string
	logFormat     string
}

// RootCmd is the galaxyarchive entrypoint, following ServeCmd's shape in
// the teacher's registry/registry.go.
var RootCmd = &cobra.Command{
	Use:     "galaxyarchive",
	Short:   "`galaxyarchive` mirrors and extracts GOG Galaxy CDN builds",
	Long:    "`galaxyarchive` mirrors GOG Galaxy CDN builds into a content-addressable archive root, and extracts archived builds back into playable game trees.",
	Version: version.Version(),
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return configureLogging()
	},
}

func init() {
	flags := RootCmd.PersistentFlags()
	flags.StringVar(&globalFlags.configPath, "config", "", "path to a YAML configuration file (optional; flags and defaults apply otherwise)")
	flags.StringVar(&globalFlags.archiveRoot, "archive-root", "./archive", "root directory of the on-disk mirror")
	flags.StringVar(&globalFlags.cdnBaseURL, "cdn-base-url", archiver.DefaultContentSystemBaseURL, "base URL a StaticLinkMinter resolves chunk/blob paths against")
	flags.StringVar(&globalFlags.collectorURL, "collector-base-url", "https://downloadable-manifests-collector.gog.com", "base URL for the gen-2 depot manifest collector")
	flags.StringVar(&globalFlags.contentSystem, "content-system-base-url", archiver.DefaultContentSystemBaseURL, "base URL for build/repository listing endpoints")
	flags.StringVar(&globalFlags.logLevel, "log-level", "info", "log level: debug, info, warn, error")
	flags.StringVar(&globalFlags.logFormat, "log-format", "text", "log formatter: text, json, logstash")

	RootCmd.AddCommand(downloadCmd)
	RootCmd.AddCommand(validateCmd)
	RootCmd.AddCommand(extractCmd)
	RootCmd.AddCommand(listCmd)
	RootCmd.AddCommand(syncMetadataCmd)
}

// loadConfiguration reads --config if given, else returns config.Default().
func loadConfiguration() (*config.Configuration, error) {
	if globalFlags.configPath == "" {
		return config.Default(), nil
	}

	f, err := os.Open(globalFlags.configPath)
	if err != nil {
		return nil, fmt.Errorf("opening configuration: %w", err)
	}
	defer f.Close()

	return config.Parse(f)
}

// configureLogging sets up logrus from the --log-level/--log-format flags,
// mirroring registry.go's configureLogging switch over config.Log.Formatter.
func configureLogging() error {
	level, err := logrus.ParseLevel(globalFlags.logLevel)
	if err != nil {
		level = logrus.InfoLevel
		logrus.Warnf("error parsing level %q: %v, using %q", globalFlags.logLevel, err, level)
	}
	logrus.SetLevel(level)

	switch globalFlags.logFormat {
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat:   time.RFC3339Nano,
			DisableHTMLEscape: true,
		})
	case "text":
		logrus.SetFormatter(&logrus.TextFormatter{
			TimestampFormat: time.RFC3339Nano,
		})
	case "logstash":
		logrus.SetFormatter(&logstash.LogstashFormatter{
			Formatter: &logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano},
		})
	default:
		return fmt.Errorf("unsupported logging formatter: %q", globalFlags.logFormat)
	}

	logctx.SetDefaultLogger(logrus.NewEntry(logrus.StandardLogger()))
	return nil
}

// wireStore assembles the collaborators every subcommand shares: the store,
// manifest cache, and fetcher, configured from the global flags.
func wireStore() (*store.Store, *manifest.Cache, *cdn.Fetcher, *config.Configuration, error) {
	cfg, err := loadConfiguration()
	if err != nil {
		return nil, nil, nil, nil, err
	}

	root := globalFlags.archiveRoot
	if cfg.ArchiveRoot != "" && !RootCmd.PersistentFlags().Changed("archive-root") {
		root = cfg.ArchiveRoot
	}
	s := store.New(root)
	client := &http.Client{Timeout: cfg.Download.Timeouts.RangedRead}
	f := cdn.NewFetcher(client)
	mc := manifest.NewCache(s, f)
	mc.CDNBaseURL = globalFlags.cdnBaseURL
	mc.CollectorBaseURL = globalFlags.collectorURL

	return s, mc, f, cfg, nil
}

// buildArchiver wires every collaborator a subcommand needs from the
// global flags, following the teacher's NewRegistry(ctx, config) pattern
// of one constructor assembling the whole dependency graph per run.
func buildArchiver() (*archiver.Archiver, error) {
	s, mc, f, cfg, err := wireStore()
	if err != nil {
		return nil, err
	}

	engine := download.NewEngine(s, f, func() string { return time.Now().UTC().Format(time.RFC3339) })
	minter := cdn.StaticLinkMinter{BaseURL: globalFlags.cdnBaseURL}

	a, err := archiver.New(s, mc, f, engine, minter, cfg)
	if err != nil {
		return nil, err
	}
	a.ContentSystemBaseURL = globalFlags.contentSystem

	return a, nil
}
