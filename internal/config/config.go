// Package config holds the YAML-decoded archiver configuration, modeled on
// distribution's configuration package (a versioned struct decoded with
// gopkg.in/yaml.v2, with defaulting applied after decode rather than via
// struct tags).
package config

import (
	"fmt"
	"io"
	"runtime"
	"time"

	"gopkg.in/yaml.v2"
)

// Loglevel is the level at which archiver operations are logged.
type Loglevel string

// Log supports setting various parameters related to the logging subsystem.
type Log struct {
	Level     Loglevel               `yaml:"level,omitempty"`
	Formatter string                 `yaml:"formatter,omitempty"`
	Fields    map[string]interface{} `yaml:"fields,omitempty"`
}

// Timeouts mirrors spec.md §5: HEAD = 30s; ranged GET = (30s connect, 300s
// read); small-object GET for chunks = 30s.
type Timeouts struct {
	Head           time.Duration `yaml:"head,omitempty"`
	RangedConnect  time.Duration `yaml:"rangedconnect,omitempty"`
	RangedRead     time.Duration `yaml:"rangedread,omitempty"`
	SmallObjectGet time.Duration `yaml:"smallobjectget,omitempty"`
}

// Download configures the resumable download engine (C4).
type Download struct {
	// MaxWorkers bounds the shared worker pool used for chunk downloads.
	// Defaults to runtime.NumCPU().
	MaxWorkers int `yaml:"maxworkers,omitempty"`

	// BlockSize is parsed and defaults to 100 MiB, but the download engine
	// does not read it: blobs are always partitioned with
	// download.DefaultBlockSize (tests shrink download.Engine.BlockSize
	// directly).
	BlockSize int64 `yaml:"blocksize,omitempty"`

	Timeouts Timeouts `yaml:"timeouts,omitempty"`
}

// Archiver configures the orchestrator (C5).
type Archiver struct {
	// IncludeOfflineDepots preserves the source policy of skipping
	// offlineDepot.manifest entries by default (spec.md §9 Open Question 1).
	IncludeOfflineDepots bool `yaml:"includeofflinedepots,omitempty"`
}

// Configuration is the top-level archiver configuration, intended to be
// provided by a YAML file and optionally overridden by CLI flags.
//
// Note that yaml field names avoid '_' characters for consistency with the
// teacher's own convention, even though this tool has no environment
// variable expansion layer.
type Configuration struct {
	Version string `yaml:"version"`

	// ArchiveRoot is the root directory of the on-disk mirror (spec.md §6
	// persisted layout).
	ArchiveRoot string `yaml:"archiveroot"`

	Log      Log      `yaml:"log,omitempty"`
	Download Download `yaml:"download,omitempty"`
	Archiver Archiver `yaml:"archiver,omitempty"`
}

// Default returns a Configuration with the documented defaults applied.
func Default() *Configuration {
	return &Configuration{
		Version: "1.0",
		Download: Download{
			MaxWorkers: runtime.NumCPU(),
			BlockSize:  100 * 1024 * 1024,
			Timeouts: Timeouts{
				Head:           30 * time.Second,
				RangedConnect:  30 * time.Second,
				RangedRead:     300 * time.Second,
				SmallObjectGet: 30 * time.Second,
			},
		},
	}
}

// Parse parses an io.Reader into a Configuration, applying defaults for any
// zero-valued field the YAML document left unset.
func Parse(rd io.Reader) (*Configuration, error) {
	in, err := io.ReadAll(rd)
	if err != nil {
		return nil, fmt.Errorf("reading configuration: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(in, config); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	applyDefaults(config)

	return config, nil
}

func applyDefaults(c *Configuration) {
	d := Default()

	if c.Download.MaxWorkers <= 0 {
		c.Download.MaxWorkers = d.Download.MaxWorkers
	}
	if c.Download.BlockSize <= 0 {
		c.Download.BlockSize = d.Download.BlockSize
	}
	if c.Download.Timeouts.Head <= 0 {
		c.Download.Timeouts.Head = d.Download.Timeouts.Head
	}
	if c.Download.Timeouts.RangedConnect <= 0 {
		c.Download.Timeouts.RangedConnect = d.Download.Timeouts.RangedConnect
	}
	if c.Download.Timeouts.RangedRead <= 0 {
		c.Download.Timeouts.RangedRead = d.Download.Timeouts.RangedRead
	}
	if c.Download.Timeouts.SmallObjectGet <= 0 {
		c.Download.Timeouts.SmallObjectGet = d.Download.Timeouts.SmallObjectGet
	}
}
