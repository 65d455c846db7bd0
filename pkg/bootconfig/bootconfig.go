// Package bootconfig assembles the configuration-driven resources
// loaded once at boot — override table, supported versions, boot
// tracks, assets, program inventory — with no admin interface for live
// editing: viper for flags/env/file, mapstructure-tagged structs for
// decoding.
package bootconfig

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/ensembl-io/genoverse-backend/pkg/delegate"
	"github.com/ensembl-io/genoverse-backend/pkg/species"
)

// Peer is one upstream delegation target, loaded from the "peers" config
// key.
type Peer struct {
	Name string `mapstructure:"name"`
	URL  string `mapstructure:"url"`
}

// Override is one remote-delegation prefix binding, loaded from the
// "overrides" config key.
type Override struct {
	Prefix []string `mapstructure:"prefix"`
	Peer   string   `mapstructure:"peer"`
}

// Config is the top-level viper-decoded server configuration.
type Config struct {
	Port              int      `mapstructure:"port"`
	GracePeriodSec    int64    `mapstructure:"grace_period"`
	DefaultChannel    string   `mapstructure:"default_channel"`
	SupportedVersions []uint32 `mapstructure:"supported_versions"`

	RedisAddr string `mapstructure:"redis_addr"`

	KafkaBrokers []string `mapstructure:"kafka_brokers"`
	KafkaTopic   string   `mapstructure:"kafka_topic"`

	CachePrefix     string `mapstructure:"cache_prefix"`
	CacheBumpOnBoot bool   `mapstructure:"cache_bump_on_restart"`

	BundlesConfigPath string `mapstructure:"bundles_config_path"`
	BundlesProgramDir string `mapstructure:"bundles_program_dir"`

	TracksFile   string `mapstructure:"tracks_file"`
	SpeciesCSV   string `mapstructure:"species_csv"`
	JumpIndexDir string `mapstructure:"jump_index_dir"`

	Peers     []Peer     `mapstructure:"peers"`
	Overrides []Override `mapstructure:"overrides"`

	DelegateTimeoutMS int64 `mapstructure:"delegate_timeout_ms"`
}

// BuildOverrideTable converts the decoded Overrides into a
// delegate.OverrideTable.
func (c Config) BuildOverrideTable() *delegate.OverrideTable {
	entries := make([]delegate.OverrideEntry, len(c.Overrides))
	for i, o := range c.Overrides {
		entries[i] = delegate.OverrideEntry{Prefix: o.Prefix, Peer: o.Peer}
	}
	return delegate.NewOverrideTable(entries)
}

// BuildPeers converts the decoded Peers into delegate.Peer values.
func (c Config) BuildPeers() []delegate.Peer {
	timeout := time.Duration(c.DelegateTimeoutMS) * time.Millisecond
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	peers := make([]delegate.Peer, len(c.Peers))
	for i, p := range c.Peers {
		peers[i] = delegate.Peer{Name: p.Name, BaseURL: p.URL, Timeout: timeout}
	}
	return peers
}

// LoadSpeciesCSV reads a "stick_id,size,topology,tags" CSV (topology is
// "linear"/"circular", tags is a "|"-separated list) into the Stick
// table species.NewInMemory expects. This is the one place the module
// still talks to a flat tabular file directly, giving species metadata
// a concrete boot-time default.
func LoadSpeciesCSV(path string) ([]species.Stick, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("bootconfig: opening %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("bootconfig: parsing %s: %w", path, err)
	}

	var sticks []species.Stick
	for i, row := range rows {
		if i == 0 && len(row) > 0 && row[0] == "stick_id" {
			continue // header row
		}
		if len(row) < 3 {
			continue
		}
		size, err := strconv.ParseInt(row[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bootconfig: %s line %d: bad size %q", path, i+1, row[1])
		}
		topo := species.Linear
		if row[2] == "circular" {
			topo = species.Circular
		}
		var tags []string
		if len(row) >= 4 && row[3] != "" {
			tags = splitTags(row[3])
		}
		sticks = append(sticks, species.Stick{ID: row[0], Size: size, Topology: topo, Tags: tags})
	}
	return sticks, nil
}

func splitTags(s string) []string {
	var tags []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == '|' {
			if i > start {
				tags = append(tags, s[start:i])
			}
			start = i + 1
		}
	}
	return tags
}
