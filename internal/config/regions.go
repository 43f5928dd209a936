package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// RegionPeer describes one remote region and its gateway endpoint.
type RegionPeer struct {
	Name     string `mapstructure:"name"`
	Endpoint string `mapstructure:"endpoint"`
}

// RegionsConfig is the peer table loaded from regions.yml.
type RegionsConfig struct {
	Peers []RegionPeer `mapstructure:"peers"`
}

// RegionsHolder exposes the current peer table. The file is hot-reloaded so
// adding a region does not require a restart.
type RegionsHolder struct {
	current atomic.Value // holds RegionsConfig
}

func NewRegionsHolder(cfg Config) (*RegionsHolder, error) {
	v := viper.New()

	v.SetConfigName("regions")
	v.SetConfigType("yml")
	if path := strings.TrimSpace(cfg.RegionsFile); path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath("/var/lib/meridian/config")
		v.AddConfigPath("/etc/meridian")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("MERIDIAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	holder := &RegionsHolder{}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		// Single-region deployments run without a peer table.
		holder.current.Store(RegionsConfig{})
		return holder, nil
	}

	var regions RegionsConfig
	if err := v.UnmarshalKey("regions", &regions); err != nil {
		return nil, err
	}
	if err := validateRegionsConfig(cfg, regions); err != nil {
		return nil, err
	}
	holder.current.Store(regions)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated RegionsConfig
		if err := v.UnmarshalKey("regions", &updated); err != nil {
			log.Printf("[regions-config] reload failed: %v", err)
			return
		}
		if err := validateRegionsConfig(cfg, updated); err != nil {
			log.Printf("[regions-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[regions-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

// NewStaticRegionsHolder builds a holder with a fixed peer table, no file
// watching. Used by tests and single-binary deployments.
func NewStaticRegionsHolder(regions RegionsConfig) *RegionsHolder {
	holder := &RegionsHolder{}
	holder.current.Store(regions)
	return holder
}

func (h *RegionsHolder) Get() RegionsConfig {
	return h.current.Load().(RegionsConfig)
}

// Endpoint returns the gateway endpoint for a region tag, if known.
func (h *RegionsHolder) Endpoint(region string) (string, bool) {
	region = strings.ToLower(strings.TrimSpace(region))
	for _, peer := range h.Get().Peers {
		if strings.ToLower(peer.Name) == region {
			return peer.Endpoint, true
		}
	}
	return "", false
}

func validateRegionsConfig(cfg Config, regions RegionsConfig) error {
	if cfg.MultiRegion && len(regions.Peers) == 0 {
		return errors.New("regions.peers cannot be empty in multi-region mode")
	}
	for _, peer := range regions.Peers {
		if strings.TrimSpace(peer.Name) == "" || strings.TrimSpace(peer.Endpoint) == "" {
			return errors.New("regions.peers entries require name and endpoint")
		}
	}
	return nil
}
