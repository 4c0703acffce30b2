package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// UrgencyBand maps a days-overdue range onto a display band.
// MaxDays nil means open-ended.
type UrgencyBand struct {
	Band    string `mapstructure:"band" json:"band"`
	MinDays int    `mapstructure:"minDays" json:"min_days"`
	MaxDays *int   `mapstructure:"maxDays" json:"max_days"`
}

// OverdueConfig tunes the overdue report without a redeploy.
type OverdueConfig struct {
	Bands []UrgencyBand `mapstructure:"bands" json:"bands"`
}

func DefaultOverdueConfig() OverdueConfig {
	return OverdueConfig{
		Bands: []UrgencyBand{
			{Band: "low", MinDays: 1, MaxDays: intPtr(7)},
			{Band: "medium", MinDays: 8, MaxDays: intPtr(14)},
			{Band: "high", MinDays: 15, MaxDays: intPtr(30)},
			{Band: "critical", MinDays: 31, MaxDays: nil},
		},
	}
}

func intPtr(v int) *int { return &v }

// OverdueConfigHolder serves the current overdue config and hot-reloads it
// when the backing file changes.
type OverdueConfigHolder struct {
	current atomic.Value // holds OverdueConfig
}

func NewOverdueConfigHolder() (*OverdueConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("overdue")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/opsdesk/config") // Volume-mounted config
	v.AddConfigPath("/etc/opsdesk")            // System config
	v.AddConfigPath(".")                       // Current directory (dev mode)

	v.SetEnvPrefix("OPSDESK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		// No file anywhere: run on the built-in bands, nothing to watch.
		return NewStaticOverdueConfigHolder(DefaultOverdueConfig()), nil
	}

	var cfg OverdueConfig
	if err := v.UnmarshalKey("overdue", &cfg); err != nil {
		return nil, err
	}
	if err := validateOverdueConfig(cfg); err != nil {
		return nil, err
	}

	holder := &OverdueConfigHolder{}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated OverdueConfig
		if err := v.UnmarshalKey("overdue", &updated); err != nil {
			log.Printf("[overdue-config] reload failed: %v", err)
			return
		}
		if err := validateOverdueConfig(updated); err != nil {
			log.Printf("[overdue-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[overdue-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

// NewStaticOverdueConfigHolder pins the holder to cfg with no reload.
func NewStaticOverdueConfigHolder(cfg OverdueConfig) *OverdueConfigHolder {
	holder := &OverdueConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func (h *OverdueConfigHolder) Get() OverdueConfig {
	return h.current.Load().(OverdueConfig)
}

func validateOverdueConfig(cfg OverdueConfig) error {
	if len(cfg.Bands) == 0 {
		return errors.New("overdue.bands cannot be empty")
	}
	for _, band := range cfg.Bands {
		if strings.TrimSpace(band.Band) == "" {
			return errors.New("overdue.bands entries require a band name")
		}
		if band.MinDays < 1 {
			return errors.New("overdue.bands minDays must be at least 1")
		}
		if band.MaxDays != nil && *band.MaxDays < band.MinDays {
			return errors.New("overdue.bands maxDays must not be below minDays")
		}
	}
	return nil
}
