// Package config loads the netdevd configuration with viper.
package config

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const EnvPrefix = "NETDEV"

type Config struct {
	API     APIConfig     `mapstructure:"api"`
	Pprof   PprofConfig   `mapstructure:"pprof"`
	Log     LogConfig     `mapstructure:"log"`
	Capture CaptureConfig `mapstructure:"capture"`
	ARP     ARPConfig     `mapstructure:"arp"`
}

type APIConfig struct {
	Listen string `mapstructure:"listen"`
}

type PprofConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"` // empty logs to stderr
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

type CaptureConfig struct {
	Snaplen     int           `mapstructure:"snaplen"`
	Promisc     bool          `mapstructure:"promisc"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxSessions int           `mapstructure:"max_sessions"`
	DumpDir     string        `mapstructure:"dump_dir"`
	ReplayDir   string        `mapstructure:"replay_dir"` // offline sessions open files here only
}

type ARPConfig struct {
	Timeout  time.Duration `mapstructure:"timeout"`
	Interval time.Duration `mapstructure:"interval"`
}

// flagKeys maps command line flags onto config keys.
var flagKeys = map[string]string{
	"listen":     "api.listen",
	"pprof":      "pprof.enabled",
	"log-level":  "log.level",
	"log-file":   "log.file",
	"dump-dir":   "capture.dump_dir",
	"replay-dir": "capture.replay_dir",
}

// Load reads path, if not empty, then applies NETDEV_* environment
// variables and the flags of fs that were set.
func Load(path string, fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config file %s", path)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if fs != nil {
		for name, key := range flagKeys {
			if f := fs.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, errors.Wrapf(err, "bind flag %s", name)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "unmarshal config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "validate config")
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.listen", ":9922")

	v.SetDefault("pprof.enabled", false)
	v.SetDefault("pprof.listen", "127.0.0.1:9923")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "/var/log/netdev/netdevd.log")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 10)
	v.SetDefault("log.max_age_days", 60)
	v.SetDefault("log.compress", true)

	v.SetDefault("capture.snaplen", 1550)
	v.SetDefault("capture.promisc", false)
	v.SetDefault("capture.timeout", "100ms")
	v.SetDefault("capture.max_sessions", 64)
	v.SetDefault("capture.dump_dir", "/var/lib/netdev")
	v.SetDefault("capture.replay_dir", "/var/lib/netdev")

	v.SetDefault("arp.timeout", "2s")
	v.SetDefault("arp.interval", "100ms")
}

func (cfg *Config) Validate() error {
	if _, err := logrus.ParseLevel(cfg.Log.Level); err != nil {
		return err
	}
	if cfg.API.Listen == "" {
		return errors.New("api.listen is required")
	}
	if cfg.Capture.Snaplen <= 0 {
		return errors.Errorf("invalid capture.snaplen %d", cfg.Capture.Snaplen)
	}
	if cfg.Capture.Timeout <= 0 {
		return errors.Errorf("invalid capture.timeout %v", cfg.Capture.Timeout)
	}
	if cfg.Capture.ReplayDir == "" {
		return errors.New("capture.replay_dir is required")
	}
	if cfg.Capture.MaxSessions <= 0 {
		return errors.Errorf("invalid capture.max_sessions %d", cfg.Capture.MaxSessions)
	}
	if cfg.ARP.Timeout <= 0 || cfg.ARP.Interval <= 0 || cfg.ARP.Interval > cfg.ARP.Timeout {
		return errors.Errorf("invalid arp timeout %v / interval %v", cfg.ARP.Timeout, cfg.ARP.Interval)
	}
	return nil
}
