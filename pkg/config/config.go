// Package config loads and saves the settings file. Loading never fails on
// bad content: anything missing or undecodable falls back to defaults.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/natefinch/atomic"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	xdgAppName = "vaultsync"
	configFile = "config.yaml"

	// SourceWins is the only conflict resolution there is.
	SourceWins = "source_wins"

	DestinationGoogle      = "google"
	DestinationTaskwarrior = "taskwarrior"
)

type BackupConfig struct {
	MaxPerFile int           `mapstructure:"max_per_file"`
	MaxAge     time.Duration `mapstructure:"max_age"`
}

type AuditConfig struct {
	MaxBytes int64 `mapstructure:"max_bytes"`
}

type LogConfig struct {
	Capacity int `mapstructure:"capacity"`
}

type Config struct {
	VaultPath           string            `mapstructure:"vault_path"`
	SentinelDir         string            `mapstructure:"sentinel_dir"`
	SyncInterval        time.Duration     `mapstructure:"sync_interval"`
	WatchDebounce       time.Duration     `mapstructure:"watch_debounce"`
	ExcludedPaths       []string          `mapstructure:"excluded_paths"`
	FilePattern         string            `mapstructure:"file_pattern"`
	TagListMapping      map[string]string `mapstructure:"tag_list_mapping"`
	DefaultList         string            `mapstructure:"default_list"`
	ConflictResolution  string            `mapstructure:"conflict_resolution"`
	CompletionWriteback bool              `mapstructure:"completion_writeback"`
	DryRun              bool              `mapstructure:"dry_run"`
	IncludeCompleted    bool              `mapstructure:"include_completed"`
	Destination         string            `mapstructure:"destination"`
	NewTaskFile         string            `mapstructure:"new_task_file"`
	LogLevel            string            `mapstructure:"log_level"`
	Backup              BackupConfig      `mapstructure:"backup"`
	Audit               AuditConfig       `mapstructure:"audit"`
	Log                 LogConfig         `mapstructure:"log"`
}

func Default() *Config {
	return &Config{
		SentinelDir:        ".obsidian",
		SyncInterval:       15 * time.Minute,
		WatchDebounce:      2 * time.Second,
		ExcludedPaths:      []string{},
		FilePattern:        "*.md",
		TagListMapping:     map[string]string{},
		DefaultList:        "Tasks",
		ConflictResolution: SourceWins,
		Destination:        DestinationGoogle,
		NewTaskFile:        "Inbox.md",
		LogLevel:           "info",
		Backup:             BackupConfig{MaxPerFile: 10, MaxAge: 7 * 24 * time.Hour},
		Audit:              AuditConfig{MaxBytes: 1 << 20},
		Log:                LogConfig{Capacity: 50},
	}
}

// DefaultDir is ~/.config/vaultsync.
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", xdgAppName), nil
}

// Path of the settings file in dir.
func Path(dir string) string {
	return filepath.Join(dir, configFile)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("VAULTSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	d := Default()
	v.SetDefault("vault_path", d.VaultPath)
	v.SetDefault("sentinel_dir", d.SentinelDir)
	v.SetDefault("sync_interval", d.SyncInterval)
	v.SetDefault("watch_debounce", d.WatchDebounce)
	v.SetDefault("excluded_paths", d.ExcludedPaths)
	v.SetDefault("file_pattern", d.FilePattern)
	v.SetDefault("tag_list_mapping", d.TagListMapping)
	v.SetDefault("default_list", d.DefaultList)
	v.SetDefault("conflict_resolution", d.ConflictResolution)
	v.SetDefault("completion_writeback", d.CompletionWriteback)
	v.SetDefault("dry_run", d.DryRun)
	v.SetDefault("include_completed", d.IncludeCompleted)
	v.SetDefault("destination", d.Destination)
	v.SetDefault("new_task_file", d.NewTaskFile)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("backup.max_per_file", d.Backup.MaxPerFile)
	v.SetDefault("backup.max_age", d.Backup.MaxAge)
	v.SetDefault("audit.max_bytes", d.Audit.MaxBytes)
	v.SetDefault("log.capacity", d.Log.Capacity)
	return v
}

// Load reads dir/config.yaml over the defaults. Environment variables
// prefixed VAULTSYNC_ override the file.
func Load(dir string, log zerolog.Logger) *Config {
	v, err := read(dir)
	if err != nil {
		log.Warn().Err(err).Str("path", Path(dir)).Msg("config unreadable, using defaults")
		v = newViper()
	}
	return decode(v, log)
}

func read(dir string) (*viper.Viper, error) {
	v := newViper()
	path := Path(dir)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return v, nil
		}
		return nil, err
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	return v, nil
}

func decode(v *viper.Viper, log zerolog.Logger) *Config {
	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		log.Warn().Err(err).Msg("config has invalid values, using defaults")
		cfg = Default()
	}
	cfg.normalize(log)
	return cfg
}

// normalize replaces out-of-range values with defaults.
func (c *Config) normalize(log zerolog.Logger) {
	d := Default()
	if c.ConflictResolution != SourceWins {
		log.Warn().Str("conflict_resolution", c.ConflictResolution).Msg("only source_wins is supported")
		c.ConflictResolution = SourceWins
	}
	c.Destination = strings.ToLower(strings.TrimSpace(c.Destination))
	if c.Destination != DestinationGoogle && c.Destination != DestinationTaskwarrior {
		log.Warn().Str("destination", c.Destination).Msg("unknown destination, using google")
		c.Destination = DestinationGoogle
	}
	if c.SyncInterval <= 0 {
		c.SyncInterval = d.SyncInterval
	}
	if c.WatchDebounce <= 0 {
		c.WatchDebounce = d.WatchDebounce
	}
	if c.FilePattern == "" {
		c.FilePattern = d.FilePattern
	}
	if c.DefaultList == "" {
		c.DefaultList = d.DefaultList
	}
	if c.NewTaskFile == "" {
		c.NewTaskFile = d.NewTaskFile
	}
	if c.Backup.MaxPerFile <= 0 {
		c.Backup.MaxPerFile = d.Backup.MaxPerFile
	}
	if c.Backup.MaxAge <= 0 {
		c.Backup.MaxAge = d.Backup.MaxAge
	}
	if c.Audit.MaxBytes <= 0 {
		c.Audit.MaxBytes = d.Audit.MaxBytes
	}
	if c.Log.Capacity <= 0 {
		c.Log.Capacity = d.Log.Capacity
	}
	if c.TagListMapping == nil {
		c.TagListMapping = map[string]string{}
	}
	for tag, list := range c.TagListMapping {
		if strings.TrimSpace(list) == "" {
			delete(c.TagListMapping, tag)
		}
	}
	if c.ExcludedPaths == nil {
		c.ExcludedPaths = []string{}
	}
	c.VaultPath = expandHome(c.VaultPath)
}

func expandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}

// Keys lists the settable keys.
func Keys() []string {
	keys := newViper().AllKeys()
	sort.Strings(keys)
	return keys
}

// Set changes one key in dir/config.yaml. Map entries are addressed as
// tag_list_mapping.<tag>.
func Set(dir, key, value string, log zerolog.Logger) (*Config, error) {
	key = strings.ToLower(strings.TrimSpace(key))
	if !known(key) {
		return nil, fmt.Errorf("unknown config key %q", key)
	}
	v, err := read(dir)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	v.Set(key, value)

	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("invalid value for %s: %w", key, err)
	}
	cfg.normalize(log)
	if err := Save(dir, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func known(key string) bool {
	if strings.HasPrefix(key, "tag_list_mapping.") && len(key) > len("tag_list_mapping.") {
		return true
	}
	for _, k := range Keys() {
		if k == key {
			return true
		}
	}
	return false
}

// fileConfig is the on-disk shape. Durations are written as strings.
type fileConfig struct {
	VaultPath           string            `yaml:"vault_path"`
	SentinelDir         string            `yaml:"sentinel_dir"`
	SyncInterval        string            `yaml:"sync_interval"`
	WatchDebounce       string            `yaml:"watch_debounce"`
	ExcludedPaths       []string          `yaml:"excluded_paths"`
	FilePattern         string            `yaml:"file_pattern"`
	TagListMapping      map[string]string `yaml:"tag_list_mapping"`
	DefaultList         string            `yaml:"default_list"`
	ConflictResolution  string            `yaml:"conflict_resolution"`
	CompletionWriteback bool              `yaml:"completion_writeback"`
	DryRun              bool              `yaml:"dry_run"`
	IncludeCompleted    bool              `yaml:"include_completed"`
	Destination         string            `yaml:"destination"`
	NewTaskFile         string            `yaml:"new_task_file"`
	LogLevel            string            `yaml:"log_level"`
	Backup              struct {
		MaxPerFile int    `yaml:"max_per_file"`
		MaxAge     string `yaml:"max_age"`
	} `yaml:"backup"`
	Audit struct {
		MaxBytes int64 `yaml:"max_bytes"`
	} `yaml:"audit"`
	Log struct {
		Capacity int `yaml:"capacity"`
	} `yaml:"log"`
}

// Marshal renders cfg as YAML.
func Marshal(cfg *Config) ([]byte, error) {
	f := fileConfig{
		VaultPath:           cfg.VaultPath,
		SentinelDir:         cfg.SentinelDir,
		SyncInterval:        cfg.SyncInterval.String(),
		WatchDebounce:       cfg.WatchDebounce.String(),
		ExcludedPaths:       cfg.ExcludedPaths,
		FilePattern:         cfg.FilePattern,
		TagListMapping:      cfg.TagListMapping,
		DefaultList:         cfg.DefaultList,
		ConflictResolution:  cfg.ConflictResolution,
		CompletionWriteback: cfg.CompletionWriteback,
		DryRun:              cfg.DryRun,
		IncludeCompleted:    cfg.IncludeCompleted,
		Destination:         cfg.Destination,
		NewTaskFile:         cfg.NewTaskFile,
		LogLevel:            cfg.LogLevel,
	}
	f.Backup.MaxPerFile = cfg.Backup.MaxPerFile
	f.Backup.MaxAge = cfg.Backup.MaxAge.String()
	f.Audit.MaxBytes = cfg.Audit.MaxBytes
	f.Log.Capacity = cfg.Log.Capacity

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&f); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Save writes cfg to dir/config.yaml atomically.
func Save(dir string, cfg *Config) error {
	if cfg == nil {
		return errors.New("nil config")
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	path := Path(dir)
	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return os.Chmod(path, 0600)
}
