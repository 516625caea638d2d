package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	LogLevel string          `json:"log_level" yaml:"log_level"`
	Accounts []AccountConfig `json:"accounts" yaml:"accounts"`
	Server   ServerConfig    `json:"server" yaml:"server"`
	Audit    AuditConfig     `json:"audit" yaml:"audit"`
	Storage  StorageConfig   `json:"storage" yaml:"storage"`
	Forward  ForwardConfig   `json:"forward" yaml:"forward"`
	API      APIConfig       `json:"api" yaml:"api"`
	Events   EventsConfig    `json:"events" yaml:"events"`
}

type AccountConfig struct {
	ID                string        `json:"id" yaml:"id"`
	Key               string        `json:"key" yaml:"key"`
	AllowedSkewPast   time.Duration `json:"allowed_skew_past" yaml:"allowed_skew_past"`
	AllowedSkewFuture time.Duration `json:"allowed_skew_future" yaml:"allowed_skew_future"`
	UnboundedSkew     bool          `json:"unbounded_skew" yaml:"unbounded_skew"`
	Timezone          string        `json:"timezone" yaml:"timezone"`
}

type ServerConfig struct {
	TCP       TransportConfig `json:"tcp" yaml:"tcp"`
	UDP       TransportConfig `json:"udp" yaml:"udp"`
	EventLoop TransportConfig `json:"tcp_eventloop" yaml:"tcp_eventloop"`
}

type TransportConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Addr    string `json:"addr" yaml:"addr"`
}

type AuditConfig struct {
	Enabled    bool   `json:"enabled" yaml:"enabled"`
	Path       string `json:"path" yaml:"path"`
	MaxSizeMB  int    `json:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `json:"max_backups" yaml:"max_backups"`
}

type StorageConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Driver  string `json:"driver" yaml:"driver"`
	DSN     string `json:"dsn" yaml:"dsn"`
}

type ForwardConfig struct {
	Enabled bool     `json:"enabled" yaml:"enabled"`
	Brokers []string `json:"brokers" yaml:"brokers"`
	Topic   string   `json:"topic" yaml:"topic"`
}

type APIConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Addr    string `json:"addr" yaml:"addr"`
}

type EventsConfig struct {
	StoreLimit int `json:"store_limit" yaml:"store_limit"`
}

func DefaultConfig() *Config {
	return &Config{
		LogLevel: "info",
		Server: ServerConfig{
			TCP:       TransportConfig{Enabled: true, Addr: ":7777"},
			UDP:       TransportConfig{Enabled: false, Addr: ":7777"},
			EventLoop: TransportConfig{Enabled: false, Addr: ":7778"},
		},
		Audit:   AuditConfig{Enabled: false, MaxSizeMB: 1, MaxBackups: 3},
		Storage: StorageConfig{Enabled: false, Driver: "sqlite", DSN: "file:siaguard.db?_pragma=busy_timeout(5000)"},
		Forward: ForwardConfig{Enabled: false},
		API:     APIConfig{Enabled: true, Addr: ":8081"},
		Events:  EventsConfig{StoreLimit: 1000},
	}
}

func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	content, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()

	trimmed := strings.TrimSpace(string(content))
	if len(trimmed) == 0 {
		return nil, errors.New("config file is empty")
	}
	var decodeErr error
	if looksLikeJSON(trimmed) {
		decodeErr = json.Unmarshal([]byte(trimmed), cfg)
	} else {
		decodeErr = yaml.Unmarshal([]byte(trimmed), cfg)
	}
	if decodeErr != nil {
		return nil, decodeErr
	}
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	if path == "" || cfg == nil {
		return errors.New("config path or config is empty")
	}
	var data []byte
	var err error
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".json" {
		data, err = json.MarshalIndent(cfg, "", "  ")
	} else {
		data, err = yaml.Marshal(cfg)
	}
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func looksLikeJSON(s string) bool {
	for _, ch := range s {
		if ch == '{' || ch == '[' {
			return true
		}
		if ch > ' ' {
			return false
		}
	}
	return false
}

func applyDefaults(cfg *Config) {
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.Audit.MaxSizeMB <= 0 {
		cfg.Audit.MaxSizeMB = 1
	}
	if cfg.Audit.MaxBackups < 0 {
		cfg.Audit.MaxBackups = 3
	}
	if cfg.Events.StoreLimit <= 0 {
		cfg.Events.StoreLimit = 1000
	}
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = "sqlite"
	}
}

func Validate(cfg *Config) error {
	if len(cfg.Accounts) == 0 {
		return errors.New("at least one account is required")
	}
	for i, a := range cfg.Accounts {
		if strings.TrimSpace(a.ID) == "" {
			return fmt.Errorf("accounts[%d].id is empty", i)
		}
		if a.UnboundedSkew && (a.AllowedSkewPast != 0 || a.AllowedSkewFuture != 0) {
			return fmt.Errorf("accounts[%d]: unbounded_skew excludes explicit skew durations", i)
		}
		if a.AllowedSkewPast < 0 || a.AllowedSkewFuture < 0 {
			return fmt.Errorf("accounts[%d]: skew durations must not be negative", i)
		}
	}
	if !cfg.Server.TCP.Enabled && !cfg.Server.UDP.Enabled && !cfg.Server.EventLoop.Enabled {
		return errors.New("at least one transport must be enabled")
	}
	if cfg.Server.TCP.Enabled && cfg.Server.TCP.Addr == "" {
		return errors.New("server.tcp.addr required when server.tcp.enabled is true")
	}
	if cfg.Server.UDP.Enabled && cfg.Server.UDP.Addr == "" {
		return errors.New("server.udp.addr required when server.udp.enabled is true")
	}
	if cfg.Server.EventLoop.Enabled && cfg.Server.EventLoop.Addr == "" {
		return errors.New("server.tcp_eventloop.addr required when server.tcp_eventloop.enabled is true")
	}
	if cfg.Audit.Enabled && cfg.Audit.Path == "" {
		return errors.New("audit.path required when audit.enabled is true")
	}
	if cfg.Forward.Enabled {
		if len(cfg.Forward.Brokers) == 0 || cfg.Forward.Topic == "" {
			return errors.New("forward requires brokers and topic")
		}
	}
	if cfg.API.Enabled && cfg.API.Addr == "" {
		return errors.New("api.addr required when api.enabled is true")
	}
	return nil
}

type Manager struct {
	path    string
	cfg     atomic.Value
	modTime time.Time
}

func NewManager(path string) (*Manager, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	m := &Manager{path: path}
	m.cfg.Store(cfg)
	info, err := os.Stat(path)
	if err == nil {
		m.modTime = info.ModTime()
	}
	return m, nil
}

func (m *Manager) Get() *Config {
	if v := m.cfg.Load(); v != nil {
		return v.(*Config)
	}
	return DefaultConfig()
}

func (m *Manager) Path() string {
	return m.path
}

func (m *Manager) Reload() (*Config, error) {
	cfg, err := Load(m.path)
	if err != nil {
		return nil, err
	}
	m.cfg.Store(cfg)
	if info, err := os.Stat(m.path); err == nil {
		m.modTime = info.ModTime()
	}
	return cfg, nil
}

func (m *Manager) NeedsReload() (bool, error) {
	info, err := os.Stat(m.path)
	if err != nil {
		return false, err
	}
	return info.ModTime().After(m.modTime), nil
}

func (m *Manager) Watch(interval time.Duration, onReload func(*Config), onError func(error), stop <-chan struct{}) {
	if interval <= 0 {
		interval = 3 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			needs, err := m.NeedsReload()
			if err != nil {
				if onError != nil {
					onError(err)
				}
				continue
			}
			if !needs {
				continue
			}
			cfg, err := m.Reload()
			if err != nil {
				if onError != nil {
					onError(err)
				}
				continue
			}
			if onReload != nil {
				onReload(cfg)
			}
		case <-stop:
			return
		}
	}
}

func ResolvePath(path string) string {
	if path == "" {
		return path
	}
	if filepath.IsAbs(path) {
		return path
	}
	cwd, err := os.Getwd()
	if err != nil {
		return path
	}
	return filepath.Join(cwd, path)
}
