package config

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

type TLSConfig struct {
	Mode     string `json:"mode"`     // "self-signed", "manual", or "" (disabled)
	CertFile string `json:"certFile"` // required for manual
	KeyFile  string `json:"keyFile"`  // required for manual
	CacheDir string `json:"cacheDir"` // for self-signed; defaults to ~/.tourist-safety/certs
}

type AuthConfig struct {
	JWTSecret       string `json:"jwtSecret"`
	AccessTokenTTL  string `json:"accessTokenTTL"`  // Go duration, default 15m
	RefreshTokenTTL string `json:"refreshTokenTTL"` // Go duration, default 168h
}

type ServerConfig struct {
	Host string     `json:"host"`
	Port int        `json:"port"`
	TLS  TLSConfig  `json:"tls"`
	Auth AuthConfig `json:"auth"`
}

type NotificationsConfig struct {
	Webhook string `json:"webhook"`
	NtfyURL string `json:"ntfy"`
}

type NotaryConfig struct {
	Endpoint string `json:"endpoint"` // identity notarization service; empty disables
}

type MonitorConfig struct {
	IntervalSeconds   int `json:"intervalSeconds"`
	InactivityMinutes int `json:"inactivityMinutes"`
}

type RetentionConfig struct {
	PingDays    int `json:"pingDays"`
	AnomalyDays int `json:"anomalyDays"`
}

type Config struct {
	Server        ServerConfig        `json:"server"`
	Notifications NotificationsConfig `json:"notifications"`
	Notary        NotaryConfig        `json:"notary"`
	Monitor       MonitorConfig       `json:"monitor"`
	Retention     RetentionConfig     `json:"retention"`
	LogDir        string              `json:"logDir"`
	LogLevel      string              `json:"logLevel"`
}

func Defaults() Config {
	home, _ := os.UserHomeDir()
	return Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
			Auth: AuthConfig{
				AccessTokenTTL:  "15m",
				RefreshTokenTTL: "168h",
			},
		},
		Monitor: MonitorConfig{
			IntervalSeconds:   30,
			InactivityMinutes: 30,
		},
		Retention: RetentionConfig{
			PingDays:    30,
			AnomalyDays: 90,
		},
		LogDir:   filepath.Join(home, ".tourist-safety", "logs"),
		LogLevel: "info",
	}
}

func DefaultPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".tourist-safety", "config.json")
}

func DBPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".tourist-safety", "state.db")
}

func Load(path string) (Config, error) {
	cfg := Defaults()
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, err
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// EnsureJWTSecret generates and persists a signing secret the first time the
// service starts without one, so tokens survive restarts.
func EnsureJWTSecret(path string, cfg *Config) error {
	if cfg.Server.Auth.JWTSecret != "" {
		return nil
	}
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return fmt.Errorf("generate jwt secret: %w", err)
	}
	cfg.Server.Auth.JWTSecret = hex.EncodeToString(b)
	return Save(path, *cfg)
}

func Save(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}
