package config

import (
	"crypto/rand"
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

type Config struct {
	Port           int
	Token          string
	BufferCapacity int
	DefaultCols    int
	DefaultRows    int
	HistoryPath    string
	ProfileDir     string
	ConfigPath     string
	PrintToken     bool
}

func Load() (*Config, error) {
	cfg := &Config{
		Port:           8766,
		BufferCapacity: 10000,
		DefaultCols:    120,
		DefaultRows:    30,
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home directory: %w", err)
	}
	base := filepath.Join(homeDir, ".config", "ptyhost")
	cfg.ConfigPath = filepath.Join(base, "config")
	cfg.HistoryPath = filepath.Join(base, "history.db")
	cfg.ProfileDir = filepath.Join(base, "profiles")

	if err := cfg.loadFromFile(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	flag.IntVar(&cfg.Port, "port", cfg.Port, "server port (1-65535)")
	flag.StringVar(&cfg.Token, "token", cfg.Token, "authentication token (auto-generated if empty)")
	flag.IntVar(&cfg.BufferCapacity, "buffer", cfg.BufferCapacity, "per-session output buffer capacity in events")
	flag.StringVar(&cfg.HistoryPath, "history", cfg.HistoryPath, "path to the session history database (empty disables history)")
	flag.StringVar(&cfg.ProfileDir, "profiles", cfg.ProfileDir, "directory holding launch profile files")
	flag.BoolVar(&cfg.PrintToken, "print-token", false, "print token to stdout (for local debugging)")
	flag.Parse()

	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid port %d: must be between 1 and 65535", cfg.Port)
	}
	if cfg.BufferCapacity < 1 {
		return nil, fmt.Errorf("invalid buffer capacity %d: must be positive", cfg.BufferCapacity)
	}

	if cfg.Token == "" {
		token, err := generateToken()
		if err != nil {
			return nil, fmt.Errorf("failed to generate token: %w", err)
		}
		cfg.Token = token
		if err := cfg.saveToFile(); err != nil {
			return nil, fmt.Errorf("failed to save config file: %w", err)
		}
	}

	return cfg, nil
}

func (c *Config) loadFromFile() error {
	data, err := os.ReadFile(c.ConfigPath)
	if err != nil {
		return err
	}
	lines := strings.Split(string(data), "\n")
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		switch key {
		case "Token":
			c.Token = value
		case "Port":
			if err := parseIntValue(key, value, &c.Port); err != nil {
				return err
			}
		case "BufferCapacity":
			if err := parseIntValue(key, value, &c.BufferCapacity); err != nil {
				return err
			}
		case "DefaultCols":
			if err := parseIntValue(key, value, &c.DefaultCols); err != nil {
				return err
			}
		case "DefaultRows":
			if err := parseIntValue(key, value, &c.DefaultRows); err != nil {
				return err
			}
		case "HistoryPath":
			c.HistoryPath = value
		case "ProfileDir":
			c.ProfileDir = value
		}
	}
	return nil
}

func (c *Config) saveToFile() error {
	dir := filepath.Dir(c.ConfigPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	data := fmt.Sprintf("Port=%d\nBufferCapacity=%d\nToken=%s\n", c.Port, c.BufferCapacity, c.Token)
	return os.WriteFile(c.ConfigPath, []byte(data), 0600)
}

func parseIntValue(key, value string, dst *int) error {
	var n int
	if _, err := fmt.Sscanf(value, "%d", &n); err != nil {
		return fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	*dst = n
	return nil
}

func generateToken() (string, error) {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}
