package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hazyhaar/diario/monitor"
	"github.com/hazyhaar/diario/notify"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// fileConfig is the optional YAML file named by DIARIO_CONFIG.
type fileConfig struct {
	Listen    string                 `yaml:"listen"`
	DBPath    string                 `yaml:"db_path"`
	Terms     []string               `yaml:"terms"`
	SendEmpty bool                   `yaml:"send_empty"`
	Interval  string                 `yaml:"interval"`
	Sources   []monitor.SourceConfig `yaml:"sources"`
	MailTo    []string               `yaml:"mail_to"`
}

// settings is the resolved process configuration.
type settings struct {
	Monitor  monitor.Config
	Listen   string
	DBPath   string
	RedisURL string
	AdminKey string
	LogLevel string
	MailTo   []string
	Email    notify.EmailConfig
	Telegram notify.TelegramConfig
}

// loadSettings reads .env, then DIARIO_CONFIG, then environment overrides.
func loadSettings() (*settings, error) {
	// A missing .env is normal in production.
	_ = godotenv.Load()

	s := &settings{
		Listen:   ":8080",
		DBPath:   "data/diario.db",
		LogLevel: env("LOG_LEVEL", "info"),
	}

	if path := os.Getenv("DIARIO_CONFIG"); path != "" {
		fc, err := readConfigFile(path)
		if err != nil {
			return nil, err
		}
		if fc.Listen != "" {
			s.Listen = fc.Listen
		}
		if fc.DBPath != "" {
			s.DBPath = fc.DBPath
		}
		s.Monitor.Terms = fc.Terms
		s.Monitor.SendEmpty = fc.SendEmpty
		s.Monitor.Sources = fc.Sources
		s.MailTo = fc.MailTo
		if fc.Interval != "" {
			d, err := time.ParseDuration(fc.Interval)
			if err != nil {
				return nil, fmt.Errorf("config %s: interval: %w", path, err)
			}
			s.Monitor.Scheduler.Interval = d
		}
	}

	s.Listen = env("LISTEN", s.Listen)
	s.DBPath = env("DB_PATH", s.DBPath)
	s.RedisURL = os.Getenv("REDIS_URL")
	s.AdminKey = os.Getenv("ADMIN_KEY")

	if v := os.Getenv("TERMS"); v != "" {
		s.Monitor.Terms = splitList(v)
	}
	if v := os.Getenv("SEND_EMPTY"); v != "" {
		s.Monitor.SendEmpty = truthy(v)
	}
	if v := os.Getenv("CHECK_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("CHECK_INTERVAL: %w", err)
		}
		s.Monitor.Scheduler.Interval = d
	}
	s.Monitor.Fetch.AllowFile = truthy(os.Getenv("ALLOW_FILE"))

	if len(s.Monitor.Sources) == 0 {
		s.Monitor.Sources = monitor.DefaultSources()
	}
	for i := range s.Monitor.Sources {
		src := &s.Monitor.Sources[i]
		if v := os.Getenv(sourceEnvKey(src.Name)); v != "" {
			src.URL = v
		}
	}

	port, err := strconv.Atoi(env("SMTP_PORT", "587"))
	if err != nil {
		return nil, fmt.Errorf("SMTP_PORT: %w", err)
	}
	s.Email = notify.EmailConfig{
		Host:     os.Getenv("SMTP_HOST"),
		Port:     port,
		Username: os.Getenv("SMTP_USER"),
		Password: os.Getenv("SMTP_PASS"),
		From:     os.Getenv("MAIL_FROM"),
	}
	if v := os.Getenv("MAIL_TO"); v != "" {
		s.MailTo = splitList(v)
	}
	s.Telegram = notify.TelegramConfig{
		BotToken: os.Getenv("TG_BOT_TOKEN"),
		ChatID:   os.Getenv("TG_CHAT_ID"),
	}
	return s, nil
}

func readConfigFile(path string) (*fileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return &fc, nil
}

// sourceEnvKey maps a source name to its URL override variable:
// "DOE/PB" -> DOE_URL, "DEJT TRT-13" -> DEJT_URL.
func sourceEnvKey(name string) string {
	prefix, _, _ := strings.Cut(name, "/")
	prefix, _, _ = strings.Cut(prefix, " ")
	return strings.ToUpper(prefix) + "_URL"
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ';' }) {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func truthy(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
