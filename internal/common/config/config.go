package config

import (
	"errors"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"
)

type DB struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Pass     string `yaml:"password"`
	Name     string `yaml:"database"`
	SSLMode  string `yaml:"sslmode"`
	MaxConns int    `yaml:"max_conns"`
}

type MQ struct {
	Host  string `yaml:"host"`
	Port  int    `yaml:"port"`
	User  string `yaml:"user"`
	Pass  string `yaml:"password"`
	VHost string `yaml:"vhost"`
}

type HTTP struct {
	Port int `yaml:"port"`
}

// Dashboard configures the realtime dashboard service: initial load size and
// the per-session alerting capabilities.
type Dashboard struct {
	MaxInitialOrders    int     `yaml:"max_initial_orders"`
	EnableSound         bool    `yaml:"enable_sound"`
	EnableNotifications bool    `yaml:"enable_browser_notification"`
	SoundFile           string  `yaml:"sound_file"`
	Volume              float64 `yaml:"volume"`
}

type App struct {
	Database  DB        `yaml:"database"`
	Rabbit    MQ        `yaml:"rabbitmq"`
	HTTP      HTTP      `yaml:"http"`
	Dashboard Dashboard `yaml:"dashboard"`
	LogLevel  string    `yaml:"log_level"`
}

func Load(path string) (App, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return App{}, err
	}
	a := defaults()
	if err := yaml.Unmarshal(b, &a); err != nil {
		return App{}, err
	}
	applyEnv(&a)
	if a.Database.Host == "" || a.Rabbit.Host == "" {
		return App{}, errors.New("invalid config: missing database/rabbitmq host")
	}
	return a, nil
}

func defaults() App {
	return App{
		Database: DB{Port: 5432, SSLMode: "disable", MaxConns: 10},
		Rabbit:   MQ{Port: 5672, VHost: "/"},
		HTTP:     HTTP{Port: 3000},
		Dashboard: Dashboard{
			MaxInitialOrders:    50,
			EnableSound:         true,
			EnableNotifications: true,
			SoundFile:           "/sounds/new-order.mp3",
			Volume:              1.0,
		},
		LogLevel: "info",
	}
}

// Secrets are overridable from the environment so the YAML file can stay in
// version control.
func applyEnv(a *App) {
	if v := os.Getenv("CEATS_DB_PASSWORD"); v != "" {
		a.Database.Pass = v
	}
	if v := os.Getenv("CEATS_RABBIT_PASSWORD"); v != "" {
		a.Rabbit.Pass = v
	}
	if v := os.Getenv("CEATS_LOG_LEVEL"); v != "" {
		a.LogLevel = v
	}
}

func FindConfig() (string, error) {
	candidates := []string{"config.yaml", "deploy/config.example.yaml"}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fs.ErrNotExist
}
