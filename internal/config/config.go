// internal/config/config.go
package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"internship-digest/internal/extract"
)

type Config struct {
	App struct {
		Port int `yaml:"port" json:"port"`
	} `yaml:"app" json:"app"`

	Source struct {
		RepoURL    string `yaml:"repo_url" json:"repo_url"`
		Document   string `yaml:"document" json:"document"`
		TempPrefix string `yaml:"temp_prefix" json:"temp_prefix"`
		CloneDepth int    `yaml:"clone_depth" json:"clone_depth"`
	} `yaml:"source" json:"source"`

	Extract struct {
		Header        string `yaml:"header" json:"header"`
		LinkMarker    string `yaml:"link_marker" json:"link_marker"`
		FlattenMarkup bool   `yaml:"flatten_markup" json:"flatten_markup"`
	} `yaml:"extract" json:"extract"`

	// The webhook URL itself is a secret and never lives here.
	Notify struct {
		WebhookEnv         string `yaml:"webhook_env" json:"webhook_env"`
		KeyringAccount     string `yaml:"keyring_account" json:"keyring_account"`
		TimeoutSeconds     int    `yaml:"timeout_seconds" json:"timeout_seconds"`
		MinIntervalSeconds int    `yaml:"min_interval_seconds" json:"min_interval_seconds"`
	} `yaml:"notify" json:"notify"`

	Schedule struct {
		IntervalHours int  `yaml:"interval_hours" json:"interval_hours"`
		RunOnStart    bool `yaml:"run_on_start" json:"run_on_start"`
	} `yaml:"schedule" json:"schedule"`
}

const (
	DefaultRepoURL = "https://github.com/SimplifyJobs/Summer2026-Internships.git"
	DefaultHeader  = extract.DefaultHeader
)

func Default() Config {
	var cfg Config
	cfg.App.Port = 38471

	cfg.Source.RepoURL = DefaultRepoURL
	cfg.Source.Document = "README.md"
	cfg.Source.TempPrefix = "github_clone_"
	cfg.Source.CloneDepth = 1

	cfg.Extract.Header = DefaultHeader
	cfg.Extract.LinkMarker = "https"

	cfg.Notify.WebhookEnv = "DISCORD_WEBHOOK_URL"
	cfg.Notify.KeyringAccount = "discord:webhook"
	cfg.Notify.TimeoutSeconds = 15
	cfg.Notify.MinIntervalSeconds = 1

	cfg.Schedule.IntervalHours = 24
	cfg.Schedule.RunOnStart = true
	return cfg
}

// Load reads path over Default, so a partial file keeps the remaining defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	err = yaml.Unmarshal(b, &cfg)
	return cfg, err
}

func (c Config) Interval() time.Duration {
	return time.Duration(c.Schedule.IntervalHours) * time.Hour
}

func (c Config) NotifyTimeout() time.Duration {
	return time.Duration(c.Notify.TimeoutSeconds) * time.Second
}

func (c Config) NotifyMinInterval() time.Duration {
	return time.Duration(c.Notify.MinIntervalSeconds) * time.Second
}
