package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	HTTPAddr string

	SlackBotToken   string
	SlackUserToken  string // user OAuth token, required by search.messages
	HospitableToken string

	Routing Routing
}

// Routing holds the business configuration: channel IDs, mention targets,
// property-code substrings, and the timing knobs. Defaults reproduce the
// production values; a YAML file pointed to by ROUTING_FILE overrides them.
type Routing struct {
	DefaultChannel  string `yaml:"default_channel"`
	ResolvedChannel string `yaml:"resolved_channel"`
	OpsChannel      string `yaml:"ops_channel"`
	ReviewChannel   string `yaml:"review_channel"`

	// Channel name (no '#') used in search.messages queries for the review
	// channel; the search API takes names, not IDs.
	ReviewChannelName string `yaml:"review_channel_name"`

	ReviewerMentions []string `yaml:"reviewer_mentions"`
	OnCallMention    string   `yaml:"on_call_mention"`

	ReviewPropertyCode    string `yaml:"review_property_code"`
	SentimentPropertyCode string `yaml:"sentiment_property_code"`

	Platform string `yaml:"platform"`
	Timezone string `yaml:"timezone"`

	PacingMillis          int `yaml:"pacing_millis"`
	SentimentPacingMillis int `yaml:"sentiment_pacing_millis"`
	JitterMinMinutes      int `yaml:"jitter_min_minutes"`
	JitterMaxMinutes      int `yaml:"jitter_max_minutes"`
	HorizonDays           int `yaml:"horizon_days"`
}

func DefaultRouting() Routing {
	return Routing{
		OpsChannel:            "C04SDEC0UHZ",
		ReviewChannel:         "C07U1GHS1R9",
		ReviewChannelName:     "a044-eileena-aria",
		ReviewerMentions:      []string{"U081UEASH37", "U07UY3M1TF0", "U08U4NPLXN0"},
		OnCallMention:         "U03S5GQ2CDP",
		ReviewPropertyCode:    "A044",
		SentimentPropertyCode: "A008",
		Platform:              "airbnb",
		Timezone:              "America/Los_Angeles",
		PacingMillis:          1000,
		SentimentPacingMillis: 500,
		JitterMinMinutes:      360,
		JitterMaxMinutes:      480,
		HorizonDays:           120,
	}
}

func FromEnv() (Config, error) {
	cfg := Config{
		HTTPAddr:        getenv("HTTP_ADDR", ":8080"),
		SlackBotToken:   os.Getenv("SLACK_BOT_TOKEN"),
		SlackUserToken:  os.Getenv("USER_OAUTH_TOKEN"),
		HospitableToken: os.Getenv("HOSPITABLE_API_TOKEN"),
		Routing:         DefaultRouting(),
	}
	if cfg.SlackBotToken == "" {
		return Config{}, fmt.Errorf("SLACK_BOT_TOKEN is required")
	}
	if cfg.SlackUserToken == "" {
		return Config{}, fmt.Errorf("USER_OAUTH_TOKEN is required (search.messages needs a user token)")
	}
	if cfg.HospitableToken == "" {
		return Config{}, fmt.Errorf("HOSPITABLE_API_TOKEN is required")
	}

	if path := os.Getenv("ROUTING_FILE"); path != "" {
		if err := loadRouting(path, &cfg.Routing); err != nil {
			return Config{}, fmt.Errorf("ROUTING_FILE: %w", err)
		}
	}

	// The two per-deployment channels come from the environment unless the
	// routing file already set them.
	if v := os.Getenv("SLACK_CHANNEL_ID"); v != "" {
		cfg.Routing.DefaultChannel = v
	}
	if v := os.Getenv("SLACK_RESOLVED_CHANNEL_ID"); v != "" {
		cfg.Routing.ResolvedChannel = v
	}
	if cfg.Routing.DefaultChannel == "" {
		return Config{}, fmt.Errorf("SLACK_CHANNEL_ID is required")
	}
	if cfg.Routing.ResolvedChannel == "" {
		return Config{}, fmt.Errorf("SLACK_RESOLVED_CHANNEL_ID is required")
	}

	if cfg.Routing.JitterMinMinutes > cfg.Routing.JitterMaxMinutes {
		return Config{}, fmt.Errorf("jitter_min_minutes (%d) > jitter_max_minutes (%d)",
			cfg.Routing.JitterMinMinutes, cfg.Routing.JitterMaxMinutes)
	}

	return cfg, nil
}

func loadRouting(path string, into *Routing) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(b, into)
}

func getenv(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}
