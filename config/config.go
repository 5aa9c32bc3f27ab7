// Package config loads environment configuration for the three entry
// points. A .env file in the working directory is honored when present.
package config

import (
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

type Config struct {
	Port      int
	PublicURL string

	DeepgramAPIKey string
	OpenAIAPIKey   string

	TwilioAccountSid string
	TwilioAuthToken  string
	TwilioFromNumber string
	TargetNumber     string

	TranscriptsDir string
}

// Load reads the environment, layering a .env file underneath real
// environment variables. Validation happens per entry point since the
// server, the dialer, and the analyzer need different subsets.
func Load() (*Config, error) {
	// Real env vars win over .env entries; a missing file is fine.
	_ = godotenv.Load()

	cfg := &Config{
		Port:             8000,
		PublicURL:        strings.TrimRight(os.Getenv("PUBLIC_URL"), "/"),
		DeepgramAPIKey:   os.Getenv("DEEPGRAM_API_KEY"),
		OpenAIAPIKey:     os.Getenv("OPENAI_API_KEY"),
		TwilioAccountSid: os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioAuthToken:  os.Getenv("TWILIO_AUTH_TOKEN"),
		TwilioFromNumber: os.Getenv("TWILIO_PHONE_NUMBER"),
		TargetNumber:     os.Getenv("TARGET_PHONE_NUMBER"),
		TranscriptsDir:   os.Getenv("TRANSCRIPTS_DIR"),
	}
	if cfg.TranscriptsDir == "" {
		cfg.TranscriptsDir = "transcripts"
	}
	if raw := os.Getenv("PORT"); raw != "" {
		port, err := strconv.Atoi(raw)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid PORT %q", raw)
		}
		cfg.Port = port
	}
	return cfg, nil
}

// ValidateServer checks the variables the call server needs.
func (c *Config) ValidateServer() error {
	return requireAll(map[string]string{
		"PUBLIC_URL":       c.PublicURL,
		"DEEPGRAM_API_KEY": c.DeepgramAPIKey,
		"OPENAI_API_KEY":   c.OpenAIAPIKey,
	})
}

// ValidateRunner checks the variables the outbound dialer needs.
func (c *Config) ValidateRunner() error {
	return requireAll(map[string]string{
		"PUBLIC_URL":          c.PublicURL,
		"TWILIO_ACCOUNT_SID":  c.TwilioAccountSid,
		"TWILIO_AUTH_TOKEN":   c.TwilioAuthToken,
		"TWILIO_PHONE_NUMBER": c.TwilioFromNumber,
		"TARGET_PHONE_NUMBER": c.TargetNumber,
	})
}

// ValidateAnalyzer checks the variables the transcript analyzer needs.
func (c *Config) ValidateAnalyzer() error {
	return requireAll(map[string]string{
		"OPENAI_API_KEY": c.OpenAIAPIKey,
	})
}

func requireAll(vars map[string]string) error {
	var missing []string
	for name, value := range vars {
		if value == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	sort.Strings(missing)
	return errors.Errorf("missing environment variables: %s", strings.Join(missing, ", "))
}
