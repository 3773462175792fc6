package config

import (
	"fmt"
	"os"
	"time"

	"classroom-service/internal/app"
	"classroom-service/internal/domain"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Log struct {
		Level string `yaml:"level" validate:"omitempty,oneof=trace debug info warn warning error fatal panic"`
		JSON  bool   `yaml:"json"`
	} `yaml:"log"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db" validate:"gte=0"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Storage struct {
		Path string `yaml:"path"`
	} `yaml:"storage"`
	Admin struct {
		PassphraseHash string `yaml:"passphraseHash"`
		Passphrase     string `yaml:"passphrase"`
		TokenSecret    string `yaml:"tokenSecret"`
		TokenTTL       string `yaml:"tokenTTL"`
	} `yaml:"admin"`
	Classroom struct {
		Grades           []string `yaml:"grades" validate:"omitempty,dive,required"`
		ExcludedWeekdays []string `yaml:"excludedWeekdays"`
		RosterTTL        string   `yaml:"rosterTTL"`
	} `yaml:"classroom"`
	Scoring struct {
		MaxScore       int    `yaml:"maxScore" validate:"gte=0"`
		Grace          string `yaml:"grace"`
		Window         string `yaml:"window"`
		BonusPercent   int    `yaml:"bonusPercent" validate:"gte=0,lte=100"`
		CorrectDelay   string `yaml:"correctDelay"`
		IncorrectDelay string `yaml:"incorrectDelay"`
	} `yaml:"scoring"`
	Remote struct {
		Timeout      string `yaml:"timeout"`
		PollSchedule string `yaml:"pollSchedule"`
	} `yaml:"remote"`
}

// Load reads YAML config from path.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks field constraints that YAML decoding cannot.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, err := c.SessionRules(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// SessionRules builds the calendar rules, falling back to the defaults per field.
func (c Config) SessionRules() (domain.SessionRules, error) {
	rules := domain.DefaultSessionRules()
	if len(c.Classroom.Grades) > 0 {
		rules.Grades = c.Classroom.Grades
	}
	if len(c.Classroom.ExcludedWeekdays) > 0 {
		days := make([]time.Weekday, 0, len(c.Classroom.ExcludedWeekdays))
		for _, name := range c.Classroom.ExcludedWeekdays {
			d, err := domain.ParseWeekday(name)
			if err != nil {
				return rules, err
			}
			days = append(days, d)
		}
		rules.ExcludedWeekdays = days
	}
	return rules, nil
}

// PickerConfig builds the scoring curve, falling back to the defaults per field.
func (c Config) PickerConfig() app.PickerConfig {
	pc := app.DefaultPickerConfig()
	if c.Scoring.MaxScore > 0 {
		pc.Scorer.MaxScore = c.Scoring.MaxScore
	}
	if c.Scoring.BonusPercent > 0 {
		pc.Scorer.BonusPercent = c.Scoring.BonusPercent
	}
	pc.Scorer.Grace = TTLDuration(c.Scoring.Grace, pc.Scorer.Grace)
	pc.Scorer.Window = TTLDuration(c.Scoring.Window, pc.Scorer.Window)
	pc.CorrectDelay = TTLDuration(c.Scoring.CorrectDelay, pc.CorrectDelay)
	pc.IncorrectDelay = TTLDuration(c.Scoring.IncorrectDelay, pc.IncorrectDelay)
	return pc
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
