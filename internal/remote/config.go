package remote

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// MaxBatchSize is the most documents the remote store accepts in one batch.
const MaxBatchSize = 400

// Config is the saved remote-service configuration blob.
type Config struct {
	URL       string `json:"url" validate:"required,url"`
	BatchSize int    `json:"batchSize,omitempty" validate:"omitempty,min=1,max=400"`
}

// EffectiveBatchSize returns BatchSize, defaulting to MaxBatchSize.
func (c Config) EffectiveBatchSize() int {
	if c.BatchSize <= 0 || c.BatchSize > MaxBatchSize {
		return MaxBatchSize
	}
	return c.BatchSize
}

// ParseError describes why a configuration blob was rejected.
type ParseError struct {
	Field  string
	Reason string
}

func (e *ParseError) Error() string {
	if e.Field == "" {
		return "remote config: " + e.Reason
	}
	return fmt.Sprintf("remote config: %s: %s", e.Field, e.Reason)
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ParseConfig decodes blob strictly: unknown fields, trailing data and invalid
// values are all rejected with a *ParseError. Nothing is guessed.
func ParseConfig(blob []byte) (Config, error) {
	var cfg Config
	if len(bytes.TrimSpace(blob)) == 0 {
		return Config{}, &ParseError{Reason: "empty configuration"}
	}

	dec := json.NewDecoder(bytes.NewReader(blob))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return Config{}, &ParseError{Field: typeErr.Field, Reason: "expected " + typeErr.Type.String()}
		}
		return Config{}, &ParseError{Reason: err.Error()}
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return Config{}, &ParseError{Reason: "unexpected data after configuration object"}
	}

	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return Config{}, &ParseError{Field: verrs[0].Field(), Reason: "failed " + verrs[0].Tag()}
		}
		return Config{}, &ParseError{Reason: err.Error()}
	}

	u, err := url.Parse(cfg.URL)
	if err != nil || (u.Scheme != "postgres" && u.Scheme != "postgresql") {
		return Config{}, &ParseError{Field: "url", Reason: "must be a postgres:// URL"}
	}
	return cfg, nil
}
