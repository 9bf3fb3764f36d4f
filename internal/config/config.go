package config

import (
	"encoding/json"
	"os"
	"time"
)

// Duration is a custom type that can unmarshal from JSON strings
type Duration struct {
	time.Duration
}

// UnmarshalJSON implements the json.Unmarshaler interface
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	duration, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	d.Duration = duration
	return nil
}

// Environment values for the APP_ENV flag
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Server struct {
		Host            string   `json:"host" default:"0.0.0.0"`
		Port            string   `json:"port" default:"8080"`
		ReadTimeout     Duration `json:"read_timeout" default:"10s"`
		WriteTimeout    Duration `json:"write_timeout" default:"30s"`
		ShutdownTimeout Duration `json:"shutdown_timeout" default:"30s"`
	} `json:"server"`

	Echo struct {
		ServiceURL     string   `json:"service_url" default:"http://vulnerable-echo-service:8085"`
		RequestTimeout Duration `json:"request_timeout" default:"10s"`
	} `json:"echo"`

	Stress struct {
		ExecutablePath  string   `json:"executable_path" default:"stress-ng"`
		MaxDurationSec  int      `json:"max_duration_sec" default:"3600"`
		StopGracePeriod Duration `json:"stop_grace_period" default:"5s"`
	} `json:"stress"`

	Sampler struct {
		Interval       Duration `json:"interval" default:"5s"`
		ErrorBackoff   Duration `json:"error_backoff" default:"10s"`
		CommandTimeout Duration `json:"command_timeout" default:"10s"`
	} `json:"sampler"`

	Environment string `json:"environment" default:"development"`
}

// Defaults returns a Config with every field set to its default value.
func Defaults() *Config {
	config := &Config{}
	config.Server.Host = "0.0.0.0"
	config.Server.Port = "8080"
	config.Server.ReadTimeout = Duration{10 * time.Second}
	config.Server.WriteTimeout = Duration{30 * time.Second}
	config.Server.ShutdownTimeout = Duration{30 * time.Second}
	config.Echo.ServiceURL = "http://vulnerable-echo-service:8085"
	config.Echo.RequestTimeout = Duration{10 * time.Second}
	config.Stress.ExecutablePath = "stress-ng"
	config.Stress.MaxDurationSec = 3600
	config.Stress.StopGracePeriod = Duration{5 * time.Second}
	config.Sampler.Interval = Duration{5 * time.Second}
	config.Sampler.ErrorBackoff = Duration{10 * time.Second}
	config.Sampler.CommandTimeout = Duration{10 * time.Second}
	config.Environment = EnvDevelopment
	return config
}

// Load builds the configuration in three layers: defaults, an optional JSON
// file, and environment variable overrides for the deployment-facing values.
func Load(path string) (*Config, error) {
	config := Defaults()

	if path != "" {
		if err := loadFromJSON(config, path); err != nil && !os.IsNotExist(err) {
			return nil, err
		}
	}

	applyEnvOverrides(config)
	return config, nil
}

// loadFromJSON loads configuration from a JSON file
func loadFromJSON(config *Config, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	decoder := json.NewDecoder(file)
	decoder.DisallowUnknownFields() // Fail on unknown fields

	return decoder.Decode(config)
}

func applyEnvOverrides(config *Config) {
	if host := os.Getenv("HOST"); host != "" {
		config.Server.Host = host
	}
	if port := os.Getenv("PORT"); port != "" {
		config.Server.Port = port
	}
	if url := os.Getenv("ECHO_SERVICE_URL"); url != "" {
		config.Echo.ServiceURL = url
	}
	if env := os.Getenv("APP_ENV"); env != "" {
		config.Environment = env
	}
	if path := os.Getenv("STRESS_NG_PATH"); path != "" {
		config.Stress.ExecutablePath = path
	}
}

// Addr returns the host:port the HTTP server listens on.
func (c *Config) Addr() string {
	return c.Server.Host + ":" + c.Server.Port
}
