package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	APIURL          string        `yaml:"api_url"`
	ScanTimeout     time.Duration `yaml:"scan_timeout"`
	CatalogTimeout  time.Duration `yaml:"catalog_timeout"`
	SurveyDelay     time.Duration `yaml:"survey_delay"`
	SurveyAck       time.Duration `yaml:"survey_ack_duration"`
	ImageStrategy   string        `yaml:"image_strategy"`
	Locale          string        `yaml:"locale"`
	DefaultLanguage string        `yaml:"default_language"`
	DefaultCurrency string        `yaml:"default_currency"`
	ListenAddr      string        `yaml:"listen_addr"`
	DBPath          string        `yaml:"db_path"`
	LogLevel        string        `yaml:"log_level"`
	LogFile         string        `yaml:"log_file"`
	LogFormat       string        `yaml:"log_format"`
}

// Load reads the configuration from the environment. Unparseable durations
// fall back to their defaults.
func Load() *Config {
	return &Config{
		APIURL:          getEnv("API_URL", "http://localhost:8080"),
		ScanTimeout:     getDuration("SCAN_TIMEOUT", 150*time.Second),
		CatalogTimeout:  getDuration("CATALOG_TIMEOUT", 10*time.Second),
		SurveyDelay:     getDuration("SURVEY_DELAY", 5*time.Second),
		SurveyAck:       getDuration("SURVEY_ACK_DURATION", 2*time.Second),
		ImageStrategy:   getEnv("IMAGE_STRATEGY", "resize"),
		Locale:          getEnv("LOCALE", "ko"),
		DefaultLanguage: getEnv("DEFAULT_LANGUAGE", "Korean"),
		DefaultCurrency: getEnv("DEFAULT_CURRENCY", "South Korean won"),
		ListenAddr:      getEnv("LISTEN_ADDR", "127.0.0.1:8090"),
		DBPath:          getEnv("DB_PATH", "foodiepass.db"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		LogFile:         getEnv("LOG_FILE", ""),
		LogFormat:       getEnv("LOG_FORMAT", "json"),
	}
}

// LoadFile overlays the YAML file at path on top of the environment. Keys
// missing from the file keep their environment or default value.
func LoadFile(path string) (*Config, error) {
	cfg := Load()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error

	u, err := url.Parse(c.APIURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("api_url must be an absolute http(s) URL, got %q", c.APIURL))
	}
	if c.ScanTimeout <= 0 {
		errs = append(errs, errors.New("scan_timeout must be positive"))
	}
	if c.CatalogTimeout <= 0 {
		errs = append(errs, errors.New("catalog_timeout must be positive"))
	}
	if c.SurveyDelay < 0 || c.SurveyAck < 0 {
		errs = append(errs, errors.New("survey durations must not be negative"))
	}
	switch c.ImageStrategy {
	case "resize", "passthrough":
	default:
		errs = append(errs, fmt.Errorf("image_strategy must be resize or passthrough, got %q", c.ImageStrategy))
	}
	switch c.LogFormat {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("log_format must be json or text, got %q", c.LogFormat))
	}

	return errors.Join(errs...)
}

func getEnv(key, defaultVal string) string {
	if val, exists := os.LookupEnv(key); exists {
		return val
	}
	return defaultVal
}

func getDuration(key string, defaultVal time.Duration) time.Duration {
	val, exists := os.LookupEnv(key)
	if !exists {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return defaultVal
	}
	return d
}
