package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server      Server      `yaml:"server"`
	Database    Database    `yaml:"database"`
	Scheduler   Scheduler   `yaml:"scheduler"`
	Remediation Remediation `yaml:"remediation"`
	Reports     Reports     `yaml:"reports"`
	AI          AI          `yaml:"ai"`
	Auth        Auth        `yaml:"auth"`
	RateLimit   RateLimit   `yaml:"rateLimit"`
	Log         Log         `yaml:"log"`
}

type Server struct {
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowedOrigins"`
}

// Database driver is one of mysql, postgres or memory.
type Database struct {
	Driver      string `yaml:"driver"`
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	User        string `yaml:"user"`
	Password    string `yaml:"password"`
	Name        string `yaml:"name"`
	SSLMode     string `yaml:"sslMode"`
	AutoMigrate bool   `yaml:"autoMigrate"`
}

type Job struct {
	Enabled    *bool `yaml:"enabled"`
	IntervalMS int64 `yaml:"intervalMs"`
}

type Scheduler struct {
	Detection   Job `yaml:"detection"`
	Remediation struct {
		Job               `yaml:",inline"`
		AutoRemediateHigh *bool `yaml:"autoRemediateHigh"`
	} `yaml:"remediation"`
	Health Job `yaml:"health"`
}

// Remediation provider is "simulated" or "aws". DelayMS is a pointer so an
// explicit 0 disables the simulated wait.
type Remediation struct {
	Provider string `yaml:"provider"`
	DelayMS  *int64 `yaml:"delayMs"`
	AWS      struct {
		Profile string `yaml:"profile"`
		Region  string `yaml:"region"`
	} `yaml:"aws"`
}

type Reports struct {
	Enabled    bool   `yaml:"enabled"`
	Endpoint   string `yaml:"endpoint"`
	AccessKey  string `yaml:"accessKey"`
	SecretKey  string `yaml:"secretKey"`
	BucketName string `yaml:"bucketName"`
	Region     string `yaml:"region"`
	UseSSL     bool   `yaml:"useSSL"`
}

type AI struct {
	Enabled bool   `yaml:"enabled"`
	APIKey  string `yaml:"apiKey"`
	Model   string `yaml:"model"`
}

// Auth maps a client name to its API key. Empty disables auth.
type Auth struct {
	APIKeys map[string]string `yaml:"apiKeys"`
}

// RateLimit applies to mutating endpoints. RPS <= 0 disables it.
type RateLimit struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load baca file config.yaml, apply defaults and validate.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a config with every default applied and an in-memory store.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if len(c.Server.AllowedOrigins) == 0 {
		c.Server.AllowedOrigins = []string{"*"}
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "memory"
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	defaultJob(&c.Scheduler.Detection, 300000)
	defaultJob(&c.Scheduler.Remediation.Job, 120000)
	defaultJob(&c.Scheduler.Health, 60000)
	if c.Scheduler.Remediation.AutoRemediateHigh == nil {
		c.Scheduler.Remediation.AutoRemediateHigh = boolPtr(true)
	}
	if c.Remediation.Provider == "" {
		c.Remediation.Provider = "simulated"
	}
	if c.Remediation.DelayMS == nil {
		c.Remediation.DelayMS = int64Ptr(500)
	}
	if c.AI.Model == "" {
		c.AI.Model = "gpt-4o-mini"
	}
	if c.RateLimit.Burst == 0 {
		c.RateLimit.Burst = 10
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
}

func defaultJob(j *Job, intervalMS int64) {
	if j.Enabled == nil {
		j.Enabled = boolPtr(true)
	}
	if j.IntervalMS == 0 {
		j.IntervalMS = intervalMS
	}
}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	var result *multierror.Error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		result = multierror.Append(result, fmt.Errorf("server.port out of range: %d", c.Server.Port))
	}
	switch c.Database.Driver {
	case "memory":
	case "mysql", "postgres":
		if c.Database.Host == "" || c.Database.Name == "" {
			result = multierror.Append(result, fmt.Errorf("database.host and database.name are required for %s", c.Database.Driver))
		}
	default:
		result = multierror.Append(result, fmt.Errorf("unknown database.driver: %q", c.Database.Driver))
	}
	for name, j := range map[string]Job{
		"detection":   c.Scheduler.Detection,
		"remediation": c.Scheduler.Remediation.Job,
		"health":      c.Scheduler.Health,
	} {
		if j.IntervalMS <= 0 {
			result = multierror.Append(result, fmt.Errorf("scheduler.%s.intervalMs must be positive", name))
		}
	}
	switch c.Remediation.Provider {
	case "simulated", "aws":
	default:
		result = multierror.Append(result, fmt.Errorf("unknown remediation.provider: %q", c.Remediation.Provider))
	}
	if c.Remediation.DelayMS != nil && *c.Remediation.DelayMS < 0 {
		result = multierror.Append(result, errors.New("remediation.delayMs must not be negative"))
	}
	if c.Reports.Enabled && (c.Reports.Endpoint == "" || c.Reports.BucketName == "") {
		result = multierror.Append(result, errors.New("reports.endpoint and reports.bucketName are required when reports are enabled"))
	}
	if c.AI.Enabled && c.AI.APIKey == "" {
		result = multierror.Append(result, errors.New("ai.apiKey is required when ai is enabled"))
	}
	return result.ErrorOrNil()
}

// Helper untuk build DSN MySQL
func (c *Config) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4&loc=Local",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
	)
}

func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

func (j Job) Interval() time.Duration { return time.Duration(j.IntervalMS) * time.Millisecond }

func (j Job) IsEnabled() bool { return j.Enabled != nil && *j.Enabled }

func (s Scheduler) AutoRemediateHigh() bool {
	return s.Remediation.AutoRemediateHigh != nil && *s.Remediation.AutoRemediateHigh
}

func (r Remediation) Delay() time.Duration {
	if r.DelayMS == nil {
		return 0
	}
	return time.Duration(*r.DelayMS) * time.Millisecond
}

func boolPtr(b bool) *bool    { return &b }
func int64Ptr(n int64) *int64 { return &n }
