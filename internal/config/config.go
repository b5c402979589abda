package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type ServerConfig struct {
	Port            int           `yaml:"port"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	PoolSize int    `yaml:"pool_size"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	LockTTL  time.Duration `yaml:"lock_ttl"`
}

type VisionConfig struct {
	GeminiKey    string        `yaml:"gemini_key"`
	GeminiURL    string        `yaml:"gemini_url"`
	GeminiModel  string        `yaml:"gemini_model"`
	OpenAIKey    string        `yaml:"openai_key"`
	OpenAIURL    string        `yaml:"openai_url"`
	OpenAIModel  string        `yaml:"openai_model"`
	Timeout      time.Duration `yaml:"timeout"`
	MaxImageSize int           `yaml:"max_image_size"` // bytes
}

type AdminConfig struct {
	JWTSecret  string        `yaml:"jwt_secret"`
	Password   string        `yaml:"password"`
	SessionTTL time.Duration `yaml:"session_ttl"`
}

type NotifyConfig struct {
	SMTP struct {
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		From     string `yaml:"from"`
		Username string `yaml:"username"`
		Password string `yaml:"password"`
	} `yaml:"smtp"`
	Telegram struct {
		Token       string `yaml:"token"`
		AdminChatID int64  `yaml:"admin_chat_id"`
	} `yaml:"telegram"`
}

// PolicyConfig carries the business thresholds of the decision pipeline as
// data. The tolerance and threshold values are product policy, adjustable per
// deployment.
type PolicyConfig struct {
	// Expected plan amounts in minor units for a single course.
	PlanAmounts map[string]int64 `yaml:"plan_amounts"`
	// Flat-rate yearly amount that buys all-access and fans out on
	// auto-approval without a separate confirmation.
	AllAccessYearlyMinor int64 `yaml:"all_access_yearly_minor"`
	// Plans that reconcile immediately on auto-approval instead of waiting
	// for the explicit confirm call.
	AutoConfirmPlans []string `yaml:"auto_confirm_plans"`

	AmountToleranceMinor  int64 `yaml:"amount_tolerance_minor"`
	UpgradeToleranceMinor int64 `yaml:"upgrade_tolerance_minor"`
	UpgradeAdjustMinor    int64 `yaml:"upgrade_adjust_minor"`
	UpgradeFloorMinor     int64 `yaml:"upgrade_floor_minor"`

	MinConfidence  int `yaml:"min_confidence"`
	AutoConfidence int `yaml:"auto_confidence"`

	EscalationThreshold int `yaml:"escalation_threshold"`

	// Canonical payee descriptor the recipient check matches against.
	PayeeNames []string `yaml:"payee_names"`
	PayeePhone string   `yaml:"payee_phone"`

	RateLimitPerPhone int           `yaml:"rate_limit_per_phone"`
	RateLimitWindow   time.Duration `yaml:"rate_limit_window"`

	ExpirySweepInterval time.Duration `yaml:"expiry_sweep_interval"`
}

type Config struct {
	Log      LogConfig      `yaml:"log"`
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Vision   VisionConfig   `yaml:"vision"`
	Admin    AdminConfig    `yaml:"admin"`
	Notify   NotifyConfig   `yaml:"notify"`
	Policy   PolicyConfig   `yaml:"policy"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.Runtime.Dev = dev
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Server.Port <= 0 {
		c.Server.Port = 8080
	}
	if c.Server.RequestTimeout <= 0 {
		c.Server.RequestTimeout = 30 * time.Second
	}
	if c.Server.ShutdownTimeout <= 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if c.Database.PoolSize <= 0 {
		c.Database.PoolSize = 10
	}
	if c.Redis.LockTTL <= 0 {
		c.Redis.LockTTL = 10 * time.Second
	}
	if c.Vision.Timeout <= 0 {
		c.Vision.Timeout = 20 * time.Second
	}
	if c.Vision.MaxImageSize <= 0 {
		c.Vision.MaxImageSize = 8 << 20
	}
	if c.Vision.GeminiModel == "" {
		c.Vision.GeminiModel = "gemini-2.0-flash"
	}
	if c.Vision.OpenAIModel == "" {
		c.Vision.OpenAIModel = "gpt-4o-mini"
	}
	if c.Admin.SessionTTL <= 0 {
		c.Admin.SessionTTL = 30 * time.Minute
	}
	p := &c.Policy
	if p.AmountToleranceMinor <= 0 {
		p.AmountToleranceMinor = 500 // ±$5
	}
	if p.UpgradeToleranceMinor <= 0 {
		p.UpgradeToleranceMinor = 1000 // ±$10
	}
	if p.UpgradeAdjustMinor <= 0 {
		p.UpgradeAdjustMinor = 200
	}
	if p.UpgradeFloorMinor <= 0 {
		p.UpgradeFloorMinor = 100
	}
	if p.MinConfidence <= 0 {
		p.MinConfidence = 85
	}
	if p.AutoConfidence <= 0 {
		p.AutoConfidence = 95
	}
	if p.EscalationThreshold <= 0 {
		p.EscalationThreshold = 4
	}
	if p.RateLimitPerPhone <= 0 {
		p.RateLimitPerPhone = 10
	}
	if p.RateLimitWindow <= 0 {
		p.RateLimitWindow = time.Minute
	}
	if p.ExpirySweepInterval <= 0 {
		p.ExpirySweepInterval = time.Hour
	}
	if len(p.AutoConfirmPlans) == 0 {
		p.AutoConfirmPlans = []string{"monthly"}
	}
}

// ExpectedAmount looks up the minor-unit price of a plan for a target.
// The all-access target is priced by the flat yearly rate.
func (p *PolicyConfig) ExpectedAmount(plan, targetID string) (int64, bool) {
	if targetID == "all-access" {
		if plan == "yearly" && p.AllAccessYearlyMinor > 0 {
			return p.AllAccessYearlyMinor, true
		}
		return 0, false
	}
	v, ok := p.PlanAmounts[plan]
	return v, ok
}

// AutoConfirm reports whether the plan skips the explicit confirm step after
// auto-approval.
func (p *PolicyConfig) AutoConfirm(plan string) bool {
	for _, ap := range p.AutoConfirmPlans {
		if ap == plan {
			return true
		}
	}
	return false
}
