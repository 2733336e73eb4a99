// Package config loads the tracker configuration from YAML and the
// environment, fills defaults and validates it.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go-hiring-tracker/internal/models"
	"go-hiring-tracker/internal/scraper/attrax"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const DefaultPath = "configs/config.yaml"

type Config struct {
	DataDir        string          `yaml:"data_dir"`
	Policy         string          `yaml:"policy"`
	CommitDegraded bool            `yaml:"commit_degraded"`
	RunBudget      time.Duration   `yaml:"run_budget"`
	Schedule       string          `yaml:"schedule"`
	Completeness   Completeness    `yaml:"completeness"`
	Browser        Browser         `yaml:"browser"`
	Store          Store           `yaml:"store"`
	Lock           Lock            `yaml:"lock"`
	Telegram       Telegram        `yaml:"telegram"`
	Log            Log             `yaml:"log"`
	Server         Server          `yaml:"server"`
	Export         Export          `yaml:"export"`
	Greenhouse     Greenhouse      `yaml:"greenhouse"`
	Portals        []models.Portal `yaml:"portals"`
	//breadcrumb entries containing any of these are employment types, not places
	BreadcrumbDenylist []string `yaml:"breadcrumb_denylist"`
	//region name -> location keywords
	Regions map[string][]string `yaml:"regions"`
}

type Completeness struct {
	Threshold       float64       `yaml:"threshold"`
	MaxAttempts     int           `yaml:"max_attempts"`
	Backoff         time.Duration `yaml:"backoff"`
	RequireLocation bool          `yaml:"require_location"`
}

type Browser struct {
	Headless      *bool         `yaml:"headless"`
	NavTimeout    time.Duration `yaml:"nav_timeout"`
	DetailTimeout time.Duration `yaml:"detail_timeout"`
	PageSettle    time.Duration `yaml:"page_settle"`
	MaxPages      int           `yaml:"max_pages"`
	ScreenshotDir string        `yaml:"screenshot_dir"`
	CookiesFile   string        `yaml:"cookies_file"`

	//empty entries fall back to the attrax defaults
	Selectors attrax.Selectors `yaml:"selectors"`
}

type Store struct {
	Driver      string `yaml:"driver"` // file | postgres
	Dir         string `yaml:"dir"`
	DatabaseURL string `yaml:"database_url" env:"DATABASE_URL"`
}

type Lock struct {
	Driver   string        `yaml:"driver"` // file | redis
	Dir      string        `yaml:"dir"`
	RedisURL string        `yaml:"redis_url" env:"REDIS_URL"`
	TTL      time.Duration `yaml:"ttl"`
}

type Telegram struct {
	Token  string `yaml:"token" env:"TELEGRAM_BOT_TOKEN"`
	ChatID int64  `yaml:"chat_id" env:"TELEGRAM_CHAT_ID"`
}

// Enabled is false when no bot credentials are configured.
func (t Telegram) Enabled() bool {
	return t.Token != "" && t.ChatID != 0
}

type Log struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

type Server struct {
	Port string `yaml:"port" env:"PORT"`
}

type Export struct {
	Path string `yaml:"path"`
}

type Greenhouse struct {
	Timeout time.Duration `yaml:"timeout"`
}

var defaultDenylist = []string{"permanent", "temporary", "contract", "full", "part", "fixed", "term"}

var defaultRegions = map[string][]string{
	"Asia": {
		"india", "gurgaon", "gurugram", "mumbai", "bangalore", "bengaluru", "delhi",
		"singapore", "hong kong", "tokyo", "japan", "shanghai", "beijing", "china",
		"seoul", "korea", "bangkok", "thailand", "jakarta", "indonesia", "perth",
		"sydney", "australia", "taipei", "kuala lumpur", "manila", "ho chi minh", "hanoi",
	},
}

// Load reads the YAML file at path (DefaultPath when empty), applies .env and
// environment overrides, fills defaults and validates the result.
// A missing YAML file is not an error; an invalid one is.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	if path == "" {
		path = os.Getenv("TRACKER_CONFIG")
	}
	if path == "" {
		path = DefaultPath
	}

	cfg := &Config{}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
		//run with defaults + env only
	default:
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if token := os.Getenv("TELEGRAM_BOT_TOKEN"); token != "" {
		c.Telegram.Token = token
	}
	if chatID := os.Getenv("TELEGRAM_CHAT_ID"); chatID != "" {
		id, err := strconv.ParseInt(chatID, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid TELEGRAM_CHAT_ID: %w", err)
		}
		c.Telegram.ChatID = id
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		c.Store.DatabaseURL = dbURL
	}
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		c.Lock.RedisURL = redisURL
	}
	if port := os.Getenv("PORT"); port != "" {
		c.Server.Port = port
	}
	return nil
}

func (c *Config) setDefaults() {
	if c.DataDir == "" {
		c.DataDir = "data"
	}
	if c.Policy == "" {
		c.Policy = string(models.PolicyReplace)
	}
	if c.RunBudget == 0 {
		c.RunBudget = 30 * time.Minute
	}
	if c.Schedule == "" {
		c.Schedule = "@every 6h"
	}

	if c.Completeness.Threshold == 0 {
		c.Completeness.Threshold = 0.95
	}
	if c.Completeness.MaxAttempts == 0 {
		c.Completeness.MaxAttempts = 6
	}
	if c.Completeness.Backoff == 0 {
		c.Completeness.Backoff = 2 * time.Second
	}

	if c.Browser.Headless == nil {
		headless := true
		c.Browser.Headless = &headless
	}
	if c.Browser.NavTimeout == 0 {
		c.Browser.NavTimeout = 40 * time.Second
	}
	if c.Browser.DetailTimeout == 0 {
		c.Browser.DetailTimeout = 15 * time.Second
	}
	if c.Browser.PageSettle == 0 {
		c.Browser.PageSettle = 1200 * time.Millisecond
	}
	if c.Browser.MaxPages == 0 {
		c.Browser.MaxPages = 200
	}
	c.Browser.Selectors = c.Browser.Selectors.WithDefaults()

	if c.Store.Driver == "" {
		c.Store.Driver = "file"
	}
	if c.Store.Dir == "" {
		c.Store.Dir = c.DataDir
	}
	if c.Lock.Driver == "" {
		c.Lock.Driver = "file"
	}
	if c.Lock.Dir == "" {
		c.Lock.Dir = c.DataDir
	}
	if c.Lock.TTL == 0 {
		c.Lock.TTL = c.RunBudget + time.Minute
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Export.Path == "" {
		c.Export.Path = filepath.Join(c.DataDir, "jobs.xlsx")
	}
	if c.Greenhouse.Timeout == 0 {
		c.Greenhouse.Timeout = 30 * time.Second
	}

	if len(c.BreadcrumbDenylist) == 0 {
		c.BreadcrumbDenylist = append([]string(nil), defaultDenylist...)
	}
	if len(c.Regions) == 0 {
		c.Regions = make(map[string][]string, len(defaultRegions))
		for name, keywords := range defaultRegions {
			c.Regions[name] = append([]string(nil), keywords...)
		}
	}
}

// Validate checks the invariants the tracker relies on.
func (c *Config) Validate() error {
	var errs []error

	if _, err := models.ParsePolicy(c.Policy); err != nil {
		errs = append(errs, err)
	}
	if c.Completeness.Threshold <= 0 || c.Completeness.Threshold > 1 {
		errs = append(errs, fmt.Errorf("completeness.threshold must be in (0, 1], got %v", c.Completeness.Threshold))
	}
	if c.Completeness.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("completeness.max_attempts must be >= 1, got %d", c.Completeness.MaxAttempts))
	}
	switch c.Store.Driver {
	case "file":
	case "postgres":
		if c.Store.DatabaseURL == "" {
			errs = append(errs, errors.New("store.database_url (DATABASE_URL) is required for the postgres store"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store.driver %q", c.Store.Driver))
	}
	switch c.Lock.Driver {
	case "file":
	case "redis":
		if c.Lock.RedisURL == "" {
			errs = append(errs, errors.New("lock.redis_url (REDIS_URL) is required for the redis lock"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown lock.driver %q", c.Lock.Driver))
	}

	if len(c.Portals) == 0 {
		errs = append(errs, errors.New("at least one portal is required"))
	}
	//keys are compared case-folded; snapshot files may live on a case-insensitive filesystem
	seen := make(map[models.SnapshotKey]models.SnapshotKey)
	for i, p := range c.Portals {
		if p.Name == "" || p.Category == "" {
			errs = append(errs, fmt.Errorf("portals[%d]: name and category are required", i))
			continue
		}
		folded := models.SnapshotKey{Portal: strings.ToLower(p.Name), Category: strings.ToLower(p.Category)}
		if prev, ok := seen[folded]; ok {
			if prev == p.Key() {
				errs = append(errs, fmt.Errorf("portals[%d]: duplicate portal %s", i, p.Key()))
			} else {
				errs = append(errs, fmt.Errorf("portals[%d]: %s collides with %s", i, p.Key(), prev))
			}
		}
		seen[folded] = p.Key()
		if p.Kind != "attrax" && p.Kind != "greenhouse" {
			errs = append(errs, fmt.Errorf("portals[%d]: unknown kind %q", i, p.Kind))
		}
		u, err := url.Parse(p.URL)
		if err != nil || !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") {
			errs = append(errs, fmt.Errorf("portals[%d]: url %q must be an absolute http(s) URL", i, p.URL))
		}
	}

	return errors.Join(errs...)
}

// CommitPolicy returns the validated commit policy.
func (c *Config) CommitPolicy() models.Policy {
	p, _ := models.ParsePolicy(c.Policy)
	return p
}

// PortalsNamed returns the portals with the given name (all categories), or
// every portal when name is empty.
func (c *Config) PortalsNamed(name string) []models.Portal {
	if name == "" {
		return c.Portals
	}
	var out []models.Portal
	for _, p := range c.Portals {
		if strings.EqualFold(p.Name, name) {
			out = append(out, p)
		}
	}
	return out
}
