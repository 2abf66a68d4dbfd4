package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Store backends
const (
	StoreFeishu   = "feishu"
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Score scopes for the investment-stage weighted ranking
const (
	ScoreScopeQualified = "qualified"
	ScoreScopeField     = "field"
)

// Config holds all configuration for the application
// ⭐ SSOT: every environment variable is read here and nowhere else
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// StoreBackend selects the record store implementation
	StoreBackend string

	// Database (postgres record store)
	Database DatabaseConfig

	// Redis
	Redis RedisConfig

	// External APIs
	Feishu FeishuConfig
	Baidu  BaiduConfig

	// Competition rules
	Hackathon HackathonConfig

	// Cache TTLs
	Cache CacheConfig

	// Logging
	LogLevel  string
	LogFormat string
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL string

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
	Prefix   string
}

// FeishuConfig holds Feishu (Lark) bitable configuration
type FeishuConfig struct {
	AppID     string
	AppSecret string
	BaseURL   string
	AppToken  string
	Tables    FeishuTables
}

// FeishuTables maps each record collection to its bitable table id
type FeishuTables struct {
	Projects    string
	Investors   string
	Investments string
	Config      string
}

// BaiduConfig holds Baidu Tongji analytics configuration
type BaiduConfig struct {
	TokenURL     string
	APIURL       string
	SyncInterval time.Duration
	LookbackDays int
	Accounts     map[string]BaiduAccount
}

// BaiduAccount holds OAuth credentials for one Baidu Tongji account
type BaiduAccount struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	AccessToken  string `yaml:"access_token"`
	RefreshToken string `yaml:"refresh_token"`
}

// HackathonConfig holds the competition rules
type HackathonConfig struct {
	QualifiedCount   int
	VisitorWeight    float64
	InvestmentWeight float64
	ScoreScope       string
	Timezone         string
	Stages           map[string]StageWindow
}

// StageWindow is a human-authored "yyyy-MM-dd HH:mm:ss" window
type StageWindow struct {
	Start string `yaml:"start"`
	End   string `yaml:"end"`
}

// CacheConfig holds read-through cache TTLs
type CacheConfig struct {
	ProjectsTTL time.Duration
	ProjectTTL  time.Duration
	InvestorTTL time.Duration
}

// fileConfig mirrors the optional hackathon.yaml file
type fileConfig struct {
	Hackathon struct {
		QualifiedCount   *int                   `yaml:"qualified_count"`
		VisitorWeight    *float64               `yaml:"visitor_weight"`
		InvestmentWeight *float64               `yaml:"investment_weight"`
		ScoreScope       string                 `yaml:"score_scope"`
		Timezone         string                 `yaml:"timezone"`
		Stages           map[string]StageWindow `yaml:"stages"`
	} `yaml:"hackathon"`
	Baidu struct {
		Accounts map[string]BaiduAccount `yaml:"accounts"`
	} `yaml:"baidu"`
}

// Load reads configuration from the optional YAML file and environment variables.
// Environment variables win over the file.
func Load() (*Config, error) {
	loadEnvFile()

	cfg := defaults()

	path := getEnv("HACKATHON_CONFIG", "hackathon.yaml")
	if err := cfg.mergeFile(path); err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}

	cfg.applyEnv()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Port:         "8080",
		Env:          "development",
		StoreBackend: StoreFeishu,
		Database: DatabaseConfig{
			MaxConns:        10,
			MinConns:        2,
			MaxConnLifetime: time.Hour,
			MaxConnIdleTime: 30 * time.Minute,
		},
		Redis: RedisConfig{
			Host:   "localhost",
			Port:   "6379",
			Prefix: "hackathon",
		},
		Feishu: FeishuConfig{
			BaseURL: "https://open.feishu.cn/open-apis",
		},
		Baidu: BaiduConfig{
			TokenURL:     "https://openapi.baidu.com/oauth/2.0/token",
			APIURL:       "https://openapi.baidu.com/rest/2.0/tongji/report/getData",
			SyncInterval: 10 * time.Minute,
			LookbackDays: 30,
			Accounts:     map[string]BaiduAccount{},
		},
		Hackathon: HackathonConfig{
			QualifiedCount:   15,
			VisitorWeight:    0.2,
			InvestmentWeight: 0.8,
			ScoreScope:       ScoreScopeQualified,
			Timezone:         "Asia/Shanghai",
			Stages:           map[string]StageWindow{},
		},
		Cache: CacheConfig{
			ProjectsTTL: 5 * time.Minute,
			ProjectTTL:  time.Minute,
			InvestorTTL: 5 * time.Minute,
		},
		LogLevel:  "info",
		LogFormat: "json",
	}
}

// mergeFile overlays the YAML file onto cfg. A missing file is not an error.
func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse yaml: %w", err)
	}

	h := fc.Hackathon
	if h.QualifiedCount != nil {
		c.Hackathon.QualifiedCount = *h.QualifiedCount
	}
	if h.VisitorWeight != nil {
		c.Hackathon.VisitorWeight = *h.VisitorWeight
	}
	if h.InvestmentWeight != nil {
		c.Hackathon.InvestmentWeight = *h.InvestmentWeight
	}
	if h.ScoreScope != "" {
		c.Hackathon.ScoreScope = h.ScoreScope
	}
	if h.Timezone != "" {
		c.Hackathon.Timezone = h.Timezone
	}
	for code, w := range h.Stages {
		c.Hackathon.Stages[code] = w
	}
	for name, acc := range fc.Baidu.Accounts {
		c.Baidu.Accounts[name] = acc
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Port = getEnv("PORT", c.Port)
	c.Env = getEnv("ENV", c.Env)
	c.StoreBackend = getEnv("STORE_BACKEND", c.StoreBackend)

	c.Database.URL = getEnv("DATABASE_URL", c.Database.URL)
	c.Database.MaxConns = getEnvAsInt("DB_MAX_CONNS", c.Database.MaxConns)
	c.Database.MinConns = getEnvAsInt("DB_MIN_CONNS", c.Database.MinConns)
	c.Database.MaxConnLifetime = getEnvAsDuration("DB_MAX_CONN_LIFETIME", c.Database.MaxConnLifetime)
	c.Database.MaxConnIdleTime = getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", c.Database.MaxConnIdleTime)

	c.Redis.Host = getEnv("REDIS_HOST", c.Redis.Host)
	c.Redis.Port = getEnv("REDIS_PORT", c.Redis.Port)
	c.Redis.Password = getEnv("REDIS_PASSWORD", c.Redis.Password)
	c.Redis.DB = getEnvAsInt("REDIS_DB", c.Redis.DB)
	c.Redis.Enabled = getEnvAsBool("REDIS_ENABLED", c.Redis.Enabled)
	c.Redis.Prefix = getEnv("REDIS_PREFIX", c.Redis.Prefix)

	c.Feishu.AppID = getEnv("FEISHU_APP_ID", c.Feishu.AppID)
	c.Feishu.AppSecret = getEnv("FEISHU_APP_SECRET", c.Feishu.AppSecret)
	c.Feishu.BaseURL = getEnv("FEISHU_BASE_URL", c.Feishu.BaseURL)
	c.Feishu.AppToken = getEnv("FEISHU_APP_TOKEN", c.Feishu.AppToken)
	c.Feishu.Tables.Projects = getEnv("FEISHU_TABLE_PROJECTS", c.Feishu.Tables.Projects)
	c.Feishu.Tables.Investors = getEnv("FEISHU_TABLE_INVESTORS", c.Feishu.Tables.Investors)
	c.Feishu.Tables.Investments = getEnv("FEISHU_TABLE_INVESTMENTS", c.Feishu.Tables.Investments)
	c.Feishu.Tables.Config = getEnv("FEISHU_TABLE_CONFIG", c.Feishu.Tables.Config)

	c.Baidu.TokenURL = getEnv("BAIDU_TOKEN_URL", c.Baidu.TokenURL)
	c.Baidu.APIURL = getEnv("BAIDU_API_URL", c.Baidu.APIURL)
	c.Baidu.SyncInterval = getEnvAsDuration("BAIDU_SYNC_INTERVAL", c.Baidu.SyncInterval)
	c.Baidu.LookbackDays = getEnvAsInt("BAIDU_LOOKBACK_DAYS", c.Baidu.LookbackDays)

	c.Hackathon.QualifiedCount = getEnvAsInt("HACKATHON_QUALIFIED_COUNT", c.Hackathon.QualifiedCount)
	c.Hackathon.VisitorWeight = getEnvAsFloat("HACKATHON_VISITOR_WEIGHT", c.Hackathon.VisitorWeight)
	c.Hackathon.InvestmentWeight = getEnvAsFloat("HACKATHON_INVESTMENT_WEIGHT", c.Hackathon.InvestmentWeight)
	c.Hackathon.ScoreScope = getEnv("HACKATHON_SCORE_SCOPE", c.Hackathon.ScoreScope)
	c.Hackathon.Timezone = getEnv("HACKATHON_TIMEZONE", c.Hackathon.Timezone)
	for _, code := range []string{"selection", "lock", "investment"} {
		w := c.Hackathon.Stages[code]
		w.Start = getEnv("STAGE_"+strings.ToUpper(code)+"_START", w.Start)
		w.End = getEnv("STAGE_"+strings.ToUpper(code)+"_END", w.End)
		if w.Start != "" || w.End != "" {
			c.Hackathon.Stages[code] = w
		}
	}

	c.Cache.ProjectsTTL = getEnvAsDuration("CACHE_PROJECTS_TTL", c.Cache.ProjectsTTL)
	c.Cache.ProjectTTL = getEnvAsDuration("CACHE_PROJECT_TTL", c.Cache.ProjectTTL)
	c.Cache.InvestorTTL = getEnvAsDuration("CACHE_INVESTOR_TTL", c.Cache.InvestorTTL)

	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.LogFormat = getEnv("LOG_FORMAT", c.LogFormat)
}

// validate checks if required configuration values are set
func (c *Config) validate() error {
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	switch c.StoreBackend {
	case StoreFeishu:
		if c.Feishu.AppID == "" || c.Feishu.AppSecret == "" || c.Feishu.AppToken == "" {
			return fmt.Errorf("FEISHU_APP_ID, FEISHU_APP_SECRET and FEISHU_APP_TOKEN are required for the feishu store")
		}
		t := c.Feishu.Tables
		if t.Projects == "" || t.Investors == "" || t.Investments == "" || t.Config == "" {
			return fmt.Errorf("all FEISHU_TABLE_* ids are required for the feishu store")
		}
	case StorePostgres:
		if c.Database.URL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres store")
		}
	case StoreMemory:
	default:
		return fmt.Errorf("STORE_BACKEND must be one of: feishu, postgres, memory")
	}

	if c.Hackathon.QualifiedCount <= 0 {
		return fmt.Errorf("HACKATHON_QUALIFIED_COUNT must be positive")
	}
	sum := c.Hackathon.VisitorWeight + c.Hackathon.InvestmentWeight
	if c.Hackathon.VisitorWeight < 0 || c.Hackathon.InvestmentWeight < 0 || math.Abs(sum-1) > 0.01 {
		return fmt.Errorf("visitor and investment weights must be non-negative and sum to 1, got %.3f", sum)
	}
	if c.Hackathon.ScoreScope != ScoreScopeQualified && c.Hackathon.ScoreScope != ScoreScopeField {
		return fmt.Errorf("HACKATHON_SCORE_SCOPE must be one of: qualified, field")
	}
	if _, err := time.LoadLocation(c.Hackathon.Timezone); err != nil {
		return fmt.Errorf("invalid HACKATHON_TIMEZONE %q: %w", c.Hackathon.Timezone, err)
	}

	return nil
}

// Location returns the time zone stage windows are written in
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Hackathon.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	paths := []string{
		".env",
		"backend/.env",
	}

	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}

	return duration
}
