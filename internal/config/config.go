// Package config loads Seller/Marketplace configuration from a YAML file
// (SPEC_FULL.md §4.10) with environment variable overrides, mirroring the
// teacher's env-var-first startup (cmd/api/main.go reads DATABASE_URL, PORT,
// etc. directly from os.Getenv) generalized into a typed struct decoded with
// gopkg.in/yaml.v3 so the larger configuration surface here (rate limits,
// pricing, registration) doesn't turn into a wall of individual env reads.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/xy-market/seller-node/internal/ratelimit"
)

// ServiceConfig covers host/port/logging for either binary.
type ServiceConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	LogLevel string `yaml:"log_level"`
}

// TaskConfig controls the execution engine's defaults.
type TaskConfig struct {
	DefaultDeadlineSeconds int `yaml:"default_deadline_seconds"`
	JanitorIntervalSeconds int `yaml:"janitor_interval_seconds"`
	MaxConcurrentTasks     int `yaml:"max_concurrent_tasks"`
}

// RateLimitConfig controls the rate-limit middleware. Limits is ordered
// (see ratelimit.Limits) because pattern precedence depends on
// configuration order, not lexical or alphabetical order.
type RateLimitConfig struct {
	Enabled       bool             `yaml:"enabled"`
	WindowSeconds int              `yaml:"window_seconds"`
	Limits        ratelimit.Limits `yaml:"limits"`
}

// PaymentConfig controls the x402 payment middleware.
type PaymentConfig struct {
	Mode               string `yaml:"mode"` // "on" or "off"
	PayeeWalletAddress string `yaml:"payee_wallet_address"`
	FacilitatorURL     string `yaml:"facilitator_url"`
	PricingTablePath   string `yaml:"pricing_table_path"`
	OperationSchemaDir string `yaml:"operation_schema_dir"`
	// BuyerWalletPrivateKey lets this Seller also act as a Buyer of other
	// priced services (spec.md §6, "Payment (buyer side)"). Never logged.
	BuyerWalletPrivateKey string `yaml:"buyer_wallet_private_key"`
}

// RegistrationConfig controls the Marketplace self-registration client.
type RegistrationConfig struct {
	Enabled             bool     `yaml:"enabled"`
	MarketplaceBaseURL  string   `yaml:"marketplace_base_url"`
	AgentName           string   `yaml:"agent_name"`
	Description         string   `yaml:"description"`
	Tags                []string `yaml:"tags"`
	SellerBaseURL       string   `yaml:"seller_base_url"`
	RetryAttempts       int      `yaml:"retry_attempts"`
	RetryDelaySeconds   int      `yaml:"retry_delay_seconds"`
}

// AuditConfig controls the optional non-authoritative Postgres mirror.
type AuditConfig struct {
	DatabaseURL string `yaml:"database_url"`
}

// SellerConfig is the root configuration for cmd/seller.
type SellerConfig struct {
	Service      ServiceConfig      `yaml:"service"`
	Task         TaskConfig         `yaml:"task"`
	RateLimit    RateLimitConfig    `yaml:"rate_limit"`
	Payment      PaymentConfig      `yaml:"payment"`
	Registration RegistrationConfig `yaml:"registration"`
	Audit        AuditConfig        `yaml:"audit"`
}

// MarketplaceConfig is the root configuration for cmd/marketplace.
type MarketplaceConfig struct {
	Service  ServiceConfig `yaml:"service"`
	DataPath string        `yaml:"data_path"`
}

// DefaultSellerConfig returns the documented defaults (spec.md §6) before
// any file or environment override is applied.
func DefaultSellerConfig() SellerConfig {
	return SellerConfig{
		Service: ServiceConfig{Host: "0.0.0.0", Port: 8080, LogLevel: "INFO"},
		Task: TaskConfig{
			DefaultDeadlineSeconds: 300,
			JanitorIntervalSeconds: 600,
			MaxConcurrentTasks:     256,
		},
		RateLimit: RateLimitConfig{Enabled: true, WindowSeconds: 60, Limits: ratelimit.Limits{}},
		Payment:   PaymentConfig{Mode: "off"},
		Registration: RegistrationConfig{
			Enabled:           false,
			RetryAttempts:     3,
			RetryDelaySeconds: 2,
		},
	}
}

// DefaultMarketplaceConfig returns the documented defaults for cmd/marketplace.
func DefaultMarketplaceConfig() MarketplaceConfig {
	return MarketplaceConfig{
		Service:  ServiceConfig{Host: "0.0.0.0", Port: 8081, LogLevel: "INFO"},
		DataPath: "agents.json",
	}
}

// LoadSeller reads path (if it exists) into a SellerConfig seeded with
// defaults, then applies environment variable overrides. A missing file is
// not an error: the binary can run entirely off environment variables and
// defaults, matching the teacher's tolerance for missing .env in
// cmd/api/main.go.
func LoadSeller(path string) (SellerConfig, error) {
	cfg := DefaultSellerConfig()
	if err := loadYAMLIfExists(path, &cfg); err != nil {
		return cfg, err
	}
	applySellerEnvOverrides(&cfg)
	return cfg, nil
}

// LoadMarketplace reads path (if it exists) into a MarketplaceConfig seeded
// with defaults, then applies environment variable overrides.
func LoadMarketplace(path string) (MarketplaceConfig, error) {
	cfg := DefaultMarketplaceConfig()
	if err := loadYAMLIfExists(path, &cfg); err != nil {
		return cfg, err
	}
	applyMarketplaceEnvOverrides(&cfg)
	return cfg, nil
}

func loadYAMLIfExists(path string, out any) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read config %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse config %q: %w", path, err)
	}
	return nil
}

// applySellerEnvOverrides mirrors cmd/api/main.go's direct os.Getenv reads,
// generalized across the wider seller configuration surface. Every field a
// real deployment would flip at the process level (not baked into a config
// file checked into version control) gets an override here.
func applySellerEnvOverrides(cfg *SellerConfig) {
	if v := os.Getenv("HOST"); v != "" {
		cfg.Service.Host = v
	}
	if v := envInt("PORT"); v != nil {
		cfg.Service.Port = *v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Service.LogLevel = strings.ToUpper(v)
	}
	if v := envInt("DEFAULT_DEADLINE_SECONDS"); v != nil {
		cfg.Task.DefaultDeadlineSeconds = *v
	}
	if v := envInt("JANITOR_INTERVAL_SECONDS"); v != nil {
		cfg.Task.JanitorIntervalSeconds = *v
	}
	if v := envInt("MAX_CONCURRENT_TASKS"); v != nil {
		cfg.Task.MaxConcurrentTasks = *v
	}
	if v := envBool("RATE_LIMIT_ENABLED"); v != nil {
		cfg.RateLimit.Enabled = *v
	}
	if v := os.Getenv("PAYMENT_MODE"); v != "" {
		cfg.Payment.Mode = v
	}
	if v := os.Getenv("PAYEE_WALLET_ADDRESS"); v != "" {
		cfg.Payment.PayeeWalletAddress = v
	}
	if v := os.Getenv("FACILITATOR_URL"); v != "" {
		cfg.Payment.FacilitatorURL = v
	}
	if v := os.Getenv("PRICING_TABLE_PATH"); v != "" {
		cfg.Payment.PricingTablePath = v
	}
	if v := os.Getenv("OPERATION_SCHEMA_DIR"); v != "" {
		cfg.Payment.OperationSchemaDir = v
	}
	if v := os.Getenv("BUYER_WALLET_PRIVATE_KEY"); v != "" {
		cfg.Payment.BuyerWalletPrivateKey = v
	}
	if v := envBool("REGISTRATION_ENABLED"); v != nil {
		cfg.Registration.Enabled = *v
	}
	if v := os.Getenv("MARKETPLACE_BASE_URL"); v != "" {
		cfg.Registration.MarketplaceBaseURL = v
	}
	if v := os.Getenv("AGENT_NAME"); v != "" {
		cfg.Registration.AgentName = v
	}
	if v := os.Getenv("SELLER_BASE_URL"); v != "" {
		cfg.Registration.SellerBaseURL = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Audit.DatabaseURL = v
	}
}

func applyMarketplaceEnvOverrides(cfg *MarketplaceConfig) {
	if v := os.Getenv("HOST"); v != "" {
		cfg.Service.Host = v
	}
	if v := envInt("PORT"); v != nil {
		cfg.Service.Port = *v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Service.LogLevel = strings.ToUpper(v)
	}
	if v := os.Getenv("MARKETPLACE_DATA_PATH"); v != "" {
		cfg.DataPath = v
	}
}

func envInt(name string) *int {
	raw := os.Getenv(name)
	if raw == "" {
		return nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return nil
	}
	return &n
}

func envBool(name string) *bool {
	raw := os.Getenv(name)
	if raw == "" {
		return nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return nil
	}
	return &b
}

// DefaultDeadline returns the configured default task deadline as a Duration.
func (c SellerConfig) DefaultDeadline() time.Duration {
	return time.Duration(c.Task.DefaultDeadlineSeconds) * time.Second
}

// JanitorInterval returns the configured janitor sweep interval as a Duration.
func (c SellerConfig) JanitorInterval() time.Duration {
	return time.Duration(c.Task.JanitorIntervalSeconds) * time.Second
}

// RateLimitWindow returns the configured rate-limit window as a Duration.
func (c SellerConfig) RateLimitWindow() time.Duration {
	return time.Duration(c.RateLimit.WindowSeconds) * time.Second
}

// RetryDelay returns the configured registration retry delay as a Duration.
func (c RegistrationConfig) RetryDelay() time.Duration {
	return time.Duration(c.RetryDelaySeconds) * time.Second
}

// PaymentEnabled reports whether the payment middleware should enforce
// pricing at all (spec.md §6: "pricing mode on|off").
func (c PaymentConfig) PaymentEnabled() bool {
	return strings.EqualFold(c.Mode, "on")
}
