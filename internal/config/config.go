package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	infisical "github.com/infisical/go-sdk"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Port           string
	FrontendOrigin string
	LogLevel       string
	YieldsAPIURL   string
	RedisURL       string
	RedisPassword  string
	TelegramToken  string
	TelegramChatID int64

	TickInterval        time.Duration
	ActivityLogCapacity int
	SimAutostart        bool
	LiveSeed            bool
	DefaultPrincipal    float64

	RefreshSchedule    string
	RebalanceThreshold float64
	RebalanceCooldown  time.Duration
	GasPriceLimit      float64

	PollInterval    time.Duration
	AutopilotURL    string
	AutopilotWallet string
}

// fileConfig is the optional YAML file named by CONFIG_FILE. Environment
// variables take precedence over it.
type fileConfig struct {
	Simulation struct {
		TickInterval        string  `yaml:"tick_interval"`
		ActivityLogCapacity int     `yaml:"activity_log_capacity"`
		Autostart           *bool   `yaml:"autostart"`
		LiveSeed            *bool   `yaml:"live_seed"`
		DefaultPrincipal    float64 `yaml:"default_principal"`
	} `yaml:"simulation"`
	Rebalance struct {
		Schedule      string  `yaml:"schedule"`
		Threshold     float64 `yaml:"threshold"`
		Cooldown      string  `yaml:"cooldown"`
		GasPriceLimit float64 `yaml:"gas_price_limit"`
	} `yaml:"rebalance"`
	Autopilot struct {
		PollInterval string `yaml:"poll_interval"`
		URL          string `yaml:"url"`
		Wallet       string `yaml:"wallet"`
	} `yaml:"autopilot"`
	YieldsAPIURL string `yaml:"yields_api_url"`
}

func defaults() Config {
	return Config{
		Port:                "8080",
		FrontendOrigin:      "*",
		LogLevel:            "info",
		YieldsAPIURL:        "https://yields.llama.fi",
		TickInterval:        5 * time.Second,
		ActivityLogCapacity: 200,
		DefaultPrincipal:    10_000,
		RefreshSchedule:     "*/10 * * * *",
		RebalanceThreshold:  2.0,
		RebalanceCooldown:   24 * time.Hour,
		GasPriceLimit:       100,
		PollInterval:        15 * time.Second,
	}
}

func Load() (Config, error) {
	// .env is optional; real environment variables win over it.
	_ = godotenv.Load()

	cfg := defaults()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := applyFile(&cfg, path); err != nil {
			return Config{}, err
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}

	// If Infisical credentials are available, fetch secrets from Infisical
	clientID := os.Getenv("INFISICAL_CLIENT_ID")
	clientSecret := os.Getenv("INFISICAL_CLIENT_SECRET")
	if clientID != "" && clientSecret != "" {
		loadFromInfisical(&cfg, clientID, clientSecret)
	}

	return cfg, nil
}

func applyFile(cfg *Config, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	durations := []struct {
		raw    string
		target *time.Duration
		key    string
	}{
		{fc.Simulation.TickInterval, &cfg.TickInterval, "simulation.tick_interval"},
		{fc.Rebalance.Cooldown, &cfg.RebalanceCooldown, "rebalance.cooldown"},
		{fc.Autopilot.PollInterval, &cfg.PollInterval, "autopilot.poll_interval"},
	}
	for _, d := range durations {
		if d.raw == "" {
			continue
		}
		v, err := time.ParseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("%s: %w", d.key, err)
		}
		*d.target = v
	}

	if fc.Simulation.ActivityLogCapacity > 0 {
		cfg.ActivityLogCapacity = fc.Simulation.ActivityLogCapacity
	}
	if fc.Simulation.Autostart != nil {
		cfg.SimAutostart = *fc.Simulation.Autostart
	}
	if fc.Simulation.LiveSeed != nil {
		cfg.LiveSeed = *fc.Simulation.LiveSeed
	}
	if fc.Simulation.DefaultPrincipal > 0 {
		cfg.DefaultPrincipal = fc.Simulation.DefaultPrincipal
	}
	if fc.Rebalance.Schedule != "" {
		cfg.RefreshSchedule = fc.Rebalance.Schedule
	}
	if fc.Rebalance.Threshold > 0 {
		cfg.RebalanceThreshold = fc.Rebalance.Threshold
	}
	if fc.Rebalance.GasPriceLimit > 0 {
		cfg.GasPriceLimit = fc.Rebalance.GasPriceLimit
	}
	if fc.Autopilot.URL != "" {
		cfg.AutopilotURL = fc.Autopilot.URL
	}
	if fc.Autopilot.Wallet != "" {
		cfg.AutopilotWallet = fc.Autopilot.Wallet
	}
	if fc.YieldsAPIURL != "" {
		cfg.YieldsAPIURL = fc.YieldsAPIURL
	}
	return nil
}

func applyEnv(cfg *Config) error {
	cfg.Port = envOr("PORT", cfg.Port)
	cfg.FrontendOrigin = envOr("FRONTEND_ORIGIN", cfg.FrontendOrigin)
	cfg.LogLevel = envOr("LOG_LEVEL", cfg.LogLevel)
	cfg.YieldsAPIURL = envOr("YIELDS_API_URL", cfg.YieldsAPIURL)
	cfg.RedisURL = envOr("REDIS_URL", cfg.RedisURL)
	cfg.RedisPassword = envOr("REDIS_PASSWORD", cfg.RedisPassword)
	cfg.TelegramToken = envOr("TELEGRAM_BOT_TOKEN", cfg.TelegramToken)
	cfg.RefreshSchedule = envOr("REFRESH_SCHEDULE", cfg.RefreshSchedule)
	cfg.AutopilotURL = envOr("AUTOPILOT_URL", cfg.AutopilotURL)
	cfg.AutopilotWallet = envOr("AUTOPILOT_WALLET", cfg.AutopilotWallet)

	var err error
	if cfg.TelegramChatID, err = envInt64("TELEGRAM_CHAT_ID", cfg.TelegramChatID); err != nil {
		return err
	}
	if cfg.TickInterval, err = envDuration("TICK_INTERVAL", cfg.TickInterval); err != nil {
		return err
	}
	if cfg.PollInterval, err = envDuration("POLL_INTERVAL", cfg.PollInterval); err != nil {
		return err
	}
	if cfg.RebalanceCooldown, err = envDuration("REBALANCE_COOLDOWN", cfg.RebalanceCooldown); err != nil {
		return err
	}
	capacity, err := envInt64("ACTIVITY_LOG_CAPACITY", int64(cfg.ActivityLogCapacity))
	if err != nil {
		return err
	}
	cfg.ActivityLogCapacity = int(capacity)
	if cfg.RebalanceThreshold, err = envFloat("REBALANCE_THRESHOLD", cfg.RebalanceThreshold); err != nil {
		return err
	}
	if cfg.GasPriceLimit, err = envFloat("GAS_PRICE_LIMIT", cfg.GasPriceLimit); err != nil {
		return err
	}
	if cfg.DefaultPrincipal, err = envFloat("DEFAULT_PRINCIPAL", cfg.DefaultPrincipal); err != nil {
		return err
	}
	if cfg.SimAutostart, err = envBool("SIM_AUTOSTART", cfg.SimAutostart); err != nil {
		return err
	}
	if cfg.LiveSeed, err = envBool("SIM_LIVE_SEED", cfg.LiveSeed); err != nil {
		return err
	}
	return nil
}

// SlogLevel maps LogLevel onto a slog level, defaulting to info.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func loadFromInfisical(cfg *Config, clientID, clientSecret string) {
	siteURL := envOr("INFISICAL_SITE_URL",
		"http://infisical-infisical-standalone-infisical.infisical.svc.cluster.local:8080")
	projectID := os.Getenv("INFISICAL_PROJECT_ID")
	envSlug := envOr("INFISICAL_ENV", "prod")

	if projectID == "" {
		slog.Warn("INFISICAL_PROJECT_ID not set, skipping Infisical")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client := infisical.NewInfisicalClient(ctx, infisical.Config{
		SiteUrl:          siteURL,
		AutoTokenRefresh: false,
	})

	_, err := client.Auth().UniversalAuthLogin(clientID, clientSecret)
	if err != nil {
		slog.Error("infisical auth failed", "error", err)
		return
	}

	var chatID string
	secrets := map[string]*string{
		"TELEGRAM_BOT_TOKEN": &cfg.TelegramToken,
		"REDIS_PASSWORD":     &cfg.RedisPassword,
		"TELEGRAM_CHAT_ID":   &chatID,
	}
	if cfg.TelegramChatID != 0 {
		chatID = strconv.FormatInt(cfg.TelegramChatID, 10)
	}

	for key, target := range secrets {
		if *target != "" {
			continue // env var already set, skip
		}
		secret, err := client.Secrets().Retrieve(infisical.RetrieveSecretOptions{
			SecretKey:   key,
			Environment: envSlug,
			ProjectID:   projectID,
			SecretPath:  "/",
		})
		if err != nil {
			slog.Warn("failed to retrieve secret from infisical", "key", key, "error", err)
			continue
		}
		*target = secret.SecretValue
		slog.Info("loaded secret from infisical", "key", key)
	}

	if id, err := strconv.ParseInt(chatID, 10, 64); err == nil {
		cfg.TelegramChatID = id
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s: must be positive, got %s", key, v)
	}
	return d, nil
}

func envFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return f, nil
}

func envInt64(key string, fallback int64) (int64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func envBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}
