package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server      ServerConfig
	Scanner     ScannerConfig
	Browser     BrowserConfig
	Marketplace MarketplaceConfig
	Notifier    NotifierConfig
	Sink        SinkConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	Watchlist   WatchlistConfig
	Logging     LoggingConfig
}

type ServerConfig struct {
	Port            string
	Host            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	ImportTimeout   time.Duration
	AllowedOrigins  []string
}

type ScannerConfig struct {
	ScanInterval      time.Duration
	SalesInterval     time.Duration
	InitialScanDelay  time.Duration
	InitialSalesDelay time.Duration
	EntityDelay       time.Duration
	EntityDelayMax    time.Duration
	SalesEntityDelay  time.Duration
	ImportEntityDelay time.Duration
	FetchTimeout      time.Duration
	SettleDelay       time.Duration
	SelectorTimeout   time.Duration
	MaxRetries        int
}

type BrowserConfig struct {
	Headless       bool
	Timeout        time.Duration
	UserAgent      string
	ViewportWidth  int
	ViewportHeight int
	AcceptLanguage string
	TimezoneID     string
	Locale         string
	ProxyServer    string
	ProxyUsername  string
	ProxyPassword  string
}

type MarketplaceConfig struct {
	BaseURL          string
	GraphQLURL       string
	APIUserAgent     string
	CloudflareBypass bool
}

type NotifierConfig struct {
	DiscordWebhookURL string
	Username          string
}

type SinkConfig struct {
	WorkbookPath string
}

type DatabaseConfig struct {
	Enabled  bool
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int32
}

type RedisConfig struct {
	Enabled     bool
	Addr        string
	Password    string
	DB          int
	LedgerKey   string
	AlertStream string
}

type WatchlistConfig struct {
	SeedPath string
}

type LoggingConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnvOrDefault("PORT", "3000"),
			Host:            getEnvOrDefault("SERVER_HOST", "0.0.0.0"),
			ReadTimeout:     getDurationOrDefault("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getDurationOrDefault("SERVER_WRITE_TIMEOUT", 120*time.Second),
			ShutdownTimeout: getDurationOrDefault("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
			ImportTimeout:   getDurationOrDefault("SERVER_IMPORT_TIMEOUT", 30*time.Minute),
			AllowedOrigins:  getStringSliceOrDefault("SERVER_ALLOWED_ORIGINS", []string{"http://localhost:*", "https://localhost:*"}),
		},
		Scanner: ScannerConfig{
			ScanInterval:      getDurationOrDefault("SCAN_INTERVAL", 5*time.Minute),
			SalesInterval:     getDurationOrDefault("SALES_SCAN_INTERVAL", 6*time.Hour),
			InitialScanDelay:  getDurationOrDefault("SCAN_INITIAL_DELAY", 10*time.Second),
			InitialSalesDelay: getDurationOrDefault("SALES_SCAN_INITIAL_DELAY", 60*time.Second),
			EntityDelay:       getDurationOrDefault("SCAN_ENTITY_DELAY", 2*time.Second),
			EntityDelayMax:    getDurationOrDefault("SCAN_ENTITY_DELAY_MAX", 4*time.Second),
			SalesEntityDelay:  getDurationOrDefault("SALES_ENTITY_DELAY", 3*time.Second),
			ImportEntityDelay: getDurationOrDefault("IMPORT_ENTITY_DELAY", 3*time.Second),
			FetchTimeout:      getDurationOrDefault("SCAN_FETCH_TIMEOUT", 30*time.Second),
			SettleDelay:       getDurationOrDefault("SCAN_SETTLE_DELAY", 4*time.Second),
			SelectorTimeout:   getDurationOrDefault("SCAN_SELECTOR_TIMEOUT", 10*time.Second),
			MaxRetries:        getIntOrDefault("SCAN_MAX_RETRIES", 2),
		},
		Browser: BrowserConfig{
			Headless:       getBoolOrDefault("BROWSER_HEADLESS", true),
			Timeout:        getDurationOrDefault("BROWSER_TIMEOUT", 30*time.Second),
			UserAgent:      getEnvOrDefault("BROWSER_USER_AGENT", defaultUserAgent),
			ViewportWidth:  getIntOrDefault("BROWSER_VIEWPORT_WIDTH", 1920),
			ViewportHeight: getIntOrDefault("BROWSER_VIEWPORT_HEIGHT", 1080),
			AcceptLanguage: getEnvOrDefault("BROWSER_ACCEPT_LANGUAGE", "fr-FR,fr;q=0.9,en;q=0.8"),
			TimezoneID:     getEnvOrDefault("BROWSER_TIMEZONE", "Europe/Paris"),
			Locale:         getEnvOrDefault("BROWSER_LOCALE", "fr-FR"),
			ProxyServer:    getEnvOrDefault("PROXY_SERVER", ""),
			ProxyUsername:  getEnvOrDefault("PROXY_USERNAME", ""),
			ProxyPassword:  getEnvOrDefault("PROXY_PASSWORD", ""),
		},
		Marketplace: MarketplaceConfig{
			BaseURL:          getEnvOrDefault("SORARE_BASE_URL", "https://sorare.com"),
			GraphQLURL:       getEnvOrDefault("SORARE_GRAPHQL_URL", "https://api.sorare.com/federation/graphql"),
			APIUserAgent:     getEnvOrDefault("SORARE_API_USER_AGENT", "SorareAlertBot/2.0"),
			CloudflareBypass: getBoolOrDefault("SORARE_CLOUDFLARE_BYPASS", true),
		},
		Notifier: NotifierConfig{
			DiscordWebhookURL: getEnvOrDefault("DISCORD_WEBHOOK_URL", ""),
			Username:          getEnvOrDefault("DISCORD_USERNAME", "Sorare Alert Bot"),
		},
		Sink: SinkConfig{
			WorkbookPath: getEnvOrDefault("SINK_WORKBOOK_PATH", ""),
		},
		Database: DatabaseConfig{
			Enabled:  getBoolOrDefault("DB_ENABLED", false),
			Host:     getEnvOrDefault("DB_HOST", "localhost"),
			Port:     getIntOrDefault("DB_PORT", 5432),
			User:     getEnvOrDefault("DB_USER", "postgres"),
			Password: getEnvOrDefault("DB_PASSWORD", ""),
			DBName:   getEnvOrDefault("DB_NAME", "sorare_alerts"),
			SSLMode:  getEnvOrDefault("DB_SSL_MODE", "disable"),
			MaxConns: int32(getIntOrDefault("DB_MAX_CONNS", 5)),
		},
		Redis: RedisConfig{
			Enabled:     getBoolOrDefault("REDIS_ENABLED", false),
			Addr:        getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
			Password:    getEnvOrDefault("REDIS_PASSWORD", ""),
			DB:          getIntOrDefault("REDIS_DB", 0),
			LedgerKey:   getEnvOrDefault("REDIS_LEDGER_KEY", "sorare:seen_listings"),
			AlertStream: getEnvOrDefault("REDIS_ALERT_STREAM", "stream:sorare_alerts"),
		},
		Watchlist: WatchlistConfig{
			SeedPath: getEnvOrDefault("WATCHLIST_SEED_PATH", "configs/watchlist.json5"),
		},
		Logging: LoggingConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", "info"),
			Format: getEnvOrDefault("LOG_FORMAT", "json"),
		},
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Scanner.ScanInterval <= 0 {
		return fmt.Errorf("SCAN_INTERVAL must be positive")
	}

	if c.Scanner.SalesInterval <= 0 {
		return fmt.Errorf("SALES_SCAN_INTERVAL must be positive")
	}

	if c.Scanner.EntityDelay < 0 || c.Scanner.SalesEntityDelay < 0 || c.Scanner.ImportEntityDelay < 0 {
		return fmt.Errorf("entity delays cannot be negative")
	}

	if c.Server.ImportTimeout <= 0 {
		return fmt.Errorf("SERVER_IMPORT_TIMEOUT must be positive")
	}

	if c.Scanner.EntityDelayMax > 0 && c.Scanner.EntityDelayMax < c.Scanner.EntityDelay {
		return fmt.Errorf("SCAN_ENTITY_DELAY_MAX cannot be below SCAN_ENTITY_DELAY")
	}

	if c.Scanner.FetchTimeout <= 0 {
		return fmt.Errorf("SCAN_FETCH_TIMEOUT must be positive")
	}

	if c.Scanner.MaxRetries < 1 {
		return fmt.Errorf("SCAN_MAX_RETRIES must be at least 1")
	}

	if _, err := url.ParseRequestURI(c.Marketplace.GraphQLURL); err != nil {
		return fmt.Errorf("SORARE_GRAPHQL_URL is invalid: %w", err)
	}

	if c.Notifier.DiscordWebhookURL != "" {
		if _, err := url.ParseRequestURI(c.Notifier.DiscordWebhookURL); err != nil {
			return fmt.Errorf("DISCORD_WEBHOOK_URL is invalid: %w", err)
		}
	}

	if c.Browser.ProxyUsername != "" && c.Browser.ProxyServer == "" {
		return fmt.Errorf("PROXY_USERNAME requires PROXY_SERVER")
	}

	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("REDIS_ADDR is required when REDIS_ENABLED is set")
	}

	return nil
}

// Addr is the listen address of the management API.
func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getStringSliceOrDefault(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	return defaultValue
}
