package monitor

import (
	"bufio"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	TargetURL      string
	BootstrapURL   string
	TabPrefix      string
	TargetYear     int
	CheckInterval  time.Duration
	MaxOverlap     int
	FetchRPS       float64
	FetchTimeout   time.Duration
	NotifyTimeout  time.Duration
	StateFile      string
	DatabaseURL    string
	WebhookURL     string
	BotToken       string
	ChannelID      string
	ProxyURLs      []string
	UserAgentsFile string
	MetricsAddr    string
	LogLevel       string
}

// Options carries command-line overrides into LoadConfig.
type Options struct {
	StateFile string
	Interval  time.Duration
	Year      int
}

func LoadConfig(opts Options) Config {
	loadDotEnv()
	cfg := Config{
		TargetURL:      getEnv("TARGET_URL", "https://listingcenter.nasdaq.com/rulebook/nasdaq/rulefilings"),
		BootstrapURL:   getEnv("BOOTSTRAP_URL", "https://listingcenter.nasdaq.com/rulebook/nasdaq"),
		TabPrefix:      getEnv("TAB_PREFIX", "NASDAQ-tab-"),
		TargetYear:     getEnvInt("TARGET_YEAR", 0),
		CheckInterval:  getEnvDuration("CHECK_INTERVAL", time.Second),
		MaxOverlap:     getEnvInt("MAX_OVERLAP", 5),
		FetchRPS:       getEnvFloat("FETCH_RPS", 10),
		FetchTimeout:   getEnvDuration("FETCH_TIMEOUT", 20*time.Second),
		NotifyTimeout:  getEnvDuration("NOTIFY_TIMEOUT", 10*time.Second),
		StateFile:      getEnv("STATE_FILE", "known_rows.json"),
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		WebhookURL:     getEnv("DISCORD_WEBHOOK_URL", ""),
		BotToken:       getEnv("DISCORD_BOT_TOKEN", ""),
		ChannelID:      getEnv("DISCORD_CHANNEL_ID", ""),
		ProxyURLs:      splitList(getEnv("PROXY_URLS", "")),
		UserAgentsFile: getEnv("USER_AGENTS_FILE", ""),
		MetricsAddr:    getEnv("METRICS_ADDR", ""),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
	}
	if opts.StateFile != "" {
		cfg.StateFile = opts.StateFile
	}
	if opts.Interval > 0 {
		cfg.CheckInterval = opts.Interval
	}
	if opts.Year != 0 {
		cfg.TargetYear = opts.Year
	}
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = time.Second
	}
	if cfg.MaxOverlap < 1 {
		cfg.MaxOverlap = 1
	}
	return cfg
}

func loadDotEnv() {
	for _, path := range []string{".env", "../.env"} {
		f, err := os.Open(path)
		if err != nil {
			continue
		}
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			key, value, found := strings.Cut(line, "=")
			if !found {
				continue
			}
			key = strings.TrimSpace(key)
			value = strings.TrimSpace(value)
			if os.Getenv(key) == "" {
				os.Setenv(key, value)
			}
		}
		f.Close()
		return
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
