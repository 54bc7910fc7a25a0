package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// CapacityMatchMode selects how listing names are checked against the
// catalog entry's target capacity.
type CapacityMatchMode string

const (
	// CapacityMatchEnforce requires a capacity token in the listing name.
	CapacityMatchEnforce CapacityMatchMode = "enforce"
	// CapacityMatchDisabled accepts every name without a capacity check.
	CapacityMatchDisabled CapacityMatchMode = "disabled"
)

// SearchConfig holds the search collaborator's endpoint and credentials.
// The legacy endpoint variant required an extra access key; it is plain
// configuration here, sent only when set.
type SearchConfig struct {
	Endpoint    string
	AppID       string
	AffiliateID string
	AccessKey   string
	PageSize    int
	MaxPages    int
	PageDelay   time.Duration
	Timeout     time.Duration
}

// PublisherConfig holds the blog draft publisher's credentials.
type PublisherConfig struct {
	BaseURL string
	UserID  string
	APIKey  string
	BlogID  string
}

// Config holds the full run configuration. It is an explicit value
// passed into the engine; classification and costing stay pure.
type Config struct {
	Search    SearchConfig
	Publisher PublisherConfig

	WebhookURL    string
	NotifyMaxLen  int
	DatabasePath  string
	CSVExportPath string

	DefaultShippingYen int
	ExtraPointRate     float64
	ExcludeKeywords    []string
	CapacityMatch      CapacityMatchMode

	FetchHits    int
	StoreHits    int
	RequestSleep time.Duration
	StrictMode   bool

	ForcedVariant string // "" selects by weekday
	Timezone      string

	MetricsAddr     string
	TracingEnabled  bool
	TracingEndpoint string
	Verbose         bool
}

// defaultExcludeKeywords is the safe-side noise list: accessories,
// samples, bundles, bars/snacks, gainers, other supplements, drinks.
const defaultExcludeKeywords = "シェイカー,シェーカー,ボトル,スプーン,計量スプーン,ミキサー,ブレンダー," +
	"お試し,試供品,サンプル,トライアル,小分け,個包装,少量,ミニ," +
	"訳あり,中古,アウトレット,福袋,セット,詰め合わせ,バラエティ," +
	"プロテインバー,バー,クッキー,チョコ,シリアル,グラノーラ," +
	"ゲイナー,増量,マスゲイナー," +
	"BCAA,EAA,クレアチン,アミノ酸," +
	"シェイク,ドリンク,飲料,缶,紙パック"

// DefaultConfig returns conservative defaults for a scheduled run.
func DefaultConfig() *Config {
	return &Config{
		Search: SearchConfig{
			Endpoint:  "https://app.rakuten.co.jp/services/api/IchibaItem/Search/20220601",
			PageSize:  30,
			MaxPages:  10,
			PageDelay: 300 * time.Millisecond,
			Timeout:   30 * time.Second,
		},
		Publisher: PublisherConfig{
			BaseURL: "https://blog.hatena.ne.jp",
		},
		NotifyMaxLen:       1800,
		DatabasePath:       "data/tracker.db",
		DefaultShippingYen: 800,
		ExcludeKeywords:    splitKeywords(defaultExcludeKeywords),
		CapacityMatch:      CapacityMatchEnforce,
		FetchHits:          100,
		StoreHits:          20,
		RequestSleep:       time.Second,
		Timezone:           "Asia/Tokyo",
	}
}

// Load builds a Config from a .env file (if present) and environment
// variables layered over the defaults.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := DefaultConfig()

	if v, ok := EnvString("RAKUTEN_ENDPOINT"); ok {
		cfg.Search.Endpoint = v
	}
	cfg.Search.AppID, _ = EnvString("RAKUTEN_APP_ID")
	cfg.Search.AffiliateID, _ = EnvString("RAKUTEN_AFFILIATE_ID")
	cfg.Search.AccessKey, _ = EnvString("RAKUTEN_ACCESS_KEY")

	cfg.Publisher.UserID, _ = EnvString("HATENA_ID")
	cfg.Publisher.APIKey, _ = EnvString("HATENA_API_KEY")
	cfg.Publisher.BlogID, _ = EnvString("HATENA_BLOG_ID")
	if v, ok := EnvString("HATENA_API_BASE"); ok {
		cfg.Publisher.BaseURL = v
	}

	cfg.WebhookURL, _ = EnvString("DISCORD_WEBHOOK_URL")
	if v, ok := EnvString("DATABASE_PATH"); ok {
		cfg.DatabasePath = v
	}
	cfg.CSVExportPath, _ = EnvString("CSV_EXPORT_PATH")

	if v, ok, err := EnvInt("DEFAULT_SHIPPING_YEN"); err != nil {
		return nil, err
	} else if ok {
		cfg.DefaultShippingYen = v
	}
	if v, ok, err := EnvFloat("EXTRA_POINT_RATE"); err != nil {
		return nil, err
	} else if ok {
		cfg.ExtraPointRate = v
	}
	if v, ok := EnvString("EXCLUDE_KEYWORDS"); ok {
		cfg.ExcludeKeywords = splitKeywords(v)
	}
	if v, ok := EnvString("CAPACITY_MATCH"); ok {
		cfg.CapacityMatch = CapacityMatchMode(strings.ToLower(v))
	}

	if v, ok, err := EnvInt("FETCH_HITS"); err != nil {
		return nil, err
	} else if ok {
		cfg.FetchHits = v
	}
	if v, ok, err := EnvInt("STORE_HITS"); err != nil {
		return nil, err
	} else if ok {
		cfg.StoreHits = v
	}
	if v, ok, err := EnvFloat("REQUEST_SLEEP_SEC"); err != nil {
		return nil, err
	} else if ok {
		cfg.RequestSleep = time.Duration(v * float64(time.Second))
	}
	cfg.StrictMode = EnvBool("STRICT_MODE")

	cfg.ForcedVariant, _ = EnvString("FORCED_VARIANT")
	if v, ok := EnvString("TRACKER_TZ"); ok {
		cfg.Timezone = v
	}
	cfg.MetricsAddr, _ = EnvString("TRACKER_METRICS_ADDR")
	cfg.TracingEnabled = EnvBool("TRACING_ENABLED")
	cfg.TracingEndpoint, _ = EnvString("TRACING_ENDPOINT")

	return cfg, nil
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.Search.Endpoint == "" {
		return fmt.Errorf("search endpoint cannot be empty")
	}
	parsed, err := url.Parse(c.Search.Endpoint)
	if err != nil {
		return fmt.Errorf("invalid search endpoint: %w", err)
	}
	if parsed.Host == "" {
		return fmt.Errorf("search endpoint must include a host")
	}
	if c.Search.AppID == "" {
		return fmt.Errorf("search application id cannot be empty")
	}
	if c.Search.PageSize <= 0 || c.Search.PageSize > 30 {
		return fmt.Errorf("search page size must be in 1..30")
	}
	if c.Search.MaxPages <= 0 {
		return fmt.Errorf("search max pages must be positive")
	}
	if c.Search.Timeout <= 0 {
		return fmt.Errorf("search timeout must be positive")
	}
	if c.DefaultShippingYen < 0 {
		return fmt.Errorf("default shipping cannot be negative")
	}
	if c.ExtraPointRate < 0 || c.ExtraPointRate > 1 {
		return fmt.Errorf("extra point rate must be in 0..1")
	}
	if c.CapacityMatch != CapacityMatchEnforce && c.CapacityMatch != CapacityMatchDisabled {
		return fmt.Errorf("capacity match mode must be %q or %q", CapacityMatchEnforce, CapacityMatchDisabled)
	}
	if c.FetchHits <= 0 {
		return fmt.Errorf("fetch hits must be positive")
	}
	if c.StoreHits <= 0 {
		return fmt.Errorf("store hits must be positive")
	}
	if c.StoreHits > c.FetchHits {
		return fmt.Errorf("store hits (%d) cannot exceed fetch hits (%d)", c.StoreHits, c.FetchHits)
	}
	if c.RequestSleep < 0 {
		return fmt.Errorf("request sleep cannot be negative")
	}
	if c.NotifyMaxLen <= 0 {
		return fmt.Errorf("notification length ceiling must be positive")
	}
	if c.DatabasePath == "" {
		return fmt.Errorf("database path cannot be empty")
	}
	if c.ForcedVariant != "" && c.ForcedVariant != "A" && c.ForcedVariant != "B" {
		return fmt.Errorf("forced variant must be A or B")
	}
	return nil
}

// Location resolves the configured timezone, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func splitKeywords(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if k := strings.TrimSpace(p); k != "" {
			out = append(out, k)
		}
	}
	return out
}

// EnvString returns the named variable and whether it was set.
func EnvString(name string) (string, bool) {
	v := strings.TrimSpace(os.Getenv(name))
	return v, v != ""
}

// EnvInt parses the named variable as an integer.
func EnvInt(name string) (int, bool, error) {
	raw, ok := EnvString(name)
	if !ok {
		return 0, false, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false, fmt.Errorf("invalid %s: %w", name, err)
	}
	return v, true, nil
}

// EnvFloat parses the named variable as a float.
func EnvFloat(name string) (float64, bool, error) {
	raw, ok := EnvString(name)
	if !ok {
		return 0, false, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false, fmt.Errorf("invalid %s: %w", name, err)
	}
	return v, true, nil
}

// EnvBool reports whether the named variable is set to a truthy value.
func EnvBool(name string) bool {
	raw, _ := EnvString(name)
	switch strings.ToLower(raw) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
