package config

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Common contains Elasticsearch parameters shared by every service.
type Common struct {
	ElasticsearchAddr  string
	ElasticsearchIndex string
}

// Images configures the image providers and their caches.
type Images struct {
	Sources       []string
	ThumbSize     int
	Language      string
	SafeSearchOff bool
	PexelsAPIKey  string
	UserAgent     string
	// RateLimit caps outbound requests per second per provider; 0 disables it.
	RateLimit float64
	// ProviderTimeout bounds each provider request; 0 disables it.
	ProviderTimeout time.Duration
	PageTimeout     time.Duration
	CacheCapacity   int
	WikipediaTTL    time.Duration
	SearchTTL       time.Duration
	PageTTL         time.Duration
	StockTTL        time.Duration
}

// Worker holds configuration for the Kafka -> Elasticsearch worker.
type Worker struct {
	Common
	Images           Images
	KafkaBrokers     []string
	KafkaTopic       string
	KafkaConsumer    string
	KeywordLimit     int
	KeywordMinLength int
	DedupeCapacity   int
	DedupeTTL        time.Duration
	BatchSize        int
	PrefetchImages   bool
	PrefetchTimeout  time.Duration
	MetricsAddr      string
}

// API describes HTTP-layer configuration.
type API struct {
	Common
	Images       Images
	BindAddr     string
	DefaultPage  int
	MaxPage      int
	MaxBodyBytes int64
	MaxBatch     int
}

// Retention configures the cleanup loop.
type Retention struct {
	Common
	Interval  time.Duration
	MaxAge    time.Duration
	BatchSize int
}

var (
	imageSources   = []string{"wikipedia", "ddg", "og", "pexels", "auto"}
	imageLanguages = []string{"en", "ko"}
)

func loadCommon() Common {
	return Common{
		ElasticsearchAddr:  getEnv("ELASTICSEARCH_ADDR", "http://elasticsearch:9200"),
		ElasticsearchIndex: getEnv("ELASTICSEARCH_INDEX", "posts"),
	}
}

// LoadImages builds an Images config from environment variables.
func LoadImages() (*Images, error) {
	c := &Images{
		Sources:         splitAndTrim(strings.ToLower(getEnv("IMAGE_SOURCES", "wikipedia,ddg,pexels"))),
		ThumbSize:       getInt("IMAGE_THUMB_SIZE", 400),
		Language:        strings.ToLower(getEnv("IMAGE_LANGUAGE", "en")),
		SafeSearchOff:   getBool("IMAGE_SAFE_SEARCH_OFF", false),
		PexelsAPIKey:    getEnv("PEXELS_API_KEY", ""),
		UserAgent:       getEnv("IMAGE_USER_AGENT", ""),
		RateLimit:       getFloat("IMAGE_RATE_LIMIT", 0),
		ProviderTimeout: getDuration("IMAGE_PROVIDER_TIMEOUT", "0s"),
		PageTimeout:     getDuration("IMAGE_PAGE_TIMEOUT", "10s"),
		CacheCapacity:   getInt("IMAGE_CACHE_CAPACITY", 0),
		WikipediaTTL:    getDuration("IMAGE_WIKIPEDIA_TTL", "1h"),
		SearchTTL:       getDuration("IMAGE_SEARCH_TTL", "30m"),
		PageTTL:         getDuration("IMAGE_PAGE_TTL", "1h"),
		StockTTL:        getDuration("IMAGE_STOCK_TTL", "1h"),
	}

	for _, s := range c.Sources {
		if !slices.Contains(imageSources, s) {
			return nil, fmt.Errorf("IMAGE_SOURCES: unknown source %q", s)
		}
	}
	if c.ThumbSize <= 0 {
		return nil, fmt.Errorf("IMAGE_THUMB_SIZE must be positive")
	}
	if !slices.Contains(imageLanguages, c.Language) {
		return nil, fmt.Errorf("IMAGE_LANGUAGE must be one of %s", strings.Join(imageLanguages, ", "))
	}
	if c.RateLimit < 0 {
		return nil, fmt.Errorf("IMAGE_RATE_LIMIT cannot be negative")
	}
	if c.ProviderTimeout < 0 {
		return nil, fmt.Errorf("IMAGE_PROVIDER_TIMEOUT cannot be negative")
	}
	if c.PageTimeout <= 0 {
		return nil, fmt.Errorf("IMAGE_PAGE_TIMEOUT must be positive")
	}
	if c.CacheCapacity < 0 {
		return nil, fmt.Errorf("IMAGE_CACHE_CAPACITY cannot be negative")
	}

	return c, nil
}

// LoadWorker builds a Worker config from environment variables.
func LoadWorker() (*Worker, error) {
	images, err := LoadImages()
	if err != nil {
		return nil, err
	}

	c := &Worker{
		Common:           loadCommon(),
		Images:           *images,
		KafkaBrokers:     splitAndTrim(getEnv("KAFKA_BROKERS", "kafka:9092")),
		KafkaTopic:       getEnv("KAFKA_TOPIC", "blogscript_raw"),
		KafkaConsumer:    getEnv("KAFKA_CONSUMER_GROUP", "blogscript-worker"),
		KeywordLimit:     getInt("WORKER_KEYWORD_LIMIT", 8),
		KeywordMinLength: getInt("WORKER_KEYWORD_MIN_LEN", 3),
		DedupeCapacity:   getInt("WORKER_DEDUPE_CAPACITY", 20000),
		DedupeTTL:        getDuration("WORKER_DEDUPE_TTL", "24h"),
		BatchSize:        getInt("WORKER_BATCH_SIZE", 10),
		PrefetchImages:   getBool("WORKER_PREFETCH_IMAGES", true),
		PrefetchTimeout:  getDuration("WORKER_PREFETCH_TIMEOUT", "1m"),
		MetricsAddr:      getEnv("WORKER_METRICS_ADDR", "0.0.0.0:9091"),
	}

	if len(c.KafkaBrokers) == 0 {
		return nil, fmt.Errorf("KAFKA_BROKERS must contain at least one broker")
	}

	if c.BatchSize <= 0 {
		return nil, fmt.Errorf("WORKER_BATCH_SIZE must be positive")
	}
	if c.DedupeCapacity <= 0 {
		return nil, fmt.Errorf("WORKER_DEDUPE_CAPACITY must be positive")
	}
	if c.KeywordLimit <= 0 {
		return nil, fmt.Errorf("WORKER_KEYWORD_LIMIT must be positive")
	}
	if c.KeywordMinLength < 0 {
		return nil, fmt.Errorf("WORKER_KEYWORD_MIN_LEN cannot be negative")
	}
	if c.PrefetchTimeout <= 0 {
		return nil, fmt.Errorf("WORKER_PREFETCH_TIMEOUT must be positive")
	}

	return c, nil
}

// LoadAPI builds an API config from environment variables.
func LoadAPI() (*API, error) {
	images, err := LoadImages()
	if err != nil {
		return nil, err
	}

	c := &API{
		Common:       loadCommon(),
		Images:       *images,
		BindAddr:     getEnv("API_BIND_ADDR", "0.0.0.0:8080"),
		DefaultPage:  getInt("API_PAGE_SIZE", 20),
		MaxPage:      getInt("API_MAX_PAGE_SIZE", 100),
		MaxBodyBytes: int64(getInt("API_MAX_BODY_BYTES", 1<<20)),
		MaxBatch:     getInt("API_MAX_BATCH", 50),
	}

	if c.DefaultPage <= 0 {
		return nil, fmt.Errorf("API_PAGE_SIZE must be positive")
	}
	if c.MaxPage <= 0 {
		return nil, fmt.Errorf("API_MAX_PAGE_SIZE must be positive")
	}
	if c.DefaultPage > c.MaxPage {
		return nil, fmt.Errorf("API_PAGE_SIZE cannot exceed API_MAX_PAGE_SIZE")
	}
	if c.MaxBodyBytes <= 0 {
		return nil, fmt.Errorf("API_MAX_BODY_BYTES must be positive")
	}
	if c.MaxBatch <= 0 {
		return nil, fmt.Errorf("API_MAX_BATCH must be positive")
	}

	return c, nil
}

// LoadRetention builds a Retention config from environment variables.
func LoadRetention() (*Retention, error) {
	c := &Retention{
		Common:    loadCommon(),
		Interval:  getDuration("RETENTION_CRON", "24h"),
		MaxAge:    getDuration("RETENTION_MAX_AGE", "720h"),
		BatchSize: getInt("RETENTION_BATCH_SIZE", 500),
	}

	if c.MaxAge <= 0 {
		return nil, fmt.Errorf("RETENTION_MAX_AGE must be positive")
	}

	if c.Interval <= 0 {
		return nil, fmt.Errorf("RETENTION_CRON must be positive")
	}

	if c.BatchSize <= 0 {
		return nil, fmt.Errorf("RETENTION_BATCH_SIZE must be positive")
	}

	return c, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return fallback
}

func getFloat(key string, fallback float64) float64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			return parsed
		}
	}
	return fallback
}

func getDuration(key, fallback string) time.Duration {
	if d, err := time.ParseDuration(getEnv(key, fallback)); err == nil {
		return d
	}
	d, err := time.ParseDuration(fallback)
	if err != nil {
		panic(fmt.Sprintf("invalid fallback duration %q: %v", fallback, err))
	}
	return d
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
