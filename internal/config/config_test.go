package config_test

import (
	"testing"
	"time"

	"github.com/DeafMist/blog-factory/internal/config"
	"github.com/stretchr/testify/require"
)

func TestLoadWorkerDefaults(t *testing.T) {
	t.Setenv("ELASTICSEARCH_ADDR", "")
	t.Setenv("ELASTICSEARCH_INDEX", "")
	t.Setenv("KAFKA_BROKERS", "")
	t.Setenv("KAFKA_TOPIC", "")
	t.Setenv("KAFKA_CONSUMER_GROUP", "")

	cfg, err := config.LoadWorker()
	require.NoError(t, err)

	require.Equal(t, "http://elasticsearch:9200", cfg.ElasticsearchAddr)
	require.Equal(t, "posts", cfg.ElasticsearchIndex)
	require.Equal(t, []string{"kafka:9092"}, cfg.KafkaBrokers)
	require.Equal(t, "blogscript_raw", cfg.KafkaTopic)
	require.Equal(t, "blogscript-worker", cfg.KafkaConsumer)
	require.True(t, cfg.PrefetchImages)
	require.Equal(t, time.Minute, cfg.PrefetchTimeout)
	require.Equal(t, []string{"wikipedia", "ddg", "pexels"}, cfg.Images.Sources)
}

func TestLoadWorkerOverrides(t *testing.T) {
	t.Setenv("ELASTICSEARCH_ADDR", "http://localhost:9999")
	t.Setenv("ELASTICSEARCH_INDEX", "custom")
	t.Setenv("KAFKA_BROKERS", "broker-a:29092, broker-b:29093")
	t.Setenv("KAFKA_TOPIC", "custom_topic")
	t.Setenv("KAFKA_CONSUMER_GROUP", "custom-group")
	t.Setenv("WORKER_KEYWORD_LIMIT", "12")
	t.Setenv("WORKER_KEYWORD_MIN_LEN", "5")
	t.Setenv("WORKER_DEDUPE_CAPACITY", "5")
	t.Setenv("WORKER_DEDUPE_TTL", "48h")
	t.Setenv("WORKER_BATCH_SIZE", "3")
	t.Setenv("WORKER_PREFETCH_IMAGES", "false")

	cfg, err := config.LoadWorker()
	require.NoError(t, err)

	require.Equal(t, "http://localhost:9999", cfg.ElasticsearchAddr)
	require.Equal(t, "custom", cfg.ElasticsearchIndex)
	require.Equal(t, []string{"broker-a:29092", "broker-b:29093"}, cfg.KafkaBrokers)
	require.Equal(t, "custom_topic", cfg.KafkaTopic)
	require.Equal(t, "custom-group", cfg.KafkaConsumer)
	require.Equal(t, 12, cfg.KeywordLimit)
	require.Equal(t, 5, cfg.KeywordMinLength)
	require.Equal(t, 5, cfg.DedupeCapacity)
	require.Equal(t, 48*time.Hour, cfg.DedupeTTL)
	require.Equal(t, 3, cfg.BatchSize)
	require.False(t, cfg.PrefetchImages)
}

func TestLoadWorkerRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{name: "batch size", key: "WORKER_BATCH_SIZE", val: "0"},
		{name: "dedupe capacity", key: "WORKER_DEDUPE_CAPACITY", val: "-1"},
		{name: "keyword limit", key: "WORKER_KEYWORD_LIMIT", val: "0"},
		{name: "image source", key: "IMAGE_SOURCES", val: "ddg,flickr"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			_, err := config.LoadWorker()
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.key)
		})
	}
}

func TestLoadImagesDefaults(t *testing.T) {
	t.Setenv("IMAGE_SOURCES", "")
	t.Setenv("PEXELS_API_KEY", "")

	cfg, err := config.LoadImages()
	require.NoError(t, err)
	require.Equal(t, 400, cfg.ThumbSize)
	require.Equal(t, "en", cfg.Language)
	require.Empty(t, cfg.PexelsAPIKey)
	require.Zero(t, cfg.RateLimit)
	require.Zero(t, cfg.ProviderTimeout)
	require.Equal(t, 10*time.Second, cfg.PageTimeout)
	require.Equal(t, time.Hour, cfg.WikipediaTTL)
	require.Equal(t, time.Hour, cfg.StockTTL)
}

func TestLoadImagesOverrides(t *testing.T) {
	t.Setenv("IMAGE_SOURCES", "Pexels, DDG")
	t.Setenv("IMAGE_LANGUAGE", "KO")
	t.Setenv("IMAGE_SAFE_SEARCH_OFF", "true")
	t.Setenv("IMAGE_RATE_LIMIT", "2.5")
	t.Setenv("IMAGE_PROVIDER_TIMEOUT", "3s")
	t.Setenv("IMAGE_SEARCH_TTL", "15m")
	t.Setenv("PEXELS_API_KEY", "secret")

	cfg, err := config.LoadImages()
	require.NoError(t, err)
	require.Equal(t, []string{"pexels", "ddg"}, cfg.Sources)
	require.Equal(t, "ko", cfg.Language)
	require.True(t, cfg.SafeSearchOff)
	require.Equal(t, 2.5, cfg.RateLimit)
	require.Equal(t, 3*time.Second, cfg.ProviderTimeout)
	require.Equal(t, 15*time.Minute, cfg.SearchTTL)
	require.Equal(t, "secret", cfg.PexelsAPIKey)
}

func TestLoadImagesRejectsLanguage(t *testing.T) {
	t.Setenv("IMAGE_LANGUAGE", "fr")
	_, err := config.LoadImages()
	require.Error(t, err)
}

func TestLoadAPI(t *testing.T) {
	t.Setenv("API_BIND_ADDR", ":9090")
	t.Setenv("API_PAGE_SIZE", "15")
	t.Setenv("API_MAX_PAGE_SIZE", "200")
	t.Setenv("API_MAX_BATCH", "7")
	t.Setenv("ELASTICSEARCH_ADDR", "http://api-es:9200")
	t.Setenv("ELASTICSEARCH_INDEX", "api-index")

	cfg, err := config.LoadAPI()
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.BindAddr)
	require.Equal(t, 15, cfg.DefaultPage)
	require.Equal(t, 200, cfg.MaxPage)
	require.Equal(t, 7, cfg.MaxBatch)
	require.EqualValues(t, 1<<20, cfg.MaxBodyBytes)
	require.Equal(t, "http://api-es:9200", cfg.ElasticsearchAddr)
	require.Equal(t, "api-index", cfg.ElasticsearchIndex)
}

func TestLoadAPIRejectsPageAboveMax(t *testing.T) {
	t.Setenv("API_PAGE_SIZE", "50")
	t.Setenv("API_MAX_PAGE_SIZE", "10")
	_, err := config.LoadAPI()
	require.Error(t, err)
}

func TestLoadRetention(t *testing.T) {
	t.Setenv("ELASTICSEARCH_ADDR", "http://ret-es:9200")
	t.Setenv("ELASTICSEARCH_INDEX", "ret-index")
	t.Setenv("RETENTION_CRON", "12h")
	t.Setenv("RETENTION_MAX_AGE", "36h")
	t.Setenv("RETENTION_BATCH_SIZE", "123")

	cfg, err := config.LoadRetention()
	require.NoError(t, err)

	require.Equal(t, 12*time.Hour, cfg.Interval)
	require.Equal(t, 36*time.Hour, cfg.MaxAge)
	require.Equal(t, 123, cfg.BatchSize)
	require.Equal(t, "http://ret-es:9200", cfg.ElasticsearchAddr)
	require.Equal(t, "ret-index", cfg.ElasticsearchIndex)
}
