package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/segmentio/kafka-go"

	"github.com/DeafMist/blog-factory/internal/blogscript"
	"github.com/DeafMist/blog-factory/internal/cache"
	"github.com/DeafMist/blog-factory/internal/config"
	"github.com/DeafMist/blog-factory/internal/elasticsearch"
	"github.com/DeafMist/blog-factory/internal/images"
	"github.com/DeafMist/blog-factory/internal/logger"
	"github.com/DeafMist/blog-factory/internal/metrics"
	"github.com/DeafMist/blog-factory/internal/models"
	"github.com/DeafMist/blog-factory/internal/processing"
	"github.com/DeafMist/blog-factory/internal/render"
)

type postIndexer interface {
	IndexPost(ctx context.Context, post models.Post) error
}

type prefetcher interface {
	PrefetchDocument(ctx context.Context, doc *blogscript.Document, opts images.Options) map[string]*images.Image
}

// pipeline turns consumed messages into indexed posts.
type pipeline struct {
	log      *slog.Logger
	cfg      *config.Worker
	indexer  postIndexer
	images   prefetcher
	renderer *render.Renderer
	seen     *cache.Cache[struct{}]
	metrics  *metrics.Metrics
	opts     images.Options
	now      func() time.Time
}

func main() {
	log := logger.New("worker")
	cfg, err := config.LoadWorker()
	if err != nil {
		log.Error("load config", slog.Any("err", err))
		os.Exit(1)
	}

	esClient, err := elasticsearch.New(cfg.ElasticsearchAddr, cfg.ElasticsearchIndex, log)
	if err != nil {
		log.Error("init elasticsearch", slog.Any("err", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if err := esClient.EnsureIndex(ctx); err != nil {
		log.Warn("ensure index failed, continuing", slog.Any("err", err))
	}

	m := metrics.New(prometheus.NewRegistry())
	metricsServer := &http.Server{
		Addr:              cfg.MetricsAddr,
		Handler:           m.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warn("metrics server stopped", slog.Any("err", err))
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()
	resolver, _ := images.NewFromConfig(cfg.Images, log, images.WithRecorder(m))

	p := &pipeline{
		log:      log,
		cfg:      cfg,
		indexer:  esClient,
		images:   resolver,
		renderer: render.New(log),
		seen:     cache.New[struct{}](cfg.DedupeTTL, cache.WithCapacity(cfg.DedupeCapacity)),
		metrics:  m,
		opts:     images.OptionsFromConfig(cfg.Images),
		now:      time.Now,
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.KafkaBrokers,
		Topic:          cfg.KafkaTopic,
		GroupID:        cfg.KafkaConsumer,
		QueueCapacity:  cfg.BatchSize,
		MinBytes:       1e3,
		MaxBytes:       10e6,
		CommitInterval: 0, // manual commit only
	})
	defer reader.Close()

	dlqWriter := kafka.NewWriter(kafka.WriterConfig{
		Brokers:     cfg.KafkaBrokers,
		Topic:       cfg.KafkaTopic + "_dlq",
		MaxAttempts: 3,
	})
	defer dlqWriter.Close()

	log.Info("worker started",
		slog.String("topic", cfg.KafkaTopic),
		slog.String("group", cfg.KafkaConsumer),
		slog.String("dlq_topic", cfg.KafkaTopic+"_dlq"),
		slog.Bool("prefetch_images", cfg.PrefetchImages),
	)

	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				log.Info("context canceled, stopping")
				return
			}
			log.Error("fetch message", slog.Any("err", err))
			continue
		}

		if err := p.process(ctx, msg); err != nil {
			log.Warn("process message failed, sending to DLQ",
				slog.Any("err", err),
				slog.Int("partition", msg.Partition),
				slog.Int64("offset", msg.Offset),
			)

			if !sendToDLQ(ctx, log, dlqWriter, msg, err) {
				log.Error("DLQ write exhausted retries, message may be lost if later messages commit",
					slog.Int("partition", msg.Partition),
					slog.Int64("offset", msg.Offset),
				)
				if ctx.Err() != nil {
					return
				}
				continue
			}
		}

		if err := reader.CommitMessages(ctx, msg); err != nil {
			log.Error("commit message", slog.Any("err", err))
		}
	}
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// dlqMessage copies msg with headers describing the failure. Each dead
// letter gets its own dlq_id so replays can be traced back to one failure.
func dlqMessage(msg kafka.Message, cause error, now time.Time) kafka.Message {
	headers := append([]kafka.Header(nil), msg.Headers...)
	headers = append(headers,
		kafka.Header{Key: "dlq_id", Value: []byte(uuid.NewString())},
		kafka.Header{Key: "original_partition", Value: []byte(fmt.Sprintf("%d", msg.Partition))},
		kafka.Header{Key: "original_offset", Value: []byte(fmt.Sprintf("%d", msg.Offset))},
		kafka.Header{Key: "error", Value: []byte(cause.Error())},
		kafka.Header{Key: "timestamp", Value: []byte(now.UTC().Format(time.RFC3339))},
	)
	var se *blogscript.SchemaError
	if errors.As(cause, &se) {
		headers = append(headers, kafka.Header{Key: "error_kind", Value: []byte("schema")})
	}
	return kafka.Message{Key: msg.Key, Value: msg.Value, Headers: headers}
}

func headerValue(headers []kafka.Header, key string) string {
	for _, h := range headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

// sendToDLQ writes the failed message with exponential backoff. It reports
// whether the write eventually succeeded.
func sendToDLQ(ctx context.Context, log *slog.Logger, w messageWriter, msg kafka.Message, cause error) bool {
	out := dlqMessage(msg, cause, time.Now())
	for attempt := range 5 {
		dlqErr := w.WriteMessages(ctx, out)
		if dlqErr == nil {
			log.Info("message sent to DLQ",
				slog.String("dlq_id", headerValue(out.Headers, "dlq_id")),
				slog.Int("partition", msg.Partition),
				slog.Int64("offset", msg.Offset),
				slog.Int("attempt", attempt+1),
			)
			return true
		}

		backoff := time.Duration(1<<uint(attempt)) * time.Second
		log.Warn("DLQ write failed, retrying",
			slog.Any("err", dlqErr),
			slog.Int("attempt", attempt+1),
			slog.Duration("backoff", backoff),
		)
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			log.Info("context canceled during DLQ retry")
			return false
		}
	}
	return false
}

// process validates, renders and indexes one document. Invalid documents
// and indexing failures are returned so the caller can dead-letter them;
// a rendering that was already indexed is skipped.
func (p *pipeline) process(ctx context.Context, msg kafka.Message) error {
	doc, err := blogscript.Validate(msg.Value)
	if err != nil {
		p.observe(metrics.ResultInvalid)
		return fmt.Errorf("validate document: %w", err)
	}

	mdx := p.renderer.Render(doc)
	hash := processing.ContentHash(mdx)
	if p.seen.Has(hash) {
		p.observe(metrics.ResultDuplicate)
		p.log.Debug("duplicate document", slog.String("title", doc.Meta.Title))
		return nil
	}

	var resolved []models.Image
	if p.cfg.PrefetchImages && p.images != nil {
		resolved = p.prefetch(ctx, doc)
	}

	post, err := processing.BuildPost(doc, mdx, resolved, processing.PostOptions{
		KeywordLimit:     p.cfg.KeywordLimit,
		KeywordMinLength: p.cfg.KeywordMinLength,
		Now:              p.now().UTC(),
	})
	if err != nil {
		p.observe(metrics.ResultFailed)
		return err
	}

	if err := p.indexer.IndexPost(ctx, post); err != nil {
		p.observe(metrics.ResultFailed)
		return fmt.Errorf("index post %s: %w", post.ID, err)
	}

	p.seen.Set(hash, struct{}{})
	p.observe(metrics.ResultIndexed)
	if p.metrics != nil {
		p.metrics.ObserveRender(len(mdx), post.Score)
	}
	p.log.Info("indexed post",
		slog.String("id", post.ID),
		slog.String("title", post.Title),
		slog.Int("images", len(resolved)),
		slog.Float64("quality", post.Score),
	)
	return nil
}

func (p *pipeline) prefetch(ctx context.Context, doc *blogscript.Document) []models.Image {
	pctx, cancel := context.WithTimeout(ctx, p.cfg.PrefetchTimeout)
	defer cancel()

	found := p.images.PrefetchDocument(pctx, doc, p.opts)
	paths := make([]string, 0, len(found))
	for path := range found {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	out := make([]models.Image, 0, len(paths))
	for _, path := range paths {
		img := found[path]
		if img == nil {
			p.log.Debug("no image found", slog.String("path", path))
			continue
		}
		out = append(out, models.Image{
			Path:        path,
			URL:         img.URL,
			Thumbnail:   img.ThumbnailURL,
			Provider:    string(img.Source),
			Attribution: img.Attribution,
		})
	}
	return out
}

func (p *pipeline) observe(result string) {
	if p.metrics != nil {
		p.metrics.ObserveMessage(result)
	}
}
