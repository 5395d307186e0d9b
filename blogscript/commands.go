package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/DeafMist/blog-factory/internal/blogscript"
	"github.com/DeafMist/blog-factory/internal/config"
	"github.com/DeafMist/blog-factory/internal/images"
	"github.com/DeafMist/blog-factory/internal/logger"
	"github.com/DeafMist/blog-factory/internal/processing"
	"github.com/DeafMist/blog-factory/internal/render"
)

// errInvalid is returned after the issues have already been printed.
var errInvalid = errors.New("document is invalid")

func (o *rootOptions) logger(cmd *cobra.Command) *slog.Logger {
	return logger.NewWriter(cmd.ErrOrStderr(), "cli", o.logLevel, o.logFormat)
}

// readInput reads the named file, or stdin for "-" or no argument.
func readInput(cmd *cobra.Command, args []string) ([]byte, error) {
	if len(args) == 0 || args[0] == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(args[0])
}

// loadDocument decodes JSON or YAML input and validates it. YAML is a
// superset of JSON so one decoder serves both.
func loadDocument(cmd *cobra.Command, args []string) (*blogscript.Document, error) {
	raw, err := readInput(cmd, args)
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}

	var value any
	if err := yaml.Unmarshal(raw, &value); err != nil {
		return nil, fmt.Errorf("decode input: %w", err)
	}

	doc, err := blogscript.ValidateValue(value)
	if err != nil {
		var se *blogscript.SchemaError
		if errors.As(err, &se) {
			printIssues(cmd.ErrOrStderr(), se.Issues)
			return nil, errInvalid
		}
		return nil, err
	}
	return doc, nil
}

func printIssues(w io.Writer, issues []blogscript.Issue) {
	for _, issue := range issues {
		path := issue.Path
		if path == "" {
			path = "(root)"
		}
		fmt.Fprintf(w, "  %s: %s [%s]\n", path, issue.Message, issue.Code)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

func newValidateCmd() *cobra.Command {
	var normalized bool
	cmd := &cobra.Command{
		Use:   "validate [file]",
		Short: "Validate a document and report schema issues",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := loadDocument(cmd, args)
			if err != nil {
				return err
			}
			if normalized {
				return writeJSON(cmd.OutOrStdout(), doc)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ok: %q, %d beats\n", doc.Meta.Title, len(doc.Beats))
			return nil
		},
	}
	cmd.Flags().BoolVar(&normalized, "print", false, "print the document with defaults applied")
	return cmd
}

func newRenderCmd(opts *rootOptions) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "render [file]",
		Short: "Render a document to MDX",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := loadDocument(cmd, args)
			if err != nil {
				return err
			}
			mdx := render.New(opts.logger(cmd)).Render(doc)
			if out == "" || out == "-" {
				_, err = io.WriteString(cmd.OutOrStdout(), mdx)
				return err
			}
			if err := os.WriteFile(out, []byte(mdx), 0o644); err != nil {
				return fmt.Errorf("write %s: %w", out, err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s (%d bytes)\n", out, len(mdx))
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file, stdout when empty")
	return cmd
}

func newCheckCmd(opts *rootOptions) *cobra.Command {
	var (
		asJSON   bool
		minScore float64
	)
	cmd := &cobra.Command{
		Use:   "check [file]",
		Short: "Report size metrics and the quality score of a document",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := loadDocument(cmd, args)
			if err != nil {
				return err
			}
			mdx := render.New(opts.logger(cmd)).Render(doc)
			m, err := processing.Measure(doc, mdx)
			if err != nil {
				return err
			}
			q := processing.Assess(doc, mdx)

			w := cmd.OutOrStdout()
			if asJSON {
				if err := writeJSON(w, map[string]any{"metrics": m, "quality": q}); err != nil {
					return err
				}
			} else {
				printReport(w, m, q)
			}

			if q.Score < minScore {
				return fmt.Errorf("quality score %.1f is below %.1f", q.Score, minScore)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")
	cmd.Flags().Float64Var(&minScore, "min-score", 0, "fail when the quality score is lower")
	return cmd
}

func printReport(w io.Writer, m processing.Metrics, q processing.Quality) {
	fmt.Fprintf(w, "beats:       %d (%d images, %d widgets)\n", m.BeatCount, m.ImageCount, m.WidgetCount)
	fmt.Fprintf(w, "json size:   %d bytes\n", m.JSONSize)
	fmt.Fprintf(w, "mdx size:    %d bytes, %d lines, %d components\n", m.MDXSize, m.LineCount, m.ComponentCount)
	fmt.Fprintf(w, "compression: %.2f\n", m.CompressionRatio)
	fmt.Fprintf(w, "score:       %.1f\n", q.Score)
	for _, c := range q.Failed() {
		fmt.Fprintf(w, "  failed %s/%s\n", c.Group, c.Name)
	}
}

type imageFlags struct {
	sources   string
	preferred string
	article   string
	lang      string
	timeout   time.Duration
}

func (f *imageFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.sources, "sources", "", "comma separated provider order, IMAGE_SOURCES when empty")
	cmd.Flags().StringVar(&f.preferred, "preferred", "", "provider to try first")
	cmd.Flags().StringVar(&f.article, "article", "", "article URL whose og:image is tried first")
	cmd.Flags().StringVar(&f.lang, "lang", "", "wikipedia language")
	cmd.Flags().DurationVar(&f.timeout, "timeout", time.Minute, "overall lookup deadline")
}

// resolver builds a resolver from the environment with the flags laid over.
func (f *imageFlags) resolver(log *slog.Logger) (*images.Resolver, images.Options, error) {
	cfg, err := config.LoadImages()
	if err != nil {
		return nil, images.Options{}, err
	}
	opts := images.OptionsFromConfig(*cfg)

	if f.sources != "" {
		opts.Sources = nil
		for _, name := range strings.Split(f.sources, ",") {
			src, ok := images.ParseSource(name)
			if !ok {
				return nil, opts, fmt.Errorf("unknown image source %q", name)
			}
			opts.Sources = append(opts.Sources, src)
		}
	}
	if f.preferred != "" {
		src, ok := images.ParseSource(f.preferred)
		if !ok {
			return nil, opts, fmt.Errorf("unknown image source %q", f.preferred)
		}
		opts.Preferred = src
	}
	if f.article != "" {
		opts.ArticleURL = f.article
	}
	if f.lang != "" {
		opts.Language = f.lang
	}

	r, _ := images.NewFromConfig(*cfg, log)
	return r, opts, nil
}

func newImageCmd(opts *rootOptions) *cobra.Command {
	var (
		flags imageFlags
		limit int
	)
	cmd := &cobra.Command{
		Use:   "image <query>",
		Short: "Resolve an image for a query",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, imgOpts, err := flags.resolver(opts.logger(cmd))
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), flags.timeout)
			defer cancel()

			query := strings.Join(args, " ")
			if limit > 1 {
				return writeJSON(cmd.OutOrStdout(), r.ResolveMultiple(ctx, query, limit, imgOpts))
			}
			img := r.Resolve(ctx, query, imgOpts)
			if img == nil {
				return fmt.Errorf("no image found for %q", query)
			}
			return writeJSON(cmd.OutOrStdout(), img)
		},
	}
	flags.register(cmd)
	cmd.Flags().IntVarP(&limit, "limit", "n", 1, "number of candidates to return")
	return cmd
}

func newPrefetchCmd(opts *rootOptions) *cobra.Command {
	var flags imageFlags
	cmd := &cobra.Command{
		Use:   "prefetch [file]",
		Short: "Resolve every image a document references",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := loadDocument(cmd, args)
			if err != nil {
				return err
			}
			r, imgOpts, err := flags.resolver(opts.logger(cmd))
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), flags.timeout)
			defer cancel()

			return writeJSON(cmd.OutOrStdout(), r.PrefetchDocument(ctx, doc, imgOpts))
		},
	}
	flags.register(cmd)
	return cmd
}
