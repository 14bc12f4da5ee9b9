package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/mlueckert/mist-exporter/mist"
	"github.com/mlueckert/mist-exporter/mist/misttest"
	"gopkg.in/alecthomas/kingpin.v2"
)

// recorder writes every successful API response to a capture file.
type recorder struct {
	mu     sync.Mutex
	w      io.Writer
	count  int
	logger *slog.Logger
}

func (r *recorder) wrap(next http.RoundTripper) http.RoundTripper {
	return roundTripperFunc(func(req *http.Request) (*http.Response, error) {
		resp, err := next.RoundTrip(req)
		if err != nil || resp.StatusCode != http.StatusOK {
			return resp, err
		}
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, err
		}
		resp.Body = io.NopCloser(bytes.NewReader(body))

		r.mu.Lock()
		defer r.mu.Unlock()
		if err := misttest.WriteCapture(r.w, req.URL.String(), body); err != nil {
			r.logger.Warn("failed to record response", slog.String("url", req.URL.String()), slog.Any("error", err))
			return resp, nil
		}
		r.count++
		r.logger.Info("captured", slog.Int("n", r.count), slog.String("url", req.URL.String()))
		return resp, nil
	})
}

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

func main() {
	app := kingpin.New("capture", "Captures Mist API responses into a mock-server capture file.")
	var (
		apiToken       = app.Flag("api_token", "API Token").Envar("MIST_API_TOKEN").Required().String()
		orgID          = app.Flag("org_id", "Organisation ID").Required().String()
		baseURL        = app.Flag("baseurl", "API URL if not EU").Default(mist.DefaultBaseURL).String()
		siteNameFilter = app.Flag("site_name_filter", "Filter Sites by Name (Regex)").Default(mist.DefaultSiteNameFilter).String()
		output         = app.Flag("output", "Output directory name under tools/mock-server/testdata/").Required().String()
		insecure       = app.Flag("insecure", "Skip TLS certificate verification").Bool()
		timeout        = app.Flag("timeout", "Per-request timeout").Default("30s").Duration()
		concurrency    = app.Flag("site_concurrency", "Sites fetched in parallel").Default("2").Int()
	)
	kingpin.MustParse(app.Parse(os.Args[1:]))
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	// run from tools/capture
	outputDir := filepath.Join("..", "mock-server", "testdata", *output)
	if err := os.MkdirAll(outputDir, 0o750); err != nil {
		logger.Error("failed to create output directory", slog.Any("error", err))
		os.Exit(1)
	}
	outputPath := filepath.Join(outputDir, "capture.txt")
	outputFile, err := os.Create(outputPath) //nolint:gosec // Output path is controlled by developer
	if err != nil {
		logger.Error("failed to create output file", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := outputFile.Close(); err != nil {
			logger.Warn("failed to close output file", slog.Any("error", err))
		}
	}()

	rec := &recorder{w: outputFile, logger: logger}
	client, err := mist.NewClient(mist.ClientConfig{
		BaseURL:            *baseURL,
		OrgID:              *orgID,
		Token:              *apiToken,
		SiteNameFilter:     *siteNameFilter,
		InsecureSkipVerify: *insecure,
		Timeout:            *timeout,
		SiteConcurrency:    *concurrency,
		Instrument:         rec.wrap,
	}, logger)
	if err != nil {
		logger.Error("failed to create client", slog.Any("error", err))
		os.Exit(1)
	}

	start := time.Now()
	ctx := context.Background()
	sites, err := client.Sites(ctx)
	if err != nil {
		logger.Error("failed to fetch sites", slog.Any("error", err))
		os.Exit(1)
	}
	if _, err := client.DeviceStats(ctx, sites); err != nil {
		logger.Error("failed to fetch devices", slog.Any("error", err))
		os.Exit(1)
	}
	// orgs without Mist Edges may not expose the endpoint
	if _, err := client.EdgeStats(ctx); err != nil {
		logger.Warn("failed to fetch edges", slog.Any("error", err))
	}

	logger.Info("capture finished",
		slog.Int("endpoints", rec.count),
		slog.Duration("duration", time.Since(start)),
		slog.String("file", outputPath),
	)
}
