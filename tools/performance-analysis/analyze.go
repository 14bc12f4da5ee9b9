package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"slices"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"gopkg.in/alecthomas/kingpin.v2"
)

// RunResult holds the outcome of one exporter invocation.
type RunResult struct {
	BaseURL      string        `json:"baseurl"`
	Duration     time.Duration `json:"duration"`
	Series       int           `json:"series"`
	Status       float64       `json:"status"`
	APIRequests  float64       `json:"api_requests"`
	RunDuration  time.Duration `json:"run_duration"`
	SitesMatched float64       `json:"sites_matched"`
	Error        string        `json:"error,omitempty"`
}

// Succeeded reports whether the exporter printed mist_exporter_status 1.
func (r RunResult) Succeeded() bool {
	return r.Error == "" && r.Status == 1
}

// Config holds the configuration for the analysis
type Config struct {
	Exporter string
	BaseURL  string
	Args     []string
	Runs     int
	Timeout  time.Duration
	Verbose  bool
	Format   string

	// Comparison mode
	CompareMode bool
	MockBaseURL string
	LiveBaseURL string
}

func main() {
	var config Config
	app := kingpin.New("performance-analysis", "Runs mist_exporter repeatedly and reports timing and series counts.")
	app.Flag("exporter", "Path to the mist_exporter binary").Default("./mist_exporter").StringVar(&config.Exporter)
	app.Flag("baseurl", "API URL passed to the exporter (empty keeps the exporter default)").StringVar(&config.BaseURL)
	app.Flag("runs", "Number of exporter runs to perform").Default("1").IntVar(&config.Runs)
	app.Flag("timeout", "Kill a run after this long").Default("2m").DurationVar(&config.Timeout)
	app.Flag("verbose", "Verbose output").BoolVar(&config.Verbose)
	app.Flag("format", "Output format (text or json)").Default("text").EnumVar(&config.Format, "text", "json")
	app.Flag("compare", "Compare a mock API against the live API").BoolVar(&config.CompareMode)
	app.Flag("mock", "Mock API URL (for comparison)").Default("http://localhost:8080/api/v1").StringVar(&config.MockBaseURL)
	app.Flag("live", "Live API URL (for comparison)").Default("https://api.eu.mist.com/api/v1").StringVar(&config.LiveBaseURL)
	app.Arg("exporter-args", "Arguments passed through to mist_exporter, after --").StringsVar(&config.Args)
	kingpin.MustParse(app.Parse(os.Args[1:]))

	if config.CompareMode {
		runComparison(config)
		return
	}
	runAnalysis(config)
}

func runAnalysis(config Config) {
	fmt.Printf("Analyzing %s against %s\n", config.Exporter, displayURL(config.BaseURL))
	fmt.Printf("Running %d export(s)...\n\n", config.Runs)

	results := runSeries(config, config.BaseURL)
	printSummary(results, config)
}

func runComparison(config Config) {
	fmt.Println("=== Mist API Performance Comparison ===")
	fmt.Printf("Mock API: %s\n", config.MockBaseURL)
	fmt.Printf("Live API: %s\n", config.LiveBaseURL)

	fmt.Println("\nTesting MOCK API...")
	mockResults := runSeries(config, config.MockBaseURL)
	fmt.Println("\nTesting LIVE API...")
	liveResults := runSeries(config, config.LiveBaseURL)

	printComparisonSummary(mockResults, liveResults)
}

func runSeries(config Config, baseURL string) []RunResult {
	results := make([]RunResult, config.Runs)
	for i := range config.Runs {
		fmt.Printf("  Run %d/%d: ", i+1, config.Runs)
		result := performRun(config, baseURL)
		results[i] = result

		switch {
		case result.Error != "":
			fmt.Printf("ERROR: %s\n", result.Error)
		case !result.Succeeded():
			fmt.Printf("FAILED: %v (mist_exporter_status=%v)\n", result.Duration, result.Status)
		default:
			fmt.Printf("%v (%d series, %v API requests)\n", result.Duration, result.Series, result.APIRequests)
		}
		if config.Verbose && result.Error == "" {
			fmt.Printf("    exporter run duration: %v, sites matched: %v\n", result.RunDuration, result.SitesMatched)
		}
	}
	return results
}

func performRun(config Config, baseURL string) RunResult {
	result := RunResult{BaseURL: baseURL}

	args := slices.Clone(config.Args)
	if baseURL != "" {
		args = append(args, "--baseurl", baseURL)
	}
	ctx, cancel := context.WithTimeout(context.Background(), config.Timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, config.Exporter, args...) //nolint:gosec // Binary and args are controlled by developer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	result.Duration = time.Since(start)
	if err != nil {
		result.Error = fmt.Sprintf("exporter failed: %v: %s", err, stderr.String())
		return result
	}

	if err := parseOutput(&stdout, &result); err != nil {
		result.Error = err.Error()
	}
	return result
}

// parseOutput reads the exporter's exposition output into result.
func parseOutput(r io.Reader, result *RunResult) error {
	parser := expfmt.TextParser{}
	metricFamilies, err := parser.TextToMetricFamilies(r)
	if err != nil {
		return fmt.Errorf("failed to parse exporter output: %w", err)
	}

	for name, mf := range metricFamilies {
		result.Series += len(mf.Metric)
		switch name {
		case "mist_exporter_status":
			result.Status = sampleSum(mf)
		case "mist_exporter_api_requests_total":
			result.APIRequests = sampleSum(mf)
		case "mist_exporter_run_duration_seconds":
			result.RunDuration = time.Duration(sampleSum(mf) * float64(time.Second))
		case "mist_exporter_sites_matched":
			result.SitesMatched = sampleSum(mf)
		}
	}
	return nil
}

func sampleSum(mf *dto.MetricFamily) float64 {
	var sum float64
	for _, m := range mf.Metric {
		switch {
		case m.Counter != nil:
			sum += m.Counter.GetValue()
		case m.Gauge != nil:
			sum += m.Gauge.GetValue()
		case m.Untyped != nil:
			sum += m.Untyped.GetValue()
		}
	}
	return sum
}

func displayURL(u string) string {
	if u == "" {
		return "the exporter's default API URL"
	}
	return u
}

type stats struct {
	avg         time.Duration
	min         time.Duration
	max         time.Duration
	p50         time.Duration
	p95         time.Duration
	p99         time.Duration
	series      int
	apiRequests float64
	count       int
}

// percentile expects sorted durations.
func percentile(sorted []time.Duration, p int) time.Duration {
	return sorted[len(sorted)*p/100]
}

func calculateStats(results []RunResult) stats {
	var durations []time.Duration
	var total time.Duration
	var series int
	var requests float64
	for _, r := range results {
		if !r.Succeeded() {
			continue
		}
		durations = append(durations, r.Duration)
		total += r.Duration
		series += r.Series
		requests += r.APIRequests
	}
	if len(durations) == 0 {
		return stats{}
	}
	slices.Sort(durations)
	n := len(durations)
	return stats{
		avg:         total / time.Duration(n),
		min:         durations[0],
		max:         durations[n-1],
		p50:         percentile(durations, 50),
		p95:         percentile(durations, 95),
		p99:         percentile(durations, 99),
		series:      series / n,
		apiRequests: requests / float64(n),
		count:       n,
	}
}

func printSummary(results []RunResult, config Config) {
	if len(results) == 0 {
		return
	}
	fmt.Println("\n=== Performance Analysis Summary ===")

	s := calculateStats(results)
	if s.count == 0 {
		fmt.Println("\n✗ No successful exports")
		fmt.Println("\nLikely causes:")
		fmt.Println("  • Invalid API token or org id")
		fmt.Println("  • API not reachable (check --baseurl and network)")
		fmt.Println("  • TLS certificate issues (try --ignore_ssl against the mock)")
		fmt.Println("\nDebug steps:")
		fmt.Println("  1. Check the exporter log file (--log_fullpath)")
		fmt.Println("  2. Re-run with --debug for request level logs")
		return
	}

	fmt.Printf("Successful exports: %d/%d\n", s.count, len(results))
	fmt.Printf("Average duration: %v\n", s.avg)
	fmt.Printf("Min duration: %v\n", s.min)
	fmt.Printf("Max duration: %v\n", s.max)
	if s.count > 1 {
		fmt.Printf("P50: %v, P95: %v, P99: %v\n", s.p50, s.p95, s.p99)
	}
	fmt.Printf("Average series: %d\n", s.series)
	fmt.Printf("Average API requests: %.1f\n", s.apiRequests)

	fmt.Println("\n=== Performance Analysis ===")
	switch {
	case s.avg < time.Second:
		fmt.Printf("✓ GOOD: Average export time is %v (< 1s)\n", s.avg)
	case s.avg < 10*time.Second:
		fmt.Printf("⚠ SLOW: Average export time is %v (1s - 10s)\n", s.avg)
		fmt.Println("  Consider raising --site_concurrency")
	default:
		fmt.Printf("✗ CRITICAL: Average export time is %v (> 10s)\n", s.avg)
		fmt.Println("  Narrow --site_name_filter or raise --site_concurrency")
	}
	if s.count > 1 && s.max-s.min > s.avg/2 {
		fmt.Printf("\n⚠ HIGH VARIANCE: Export times vary by %v\n", s.max-s.min)
		fmt.Println("  This suggests API rate limiting or intermittent latency")
	}

	if config.Format == "json" {
		fmt.Println("\n=== JSON Output ===")
		output := map[string]any{
			"exporter":     config.Exporter,
			"runs":         len(results),
			"successful":   s.count,
			"avg_duration": s.avg.Seconds(),
			"p95_duration": s.p95.Seconds(),
			"avg_series":   s.series,
			"results":      results,
		}
		jsonData, err := json.MarshalIndent(output, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error encoding JSON: %v\n", err)
			return
		}
		fmt.Println(string(jsonData))
	}
}

func printComparisonSummary(mockResults, liveResults []RunResult) {
	mockStats := calculateStats(mockResults)
	liveStats := calculateStats(liveResults)

	if mockStats.count == 0 || liveStats.count == 0 {
		fmt.Println("\n✗ Unable to compare - exports failed")
		if mockStats.count == 0 {
			fmt.Println("  Mock exports failed. Check that tools/mock-server is running and the token matches")
		}
		if liveStats.count == 0 {
			fmt.Println("  Live exports failed. Check MIST_API_TOKEN and --org_id")
		}
		return
	}

	slowdown := float64(liveStats.avg) / float64(mockStats.avg)
	fmt.Println("\n=== Performance Summary ===")
	fmt.Printf("%-20s %15s %15s\n", "Target", "Mock", "Live")
	fmt.Printf("%-20s %15v %15v\n", "Average Duration", mockStats.avg, liveStats.avg)
	fmt.Printf("%-20s %15v %15v\n", "Min Duration", mockStats.min, liveStats.min)
	fmt.Printf("%-20s %15v %15v\n", "Max Duration", mockStats.max, liveStats.max)
	fmt.Printf("%-20s %15d %15d\n", "Avg Series", mockStats.series, liveStats.series)
	fmt.Printf("%-20s %15.1f %15.1f\n", "Avg API Requests", mockStats.apiRequests, liveStats.apiRequests)
	fmt.Printf("\nLive API is %.1fx slower than mock; network and API overhead: %v\n", slowdown, liveStats.avg-mockStats.avg)
}
