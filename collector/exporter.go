package collector

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/mlueckert/mist-exporter/mist"
	"github.com/pkg/errors"
)

// State is a step of one export run.
type State int

const (
	StateFetchingSites State = iota
	StateFetchingDevices
	StateFetchingEdges
	StateBuildingMetrics
	StateEmitting
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateFetchingSites:
		return "fetching_sites"
	case StateFetchingDevices:
		return "fetching_devices"
	case StateFetchingEdges:
		return "fetching_edges"
	case StateBuildingMetrics:
		return "building_metrics"
	case StateEmitting:
		return "emitting"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Fetcher is the remote side of an export run. *mist.Client implements it.
type Fetcher interface {
	Sites(ctx context.Context) ([]mist.Site, error)
	DeviceStats(ctx context.Context, sites []mist.Site) ([]map[string]any, error)
	EdgeStats(ctx context.Context) ([]map[string]any, error)
}

// Exporter sequences fetch, build and emit for one snapshot.
type Exporter struct {
	fetcher   Fetcher
	devices   *Builder
	edges     *Builder
	jqMetrics []*JQMetrics
	self      *SelfMetrics
	logger    *slog.Logger
	state     State
}

// NewExporter returns an *Exporter reading from fetcher. self may be nil.
func NewExporter(fetcher Fetcher, devices, edges *Builder, self *SelfMetrics, logger *slog.Logger) *Exporter {
	return &Exporter{
		fetcher: fetcher,
		devices: devices,
		edges:   edges,
		self:    self,
		logger:  logger,
		state:   StateFetchingSites,
	}
}

// WithJQMetrics sets the jq metric sets rendered after the schema metrics.
func (e *Exporter) WithJQMetrics(j []*JQMetrics) {
	e.jqMetrics = j
}

// State returns the state the last run ended in.
func (e *Exporter) State() State {
	return e.state
}

func (e *Exporter) transition(to State) {
	e.logger.Debug("state transition", slog.String("from", e.state.String()), slog.String("to", to.String()))
	e.state = to
}

// Export runs the pipeline and writes the snapshot to w. Either the full metric set followed
// by "mist_exporter_status 1" is written, or "mist_exporter_status 0" alone. Export reports
// whether the run succeeded.
func (e *Exporter) Export(ctx context.Context, w io.Writer) bool {
	start := time.Now()
	e.state = StateFetchingSites
	e.logger.Info("export started")

	lines, err := e.run(ctx, start)
	if err != nil {
		failedIn := e.state
		e.transition(StateFailed)
		e.logger.Error("export failed",
			slog.String("state", failedIn.String()),
			slog.Any("error", err),
			slog.String("stack", fmt.Sprintf("%+v", err)),
		)
		if _, werr := io.WriteString(w, FormatStatus(false)+"\n"); werr != nil {
			e.logger.Error("failed to write status", slog.Any("error", werr))
		}
		return false
	}

	if _, err := io.WriteString(w, strings.Join(lines, "\n")+"\n"); err != nil {
		e.transition(StateFailed)
		e.logger.Error("failed to write metrics", slog.Any("error", err))
		return false
	}
	e.transition(StateDone)
	e.logger.Info("export finished", slog.Int("lines", len(lines)), slog.Duration("duration", time.Since(start)))
	return true
}

// run produces every output line including the trailing status. Nothing is written until
// run returns without error.
func (e *Exporter) run(ctx context.Context, start time.Time) (lines []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			lines = nil
			err = errors.Errorf("panic during export: %v", r)
		}
	}()

	sites, err := e.fetcher.Sites(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "fetching sites")
	}
	if e.self != nil {
		e.self.SetSitesMatched(len(sites))
	}

	e.transition(StateFetchingDevices)
	rawDevices, err := e.fetcher.DeviceStats(ctx, sites)
	if err != nil {
		return nil, errors.Wrap(err, "fetching devices")
	}

	e.transition(StateFetchingEdges)
	rawEdges, err := e.fetcher.EdgeStats(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "fetching edges")
	}

	e.transition(StateBuildingMetrics)
	devices, edges := toRecords(rawDevices), toRecords(rawEdges)
	lines = append(lines, e.devices.Build(devices).Lines...)
	lines = append(lines, e.edges.Build(edges).Lines...)
	for _, j := range e.jqMetrics {
		records := devices
		if j.builder == e.edges {
			records = edges
		}
		lines = append(lines, j.Build(ctx, records)...)
	}

	e.transition(StateEmitting)
	if e.self != nil {
		selfLines, err := e.self.Render(time.Since(start))
		if err != nil {
			return nil, errors.Wrap(err, "rendering exporter metrics")
		}
		lines = append(lines, selfLines...)
	}
	return append(lines, FormatStatus(true)), nil
}

func toRecords(raw []map[string]any) []Record {
	records := make([]Record, len(raw))
	for i, r := range raw {
		records[i] = Record(r)
	}
	return records
}
