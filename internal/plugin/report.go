package plugin

import (
	"sync"

	"github.com/rs/zerolog"
)

// SummaryItem is one key/value line of an execution report.
type SummaryItem struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// ExecutionReport describes the progress or outcome of one execution.
type ExecutionReport struct {
	EntityCount   int           `json:"entityCount"`
	Operation     string        `json:"operation,omitempty"`
	OperationDesc string        `json:"operationDesc,omitempty"`
	Summary       []SummaryItem `json:"summary,omitempty"`
	Warnings      []string      `json:"warnings,omitempty"`
	Error         string        `json:"error,omitempty"`
}

// Reporter receives execution reports. Every call replaces the previous
// report.
type Reporter interface {
	Update(report ExecutionReport)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(ExecutionReport)

func (f ReporterFunc) Update(r ExecutionReport) { f(r) }

// NopReporter discards reports.
type NopReporter struct{}

func (NopReporter) Update(ExecutionReport) {}

// Recorder keeps every report it receives.
type Recorder struct {
	mu      sync.Mutex
	reports []ExecutionReport
}

func (r *Recorder) Update(report ExecutionReport) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, report)
}

// Reports returns the reports received so far.
func (r *Recorder) Reports() []ExecutionReport {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ExecutionReport(nil), r.reports...)
}

// Last returns the latest report.
func (r *Recorder) Last() (ExecutionReport, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.reports) == 0 {
		return ExecutionReport{}, false
	}
	return r.reports[len(r.reports)-1], true
}

// LogReporter writes reports to a logger.
type LogReporter struct {
	Logger zerolog.Logger
}

func (l LogReporter) Update(r ExecutionReport) {
	ev := l.Logger.Info()
	if r.Error != "" {
		ev = l.Logger.Error().Str("error", r.Error)
	} else if len(r.Warnings) > 0 {
		ev = l.Logger.Warn().Strs("warnings", r.Warnings)
	}
	for _, item := range r.Summary {
		ev = ev.Str(item.Key, item.Value)
	}
	ev.Int("entity_count", r.EntityCount).Str("operation", r.Operation).Msg(r.OperationDesc)
}

// Tee fans reports out to several reporters.
func Tee(reporters ...Reporter) Reporter {
	return ReporterFunc(func(r ExecutionReport) {
		for _, rep := range reporters {
			if rep != nil {
				rep.Update(r)
			}
		}
	})
}
