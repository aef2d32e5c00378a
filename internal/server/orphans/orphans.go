// Package orphans records blobs that a failed compensation or post-commit
// cleanup could not delete, so an operator can remove them later.
package orphans

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/enrollportal/internal/logging"
)

// Orphan describes one blob left behind.
type Orphan struct {
	Locator   string    `json:"locator"`
	Operation string    `json:"operation"`
	Cause     string    `json:"cause"`
	At        time.Time `json:"at"`
}

type Reporter interface {
	Report(ctx context.Context, o Orphan) error
}

// LogReporter writes orphans to the structured log.
type LogReporter struct {
	log logging.Logger
}

func NewLogReporter(log logging.Logger) *LogReporter {
	return &LogReporter{log: log.With("module", "orphans")}
}

func (r *LogReporter) Report(ctx context.Context, o Orphan) error {
	r.log.Warn(ctx, "orphaned blob", "locator", o.Locator, "operation", o.Operation, "cause", o.Cause)
	return nil
}

// Multi fans a report out to every reporter and joins their errors.
type Multi []Reporter

func (m Multi) Report(ctx context.Context, o Orphan) error {
	var errs []error
	for _, r := range m {
		if err := r.Report(ctx, o); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
