// Package migrate runs a job against a Jamf instance: one authentication,
// one enumeration, then a fetch and transform for every listed resource.
//
// Authentication and enumeration failures end the run. Everything that goes
// wrong with a single resource is recorded as a skip and the run moves on.
package migrate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/macadmin-tools/jamfkit/internal/jamf"
	"github.com/macadmin-tools/jamfkit/internal/job"
	"github.com/macadmin-tools/jamfkit/internal/outcome"
	"github.com/macadmin-tools/jamfkit/internal/resource"
)

// Source is the part of the Jamf API a run needs. *jamf.Client implements it.
type Source interface {
	BaseURL() string
	Authenticate(ctx context.Context) (resource.Credential, error)
	ListIDs(ctx context.Context, ep resource.Endpoint, cred resource.Credential) ([]resource.Ref, error)
	FetchDetail(ctx context.Context, ep resource.Endpoint, ref resource.Ref, cred resource.Credential) (resource.Detail, error)
}

var _ Source = (*jamf.Client)(nil)

// Result is the output of a run.
type Result struct {
	// Records holds the accepted records in listing order.
	Records []resource.Record
	Summary outcome.Summary
}

// Migrator runs jobs against a Source.
type Migrator struct {
	source Source
	logger *slog.Logger
	now    func() time.Time
}

// New creates a Migrator. A nil logger discards output.
func New(source Source, logger *slog.Logger) *Migrator {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Migrator{source: source, logger: logger, now: time.Now}
}

// Run executes j. The returned error wraps jamf.ErrAuth or
// jamf.ErrEnumeration for fatal failures, or the context error when ctx is
// cancelled between two resources.
func (m *Migrator) Run(ctx context.Context, j *job.Job) (*Result, error) {
	summary := outcome.NewSummary()
	logger := m.logger.With("job", j.Name)

	cred, err := m.source.Authenticate(ctx)
	if err != nil {
		return nil, wrapFatal(jamf.ErrAuth, err)
	}

	refs, err := m.source.ListIDs(ctx, j.Endpoint, cred)
	if err != nil {
		return nil, wrapFatal(jamf.ErrEnumeration, err)
	}
	summary.Listed = len(refs)
	logger.Info("Processing resources", "collection", j.Endpoint.Collection, "count", len(refs))

	res := &Result{Records: []resource.Record{}}
	positions := make(map[string]int)
	expiryLogged := false

	for i, ref := range refs {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("run interrupted after %d of %d resources: %w", i, len(refs), err)
		}
		if !expiryLogged && cred.Expired(m.now()) {
			logger.Warn("Bearer token has expired; remaining requests are likely to fail", "expired_at", cred.ExpiresAt)
			expiryLogged = true
		}

		rec, err := m.process(ctx, j, ref, cred)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
				return nil, fmt.Errorf("run interrupted after %d of %d resources: %w", i, len(refs), ctxErr)
			}
			skip := outcome.Classify(ref, err)
			summary.Skip(skip)
			logSkip(logger, skip)
			continue
		}
		summary.Accept()

		if j.KeyField == "" {
			res.Records = append(res.Records, rec)
			continue
		}
		key := fmt.Sprintf("%v", rec[j.KeyField])
		if pos, dup := positions[key]; dup {
			logger.Warn("Duplicate key, replacing earlier record", "key_field", j.KeyField, "key", key, "id", ref.ID)
			res.Records[pos] = rec
			summary.Replaced++
			continue
		}
		positions[key] = len(res.Records)
		res.Records = append(res.Records, rec)
	}

	summary.Emitted = len(res.Records)
	summary.CompletedAt = m.now().UTC()
	res.Summary = summary

	logger.Info("Run complete",
		"listed", summary.Listed,
		"emitted", summary.Emitted,
		"declined", summary.ByReason[outcome.Declined],
		"failed", summary.Failed(),
	)
	return res, nil
}

// process fetches and transforms a single resource. The detail is fetched
// exactly once.
func (m *Migrator) process(ctx context.Context, j *job.Job, ref resource.Ref, cred resource.Credential) (resource.Record, error) {
	detail, err := m.source.FetchDetail(ctx, j.Endpoint, ref, cred)
	if err != nil {
		return nil, err
	}
	rec, err := j.Transformer.Transform(detail)
	if err != nil {
		return nil, err
	}
	if j.KeyField != "" {
		if _, ok := rec[j.KeyField]; !ok {
			return nil, &resource.FieldError{Path: []string{j.KeyField}}
		}
	}
	return rec, nil
}

func logSkip(logger *slog.Logger, skip *outcome.Skip) {
	attrs := []interface{}{"id", skip.Ref.ID, "reason", skip.Reason}
	if skip.Err != nil {
		attrs = append(attrs, "detail", skip.Err.Error())
	}
	if skip.Reason == outcome.Declined {
		logger.Info("Resource declined", attrs...)
		return
	}
	logger.Warn("Skipping resource", attrs...)
}

// wrapFatal makes sure err matches sentinel with errors.Is.
func wrapFatal(sentinel, err error) error {
	if errors.Is(err, sentinel) {
		return err
	}
	return fmt.Errorf("%w: %w", sentinel, err)
}
