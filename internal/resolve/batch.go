// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package resolve

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/pmc-harvest/internal/metrics"
	"github.com/pdiddy/pmc-harvest/pkg/types"
)

// Options controls a batch resolution.
type Options struct {
	// Workers bounds concurrent resolutions. Values below 1 mean sequential.
	Workers int
	Log     *zap.Logger
	Metrics *metrics.Metrics
}

// Report is the outcome of a batch resolution. Descriptors has the same
// order as the input; Failures follows input order too.
type Report struct {
	Descriptors []types.MediaDescriptor
	Failures    []*ResolutionFailure
}

// Resolved returns the number of descriptors that received a URL.
func (r Report) Resolved() int {
	return len(r.Descriptors) - len(r.Failures)
}

// All resolves every descriptor with r. Per-item failures are recorded in
// the report and never stop the batch; only cancellation of ctx does.
func All(ctx context.Context, r Resolver, descs []types.MediaDescriptor, opts Options) (Report, error) {
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}

	out := make([]types.MediaDescriptor, len(descs))
	copy(out, descs)
	errs := make([]error, len(descs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range out {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			u, err := r.Resolve(gctx, out[i])
			if err != nil {
				errs[i] = err
				return nil
			}
			out[i].ResolvedURL = u
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Report{}, err
	}
	if err := ctx.Err(); err != nil {
		return Report{}, err
	}

	report := Report{Descriptors: out}
	for i, err := range errs {
		if err == nil {
			opts.Metrics.IncResolution(r.Name(), metrics.OutcomeResolved)
			continue
		}
		var rf *ResolutionFailure
		if !errors.As(err, &rf) {
			rf = failure(out[i], "", err)
		}
		opts.Metrics.IncResolution(r.Name(), metrics.OutcomeFailed)
		log.Warn("resolution failed",
			zap.String("article", rf.ArticleID),
			zap.String("media", rf.MediaID),
			zap.String("url", rf.URL),
			zap.Error(rf.Err))
		report.Failures = append(report.Failures, rf)
	}

	log.Info("resolution complete",
		zap.String("policy", r.Name()),
		zap.Int("resolved", report.Resolved()),
		zap.Int("failed", len(report.Failures)))
	return report, nil
}
