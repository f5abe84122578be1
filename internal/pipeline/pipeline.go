// Package pipeline drives councillors through homepage resolution, register
// discovery, download, text extraction and name matching, and records the
// outcome of each one.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/jonathan/council-registers/internal/crawling"
	"github.com/jonathan/council-registers/internal/democracy"
	"github.com/jonathan/council-registers/internal/fetch"
	"github.com/jonathan/council-registers/internal/homepage"
	"github.com/jonathan/council-registers/internal/observability"
	"github.com/jonathan/council-registers/internal/types"
)

const (
	DefaultWorkers = 6
	MaxWorkers     = 32
)

// Store is the persistence the pipeline needs.
type Store interface {
	ListCouncillors(ctx context.Context) ([]types.Councillor, error)
	HasRegister(ctx context.Context, councillorID int64) (bool, error)
	RegisterExists(ctx context.Context, councillorID int64, registerURL string) (bool, error)
	SaveOutcome(ctx context.Context, outcome *types.Outcome) error
	StartRun(ctx context.Context, runID uuid.UUID) error
	FinishRun(ctx context.Context, run types.ScrapeRun) error
}

// HomepageResolver finds a council's official homepage.
type HomepageResolver interface {
	Resolve(ctx context.Context, council string, refresh bool) (string, error)
}

// CandidateLocator finds register candidates for a council.
type CandidateLocator interface {
	Locate(ctx context.Context, homepageURL, council string) []crawling.Candidate
}

// ProfileFinder looks a councillor up in their council's member index.
type ProfileFinder interface {
	Find(ctx context.Context, c types.Councillor) (*democracy.Result, error)
}

// Step names reported in progress events.
const (
	StepSkip      = "skip"
	StepDemocracy = "democracy"
	StepHomepage  = "homepage"
	StepLocate    = "locate"
	StepFetch     = "fetch"
	StepDone      = "done"
)

// ProgressEvent represents a progress update during pipeline execution
type ProgressEvent struct {
	Step       string `json:"step"`
	Councillor string `json:"councillor"`
	Council    string `json:"council"`
	Message    string `json:"message"`
	RunID      string `json:"run_id,omitempty"`
}

// ProgressCallback is called when pipeline progress occurs. It may be called
// from several workers at once.
type ProgressCallback func(event ProgressEvent)

// Options holds configuration for running the pipeline
type Options struct {
	Workers int
	// Rescan reprocesses councillors that already have a register.
	Rescan bool
	// RefreshHomepages ignores cached council homepages.
	RefreshHomepages bool
	// RunID tags audit rows; a fresh one is generated when nil.
	RunID uuid.UUID
	// Finder enables member index discovery when set.
	Finder ProfileFinder
	// Renderer re-renders thin HTML candidates in a headless browser when set.
	Renderer   *fetch.Renderer
	Metrics    *observability.Metrics
	Logger     *slog.Logger
	OnProgress ProgressCallback
}

// Pipeline matches register documents to councillors.
type Pipeline struct {
	store    Store
	fetcher  fetch.Getter
	resolver HomepageResolver
	locator  CandidateLocator
	opts     Options
	logger   *slog.Logger
}

// New creates a Pipeline.
func New(store Store, fetcher fetch.Getter, resolver HomepageResolver, locator CandidateLocator, opts *Options) *Pipeline {
	p := &Pipeline{store: store, fetcher: fetcher, resolver: resolver, locator: locator}
	if opts != nil {
		p.opts = *opts
	}
	if p.opts.Workers <= 0 {
		p.opts.Workers = DefaultWorkers
	}
	if p.opts.Workers > MaxWorkers {
		p.opts.Workers = MaxWorkers
	}
	p.logger = p.opts.Logger
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

// run holds the state of one Run call.
type run struct {
	*Pipeline
	id         uuid.UUID
	homepages  *memo[string]
	candidates *memo[[]crawling.Candidate]

	mu      sync.Mutex
	summary *types.RunSummary
}

// Run processes every councillor once. It returns an error only when the seed
// list cannot be read, or ctx's error when the run was interrupted; per
// councillor failures become audit rows.
func (p *Pipeline) Run(ctx context.Context) (*types.RunSummary, error) {
	started := time.Now()
	runID := p.opts.RunID
	if runID == uuid.Nil {
		runID = uuid.New()
	}

	councillors, err := p.store.ListCouncillors(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load councillors: %w", err)
	}

	r := &run{
		Pipeline:   p,
		id:         runID,
		homepages:  newMemo[string](),
		candidates: newMemo[[]crawling.Candidate](),
		summary:    types.NewRunSummary(runID, started),
	}
	r.homepages.keepErr = homepage.IsNoHomepage
	r.summary.Total = len(councillors)

	if err := p.store.StartRun(ctx, runID); err != nil {
		p.logger.Warn("failed to record run start", "run_id", runID, "error", err)
	}
	p.logger.Info("starting scrape run", "run_id", runID, "councillors", len(councillors), "workers", p.opts.Workers)

	var g errgroup.Group
	g.SetLimit(p.opts.Workers)
	for _, c := range councillors {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			r.handle(ctx, c)
			return nil
		})
	}
	_ = g.Wait()

	s := r.summary
	sort.Slice(s.Missing, func(i, j int) bool { return s.Missing[i].ID < s.Missing[j].ID })
	s.Duration = time.Since(started)
	s.Status = types.RunCompleted
	if ctx.Err() != nil {
		s.Status = types.RunCancelled
	}

	// The run record is written even when ctx was cancelled.
	if err := p.store.FinishRun(context.WithoutCancel(ctx), s.Run()); err != nil {
		p.logger.Warn("failed to record run end", "run_id", runID, "error", err)
	}
	p.logger.Info("scrape run finished",
		"run_id", runID, "status", s.Status, "processed", s.Processed, "matched", s.Matched,
		"skipped", s.Skipped, "duration", s.Duration.Round(time.Millisecond))

	if ctx.Err() != nil {
		return s, ctx.Err()
	}
	return s, nil
}

// handle processes one councillor and commits its outcome.
func (r *run) handle(ctx context.Context, c types.Councillor) {
	if !r.opts.Rescan {
		has, err := r.store.HasRegister(ctx, c.ID)
		if err != nil {
			r.logger.Warn("failed to check existing register", "councillor", c.Name, "error", err)
		}
		if has {
			r.mu.Lock()
			r.summary.Skipped++
			r.mu.Unlock()
			r.opts.Metrics.ObserveSkipped()
			r.emit(StepSkip, c, "already has a register")
			return
		}
	}

	r.logger.Info("processing councillor", "name", c.Name, "council", c.Council, "ward", c.WardOrDefault())

	outcome, err := r.process(ctx, c)
	if err != nil {
		// Interrupted mid-way: nothing is committed and a rerun picks it up.
		r.logger.Info("councillor interrupted", "name", c.Name, "error", err)
		return
	}

	if err := r.store.SaveOutcome(context.WithoutCancel(ctx), outcome); err != nil {
		r.logger.Error("failed to save outcome", "name", c.Name, "council", c.Council, "error", err)
		r.mu.Lock()
		r.summary.StoreErrors++
		r.mu.Unlock()
		r.opts.Metrics.ObserveStoreError()
		return
	}

	r.mu.Lock()
	r.summary.Record(outcome)
	r.mu.Unlock()
	r.opts.Metrics.ObserveOutcome(outcome)

	switch {
	case outcome.Register != nil:
		r.emit(StepDone, c, "matched "+outcome.Register.RegisterURL)
	case outcome.AlreadyStored:
		r.emit(StepDone, c, "register already stored")
	case len(outcome.Audits) > 0:
		r.emit(StepDone, c, string(outcome.Audits[len(outcome.Audits)-1].IssueType))
	}
}

func (r *run) emit(step string, c types.Councillor, message string) {
	if r.opts.OnProgress == nil {
		return
	}
	r.opts.OnProgress(ProgressEvent{
		Step:       step,
		Councillor: c.Name,
		Council:    c.Council,
		Message:    message,
		RunID:      r.id.String(),
	})
}
