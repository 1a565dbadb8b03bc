package core

// run.go manages validation runs.
//
// A run is one import job: it owns a cloned schema, a RowValidator and the
// RunState the validator mutates. Rows of a run are validated one request at
// a time under the run's mutex; different runs proceed in parallel, capped by
// the RunLimiter. Runs end on Finish or when the reaper finds them idle for
// longer than the TTL.

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/catalogimport/internal/catalog"
)

var (
	// ErrRunNotFound is returned for unknown, finished or reaped runs.
	ErrRunNotFound = errors.New("validation run not found")

	// ErrNoEntityType is returned by Start when no entity type is given.
	ErrNoEntityType = errors.New("entity type is required")

	// ErrEmptySchema is returned by Start when the entity type defines no attributes.
	ErrEmptySchema = errors.New("entity type has no attributes")
)

const (
	DefaultRunTTL       = 30 * time.Minute
	DefaultReapInterval = time.Minute
)

// ManagerConfig holds run settings. Zero values fall back to the defaults.
type ManagerConfig struct {
	Separator     string
	EmptyValue    string
	SortOrder     int
	TTL           time.Duration
	MaxConcurrent int
	MaxWait       time.Duration
}

func (c ManagerConfig) withDefaults() ManagerConfig {
	if c.Separator == "" {
		c.Separator = DefaultMultiValueSeparator
	}
	if c.EmptyValue == "" {
		c.EmptyValue = DefaultEmptyValue
	}
	if c.SortOrder == 0 {
		c.SortOrder = DefaultOptionSortOrder
	}
	if c.TTL <= 0 {
		c.TTL = DefaultRunTTL
	}
	return c
}

// LineRow is a row tagged with its position in the feed.
type LineRow struct {
	Line int
	Data RowData
}

// Run is one validation run.
type Run struct {
	ID         string
	EntityType string
	StartedAt  time.Time

	mu          sync.Mutex
	schema      catalog.Schema
	validator   *RowValidator
	registrar   *OptionRegistrar
	logger      *slog.Logger
	rows        int
	invalidRows int

	lastActivity atomic.Int64 // unix nanos
}

func (r *Run) touch(now time.Time) {
	r.lastActivity.Store(now.UnixNano())
}

func (r *Run) idleSince() time.Time {
	return time.Unix(0, r.lastActivity.Load())
}

// validate runs every row through the validator in order.
func (r *Run) validate(ctx context.Context, rows []LineRow) ([]RowResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	results := make([]RowResult, 0, len(rows))
	for i, row := range rows {
		if i%ContextCheckInterval == 0 && ctx.Err() != nil {
			return results, ctx.Err()
		}
		res := r.validator.ValidateRow(ctx, row.Data, r.schema)
		res.Line = row.Line
		r.rows++
		if !res.Valid {
			r.invalidRows++
		}
		results = append(results, res)
	}
	return results, nil
}

func (r *Run) summary() RunSummary {
	r.mu.Lock()
	defer r.mu.Unlock()

	return RunSummary{
		RunID:          r.ID,
		EntityType:     r.EntityType,
		StartedAt:      r.StartedAt,
		LastActivity:   r.idleSince(),
		Rows:           r.rows,
		InvalidRows:    r.invalidRows,
		OptionsCreated: r.registrar.Created(),
		OptionFailures: r.registrar.Failures(),
		DynamicOptions: r.validator.State().Options.Len(),
	}
}

// ContextCheckInterval is how many rows are validated between cancellation checks.
var ContextCheckInterval = 100

// RunManager tracks open runs.
type RunManager struct {
	catalog       Catalog
	cfg           ManagerConfig
	limiter       *RunLimiter
	listeners     []OptionListener
	recorder      Recorder
	logger        *slog.Logger
	validatorOpts []ValidatorOption
	now           func() time.Time

	mu   sync.RWMutex
	runs map[string]*Run
}

// ManagerOption configures a RunManager.
type ManagerOption func(*RunManager)

// WithListeners subscribes listeners to option creation in every run.
func WithListeners(ls ...OptionListener) ManagerOption {
	return func(m *RunManager) { m.listeners = append(m.listeners, ls...) }
}

// WithRunRecorder sets the telemetry sink for runs and their validators.
func WithRunRecorder(r Recorder) ManagerOption {
	return func(m *RunManager) { m.recorder = r }
}

// WithLogger sets the base logger; runs add run_id and entity_type.
func WithLogger(l *slog.Logger) ManagerOption {
	return func(m *RunManager) { m.logger = l }
}

// WithValidatorOptions appends options applied to every run's validator.
func WithValidatorOptions(opts ...ValidatorOption) ManagerOption {
	return func(m *RunManager) { m.validatorOpts = append(m.validatorOpts, opts...) }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *RunManager) { m.now = now }
}

// NewRunManager creates a manager backed by cat.
func NewRunManager(cat Catalog, cfg ManagerConfig, opts ...ManagerOption) *RunManager {
	cfg = cfg.withDefaults()
	m := &RunManager{
		catalog:  cat,
		cfg:      cfg,
		limiter:  NewRunLimiter(cfg.MaxConcurrent, cfg.MaxWait),
		recorder: nopRecorder{},
		logger:   slog.Default(),
		now:      time.Now,
		runs:     make(map[string]*Run),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start opens a run for entityType and returns its id.
// The schema is loaded once and cloned, so option sets grow per run only.
func (m *RunManager) Start(ctx context.Context, entityType string) (string, error) {
	if entityType == "" {
		return "", ErrNoEntityType
	}

	if err := m.limiter.Acquire(ctx); err != nil {
		return "", fmt.Errorf("start run: %w", err)
	}

	schema, err := m.catalog.LoadSchema(ctx, entityType)
	if err != nil {
		m.limiter.Release()
		return "", fmt.Errorf("load schema for %s: %w", entityType, err)
	}
	if len(schema) == 0 {
		m.limiter.Release()
		return "", fmt.Errorf("%w: %s", ErrEmptySchema, entityType)
	}

	id := uuid.New().String()
	logger := m.logger.With("run_id", id, "entity_type", entityType)

	registrar := NewOptionRegistrar(m.catalog.OptionCreator(entityType), m.listeners...)
	registrar.recorder = m.recorder
	registrar.logger = logger

	opts := []ValidatorOption{
		WithSeparator(m.cfg.Separator),
		WithEmptyValue(m.cfg.EmptyValue),
		WithOptionSortOrder(m.cfg.SortOrder),
		WithRecorder(m.recorder),
	}
	opts = append(opts, m.validatorOpts...)

	now := m.now()
	run := &Run{
		ID:         id,
		EntityType: entityType,
		StartedAt:  now,
		schema:     schema.Clone(),
		validator:  NewRowValidator(NewRunState(), registrar, opts...),
		registrar:  registrar,
		logger:     logger,
	}
	run.touch(now)

	m.mu.Lock()
	m.runs[id] = run
	active := len(m.runs)
	m.mu.Unlock()

	m.recorder.RunsActive(active)
	logger.Info("validation run started", "attributes", len(schema))

	return id, nil
}

// Get returns the open run with id.
func (m *RunManager) Get(id string) (*Run, error) {
	m.mu.RLock()
	run, ok := m.runs[id]
	m.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return run, nil
}

// Validate validates rows in order. Result lines are 1-based positions in rows.
func (m *RunManager) Validate(ctx context.Context, id string, rows []RowData) ([]RowResult, error) {
	lines := make([]LineRow, len(rows))
	for i, row := range rows {
		lines[i] = LineRow{Line: i + 1, Data: row}
	}
	return m.ValidateLines(ctx, id, lines)
}

// ValidateLines validates rows that carry their own feed line numbers.
func (m *RunManager) ValidateLines(ctx context.Context, id string, rows []LineRow) ([]RowResult, error) {
	run, err := m.Get(id)
	if err != nil {
		return nil, err
	}

	start := m.now()
	run.touch(start)
	results, err := run.validate(ctx, rows)
	run.touch(m.now())

	invalid := 0
	for _, res := range results {
		if !res.Valid {
			invalid++
		}
	}
	run.logger.Debug("rows validated",
		"rows", len(results),
		"invalid", invalid,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if err != nil {
		return results, fmt.Errorf("validate rows: %w", err)
	}
	return results, nil
}

// Summary returns the run's counters.
func (m *RunManager) Summary(id string) (RunSummary, error) {
	run, err := m.Get(id)
	if err != nil {
		return RunSummary{}, err
	}
	return run.summary(), nil
}

// List returns summaries of all open runs, oldest first.
func (m *RunManager) List() []RunSummary {
	m.mu.RLock()
	runs := make([]*Run, 0, len(m.runs))
	for _, r := range m.runs {
		runs = append(runs, r)
	}
	m.mu.RUnlock()

	out := make([]RunSummary, 0, len(runs))
	for _, r := range runs {
		out = append(out, r.summary())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].RunID < out[j].RunID
		}
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out
}

// Finish closes the run, discards its state and returns its final summary.
func (m *RunManager) Finish(id string) (RunSummary, error) {
	run, active, ok := m.remove(id)
	if !ok {
		return RunSummary{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}

	summary := run.summary()
	m.recorder.RunsActive(active)
	run.logger.Info("validation run finished",
		"rows", summary.Rows,
		"invalid_rows", summary.InvalidRows,
		"options_created", summary.OptionsCreated,
		"option_failures", summary.OptionFailures,
	)
	return summary, nil
}

// Reap drops runs idle for longer than the TTL and returns how many it dropped.
func (m *RunManager) Reap(now time.Time) int {
	m.mu.RLock()
	var expired []string
	for id, r := range m.runs {
		if now.Sub(r.idleSince()) > m.cfg.TTL {
			expired = append(expired, id)
		}
	}
	m.mu.RUnlock()

	n := 0
	active := m.ActiveRuns()
	for _, id := range expired {
		run, left, ok := m.remove(id)
		if !ok {
			continue
		}
		n++
		active = left
		run.logger.Info("validation run expired", "idle_since", run.idleSince())
	}
	if n > 0 {
		m.recorder.RunsActive(active)
	}
	return n
}

// StartReaper reaps idle runs every interval until ctx is cancelled.
func (m *RunManager) StartReaper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultReapInterval
	}
	m.logger.Info("run reaper started", "interval", interval, "ttl", m.cfg.TTL)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("run reaper stopped")
			return
		case <-ticker.C:
			if n := m.Reap(m.now()); n > 0 {
				m.logger.Info("reaped idle runs", "runs", n, "active", m.ActiveRuns())
			}
		}
	}
}

// ActiveRuns returns the number of open runs.
func (m *RunManager) ActiveRuns() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.runs)
}

// LimiterStatus reports run slot usage.
func (m *RunManager) LimiterStatus() RunLimiterStatus {
	return m.limiter.Status()
}

// remove deletes the run and frees its slot. Only the caller that removes a
// run releases its slot.
func (m *RunManager) remove(id string) (*Run, int, bool) {
	m.mu.Lock()
	run, ok := m.runs[id]
	if ok {
		delete(m.runs, id)
	}
	active := len(m.runs)
	m.mu.Unlock()

	if ok {
		m.limiter.Release()
	}
	return run, active, ok
}
