package instance

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Logger is the logging interface used by the Registry.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Registry caches instance records over a Repository. Safe for concurrent
// use; returned records are copies.
type Registry struct {
	repo    Repository
	cache   map[string]*Record
	cacheMu sync.RWMutex
	logger  Logger
}

// NewRegistry wraps repo. Call RefreshCache or Seed before reading.
func NewRegistry(repo Repository) *Registry {
	return &Registry{
		repo:   repo,
		cache:  make(map[string]*Record),
		logger: noopLogger{},
	}
}

// SetLogger sets the registry logger.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// RefreshCache reloads every record from the repository.
func (r *Registry) RefreshCache(ctx context.Context) error {
	records, err := r.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("loading instances: %w", err)
	}

	r.cacheMu.Lock()
	r.cache = make(map[string]*Record, len(records))
	for i := range records {
		r.cache[records[i].ID] = records[i].Clone()
	}
	r.cacheMu.Unlock()

	r.logger.Info("instance cache refreshed", "count", len(records))
	return nil
}

// Seed creates each record not already stored, then refreshes the cache.
// It returns how many were created.
func (r *Registry) Seed(ctx context.Context, records []Record) (int, error) {
	created := 0
	for i := range records {
		rec := records[i].Clone()
		rec.Source = SourceConfig
		err := r.repo.Create(ctx, rec)
		switch {
		case err == nil:
			created++
			r.logger.Debug("seeded instance", "id", rec.ID, "kind", rec.Kind)
		case errors.Is(err, ErrExists):
		default:
			return created, fmt.Errorf("seeding instance %q: %w", rec.ID, err)
		}
	}

	if err := r.RefreshCache(ctx); err != nil {
		return created, err
	}
	if created > 0 {
		r.logger.Info("seeded instances from config", "created", created, "configured", len(records))
	}
	return created, nil
}

// Get returns one record.
func (r *Registry) Get(ctx context.Context, id string) (*Record, error) {
	r.cacheMu.RLock()
	cached, ok := r.cache[id]
	r.cacheMu.RUnlock()
	if ok {
		return cached.Clone(), nil
	}

	rec, err := r.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	r.cacheMu.Lock()
	r.cache[id] = rec.Clone()
	r.cacheMu.Unlock()
	return rec, nil
}

// List returns every cached record ordered by id.
func (r *Registry) List() []Record {
	r.cacheMu.RLock()
	out := make([]Record, 0, len(r.cache))
	for _, rec := range r.cache {
		out = append(out, *rec.Clone())
	}
	r.cacheMu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Enabled returns the enabled records ordered by id.
func (r *Registry) Enabled() []Record {
	all := r.List()
	out := all[:0]
	for _, rec := range all {
		if rec.Enabled {
			out = append(out, rec)
		}
	}
	return out
}

// Create validates and stores rec.
func (r *Registry) Create(ctx context.Context, rec *Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	if err := r.repo.Create(ctx, rec); err != nil {
		return err
	}

	r.cacheMu.Lock()
	r.cache[rec.ID] = rec.Clone()
	r.cacheMu.Unlock()

	r.logger.Info("instance created", "id", rec.ID, "kind", rec.Kind)
	return nil
}

// Update stores the mutable fields of rec.
func (r *Registry) Update(ctx context.Context, rec *Record) error {
	if err := r.repo.Update(ctx, rec); err != nil {
		return err
	}

	r.cacheMu.Lock()
	if cached, ok := r.cache[rec.ID]; ok {
		rec.Kind, rec.Source, rec.CreatedAt = cached.Kind, cached.Source, cached.CreatedAt
	}
	r.cache[rec.ID] = rec.Clone()
	r.cacheMu.Unlock()

	r.logger.Info("instance updated", "id", rec.ID)
	return nil
}

// Delete removes one record.
func (r *Registry) Delete(ctx context.Context, id string) error {
	if err := r.repo.Delete(ctx, id); err != nil {
		return err
	}

	r.cacheMu.Lock()
	delete(r.cache, id)
	r.cacheMu.Unlock()

	r.logger.Info("instance deleted", "id", id)
	return nil
}

// Count returns the number of cached records.
func (r *Registry) Count() int {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()
	return len(r.cache)
}
