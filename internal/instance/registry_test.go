package instance

import (
	"context"
	"errors"
	"sync"
	"testing"
)

// mockRepository is an in-memory Repository.
type mockRepository struct {
	mu      sync.Mutex
	records map[string]*Record
	listErr error
	creates int
}

func newMockRepository() *mockRepository {
	return &mockRepository{records: make(map[string]*Record)}
}

func (m *mockRepository) Get(_ context.Context, id string) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	return r.Clone(), nil
}

func (m *mockRepository) List(context.Context) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := make([]Record, 0, len(m.records))
	for _, r := range m.records {
		out = append(out, *r.Clone())
	}
	return out, nil
}

func (m *mockRepository) Create(_ context.Context, r *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creates++
	if _, ok := m.records[r.ID]; ok {
		return ErrExists
	}
	m.records[r.ID] = r.Clone()
	return nil
}

func (m *mockRepository) Update(_ context.Context, r *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[r.ID]; !ok {
		return ErrNotFound
	}
	m.records[r.ID] = r.Clone()
	return nil
}

func (m *mockRepository) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[id]; !ok {
		return ErrNotFound
	}
	delete(m.records, id)
	return nil
}

func TestRegistry_Seed(t *testing.T) {
	repo := newMockRepository()
	repo.records["hue"] = &Record{ID: "hue", Kind: "hue", Name: "edited via api", Enabled: false, Source: SourceAPI}
	reg := NewRegistry(repo)

	created, err := reg.Seed(context.Background(), []Record{
		{ID: "hue", Kind: "hue", Name: "from config", Enabled: true},
		{ID: "pir", Kind: "blink", Enabled: true},
	})
	if err != nil {
		t.Fatalf("Seed: %v", err)
	}
	if created != 1 {
		t.Errorf("created = %d, want 1", created)
	}

	hue, err := reg.Get(context.Background(), "hue")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if hue.Name != "edited via api" {
		t.Errorf("existing record overwritten: %+v", hue)
	}
	pir, _ := reg.Get(context.Background(), "pir")
	if pir.Source != SourceConfig {
		t.Errorf("seeded Source = %s, want config", pir.Source)
	}

	enabled := reg.Enabled()
	if len(enabled) != 1 || enabled[0].ID != "pir" {
		t.Errorf("Enabled() = %+v, want [pir]", enabled)
	}
}

func TestRegistry_CRUD(t *testing.T) {
	reg := NewRegistry(newMockRepository())
	ctx := context.Background()

	if err := reg.Create(ctx, &Record{ID: "Bad ID", Kind: "hue"}); !errors.Is(err, ErrInvalid) {
		t.Errorf("Create invalid error = %v, want ErrInvalid", err)
	}

	rec := &Record{ID: "robot", Kind: "scarab", Params: map[string]string{"host": "a"}, Enabled: true}
	if err := reg.Create(ctx, rec); err != nil {
		t.Fatalf("Create: %v", err)
	}

	// returned records are copies
	got, _ := reg.Get(ctx, "robot")
	got.Params["host"] = "mutated"
	again, _ := reg.Get(ctx, "robot")
	if again.Params["host"] != "a" {
		t.Error("cache mutated through returned record")
	}

	upd := &Record{ID: "robot", Kind: "ignored", Params: map[string]string{"host": "b"}}
	if err := reg.Update(ctx, upd); err != nil {
		t.Fatalf("Update: %v", err)
	}
	again, _ = reg.Get(ctx, "robot")
	if again.Kind != "scarab" || again.Params["host"] != "b" {
		t.Errorf("after Update = %+v", again)
	}

	if err := reg.Delete(ctx, "robot"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if reg.Count() != 0 {
		t.Errorf("Count = %d, want 0", reg.Count())
	}
	if _, err := reg.Get(ctx, "robot"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after Delete error = %v, want ErrNotFound", err)
	}
}

func TestRegistry_RefreshCacheError(t *testing.T) {
	repo := newMockRepository()
	repo.listErr = errors.New("disk gone")
	reg := NewRegistry(repo)

	if err := reg.RefreshCache(context.Background()); err == nil {
		t.Error("RefreshCache should surface repository errors")
	}
}
