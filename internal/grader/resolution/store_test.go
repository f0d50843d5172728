package resolution

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"pddlgrader/internal/common/cache"
	"pddlgrader/internal/common/storage"
	"pddlgrader/internal/grader/model"
	appErr "pddlgrader/pkg/errors"

	"github.com/alicebob/miniredis/v2"
)

func sample() Decisions {
	return Decisions{
		Accepted: []string{"(a)\n(b)", "(c)"},
		Rejected: []string{""},
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	for _, suffix := range []string{".json", ".json.zst"} {
		t.Run(suffix, func(t *testing.T) {
			dir := t.TempDir()
			store := NewFileStore(filepath.Join(dir, "sub", "accepted"+suffix), filepath.Join(dir, "rejected"+suffix))
			ctx := context.Background()

			if err := store.Save(ctx, sample()); err != nil {
				t.Fatalf("save: %v", err)
			}
			got, err := store.Load(ctx)
			if err != nil {
				t.Fatalf("load: %v", err)
			}
			if len(got.Accepted) != 2 || got.Accepted[0] != "(a)\n(b)" || len(got.Rejected) != 1 || got.Rejected[0] != "" {
				t.Fatalf("unexpected decisions %+v", got)
			}
		})
	}
}

func TestFileStorePlainIsJSONArray(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "accepted.json")
	store := NewFileStore(path, filepath.Join(dir, "rejected.json"))
	if err := store.Save(context.Background(), Decisions{}); err != nil {
		t.Fatalf("save: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(bytes.TrimSpace(data)) != "[]" {
		t.Fatalf("expected empty JSON array, got %q", data)
	}
}

func TestFileStoreMissingAndCorrupt(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore(filepath.Join(dir, "none.json"), filepath.Join(dir, "bad.json"))
	got, err := store.Load(context.Background())
	if err != nil || got.Len() != 0 {
		t.Fatalf("expected empty decisions for missing files, got %+v %v", got, err)
	}
	if err := os.WriteFile(filepath.Join(dir, "bad.json"), []byte("{not a list"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := store.Load(context.Background()); !appErr.Is(err, appErr.DecisionStoreFailed) {
		t.Fatalf("expected decision store error, got %v", err)
	}
}

func TestRedisStoreRoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	c, err := cache.NewRedisCacheWithConfig(&cache.RedisConfig{Addr: mr.Addr()})
	if err != nil {
		t.Fatalf("redis: %v", err)
	}
	defer c.Close()
	ctx := context.Background()

	store := NewRedisStore(c, "", model.ModeDomain)
	if err := store.Save(ctx, sample()); err != nil {
		t.Fatalf("save: %v", err)
	}
	if !mr.Exists("grader:decisions:mode1:accepted") {
		t.Fatalf("expected per-mode key")
	}
	got, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	normalized, _ := got.Normalize()
	if len(normalized.Accepted) != 2 || len(normalized.Rejected) != 1 {
		t.Fatalf("unexpected decisions %+v", normalized)
	}

	other, err := NewRedisStore(c, "", model.ModeProblem).Load(ctx)
	if err != nil || other.Len() != 0 {
		t.Fatalf("expected modes to be separate, got %+v %v", other, err)
	}

	if err := store.Save(ctx, Decisions{Accepted: []string{"(c)"}}); err != nil {
		t.Fatalf("save again: %v", err)
	}
	got, _ = store.Load(ctx)
	if len(got.Accepted) != 1 || len(got.Rejected) != 0 {
		t.Fatalf("expected save to overwrite, got %+v", got)
	}
}

type memoryStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemoryStorage() *memoryStorage {
	return &memoryStorage{objects: make(map[string][]byte)}
}

func (m *memoryStorage) PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64, contentType string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[bucket+"/"+key] = data
	return nil
}

func (m *memoryStorage) GetObject(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[bucket+"/"+key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memoryStorage) StatObject(ctx context.Context, bucket, key string) (storage.ObjectStat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[bucket+"/"+key]
	if !ok {
		return storage.ObjectStat{}, storage.ErrObjectNotFound
	}
	return storage.ObjectStat{SizeBytes: int64(len(data))}, nil
}

func TestObjectStoreRoundTrip(t *testing.T) {
	mem := newMemoryStorage()
	store := NewObjectStore(mem, "grading", "", model.ModeProblem)
	ctx := context.Background()

	empty, err := store.Load(ctx)
	if err != nil || empty.Len() != 0 {
		t.Fatalf("expected empty decisions, got %+v %v", empty, err)
	}
	if err := store.Save(ctx, sample()); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, ok := mem.objects["grading/decisions/mode2/accepted.json"]; !ok {
		t.Fatalf("expected accepted object, got %v", mem.objects)
	}
	got, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got.Accepted) != 2 || len(got.Rejected) != 1 {
		t.Fatalf("unexpected decisions %+v", got)
	}
}
