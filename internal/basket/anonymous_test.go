package basket

import (
	"context"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

type fakeKV struct {
	values map[string]string
	ttls   map[string]time.Duration
}

func newFakeKV() *fakeKV {
	return &fakeKV{values: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeKV) Get(ctx context.Context, key string) (string, error) {
	value, ok := f.values[key]
	if !ok {
		return "", goredis.Nil
	}
	return value, nil
}

func (f *fakeKV) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	switch v := value.(type) {
	case []byte:
		f.values[key] = string(v)
	case string:
		f.values[key] = v
	}
	f.ttls[key] = ttl
	return nil
}

func (f *fakeKV) Del(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		delete(f.values, key)
	}
	return nil
}

func (f *fakeKV) AnonymousCartKey(sessionID string) string {
	return "sm:anon_cart:" + sessionID
}

func TestAnonymousStoreRoundTrip(t *testing.T) {
	t.Parallel()

	kv := newFakeKV()
	store, err := NewAnonymousStore(kv, 72*time.Hour)
	if err != nil {
		t.Fatalf("building store: %v", err)
	}

	ctx := context.Background()
	lines := []AnonymousLine{
		{ProductCode: "P-1", Quantity: 2},
		{ProductCode: "P-2", Quantity: 1},
	}
	if err := store.Save(ctx, "sess-1", lines); err != nil {
		t.Fatalf("save: %v", err)
	}
	if kv.ttls["sm:anon_cart:sess-1"] != 72*time.Hour {
		t.Fatalf("expected TTL to apply, got %v", kv.ttls["sm:anon_cart:sess-1"])
	}

	loaded, err := store.Load(ctx, "sess-1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(loaded) != 2 || loaded[0].ProductCode != "P-1" || loaded[1].Quantity != 1 {
		t.Fatalf("unexpected cart: %+v", loaded)
	}

	if err := store.Delete(ctx, "sess-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	loaded, err = store.Load(ctx, "sess-1")
	if err != nil {
		t.Fatalf("load after delete: %v", err)
	}
	if loaded != nil {
		t.Fatalf("expected empty cart after delete, got %+v", loaded)
	}
}

func TestAnonymousStoreMissingSessionIsEmpty(t *testing.T) {
	t.Parallel()

	store, err := NewAnonymousStore(newFakeKV(), time.Hour)
	if err != nil {
		t.Fatalf("building store: %v", err)
	}
	lines, err := store.Load(context.Background(), "never-seen")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if lines != nil {
		t.Fatalf("expected nil, got %+v", lines)
	}
}
