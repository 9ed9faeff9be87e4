package kvstore

import (
	"context"
	"sort"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"blockforge/api/internal/notify"
)

type captureNotifier struct {
	levels   []notify.Level
	messages []string
}

func (c *captureNotifier) Notify(level notify.Level, message string) {
	c.levels = append(c.levels, level)
	c.messages = append(c.messages, message)
}

func newTestRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis, *captureNotifier) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	notifier := &captureNotifier{}
	store := NewRedisStoreWithClient(client, "blockforge_", nil, notifier)
	t.Cleanup(func() { store.Close() })
	return store, mr, notifier
}

func TestRedisStoreSaveLoad(t *testing.T) {
	store, mr, _ := newTestRedisStore(t)
	ctx := context.Background()

	type record struct {
		Title string `json:"title"`
		Count int    `json:"count"`
	}

	if ok := store.Save(ctx, "document_doc_1", record{Title: "Plan", Count: 3}); !ok {
		t.Fatal("expected save to succeed")
	}
	if !mr.Exists("blockforge_document_doc_1") {
		t.Fatal("expected namespaced key in redis")
	}

	var got record
	if ok := store.Load(ctx, "document_doc_1", &got); !ok {
		t.Fatal("expected load to find record")
	}
	if got.Title != "Plan" || got.Count != 3 {
		t.Fatalf("unexpected record: %+v", got)
	}
}

func TestRedisStoreLoadMissing(t *testing.T) {
	store, _, _ := newTestRedisStore(t)

	var got map[string]any
	if ok := store.Load(context.Background(), "nope", &got); ok {
		t.Fatal("expected missing key to read as absent")
	}
}

func TestRedisStoreLoadCorrupt(t *testing.T) {
	store, mr, _ := newTestRedisStore(t)
	mr.Set("blockforge_document_doc_1", "{not json")

	var got map[string]any
	if ok := store.Load(context.Background(), "document_doc_1", &got); ok {
		t.Fatal("expected corrupt record to read as absent")
	}
}

func TestRedisStoreSaveFullStorage(t *testing.T) {
	store, mr, notifier := newTestRedisStore(t)
	mr.SetError("OOM command not allowed when used memory > 'maxmemory'")

	if ok := store.Save(context.Background(), "document_doc_1", "x"); ok {
		t.Fatal("expected save to fail")
	}
	if len(notifier.messages) != 1 {
		t.Fatalf("expected one notice, got %d", len(notifier.messages))
	}
	if notifier.messages[0] != msgStorageFull {
		t.Fatalf("expected storage-full notice, got %q", notifier.messages[0])
	}
	if notifier.levels[0] != notify.LevelError {
		t.Fatalf("expected error level, got %q", notifier.levels[0])
	}
}

func TestRedisStoreRemove(t *testing.T) {
	store, mr, _ := newTestRedisStore(t)
	ctx := context.Background()

	store.Save(ctx, "groups", []string{"a"})
	store.Remove(ctx, "groups")
	if mr.Exists("blockforge_groups") {
		t.Fatal("expected key removed")
	}
}

func TestRedisStoreListKeys(t *testing.T) {
	store, mr, _ := newTestRedisStore(t)
	ctx := context.Background()

	store.Save(ctx, "groups", 1)
	store.Save(ctx, "clients", 2)
	store.Save(ctx, "document_doc_1", 3)
	mr.Set("unrelated_key", "x")

	keys := store.ListKeys(ctx)
	sort.Strings(keys)
	want := []string{"clients", "document_doc_1", "groups"}
	if len(keys) != len(want) {
		t.Fatalf("expected %d keys, got %v", len(want), keys)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Fatalf("expected keys %v, got %v", want, keys)
		}
	}
}

func TestRedisStoreClearAll(t *testing.T) {
	store, mr, _ := newTestRedisStore(t)
	ctx := context.Background()

	store.Save(ctx, "groups", 1)
	store.Save(ctx, "document_doc_1", 2)
	mr.Set("unrelated_key", "x")

	store.ClearAll(ctx)

	if len(store.ListKeys(ctx)) != 0 {
		t.Fatal("expected namespace emptied")
	}
	if !mr.Exists("unrelated_key") {
		t.Fatal("expected keys outside the namespace untouched")
	}
}
