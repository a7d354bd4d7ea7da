package cache

import (
	"strings"
	"testing"
)

func TestDefaultKeyer_Deterministic(t *testing.T) {
	keyer := NewDefaultKeyer()
	params := map[string]any{"user": "alice", "page": 2, "limit": 50}

	first, err := keyer.Key("list-orders", params)
	if err != nil {
		t.Fatalf("Key() error = %v", err)
	}
	for i := 0; i < 20; i++ {
		again, err := keyer.Key("list-orders", params)
		if err != nil {
			t.Fatalf("Key() error = %v", err)
		}
		if again != first {
			t.Fatalf("Key() = %q, want stable %q", again, first)
		}
	}
}

func TestDefaultKeyer_MapOrderIndependent(t *testing.T) {
	keyer := NewDefaultKeyer()

	a, err := keyer.Key("op", map[string]any{"a": 1, "b": 2, "c": 3})
	if err != nil {
		t.Fatalf("Key() error = %v", err)
	}
	b, err := keyer.Key("op", map[string]any{"c": 3, "a": 1, "b": 2})
	if err != nil {
		t.Fatalf("Key() error = %v", err)
	}
	if a != b {
		t.Errorf("keys differ for identical params: %q vs %q", a, b)
	}
}

func TestDefaultKeyer_DistinctParamsDistinctKeys(t *testing.T) {
	keyer := NewDefaultKeyer()

	a, _ := keyer.Key("op", map[string]any{"user": "alice"})
	b, _ := keyer.Key("op", map[string]any{"user": "bob"})
	if a == b {
		t.Errorf("keys collide for distinct params: %q", a)
	}
}

func TestDefaultKeyer_Format(t *testing.T) {
	keyer := NewDefaultKeyer()

	key, err := keyer.Key("fetch-user", nil)
	if err != nil {
		t.Fatalf("Key() error = %v", err)
	}
	if !strings.HasPrefix(key, "req:fetch-user:") {
		t.Errorf("Key() = %q, want req:fetch-user: prefix", key)
	}
	parts := strings.Split(key, ":")
	if hash := parts[len(parts)-1]; len(hash) != 16 {
		t.Errorf("hash segment %q has length %d, want 16", hash, len(hash))
	}
}

func TestDefaultKeyer_NestedParams(t *testing.T) {
	keyer := NewDefaultKeyer()

	a, err := keyer.Key("op", map[string]any{
		"filter": map[string]any{"x": 1, "y": []any{"p", "q"}},
	})
	if err != nil {
		t.Fatalf("Key() error = %v", err)
	}
	b, err := keyer.Key("op", map[string]any{
		"filter": map[string]any{"y": []any{"p", "q"}, "x": 1},
	})
	if err != nil {
		t.Fatalf("Key() error = %v", err)
	}
	if a != b {
		t.Errorf("nested map order changed the key: %q vs %q", a, b)
	}
}

func TestDefaultKeyer_UnencodableParams(t *testing.T) {
	keyer := NewDefaultKeyer()

	if _, err := keyer.Key("op", func() {}); err == nil {
		t.Error("Key() with a func param, want error")
	}
}
