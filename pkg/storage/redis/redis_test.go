package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/platinummonkey/cohort/pkg/storage"
)

// setupClientTest creates a miniredis instance and returns the client and
// cleanup function.
func setupClientTest(t *testing.T) (*Client, *miniredis.Miniredis, func()) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}

	cfg := storage.DefaultConfig()
	cfg.RedisURL = "redis://" + mr.Addr()

	client, err := NewClient(cfg)
	if err != nil {
		mr.Close()
		t.Fatalf("Failed to create redis client: %v", err)
	}

	cleanup := func() {
		client.Close()
		mr.Close()
	}
	return client, mr, cleanup
}

func TestNewClient_InvalidURL(t *testing.T) {
	cfg := storage.DefaultConfig()
	cfg.RedisURL = "invalid://url"

	if _, err := NewClient(cfg); err == nil {
		t.Fatal("Expected error for invalid redis URL")
	}
}

func TestClient_SetGet(t *testing.T) {
	client, _, cleanup := setupClientTest(t)
	defer cleanup()
	ctx := context.Background()

	if err := client.Set(ctx, "session:abc", []byte(`{"user_id":"u1"}`), time.Hour); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	data, err := client.Get(ctx, "session:abc")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(data) != `{"user_id":"u1"}` {
		t.Errorf("Get() = %q, want stored value", data)
	}
}

func TestClient_GetMissIsNilNil(t *testing.T) {
	client, _, cleanup := setupClientTest(t)
	defer cleanup()

	data, err := client.Get(context.Background(), "absent")
	if err != nil {
		t.Fatalf("Get() of absent key error = %v", err)
	}
	if data != nil {
		t.Errorf("Get() of absent key = %q, want nil", data)
	}
}

func TestClient_TTLExpiry(t *testing.T) {
	client, mr, cleanup := setupClientTest(t)
	defer cleanup()
	ctx := context.Background()

	if err := client.Set(ctx, "session:abc", []byte("data"), time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	mr.FastForward(2 * time.Minute)

	data, err := client.Get(ctx, "session:abc")
	if err != nil {
		t.Fatalf("Get() after expiry error = %v", err)
	}
	if data != nil {
		t.Error("Expected expired key to read as a miss")
	}
}

func TestClient_Delete(t *testing.T) {
	client, _, cleanup := setupClientTest(t)
	defer cleanup()
	ctx := context.Background()

	if err := client.Set(ctx, "key", []byte("v"), time.Hour); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := client.Delete(ctx, "key"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if data, _ := client.Get(ctx, "key"); data != nil {
		t.Error("Expected deleted key to read as a miss")
	}

	// Deleting an absent key is not an error.
	if err := client.Delete(ctx, "absent"); err != nil {
		t.Errorf("Delete() of absent key error = %v", err)
	}
}

func TestClient_IncrAndGetInt(t *testing.T) {
	client, _, cleanup := setupClientTest(t)
	defer cleanup()
	ctx := context.Background()

	// Absent counter reads as zero.
	n, err := client.GetInt(ctx, "session_generation:u1")
	if err != nil {
		t.Fatalf("GetInt() error = %v", err)
	}
	if n != 0 {
		t.Errorf("GetInt() of absent key = %d, want 0", n)
	}

	for want := int64(1); want <= 3; want++ {
		n, err := client.Incr(ctx, "session_generation:u1")
		if err != nil {
			t.Fatalf("Incr() error = %v", err)
		}
		if n != want {
			t.Errorf("Incr() = %d, want %d", n, want)
		}
	}

	n, err = client.GetInt(ctx, "session_generation:u1")
	if err != nil {
		t.Fatalf("GetInt() error = %v", err)
	}
	if n != 3 {
		t.Errorf("GetInt() = %d, want 3", n)
	}
}

func TestClient_OutageClassifiedUnavailable(t *testing.T) {
	client, mr, cleanup := setupClientTest(t)
	defer cleanup()
	ctx := context.Background()

	mr.Close()

	_, err := client.Get(ctx, "key")
	if !errors.Is(err, storage.ErrCacheUnavailable) {
		t.Errorf("Get() during outage = %v, want ErrCacheUnavailable", err)
	}

	if err := client.Set(ctx, "key", []byte("v"), time.Hour); !errors.Is(err, storage.ErrCacheUnavailable) {
		t.Errorf("Set() during outage = %v, want ErrCacheUnavailable", err)
	}

	if _, err := client.Incr(ctx, "counter"); !errors.Is(err, storage.ErrCacheUnavailable) {
		t.Errorf("Incr() during outage = %v, want ErrCacheUnavailable", err)
	}

	if err := client.Ping(ctx); !errors.Is(err, storage.ErrCacheUnavailable) {
		t.Errorf("Ping() during outage = %v, want ErrCacheUnavailable", err)
	}
}
