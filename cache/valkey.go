package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	valkey "github.com/valkey-io/valkey-go"
)

// ValkeyConfig configures the valkey-backed store.
type ValkeyConfig struct {
	// Address is the valkey server address (host:port).
	Address string

	// Username and Password authenticate the connection. Both optional.
	Username string
	Password string

	// DB selects the logical database.
	DB int
}

// Valkey is a Store backed by a valkey server, for sharing cached results
// across processes.
type Valkey struct {
	client valkey.Client
}

// NewValkey creates a valkey-backed store and verifies connectivity.
func NewValkey(cfg ValkeyConfig) (*Valkey, error) {
	if cfg.Address == "" {
		return nil, errors.New("cache: valkey address required")
	}

	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress:       []string{cfg.Address},
		Username:          cfg.Username,
		Password:          cfg.Password,
		SelectDB:          cfg.DB,
		AlwaysRESP2:       true,
		ForceSingleClient: true,
		DisableCache:      true,
	})
	if err != nil {
		return nil, fmt.Errorf("cache: valkey client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("cache: valkey ping: %w", err)
	}

	return &Valkey{client: client}, nil
}

// Get retrieves a cached value. Returns (nil, false) on miss or any error;
// a flaky shared store must degrade to a miss, not break the caller.
func (v *Valkey) Get(ctx context.Context, key string) ([]byte, bool) {
	resp := v.client.Do(ctx, v.client.B().Get().Key(key).Build())
	if err := resp.Error(); err != nil {
		return nil, false
	}
	payload, err := resp.AsBytes()
	if err != nil {
		return nil, false
	}
	return payload, true
}

// Set stores a value with the given TTL. TTL=0 means no caching.
func (v *Valkey) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	cmd := v.client.B().Set().Key(key).Value(string(value)).Px(ttl).Build()
	if err := v.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("cache: valkey set: %w", err)
	}
	return nil
}

// Delete removes a cached value. Idempotent - no error on miss.
func (v *Valkey) Delete(ctx context.Context, key string) error {
	if err := v.client.Do(ctx, v.client.B().Del().Key(key).Build()).Error(); err != nil {
		return fmt.Errorf("cache: valkey del: %w", err)
	}
	return nil
}

// Close releases the client connection.
func (v *Valkey) Close() {
	v.client.Close()
}

// Ensure Valkey implements Store
var _ Store = (*Valkey)(nil)
