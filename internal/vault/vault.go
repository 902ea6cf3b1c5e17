// internal/vault/vault.go
//
// Vault secret source for the forum front-end.
//
// Context
// -------
//   - Resolves the `vault:<mount/path>#<key>` references found in
//     conf/global.yaml (see internal/config/secrets.go).
//   - The HashiCorp API client is built lazily on the first lookup, so a
//     deployment with no `vault:` values never needs VAULT_ADDR.
//   - Lookups are cached per canonical reference for a fixed TTL, and a
//     background loop keeps a renewable token alive once the client exists.
//
// Public workflow
// ---------------
//  1. src := vault.New(ctx, 10*time.Minute)        // during boot.
//  2. cfg, err := config.Load(ctx, src)             // resolves references.
//
// Notes
// -----
//   - Environment: VAULT_ADDR, VAULT_TOKEN (falls back to ~/.vault-token).
//   - Oxford commas, two spaces after periods.
package vault

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	vault "github.com/hashicorp/vault/api"
	"go.uber.org/zap"
)

//
// SECTION 1.  Public façade
//

// Client is safe for concurrent use.  It satisfies config.SecretSource.
type Client struct {
	ctx context.Context
	ttl time.Duration

	initOnce sync.Once
	initErr  error
	api      *vault.Client

	cacheMu sync.RWMutex
	cache   map[string]cached // canonical path#key → value + expiry.

	// kv reads one KV-v2 secret; replaced in tests.
	kv func(ctx context.Context, mount, rel string) (map[string]any, error)
}

type cached struct {
	val string
	exp time.Time
}

// New returns a lazily-connected Client.  ctx bounds the renewal loop.
func New(ctx context.Context, ttl time.Duration) *Client {
	c := &Client{
		ctx:   ctx,
		ttl:   ttl,
		cache: make(map[string]cached),
	}
	c.kv = c.readKV
	return c
}

// Secret resolves ref in the form "mount/path#key".
func (c *Client) Secret(ctx context.Context, ref string) (string, error) {
	path, key, ok := strings.Cut(ref, "#")
	if !ok {
		return "", fmt.Errorf("vault ref %q: missing #key", ref)
	}
	return c.GetKV(ctx, path, key)
}

// GetKV fetches a single key from a KV-v2 secret, honouring the cache TTL.
func (c *Client) GetKV(ctx context.Context, secretPath, key string) (string, error) {
	if secretPath == "" || key == "" {
		return "", errors.New("secret path and key must be non-empty")
	}

	canonical := secretPath + "#" + key

	if c.ttl > 0 {
		c.cacheMu.RLock()
		if cv, ok := c.cache[canonical]; ok && time.Now().Before(cv.exp) {
			c.cacheMu.RUnlock()
			return cv.val, nil
		}
		c.cacheMu.RUnlock()
	}

	mount, rel := splitMount(secretPath)
	data, err := c.kv(ctx, mount, rel)
	if err != nil {
		return "", fmt.Errorf("vault get %s: %w", secretPath, err)
	}

	raw, ok := data[key]
	if !ok {
		return "", fmt.Errorf("key %q not found in secret %q", key, secretPath)
	}
	sval, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("value at %s is not a string", canonical)
	}

	if c.ttl > 0 {
		c.cacheMu.Lock()
		c.cache[canonical] = cached{val: sval, exp: time.Now().Add(c.ttl)}
		c.cacheMu.Unlock()
	}
	return sval, nil
}

//
// SECTION 2.  Connection
//

func (c *Client) connect() error {
	c.initOnce.Do(func() {
		cfg := vault.DefaultConfig()
		if err := cfg.ReadEnvironment(); err != nil {
			c.initErr = fmt.Errorf("vault env cfg: %w", err)
			return
		}
		apiCli, err := vault.NewClient(cfg)
		if err != nil {
			c.initErr = fmt.Errorf("vault api: %w", err)
			return
		}
		if tok := os.Getenv("VAULT_TOKEN"); tok != "" {
			apiCli.SetToken(tok)
		}
		c.api = apiCli
		zap.S().Infow("vault client ready", "addr", cfg.Address)
		go c.renewLoop(c.ctx)
	})
	return c.initErr
}

func (c *Client) readKV(ctx context.Context, mount, rel string) (map[string]any, error) {
	if err := c.connect(); err != nil {
		return nil, err
	}
	sec, err := c.api.KVv2(mount).Get(ctx, rel)
	if err != nil {
		return nil, err
	}
	return sec.Data, nil
}

//
// SECTION 3.  Background token renewal
//

func (c *Client) renewLoop(ctx context.Context) {
	for ctx.Err() == nil {
		sec, err := c.api.Auth().Token().RenewSelfWithContext(ctx, 0)
		if err != nil {
			zap.S().Warnw("vault token renew failed", "err", err)
			backoff(ctx, 30*time.Second)
			continue
		}
		if sec == nil || sec.Auth == nil || !sec.Auth.Renewable {
			zap.S().Debugw("vault token not renewable, sleeping")
			backoff(ctx, time.Hour)
			continue
		}

		watcher, err := c.api.NewLifetimeWatcher(&vault.LifetimeWatcherInput{Secret: sec})
		if err != nil {
			zap.S().Warnw("vault watcher init failed", "err", err)
			backoff(ctx, 30*time.Second)
			continue
		}
		go watcher.Start()
		c.watch(ctx, watcher)
		backoff(ctx, 15*time.Second)
	}
}

func (c *Client) watch(ctx context.Context, w *vault.LifetimeWatcher) {
	defer w.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case err := <-w.DoneCh():
			if err != nil {
				zap.S().Warnw("vault token renewal stopped", "err", err)
			}
			return
		case ev := <-w.RenewCh():
			if ev != nil && ev.Secret != nil && ev.Secret.Auth != nil {
				zap.S().Debugw("vault token renewed", "ttl_s", ev.Secret.Auth.LeaseDuration)
			}
		}
	}
}

//
// SECTION 4.  Helpers
//

func splitMount(p string) (mount, rel string) {
	mount, rel, _ = strings.Cut(p, "/")
	return
}

func backoff(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
