// internal/config/secrets.go
//
// `vault:` reference resolution.
//
// A config value such as
//
//	session:
//	  secret: "vault:secret/forum#session_secret"
//
// is replaced, before unmarshal, with the string stored under key
// `session_secret` of the KV-v2 secret `secret/forum`.  The concrete source is
// internal/vault.Client; tests pass a map-backed fake.

package config

import (
	"context"
	"fmt"
	"strings"

	koanf "github.com/knadh/koanf/v2"
)

const secretPrefix = "vault:"

// SecretSource resolves one "path#key" reference to its plaintext value.
type SecretSource interface {
	Secret(ctx context.Context, ref string) (string, error)
}

// resolveSecrets swaps every `vault:` value in k for its secret.
func resolveSecrets(ctx context.Context, k *koanf.Koanf, src SecretSource) error {
	for key, val := range k.All() {
		s, ok := val.(string)
		if !ok || !strings.HasPrefix(s, secretPrefix) {
			continue
		}
		if src == nil {
			return fmt.Errorf("config %s: %q needs a secret source but none is configured", key, s)
		}
		plain, err := src.Secret(ctx, strings.TrimPrefix(s, secretPrefix))
		if err != nil {
			return fmt.Errorf("config %s: %w", key, err)
		}
		if err := k.Set(key, plain); err != nil {
			return fmt.Errorf("config %s: %w", key, err)
		}
	}
	return nil
}
