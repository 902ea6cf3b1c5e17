package server

import (
	"net/http"
	"testing"
	"time"

	"github.com/yanizio/forum/internal/config"
)

func TestNewAppliesConfig(t *testing.T) {
	srv := New(config.HTTP{ListenAddr: ":9999", WriteTimeout: 3 * time.Second}, http.NotFoundHandler())
	if srv.Addr != ":9999" {
		t.Fatalf("Addr = %q", srv.Addr)
	}
	if srv.WriteTimeout != 3*time.Second {
		t.Fatalf("WriteTimeout = %v", srv.WriteTimeout)
	}
	if srv.ReadTimeout != defaultRead || srv.IdleTimeout != defaultIdle {
		t.Fatalf("defaults not applied: %v %v", srv.ReadTimeout, srv.IdleTimeout)
	}
}
