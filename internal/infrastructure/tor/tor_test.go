package tor

import (
	"context"
	"errors"
	"testing"

	"OnionHarvester/internal/logging"
)

func TestNewGatewayValidatesAddress(t *testing.T) {
	t.Parallel()

	tests := []struct {
		addr string
		ok   bool
	}{
		{"127.0.0.1:9050", true},
		{"localhost:9150", true},
		{"127.0.0.1", false},
		{":9050", false},
		{"127.0.0.1:0", false},
		{"127.0.0.1:70000", false},
		{"", false},
	}
	for _, tt := range tests {
		_, err := NewGateway(Options{SocksAddr: tt.addr}, logging.Discard())
		if tt.ok && err != nil {
			t.Errorf("%q: unexpected error %v", tt.addr, err)
		}
		if !tt.ok && !errors.Is(err, ErrInvalidSocksAddress) {
			t.Errorf("%q: expected ErrInvalidSocksAddress, got %v", tt.addr, err)
		}
	}
}

func TestExternalGateway(t *testing.T) {
	t.Parallel()

	g, err := NewGateway(Options{SocksAddr: "127.0.0.1:9050"}, logging.Discard())
	if err != nil {
		t.Fatalf("new gateway: %v", err)
	}
	if _, err := g.Transport(); err == nil {
		t.Fatalf("transport before start must fail")
	}
	if err := g.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if g.SocksAddr() != "127.0.0.1:9050" {
		t.Fatalf("unexpected socks addr %q", g.SocksAddr())
	}
	tr, err := g.Transport()
	if err != nil || tr.DialContext == nil {
		t.Fatalf("expected socks transport, got %v", err)
	}
	if err := g.Stop(); err != nil {
		t.Fatalf("stop external gateway: %v", err)
	}
}

func TestEmbeddedGatewayDefaults(t *testing.T) {
	t.Parallel()

	g, err := NewGateway(Options{Embedded: true}, nil)
	if err != nil {
		t.Fatalf("embedded gateway needs no address: %v", err)
	}
	if g.opts.StartupTimeout <= 0 {
		t.Fatalf("expected default startup timeout")
	}
	if err := g.Stop(); err != nil {
		t.Fatalf("stop before start: %v", err)
	}
}
