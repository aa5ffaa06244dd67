package http

import (
	"net/http"
	"testing"
	"time"
)

func TestNewClientDefaults(t *testing.T) {
	client := NewClient(nil)

	if client.Timeout != 30*time.Second {
		t.Errorf("default timeout = %v, want 30s", client.Timeout)
	}
	transport, ok := client.Transport.(*http.Transport)
	if !ok {
		t.Fatalf("default transport = %T, want *http.Transport", client.Transport)
	}
	if transport.MaxIdleConnsPerHost != 5 {
		t.Errorf("MaxIdleConnsPerHost = %d, want 5", transport.MaxIdleConnsPerHost)
	}
	if client.CheckRedirect != nil {
		t.Error("default CheckRedirect should be nil")
	}
}

func TestNewClientOverrides(t *testing.T) {
	client := NewClient(&ClientConfig{
		Timeout:   10 * time.Second,
		Transport: http.DefaultTransport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	})

	if client.Timeout != 10*time.Second {
		t.Errorf("timeout = %v, want 10s", client.Timeout)
	}
	if client.Transport != http.DefaultTransport {
		t.Error("custom transport not applied")
	}
	if client.CheckRedirect == nil {
		t.Error("custom CheckRedirect not applied")
	}
}

func TestNewClientZeroTimeout(t *testing.T) {
	client := NewClient(&ClientConfig{})
	if client.Timeout != 30*time.Second {
		t.Errorf("zero timeout = %v, want fallback 30s", client.Timeout)
	}
}
