package httpserver

import (
	"context"
	"io"
	"net"
	"net/http"
	"testing"
	"time"
)

func TestRunServesUntilContextCancelled(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	srv := New(0, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "ok")
	}), Options{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, srv, func() error { return srv.Serve(listener) }, time.Second)
	}()

	resp, err := http.Get("http://" + listener.Addr().String())
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if string(body) != "ok" {
		t.Fatalf("unexpected body %q", body)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected clean shutdown, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestRunReturnsServeErrors(t *testing.T) {
	srv := New(0, http.NotFoundHandler(), Options{})
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	listener.Close()

	err = Run(context.Background(), srv, func() error { return srv.Serve(listener) }, time.Second)
	if err == nil {
		t.Fatal("expected error from closed listener")
	}
}

func TestNewAppliesDefaults(t *testing.T) {
	srv := New(8080, http.NotFoundHandler(), Options{})
	if srv.Addr() != ":8080" {
		t.Fatalf("unexpected addr %q", srv.Addr())
	}
	if srv.inner.ReadTimeout != 10*time.Second || srv.inner.WriteTimeout != 15*time.Second {
		t.Fatalf("unexpected timeouts %v/%v", srv.inner.ReadTimeout, srv.inner.WriteTimeout)
	}
}
