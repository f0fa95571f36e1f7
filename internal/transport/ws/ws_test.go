package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newPair(t *testing.T) (client, server *Conn) {
	t.Helper()
	ready := make(chan *Conn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := Accept(w, r)
		if err != nil {
			t.Errorf("Accept: %v", err)
			return
		}
		ready <- c
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, err := Dial(context.Background(), url)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	select {
	case server = <-ready:
	case <-time.After(2 * time.Second):
		t.Fatalf("server never accepted the connection")
	}
	t.Cleanup(func() { client.Close(); server.Close() })
	return client, server
}

func drainEventually(t *testing.T, c *Conn, want int) [][]byte {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if got := c.Drain(); len(got) >= want {
			return got
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d frame(s)", want)
	return nil
}

func TestSendDeliversFrameToPeer(t *testing.T) {
	client, server := newPair(t)

	if err := client.Send([]byte("hello")); err != nil {
		t.Fatalf("Send: %v", err)
	}
	got := drainEventually(t, server, 1)
	if len(got) != 1 || string(got[0]) != "hello" {
		t.Fatalf("Drain() = %v, want [hello]", got)
	}
}

func TestBufferedAmountReturnsToZeroAfterWrite(t *testing.T) {
	client, _ := newPair(t)

	if err := client.Send([]byte("x")); err != nil {
		t.Fatalf("Send: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if client.BufferedAmount() == 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("BufferedAmount never returned to zero, got %d", client.BufferedAmount())
}

func TestSendAfterCloseErrors(t *testing.T) {
	client, _ := newPair(t)
	client.Close()

	// Give the writer goroutine a moment to observe the closed done channel.
	time.Sleep(20 * time.Millisecond)
	if err := client.Send([]byte("x")); err == nil {
		t.Fatalf("expected Send on a closed Conn to error")
	}
}

func TestSetBufferedAmountLowHandlerFiresAfterDrain(t *testing.T) {
	client, server := newPair(t)

	fired := make(chan struct{}, 1)
	client.SetBufferedAmountLowHandler(func() {
		select {
		case fired <- struct{}{}:
		default:
		}
	})

	if err := client.Send([]byte("payload")); err != nil {
		t.Fatalf("Send: %v", err)
	}
	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatalf("low-water handler never fired")
	}
	drainEventually(t, server, 1)
}
