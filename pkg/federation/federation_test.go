package federation

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestEnvelopeRoundTrip(t *testing.T) {
	e := Envelope{Channel: "#support", Nick: "carol/relay", Text: "hi there", Origin: "a.example"}
	data, err := e.encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	back, err := decodeEnvelope(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if back != e {
		t.Fatalf("round trip: %#v", back)
	}
	if strings.Contains(string(data), "provenance") {
		t.Fatal("envelope must not carry provenance")
	}
}

func TestHandleInboundRequiresToken(t *testing.T) {
	h := NewHub("b.example", "s3cret")
	srv := httptest.NewServer(http.HandlerFunc(h.HandleInbound))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 without token, got %d", resp.StatusCode)
	}
}

func TestHandleInboundDeliversEnvelopes(t *testing.T) {
	h := NewHub("b.example", "s3cret")
	var mu sync.Mutex
	var got []Envelope
	h.SetHandler(func(e Envelope) {
		mu.Lock()
		got = append(got, e)
		mu.Unlock()
	})
	srv := httptest.NewServer(http.HandlerFunc(h.HandleInbound))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, http.Header{TokenHeader: []string{"s3cret"}})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	good := Envelope{Channel: "#support", Nick: "carol/relay", Text: "hi", Origin: "a.example"}
	data, _ := good.encode()
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		t.Fatalf("write: %v", err)
	}
	// an envelope claiming to be from ourselves is dropped
	self := Envelope{Channel: "#support", Nick: "x/y", Text: "loop", Origin: "b.example"}
	data, _ = self.encode()
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		t.Fatalf("write: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := len(got)
		mu.Unlock()
		if n >= 1 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 || got[0] != good {
		t.Fatalf("handler calls: %#v", got)
	}
}

func TestPropagateToLivePeer(t *testing.T) {
	received := make(chan Envelope, 4)
	up := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(TokenHeader) != "s3cret" {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if e, err := decodeEnvelope(data); err == nil {
				received <- e
			}
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := NewHub("a.example", "s3cret")
	h.AddPeer(ctx, "b", "ws"+strings.TrimPrefix(srv.URL, "http"))

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && !h.Peers()[0].Connected {
		time.Sleep(5 * time.Millisecond)
	}
	if !h.Peers()[0].Connected {
		t.Fatal("peer link never came up")
	}

	h.Propagate("#support", "carol/relay", "hello")
	select {
	case e := <-received:
		want := Envelope{Channel: "#support", Nick: "carol/relay", Text: "hello", Origin: "a.example"}
		if e != want {
			t.Fatalf("envelope: %#v", e)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("envelope never arrived")
	}
}

func TestPropagateDropsWhenLinkDown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := NewHub("a.example", "s3cret")
	h.AddPeer(ctx, "dead", "ws://127.0.0.1:1/federation")

	// must not block or error; the envelope is simply dropped
	done := make(chan struct{})
	go func() {
		h.Propagate("#support", "x/y", "hello")
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Propagate blocked on a dead link")
	}
}
