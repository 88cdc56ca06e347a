package modelgw

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHTTPClientConsumeSSE(t *testing.T) {
	c := NewHTTPClient("http://example.test")
	stream := strings.NewReader(strings.Join([]string{
		": keepalive",
		"",
		"data: {\"delta\":\"first chunk\"}",
		"",
		"data: {\"delta\":\"second chunk\"}",
		"",
		"data: [DONE]",
		"",
	}, "\n"))

	var deltas []string
	text, err := c.consumeStreaming(stream, func(delta string) error {
		deltas = append(deltas, delta)
		return nil
	})
	if err != nil {
		t.Fatalf("consumeStreaming() error = %v", err)
	}
	if text != "first chunk\nsecond chunk" {
		t.Fatalf("text = %q", text)
	}
	if len(deltas) != 2 {
		t.Fatalf("deltas = %q", deltas)
	}
}

func TestHTTPClientStreamingEndToEnd(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/x-ndjson")
		_, _ = w.Write([]byte("{\"delta\":\"one\"}\n{\"delta\":\"two\"}\n"))
	}))
	defer ts.Close()

	c := NewHTTPClient(ts.URL)
	var deltas []string
	text, err := c.StreamCompletion(context.Background(), "do a thing", func(delta string) error {
		deltas = append(deltas, delta)
		return nil
	})
	if err != nil {
		t.Fatalf("StreamCompletion() error = %v", err)
	}
	if text != "one\ntwo" {
		t.Fatalf("text = %q", text)
	}
	if len(deltas) != 2 || deltas[0] != "one" || deltas[1] != "two" {
		t.Fatalf("deltas = %q", deltas)
	}
}

func TestHTTPClientSingleJSONResponse(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte("{\"text\":\"done in one go\"}"))
	}))
	defer ts.Close()

	c := NewHTTPClient(ts.URL)
	text, err := c.StreamCompletion(context.Background(), "quick", nil)
	if err != nil {
		t.Fatalf("StreamCompletion() error = %v", err)
	}
	if text != "done in one go" {
		t.Fatalf("text = %q", text)
	}
}

func TestHTTPClientErrorStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream overloaded", http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	c := NewHTTPClient(ts.URL)
	if _, err := c.StreamCompletion(context.Background(), "quick", nil); err == nil {
		t.Fatalf("StreamCompletion() expected error for 503")
	}
}

func TestHTTPClientDeltaErrorStopsStream(t *testing.T) {
	wantErr := errors.New("stop now")
	c := NewHTTPClient("http://example.test")
	stream := strings.NewReader("{\"delta\":\"one\"}\n{\"delta\":\"two\"}\n")

	var seen int
	_, err := c.consumeStreaming(stream, func(string) error {
		seen++
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("consumeStreaming() error = %v, want %v", err, wantErr)
	}
	if seen != 1 {
		t.Fatalf("deltas seen = %d, want 1", seen)
	}
}

func TestMockClientEchoesPrompt(t *testing.T) {
	c := NewMockClient()
	var deltas []string
	text, err := c.StreamCompletion(context.Background(), "ship the release", func(delta string) error {
		deltas = append(deltas, delta)
		return nil
	})
	if err != nil {
		t.Fatalf("StreamCompletion() error = %v", err)
	}
	if !strings.Contains(text, "ship the release") {
		t.Fatalf("text = %q", text)
	}
	if len(deltas) != 1 {
		t.Fatalf("deltas = %q", deltas)
	}
}
