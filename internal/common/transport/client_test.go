package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestResolve(t *testing.T) {
	c := New("https://solver.example:5001/", time.Second)
	if got := c.Resolve("/check/1"); got != "https://solver.example:5001/check/1" {
		t.Fatalf("unexpected url %s", got)
	}
	if got := c.Resolve("check/1"); got != "https://solver.example:5001/check/1" {
		t.Fatalf("unexpected url %s", got)
	}
	if got := c.Resolve("http://other/x"); got != "http://other/x" {
		t.Fatalf("expected absolute url unchanged, got %s", got)
	}
}

func TestPostJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.Header.Get("Content-Type") != "application/json" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"echo":"` + body["name"] + `"}`))
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second)
	resp, err := c.PostJSON(context.Background(), "/echo", map[string]string{"name": "pick"})
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	if !resp.OK() || resp.StatusCode != http.StatusCreated {
		t.Fatalf("unexpected status %d", resp.StatusCode)
	}
	if string(resp.Body) != `{"echo":"pick"}` {
		t.Fatalf("unexpected body %s", resp.Body)
	}
}

func TestDoTransportError(t *testing.T) {
	c := New("http://127.0.0.1:1", 200*time.Millisecond)
	if _, err := c.Do(context.Background(), http.MethodGet, "/", nil, nil); err == nil {
		t.Fatalf("expected transport error")
	}
}
