package ner

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dealdocs/contractocr/internal/common"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, retries int) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := NewClient(common.NERConfig{
		BaseURL: srv.URL,
		Model:   "dslim/bert-base-NER",
		Timeout: 2 * time.Second,
		Retries: retries,
	}, nil)
	return c, srv
}

func TestRecognizeEntitiesFlatResponse(t *testing.T) {
	var gotPath string
	var gotBody map[string]any
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_, _ = w.Write([]byte(`[
			{"entity_group": "PER", "word": "John Smith", "score": 0.99},
			{"entity_group": "LOC", "word": "Springfield", "score": 0.97}
		]`))
	}, 0)

	ents, err := c.RecognizeEntities(context.Background(), "John Smith of Springfield")
	if err != nil {
		t.Fatalf("RecognizeEntities() error = %v", err)
	}
	if gotPath != "/models/dslim/bert-base-NER" {
		t.Errorf("request path = %q", gotPath)
	}
	if gotBody["inputs"] != "John Smith of Springfield" {
		t.Errorf("request inputs = %v", gotBody["inputs"])
	}
	if len(ents) != 2 {
		t.Fatalf("got %d entities, want 2", len(ents))
	}
	if ents[0].Category != "PER" || ents[0].Value != "John Smith" {
		t.Errorf("ents[0] = %+v", ents[0])
	}
	if ents[1].Category != "LOC" || ents[1].Value != "Springfield" {
		t.Errorf("ents[1] = %+v", ents[1])
	}
}

func TestRecognizeEntitiesNestedResponse(t *testing.T) {
	// The inference API wraps tokens one level deeper when handed a batch.
	c, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[[
			{"entity": "B-PER", "word": "Jane", "score": 0.98},
			{"entity": "I-PER", "word": "Doe", "score": 0.98}
		]]`))
	}, 0)

	ents, err := c.RecognizeEntities(context.Background(), "Jane Doe")
	if err != nil {
		t.Fatalf("RecognizeEntities() error = %v", err)
	}
	if len(ents) != 2 {
		t.Fatalf("got %d entities, want 2", len(ents))
	}
	if ents[0].Category != "B-PER" || ents[0].Value != "Jane" {
		t.Errorf("ents[0] = %+v", ents[0])
	}
}

func TestRecognizeEntitiesStatusErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error": "model dslim/bert-base-NER is currently loading"}`))
	}, 3)

	_, err := c.RecognizeEntities(context.Background(), "text")
	if err == nil {
		t.Fatal("expected error")
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("endpoint called %d times, want 1: a non-2xx answer is final", got)
	}
}

func TestRecognizeEntitiesSchemaMismatch(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		// tokens without the required word property
		_, _ = w.Write([]byte(`[{"entity_group": "PER", "score": 0.9}]`))
	}, 0)

	if _, err := c.RecognizeEntities(context.Background(), "text"); err == nil {
		t.Fatal("expected schema validation error")
	}
}

func TestRecognizeEntitiesNonJSONResponse(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html>gateway timeout</html>`))
	}, 0)

	if _, err := c.RecognizeEntities(context.Background(), "text"); err == nil {
		t.Fatal("expected error for non-JSON body")
	}
}

func TestRecognizeEntitiesContextCancelled(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(time.Second)
		_, _ = w.Write([]byte(`[]`))
	}, 0)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := c.RecognizeEntities(ctx, "text"); err == nil {
		t.Fatal("expected error after context deadline")
	}
}

func TestTokenLabelPrefersEntityGroup(t *testing.T) {
	tok := token{EntityGroup: "ORG", Entity: "B-ORG"}
	if got := tok.label(); got != "ORG" {
		t.Fatalf("label() = %q, want ORG", got)
	}
	tok = token{Entity: "B-ORG"}
	if got := tok.label(); got != "B-ORG" {
		t.Fatalf("label() = %q, want B-ORG", got)
	}
}

func TestValidateResponseAcceptsEmptyArray(t *testing.T) {
	if err := validateResponse([]byte(`[]`)); err != nil {
		t.Fatalf("validateResponse([]) error = %v", err)
	}
}
