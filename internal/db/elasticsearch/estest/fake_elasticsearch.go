// Package estest provides an in-process stand-in for the Elasticsearch endpoints the
// collector calls, for use in tests.
package estest

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/elastic/go-elasticsearch/v8"
)

type Request struct {
	Method string
	Path   string
	Body   []byte
}

// FakeElasticsearch answers info, index existence, index creation and bulk requests.
// Bulk bodies are recorded per index.
type FakeElasticsearch struct {
	server *httptest.Server

	mu        sync.Mutex
	requests  []Request
	indices   map[string]bool
	documents map[string][]map[string]interface{}
	failBulk  bool
}

func NewFakeElasticsearch(t *testing.T) *FakeElasticsearch {
	f := &FakeElasticsearch{
		indices:   make(map[string]bool),
		documents: make(map[string][]map[string]interface{}),
	}
	f.server = httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(f.server.Close)
	return f
}

func (f *FakeElasticsearch) URL() string {
	return f.server.URL
}

func (f *FakeElasticsearch) Client(t *testing.T) *elasticsearch.Client {
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses:  []string{f.server.URL},
		MaxRetries: 1,
	})
	if err != nil {
		t.Fatalf("failed to create Elasticsearch client: %v", err)
	}
	return es
}

// FailBulk makes subsequent bulk requests answer with a server error.
func (f *FakeElasticsearch) FailBulk(fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failBulk = fail
}

func (f *FakeElasticsearch) Requests() []Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Request(nil), f.requests...)
}

func (f *FakeElasticsearch) Indices() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var names []string
	for name := range f.indices {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Documents returns the documents bulk indexed into index, with the action's "_id" copied
// into the document under the same key.
func (f *FakeElasticsearch) Documents(index string) []map[string]interface{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]map[string]interface{}(nil), f.documents[index]...)
}

func (f *FakeElasticsearch) handle(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, Request{Method: r.Method, Path: r.URL.Path, Body: body})

	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	w.Header().Set("Content-Type", "application/json")

	path := strings.Trim(r.URL.Path, "/")
	switch {
	case path == "" && r.Method == http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"version": map[string]interface{}{"number": "8.15.0"},
			"tagline": "You Know, for Search",
		})
	case strings.HasSuffix(path, "_bulk"):
		if f.failBulk {
			writeJSON(w, http.StatusInternalServerError, map[string]interface{}{"error": "bulk rejected"})
			return
		}
		index := strings.TrimSuffix(strings.TrimSuffix(path, "_bulk"), "/")
		f.recordBulk(index, body)
		writeJSON(w, http.StatusOK, map[string]interface{}{"errors": false, "items": []interface{}{}})
	case r.Method == http.MethodHead:
		if f.indices[path] {
			w.WriteHeader(http.StatusOK)
		} else {
			w.WriteHeader(http.StatusNotFound)
		}
	case r.Method == http.MethodPut:
		f.indices[path] = true
		writeJSON(w, http.StatusOK, map[string]interface{}{"acknowledged": true, "index": path})
	default:
		writeJSON(w, http.StatusNotFound, map[string]interface{}{"error": "unsupported"})
	}
}

func (f *FakeElasticsearch) recordBulk(defaultIndex string, body []byte) {
	scanner := bufio.NewScanner(bytes.NewReader(body))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	var action map[string]map[string]interface{}
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		if action == nil {
			if err := json.Unmarshal(line, &action); err != nil {
				return
			}
			continue
		}
		var document map[string]interface{}
		if err := json.Unmarshal(line, &document); err != nil {
			return
		}
		index := defaultIndex
		if meta, ok := action["index"]; ok {
			if name, ok := meta["_index"].(string); ok {
				index = name
			}
			if id, ok := meta["_id"]; ok {
				document["_id"] = id
			}
		}
		f.documents[index] = append(f.documents[index], document)
		action = nil
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
