// Package docstoretest provides an in-memory Elasticsearch stand-in for tests.
package docstoretest

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/rowjay/kibana-dashboard-backup/internal/config"
)

const (
	Index   = "kibana-int"
	DocType = "dashboard"
)

// Server serves the index/type endpoints the docstore client uses, keeping
// dashboards in memory.
type Server struct {
	*httptest.Server

	mu      sync.Mutex
	docs    map[string]json.RawMessage
	puts    []string
	deletes []string

	// FailPut and FailDelete make writes for the listed ids answer 500.
	FailPut    map[string]bool
	FailDelete map[string]bool
}

// New starts a fake server that is closed when the test ends.
func New(t testing.TB) *Server {
	t.Helper()
	s := &Server{
		docs:       map[string]json.RawMessage{},
		FailPut:    map[string]bool{},
		FailDelete: map[string]bool{},
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.Close)
	return s
}

// Config points a docstore client at the fake.
func (s *Server) Config(fetchSize int) config.SearchConfig {
	u, _ := url.Parse(s.URL)
	port, _ := strconv.Atoi(u.Port())
	return config.SearchConfig{
		Scheme:    u.Scheme,
		Host:      u.Hostname(),
		Port:      port,
		Index:     Index,
		DocType:   DocType,
		FetchSize: fetchSize,
	}
}

// Seed stores a dashboard without recording a put.
func (s *Server) Seed(id, source string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[id] = json.RawMessage(source)
}

// Source returns the stored body for id.
func (s *Server) Source(id string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[id]
	return string(doc), ok
}

// Snapshot copies the current index contents.
func (s *Server) Snapshot() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.docs))
	for id, doc := range s.docs {
		out[id] = string(doc)
	}
	return out
}

func (s *Server) Puts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.puts...)
}

func (s *Server) Deletes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.deletes...)
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	base := "/" + Index + "/" + DocType + "/"
	if !strings.HasPrefix(r.URL.Path, base) {
		http.NotFound(w, r)
		return
	}
	id, err := url.PathUnescape(strings.TrimPrefix(r.URL.EscapedPath(), base))
	if err != nil || id == "" {
		http.Error(w, "bad id", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case id == "_search" && r.Method == http.MethodGet:
		s.search(w, r)
	case r.Method == http.MethodGet:
		doc, ok := s.docs[id]
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]any{"_id": id, "found": false})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"_index": Index, "_type": DocType, "_id": id, "found": true, "_source": doc})
	case r.Method == http.MethodPut || r.Method == http.MethodPost:
		s.puts = append(s.puts, id)
		if s.FailPut[id] {
			http.Error(w, `{"error":"injected"}`, http.StatusInternalServerError)
			return
		}
		body, _ := io.ReadAll(r.Body)
		if !json.Valid(body) {
			http.Error(w, `{"error":"invalid json"}`, http.StatusBadRequest)
			return
		}
		_, existed := s.docs[id]
		s.docs[id] = json.RawMessage(body)
		code := http.StatusCreated
		if existed {
			code = http.StatusOK
		}
		writeJSON(w, code, map[string]any{"_id": id, "created": !existed})
	case r.Method == http.MethodDelete:
		s.deletes = append(s.deletes, id)
		if s.FailDelete[id] {
			http.Error(w, `{"error":"injected"}`, http.StatusInternalServerError)
			return
		}
		if _, ok := s.docs[id]; !ok {
			writeJSON(w, http.StatusNotFound, map[string]any{"_id": id, "found": false})
			return
		}
		delete(s.docs, id)
		writeJSON(w, http.StatusOK, map[string]any{"_id": id, "found": true})
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) search(w http.ResponseWriter, r *http.Request) {
	size := 10
	if v := r.URL.Query().Get("size"); v != "" {
		size, _ = strconv.Atoi(v)
	}
	ids := make([]string, 0, len(s.docs))
	for id := range s.docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	hits := []map[string]any{}
	for i, id := range ids {
		if i >= size {
			break
		}
		hits = append(hits, map[string]any{"_index": Index, "_type": DocType, "_id": id, "_score": 1, "_source": s.docs[id]})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"took":      1,
		"timed_out": false,
		"hits":      map[string]any{"total": len(ids), "max_score": 1, "hits": hits},
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
