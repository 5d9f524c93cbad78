package testutil

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	gojson "github.com/goccy/go-json"
)

// Response is a canned API response.
type Response struct {
	Status int
	Body   string
}

// RecordedRequest is a request received by APIServer.
type RecordedRequest struct {
	Path   string
	Query  url.Values
	Header http.Header
}

// APIServer is a fake LeafLink API. Each path serves its queued responses
// in order; once the queue is drained the last response repeats. Unknown
// paths return 404.
type APIServer struct {
	*httptest.Server

	mu       sync.Mutex
	queues   map[string][]Response
	served   map[string]int
	requests []RecordedRequest
}

// NewAPIServer starts a fake API that is closed when the test completes.
func NewAPIServer(t *testing.T) *APIServer {
	s := &APIServer{
		queues: make(map[string][]Response),
		served: make(map[string]int),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)
	return s
}

// Queue appends responses for path.
func (s *APIServer) Queue(path string, responses ...Response) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queues[path] = append(s.queues[path], responses...)
}

// QueuePages appends 200 responses with the given bodies for path.
func (s *APIServer) QueuePages(path string, bodies ...string) {
	for _, b := range bodies {
		s.Queue(path, Response{Status: http.StatusOK, Body: b})
	}
}

// Requests returns a copy of the requests received so far.
func (s *APIServer) Requests() []RecordedRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]RecordedRequest, len(s.requests))
	copy(out, s.requests)
	return out
}

func (s *APIServer) serve(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.requests = append(s.requests, RecordedRequest{
		Path:   r.URL.Path,
		Query:  r.URL.Query(),
		Header: r.Header.Clone(),
	})
	queue := s.queues[r.URL.Path]
	var resp Response
	if len(queue) == 0 {
		resp = Response{Status: http.StatusNotFound, Body: `{"detail":"Not found."}`}
	} else {
		i := s.served[r.URL.Path]
		if i >= len(queue) {
			i = len(queue) - 1
		}
		resp = queue[i]
		s.served[r.URL.Path]++
	}
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.Status)
	fmt.Fprint(w, resp.Body)
}

// Page renders a LeafLink list page. An empty next renders "next": null.
func Page(next string, results ...map[string]interface{}) string {
	page := map[string]interface{}{
		"count":    len(results),
		"previous": nil,
		"next":     nil,
		"results":  results,
	}
	if next != "" {
		page["next"] = next
	}
	if results == nil {
		page["results"] = []interface{}{}
	}
	data, err := gojson.Marshal(page)
	if err != nil {
		panic(err)
	}
	return string(data)
}
