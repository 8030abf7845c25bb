// Package awxmock is an in-process fake controller for tests. It
// serves the v2 API surface the client exercises: paginated listings,
// record CRUD, template launch, job status sequences, and the job
// event stream. State is per-Server and mutable so tests can script
// exact scenarios.
package awxmock

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

// Record is a stored fake resource record.
type Record map[string]interface{}

// Server is one fake controller instance.
type Server struct {
	mu     sync.Mutex
	nextID int

	// records maps endpoint name ("organizations") to id-keyed records.
	records map[string]map[int]Record

	// statuses scripts the status sequence jobs report when polled;
	// each poll of a job consumes one entry, the last one repeats.
	statuses []string
	polls    map[int]int

	// passwordsNeeded is reported by every template's launch page.
	passwordsNeeded []string

	// events is the scripted job event stream.
	events []string

	cancels int

	ts *httptest.Server
}

// New starts a fake controller. Close it with Close.
func New() *Server {
	s := &Server{
		nextID:   1,
		records:  map[string]map[int]Record{},
		statuses: []string{"pending"},
		polls:    map[int]int{},
	}
	s.ts = httptest.NewServer(s.router())
	return s
}

func (s *Server) Close()      { s.ts.Close() }
func (s *Server) URL() string { return s.ts.URL }

// Client returns the underlying test server's HTTP client.
func (s *Server) Client() *http.Client { return s.ts.Client() }

// Seed inserts a record under the endpoint and returns its id.
func (s *Server) Seed(endpoint string, rec Record) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	stored := Record{"id": id}
	for k, v := range rec {
		stored[k] = v
	}
	if s.records[endpoint] == nil {
		s.records[endpoint] = map[int]Record{}
	}
	s.records[endpoint][id] = stored
	return id
}

// Get returns a stored record, or nil.
func (s *Server) Get(endpoint string, id int) Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.records[endpoint][id]
}

// ScriptStatuses sets the status sequence jobs walk through as they
// are polled.
func (s *Server) ScriptStatuses(statuses ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses = statuses
	s.polls = map[int]int{}
}

// RequirePasswords makes every launch page demand these passwords.
func (s *Server) RequirePasswords(names ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.passwordsNeeded = names
}

// Cancels reports how many cancel requests arrived.
func (s *Server) Cancels() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancels
}

// ScriptEvents sets the stdout lines the event stream emits.
func (s *Server) ScriptEvents(lines ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = lines
}

const pageSize = 10

func (s *Server) router() http.Handler {
	r := chi.NewRouter()

	r.Route("/api/v2", func(r chi.Router) {
		r.Get("/ping/", s.ping)
		r.Post("/job_templates/{id}/launch/", s.launch)
		r.Get("/job_templates/{id}/launch/", s.launchPage)
		r.Post("/jobs/{id}/cancel/", s.cancel)

		r.Get("/{endpoint}/", s.list)
		r.Post("/{endpoint}/", s.create)
		r.Get("/{endpoint}/{id}/", s.get)
		r.Patch("/{endpoint}/{id}/", s.patch)
		r.Delete("/{endpoint}/{id}/", s.del)
	})
	r.Get("/api/", s.apiRoot)
	r.Get("/websocket/", s.websocket)

	return r
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) apiRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"current_version": "/api/v2/",
	})
}

func (s *Server) ping(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"version": "24.6.1",
		"ha":      false,
	})
}

// list serves the standard paginated envelope, filtered by exact match
// on any query parameter that names a record field.
func (s *Server) list(w http.ResponseWriter, r *http.Request) {
	endpoint := chi.URLParam(r, "endpoint")

	s.mu.Lock()
	var matched []Record
	for _, rec := range s.records[endpoint] {
		ok := true
		for key, values := range r.URL.Query() {
			if key == "page" {
				continue
			}
			if fmt.Sprintf("%v", rec[key]) != values[0] {
				ok = false
				break
			}
		}
		if ok {
			matched = append(matched, rec)
		}
	}
	s.mu.Unlock()

	sort.Slice(matched, func(i, j int) bool {
		return matched[i]["id"].(int) < matched[j]["id"].(int)
	})

	page := 1
	if p := r.URL.Query().Get("page"); p != "" {
		page, _ = strconv.Atoi(p)
	}
	start := (page - 1) * pageSize
	end := start + pageSize
	if start > len(matched) {
		start = len(matched)
	}
	if end > len(matched) {
		end = len(matched)
	}

	var next *string
	if end < len(matched) {
		link := fmt.Sprintf("/api/v2/%s/?page=%d", endpoint, page+1)
		next = &link
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"count":    len(matched),
		"next":     next,
		"previous": nil,
		"results":  matched[start:end],
	})
}

func (s *Server) get(w http.ResponseWriter, r *http.Request) {
	endpoint := chi.URLParam(r, "endpoint")
	id, _ := strconv.Atoi(chi.URLParam(r, "id"))

	s.mu.Lock()
	rec := s.records[endpoint][id]
	s.mu.Unlock()
	if rec == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Not found."})
		return
	}

	// Jobs advance along the scripted status sequence per poll.
	if endpoint == "jobs" {
		s.mu.Lock()
		idx := s.polls[id]
		if idx >= len(s.statuses) {
			idx = len(s.statuses) - 1
		}
		rec = cloneRecord(rec)
		rec["status"] = s.statuses[idx]
		s.polls[id]++
		s.mu.Unlock()
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) create(w http.ResponseWriter, r *http.Request) {
	endpoint := chi.URLParam(r, "endpoint")
	var body Record
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": err.Error()})
		return
	}
	id := s.Seed(endpoint, body)
	writeJSON(w, http.StatusCreated, s.Get(endpoint, id))
}

func (s *Server) patch(w http.ResponseWriter, r *http.Request) {
	endpoint := chi.URLParam(r, "endpoint")
	id, _ := strconv.Atoi(chi.URLParam(r, "id"))

	var body Record
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": err.Error()})
		return
	}

	s.mu.Lock()
	rec := s.records[endpoint][id]
	if rec != nil {
		for k, v := range body {
			rec[k] = v
		}
	}
	s.mu.Unlock()
	if rec == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Not found."})
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) del(w http.ResponseWriter, r *http.Request) {
	endpoint := chi.URLParam(r, "endpoint")
	id, _ := strconv.Atoi(chi.URLParam(r, "id"))

	s.mu.Lock()
	_, ok := s.records[endpoint][id]
	delete(s.records[endpoint], id)
	s.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Not found."})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) launchPage(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	needed := s.passwordsNeeded
	s.mu.Unlock()
	if needed == nil {
		needed = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"passwords_needed_to_start": needed,
		"variables_needed_to_start": []string{},
	})
}

func (s *Server) launch(w http.ResponseWriter, r *http.Request) {
	templateID, _ := strconv.Atoi(chi.URLParam(r, "id"))
	if s.Get("job_templates", templateID) == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Not found."})
		return
	}

	var body Record
	json.NewDecoder(r.Body).Decode(&body)

	s.mu.Lock()
	needed := s.passwordsNeeded
	s.mu.Unlock()
	if len(needed) > 0 {
		supplied, _ := body["credential_passwords"].(map[string]interface{})
		for _, name := range needed {
			if _, ok := supplied[name]; !ok {
				writeJSON(w, http.StatusBadRequest, map[string]interface{}{
					"passwords_needed_to_start": needed,
				})
				return
			}
		}
	}

	jobID := s.Seed("jobs", Record{
		"job_template": templateID,
		"status":       "pending",
		"created":      "2026-01-10T12:00:00Z",
	})
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"job":    jobID,
		"id":     jobID,
		"status": "pending",
	})
}

func (s *Server) cancel(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.Atoi(chi.URLParam(r, "id"))
	s.mu.Lock()
	s.cancels++
	rec := s.records["jobs"][id]
	if rec != nil {
		s.statuses = []string{"canceled"}
		s.polls = map[int]int{}
	}
	s.mu.Unlock()
	if rec == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Not found."})
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// websocket serves the job event stream: after the client subscribes,
// every scripted line is sent as one event message, then the
// connection closes.
func (s *Server) websocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	// Wait for the subscription frame.
	if _, _, err := conn.ReadMessage(); err != nil {
		return
	}

	s.mu.Lock()
	lines := s.events
	s.mu.Unlock()
	for _, line := range lines {
		msg := map[string]interface{}{"group_name": "job_events", "stdout": line}
		if err := conn.WriteJSON(msg); err != nil {
			return
		}
	}
	conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

func cloneRecord(rec Record) Record {
	out := make(Record, len(rec))
	for k, v := range rec {
		out[k] = v
	}
	return out
}
