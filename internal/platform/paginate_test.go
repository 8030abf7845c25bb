package platform

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
)

// pageServer serves /api/v2/widgets/ as a chain of pages. nextFor maps
// the ?page value ("" for the first request) to the next-link to emit.
func pageServer(t *testing.T, perPage int, nextFor map[string]string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page := r.URL.Query().Get("page")
		start := 0
		if page != "" {
			n, _ := strconv.Atoi(page)
			start = (n - 1) * perPage
		}
		results := ""
		for i := 0; i < perPage; i++ {
			if i > 0 {
				results += ","
			}
			results += fmt.Sprintf(`{"id":%d,"name":"widget-%d"}`, start+i+1, start+i+1)
		}
		next := "null"
		if link, ok := nextFor[page]; ok {
			next = `"` + link + `"`
		}
		fmt.Fprintf(w, `{"count":30,"next":%s,"results":[%s]}`, next, results)
	}))
}

func TestPager_ThreePages(t *testing.T) {
	ts := pageServer(t, 10, map[string]string{
		"":  "/api/v2/widgets/?page=2",
		"2": "/api/v2/widgets/?page=3",
	})
	defer ts.Close()

	c := newTestClient(ts)
	records, err := c.Paginate("widgets/", nil, 0).Collect()
	if err != nil {
		t.Fatalf("Collect returned error: %v", err)
	}
	if len(records) != 30 {
		t.Fatalf("got %d records, want 30", len(records))
	}
	// Order must be stable: page 1 records first, in server order.
	for i, rec := range records {
		want := fmt.Sprintf("widget-%d", i+1)
		if rec["name"] != want {
			t.Fatalf("records[%d].name = %v, want %s", i, rec["name"], want)
		}
	}
}

func TestPager_LoopDetected(t *testing.T) {
	ts := pageServer(t, 2, map[string]string{
		"":  "/api/v2/widgets/?page=2",
		"2": "/api/v2/widgets/?page=2", // points back at itself
	})
	defer ts.Close()

	c := newTestClient(ts)
	_, err := c.Paginate("widgets/", nil, 0).Collect()
	var pe *PaginationError
	if !errors.As(err, &pe) {
		t.Fatalf("error type = %T, want *PaginationError", err)
	}
	if pe.Reason != "next link already visited" {
		t.Errorf("Reason = %q", pe.Reason)
	}
}

func TestPager_PageCap(t *testing.T) {
	// Every page points to a fresh next page, forever.
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page := r.URL.Query().Get("page")
		n := 1
		if page != "" {
			n, _ = strconv.Atoi(page)
		}
		fmt.Fprintf(w, `{"count":1000000,"next":"/api/v2/widgets/?page=%d","results":[{"id":%d}]}`, n+1, n)
	}))
	defer ts.Close()

	c := newTestClient(ts)
	_, err := c.Paginate("widgets/", nil, 5).Collect()
	var pe *PaginationError
	if !errors.As(err, &pe) {
		t.Fatalf("error type = %T, want *PaginationError", err)
	}
	if pe.Pages != 5 {
		t.Errorf("Pages = %d, want 5", pe.Pages)
	}
	if pe.Reason != "page cap exceeded" {
		t.Errorf("Reason = %q", pe.Reason)
	}
}

func TestPager_LazyOnePageAtATime(t *testing.T) {
	requests := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		fmt.Fprint(w, `{"count":4,"next":"/api/v2/widgets/?page=2","results":[{"id":1},{"id":2}]}`)
	}))
	defer ts.Close()

	c := newTestClient(ts)
	pager := c.Paginate("widgets/", nil, 0)
	if requests != 0 {
		t.Fatal("creating a pager must not issue requests")
	}
	records, err := pager.Next()
	if err != nil {
		t.Fatalf("Next returned error: %v", err)
	}
	if len(records) != 2 || requests != 1 {
		t.Errorf("after one Next: %d records, %d requests; want 2, 1", len(records), requests)
	}
	if !pager.More() {
		t.Error("More() = false with a next link pending")
	}
}

func TestNormalizeLink(t *testing.T) {
	tests := []struct {
		link string
		want string
	}{
		{"/api/v2/hosts/?page=2", "/api/v2/hosts/?page=2"},
		{"https://awx.example.com/api/v2/hosts/?page=2", "/api/v2/hosts/?page=2"},
		{"http://h", "/"},
	}
	for _, tc := range tests {
		if got := normalizeLink(tc.link); got != tc.want {
			t.Errorf("normalizeLink(%q) = %q, want %q", tc.link, got, tc.want)
		}
	}
}
