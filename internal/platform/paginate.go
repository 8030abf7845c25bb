package platform

import (
	"encoding/json"
	"net/url"
	"strings"
)

// Pager walks a paginated endpoint one page at a time. It is a finite
// lazy sequence: each Next call fetches one page, and traversal stops
// with a PaginationError if the next-link chain revisits a page or
// exceeds the page cap.
type Pager struct {
	client   *Client
	next     string
	params   url.Values
	seen     map[string]bool
	pages    int
	maxPages int
	done     bool
}

// Paginate starts a traversal of path. maxPages <= 0 uses the default
// cap of 100.
func (c *Client) Paginate(path string, params url.Values, maxPages int) *Pager {
	if maxPages <= 0 {
		maxPages = 100
	}
	return &Pager{
		client:   c,
		next:     path,
		params:   params,
		seen:     map[string]bool{},
		maxPages: maxPages,
	}
}

// More reports whether another page is available.
func (p *Pager) More() bool { return !p.done }

// Next fetches and returns the next page of records in server order.
func (p *Pager) Next() ([]Record, error) {
	if p.done {
		return nil, nil
	}
	if p.pages >= p.maxPages {
		p.done = true
		return nil, &PaginationError{Link: p.next, Pages: p.pages, Reason: "page cap exceeded"}
	}
	if p.seen[p.next] {
		p.done = true
		return nil, &PaginationError{Link: p.next, Pages: p.pages, Reason: "next link already visited"}
	}
	p.seen[p.next] = true

	params := p.params
	if p.pages > 0 {
		// Next-links already carry their own query string.
		params = nil
	}
	body, err := p.client.Get(p.next, params)
	if err != nil {
		p.done = true
		return nil, err
	}

	var page Page
	if err := json.Unmarshal(body, &page); err != nil {
		p.done = true
		return nil, &PaginationError{Link: p.next, Pages: p.pages + 1, Reason: "unparsable page: " + err.Error()}
	}
	p.pages++

	if page.Next == nil || *page.Next == "" {
		p.done = true
	} else {
		p.next = normalizeLink(*page.Next)
	}
	return page.Results, nil
}

// Collect drains the pager, concatenating every page.
func (p *Pager) Collect() ([]Record, error) {
	var all []Record
	for p.More() {
		records, err := p.Next()
		if err != nil {
			return nil, err
		}
		all = append(all, records...)
	}
	return all, nil
}

// normalizeLink strips an absolute next-link down to a rooted path so
// the traversal never follows a link off the configured host.
func normalizeLink(link string) string {
	if i := strings.Index(link, "://"); i >= 0 {
		rest := link[i+3:]
		if j := strings.Index(rest, "/"); j >= 0 {
			return rest[j:]
		}
		return "/"
	}
	return link
}
