// Package platform is the HTTP client capability for the AWX / AAP
// controller API: authenticated requests, retry classes, the standard
// pagination envelope, and API prefix discovery.
package platform

import (
	"bytes"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rflorenc/awxctl/internal/config"
)

// Record is a generic controller API record.
type Record map[string]interface{}

// Page is the standard AWX/AAP paginated response envelope.
type Page struct {
	Count   int      `json:"count"`
	Next    *string  `json:"next"`
	Results []Record `json:"results"`
}

// Session holds the resolved connection details for one invocation.
// It is derived from Settings at startup and never written to disk.
type Session struct {
	Host      string
	Username  string
	Password  string
	VerifySSL bool
	CACert    string

	// APIPrefix is the controller API root ("/api/v2/" unless
	// discovery finds a gateway prefix). See discovery.go.
	APIPrefix string
}

// NewSession derives a Session from effective settings. No network
// validation happens here; unreachable hosts surface on first request.
func NewSession(settings *config.Settings) *Session {
	host := settings.Get("host")
	if !strings.Contains(host, "://") {
		host = "https://" + strings.Trim(host, "/")
	}
	return &Session{
		Host:      strings.TrimRight(host, "/"),
		Username:  settings.Get("username"),
		Password:  settings.Get("password"),
		// Fail closed: a verify_ssl value that does not parse keeps
		// certificate verification on.
		VerifySSL: settings.GetBoolDefault("verify_ssl", true),
		CACert:    settings.Get("ca_cert"),
		APIPrefix: "/api/v2/",
	}
}

// retryClass determines how a request reacts to transport failures.
type retryClass int

const (
	// retryIdempotent: safe to repeat (GET). Up to maxAttempts.
	retryIdempotent retryClass = iota
	// retryNever: repeating could duplicate remote state (POST).
	retryNever
	// retryConnect: repeated only when the failure happened at dial
	// time, before any byte of the request was written (PATCH/DELETE).
	retryConnect
)

const maxAttempts = 3

// Client issues authenticated requests against one controller.
type Client struct {
	session    *Session
	httpClient *http.Client
}

// NewClient creates a Client for the session.
func NewClient(session *Session) *Client {
	transport := &http.Transport{}
	if !session.VerifySSL {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	} else if session.CACert != "" {
		pool := x509.NewCertPool()
		if pool.AppendCertsFromPEM([]byte(session.CACert)) {
			transport.TLSClientConfig = &tls.Config{RootCAs: pool}
		}
	}
	return &Client{
		session: session,
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   60 * time.Second,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				// Re-apply basic auth on redirects
				if len(via) > 0 {
					req.SetBasicAuth(session.Username, session.Password)
				}
				return nil
			},
		},
	}
}

// Session returns the client's session.
func (c *Client) Session() *Session { return c.session }

// url joins a path onto the controller base. Paths starting with "/"
// are taken as already rooted (pagination next-links, ping); anything
// else is relative to the discovered API prefix.
func (c *Client) url(path string) string {
	if strings.HasPrefix(path, "/") {
		return c.session.Host + path
	}
	return c.session.Host + c.session.APIPrefix + path
}

func (c *Client) do(method, path string, params url.Values, payload interface{}, retry retryClass) ([]byte, int, error) {
	u := c.url(path)
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	var encoded []byte
	if payload != nil {
		var err error
		encoded, err = json.Marshal(payload)
		if err != nil {
			return nil, 0, fmt.Errorf("marshaling body: %w", err)
		}
	}

	attempts := 0
	for {
		attempts++

		var bodyReader io.Reader
		if encoded != nil {
			bodyReader = bytes.NewReader(encoded)
		}
		req, err := http.NewRequest(method, u, bodyReader)
		if err != nil {
			return nil, 0, fmt.Errorf("creating request: %w", err)
		}
		req.SetBasicAuth(c.session.Username, c.session.Password)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Request-ID", uuid.NewString())

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if c.shouldRetry(retry, err, attempts) {
				time.Sleep(time.Duration(attempts) * 250 * time.Millisecond)
				continue
			}
			return nil, 0, &TransportError{Method: method, Path: path, Attempts: attempts, Err: err}
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, resp.StatusCode, fmt.Errorf("%s %s: reading response: %w", method, path, err)
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return body, resp.StatusCode, &RemoteError{
				Method: method, Path: path,
				StatusCode: resp.StatusCode, Body: string(body),
			}
		}
		return body, resp.StatusCode, nil
	}
}

// shouldRetry applies the retry class to a transport failure. Failures
// with a response are never retried here: those are RemoteErrors.
func (c *Client) shouldRetry(retry retryClass, err error, attempts int) bool {
	if attempts >= maxAttempts {
		return false
	}
	switch retry {
	case retryIdempotent:
		return true
	case retryConnect:
		return isDialError(err)
	default:
		return false
	}
}

// isDialError reports whether err happened while establishing the
// connection, i.e. before any byte of the request could have been
// written. Only these failures are unambiguous for non-idempotent
// requests.
func isDialError(err error) bool {
	var op *net.OpError
	if errors.As(err, &op) {
		return op.Op == "dial"
	}
	return false
}

// Get performs a GET and returns the raw body. Retried on transport
// failure (idempotent).
func (c *Client) Get(path string, params url.Values) ([]byte, error) {
	body, _, err := c.do(http.MethodGet, path, params, nil, retryIdempotent)
	return body, err
}

// GetJSON performs a GET and unmarshals the response into dest.
func (c *Client) GetJSON(path string, params url.Values, dest interface{}) error {
	body, err := c.Get(path, params)
	if err != nil {
		return err
	}
	return json.Unmarshal(body, dest)
}

// GetOne performs a filtered GET that must match exactly one record.
// Zero matches is a NotFoundError, two or more a MultipleResultsError.
func (c *Client) GetOne(path, resource string, params url.Values) (Record, error) {
	var page Page
	if err := c.GetJSON(path, params, &page); err != nil {
		return nil, err
	}
	switch {
	case page.Count == 0:
		return nil, &NotFoundError{Resource: resource}
	case page.Count >= 2:
		return nil, &MultipleResultsError{Resource: resource, Count: page.Count}
	case len(page.Results) == 0:
		// The envelope contradicts itself; never index into it.
		return nil, fmt.Errorf("%s: server reported %d result(s) but returned none", resource, page.Count)
	}
	return page.Results[0], nil
}

// Post performs a POST. Never retried: a duplicate could create a
// second remote record.
func (c *Client) Post(path string, payload interface{}) ([]byte, int, error) {
	return c.do(http.MethodPost, path, nil, payload, retryNever)
}

// Patch performs a PATCH, retried only on dial-class failures.
func (c *Client) Patch(path string, payload interface{}) ([]byte, int, error) {
	return c.do(http.MethodPatch, path, nil, payload, retryConnect)
}

// Delete performs a DELETE, retried only on dial-class failures.
// 404 is treated as success: the record is already gone.
func (c *Client) Delete(path string) error {
	_, _, err := c.do(http.MethodDelete, path, nil, nil, retryConnect)
	if err != nil {
		var remote *RemoteError
		if errors.As(err, &remote) && remote.StatusCode == http.StatusNotFound {
			return nil
		}
		return err
	}
	return nil
}

// Ping checks connectivity by hitting an API path.
func (c *Client) Ping(apiPath string) error {
	_, err := c.Get(apiPath, nil)
	return err
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
