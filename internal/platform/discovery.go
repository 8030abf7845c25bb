package platform

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"
)

// PingResponse holds the parsed /ping/ response.
type PingResponse struct {
	Version string `json:"version"`
}

// APIRootResponse holds the parsed /api/ response.
// AWX format: {"current_version": "/api/v2/", ...}
// AAP format: {"apis": {"controller": "/api/controller/", ...}}
type APIRootResponse struct {
	CurrentVersion string            `json:"current_version"` // AWX
	APIs           map[string]string `json:"apis"`            // AAP: service name → prefix path
}

// ParsePingResponse extracts the version from a /ping/ JSON response body.
func ParsePingResponse(body []byte) (*PingResponse, error) {
	var resp PingResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parsing ping response: %w", err)
	}
	if resp.Version == "" {
		return nil, fmt.Errorf("ping response missing version field")
	}
	return &resp, nil
}

// ParseAPIRoot parses the /api/ response body.
func ParseAPIRoot(body []byte) (*APIRootResponse, error) {
	var resp APIRootResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parsing API root response: %w", err)
	}
	return &resp, nil
}

// DetectAPIPrefix determines the API prefix from the parsed /api/ response.
// AWX: uses current_version directly (e.g. "/api/v2/").
// AAP: uses apis.controller + "v2/" (e.g. "/api/controller/" → "/api/controller/v2/").
// Returns empty string if detection fails.
func DetectAPIPrefix(root *APIRootResponse) string {
	if root == nil {
		return ""
	}
	if root.CurrentVersion != "" {
		prefix := root.CurrentVersion
		if !strings.HasSuffix(prefix, "/") {
			prefix += "/"
		}
		return prefix
	}
	if controllerPrefix, ok := root.APIs["controller"]; ok && controllerPrefix != "" {
		prefix := controllerPrefix
		if !strings.HasSuffix(prefix, "/") {
			prefix += "/"
		}
		return prefix + "v2/"
	}
	return ""
}

// Discover detects the controller's API prefix and version and stores
// them on the session. All discovery is best-effort: failures are
// logged and the default prefix stands.
func Discover(client *Client) {
	session := client.Session()

	body, err := client.Get("/api/", nil)
	if err != nil {
		log.Printf("discovery: /api/ failed: %v", err)
		return
	}
	root, err := ParseAPIRoot(body)
	if err != nil {
		log.Printf("discovery: %v", err)
		return
	}
	if prefix := DetectAPIPrefix(root); prefix != "" {
		session.APIPrefix = prefix
	}
}

// RemoteVersion fetches the controller version from the ping endpoint.
// An empty version with nil error means the endpoint answered but the
// payload carried no version (connectivity OK, version unknown).
func (c *Client) RemoteVersion() (string, error) {
	body, err := c.Get("ping/", nil)
	if err != nil {
		return "", err
	}
	resp, err := ParsePingResponse(body)
	if err != nil {
		return "", nil
	}
	return resp.Version, nil
}
