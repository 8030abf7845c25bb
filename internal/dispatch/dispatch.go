// Package dispatch maps validated resource operations onto controller
// API requests. It is the only layer that decides which endpoint and
// method an operation uses; everything below it speaks raw HTTP and
// everything above it speaks resources.
package dispatch

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/rflorenc/awxctl/internal/monitor"
	"github.com/rflorenc/awxctl/internal/platform"
	"github.com/rflorenc/awxctl/internal/prompt"
	"github.com/rflorenc/awxctl/internal/resource"
)

// Dispatcher executes resource operations against one controller.
type Dispatcher struct {
	client  *platform.Client
	monitor *monitor.Monitor
}

// New creates a Dispatcher for the client.
func New(client *platform.Client) *Dispatcher {
	return &Dispatcher{client: client, monitor: monitor.New(client)}
}

// lookup resolves the resource and rejects unsupported operations
// before any network traffic happens.
func lookup(name string, op resource.Operation) (*resource.Definition, error) {
	def, err := resource.Lookup(name)
	if err != nil {
		return nil, err
	}
	if !def.Supports(op) {
		return nil, &resource.UnsupportedOperationError{Resource: name, Operation: op}
	}
	return def, nil
}

// List returns every record of the resource matching the filters, in
// server order across pages. maxPages <= 0 uses the default cap.
func (d *Dispatcher) List(name string, filters url.Values, maxPages int) ([]platform.Record, error) {
	def, err := lookup(name, resource.OpList)
	if err != nil {
		return nil, err
	}
	return d.client.Paginate(def.Endpoint, filters, maxPages).Collect()
}

// Get returns exactly one record. A numeric identifier is a primary
// key lookup; anything else is a filtered lookup on the resource's
// identity field, which must match exactly one record.
func (d *Dispatcher) Get(name, identifier string) (platform.Record, error) {
	def, err := lookup(name, resource.OpGet)
	if err != nil {
		return nil, err
	}
	if pk, convErr := strconv.Atoi(identifier); convErr == nil {
		var rec platform.Record
		if err := d.client.GetJSON(fmt.Sprintf("%s%d/", def.Endpoint, pk), nil, &rec); err != nil {
			return nil, err
		}
		return rec, nil
	}
	return d.client.GetOne(def.Endpoint, def.Name, url.Values{identityField(def): {identifier}})
}

// Create POSTs a new record. The request is issued exactly once:
// on transport failure the operator must inspect remote state before
// retrying, or a duplicate could be created.
func (d *Dispatcher) Create(name string, params map[string]string) (platform.Record, error) {
	def, err := lookup(name, resource.OpCreate)
	if err != nil {
		return nil, err
	}
	payload, err := d.payload(def, params)
	if err != nil {
		return nil, err
	}
	body, _, err := d.client.Post(def.Endpoint, payload)
	if err != nil {
		return nil, err
	}
	var rec platform.Record
	if err := json.Unmarshal(body, &rec); err != nil {
		return nil, fmt.Errorf("parsing create response: %w", err)
	}
	return rec, nil
}

// Modify PATCHes the supplied fields onto an existing record. Only the
// keys present in params are sent; everything else is left untouched.
func (d *Dispatcher) Modify(name, identifier string, params map[string]string) (platform.Record, error) {
	def, err := lookup(name, resource.OpModify)
	if err != nil {
		return nil, err
	}
	pk, err := d.resolvePK(def, identifier)
	if err != nil {
		return nil, err
	}
	payload, err := d.payload(def, params)
	if err != nil {
		return nil, err
	}
	body, _, err := d.client.Patch(fmt.Sprintf("%s%d/", def.Endpoint, pk), payload)
	if err != nil {
		return nil, err
	}
	var rec platform.Record
	if err := json.Unmarshal(body, &rec); err != nil {
		return nil, fmt.Errorf("parsing modify response: %w", err)
	}
	return rec, nil
}

// Delete removes a record. A record that is already gone counts as
// success.
func (d *Dispatcher) Delete(name, identifier string) error {
	def, err := lookup(name, resource.OpDelete)
	if err != nil {
		return err
	}
	pk, err := d.resolvePK(def, identifier)
	if err != nil {
		return err
	}
	return d.client.Delete(fmt.Sprintf("%s%d/", def.Endpoint, pk))
}

// Launch starts a job from the named job template and returns its
// handle without waiting for completion.
func (d *Dispatcher) Launch(identifier string, extraVars map[string]interface{}, provider prompt.ValueProvider) (monitor.Job, error) {
	def, err := lookup("job_template", resource.OpLaunch)
	if err != nil {
		return monitor.Job{}, err
	}
	pk, err := d.resolvePK(def, identifier)
	if err != nil {
		return monitor.Job{}, err
	}
	return d.monitor.Launch(pk, extraVars, provider)
}

// Monitor exposes the dispatcher's monitor for wait/cancel flows.
func (d *Dispatcher) Monitor() *monitor.Monitor { return d.monitor }

// payload converts resolved string parameters into a typed request
// body. Reference values that are not numeric are resolved to primary
// keys with a remote lookup. The ASK marker passes through unchanged:
// storing it on a credential defers the secret to launch time.
func (d *Dispatcher) payload(def *resource.Definition, params map[string]string) (map[string]interface{}, error) {
	body := make(map[string]interface{}, len(params))
	for _, f := range def.Fields {
		value, ok := params[f.Name]
		if !ok {
			continue
		}
		if value == resource.AskMarker {
			body[f.Name] = value
			continue
		}
		switch f.Type {
		case resource.Int:
			n, err := strconv.Atoi(value)
			if err != nil {
				return nil, &resource.ValidationError{Field: f.Name, Reason: "not an integer: " + value}
			}
			body[f.Name] = n
		case resource.Bool:
			b, err := strconv.ParseBool(value)
			if err != nil {
				return nil, &resource.ValidationError{Field: f.Name, Reason: "not a boolean: " + value}
			}
			body[f.Name] = b
		case resource.Reference:
			pk, err := d.resolveRef(f, value)
			if err != nil {
				return nil, err
			}
			body[f.Name] = pk
		default:
			body[f.Name] = value
		}
	}
	for name := range params {
		if _, known := def.Field(name); !known {
			return nil, &resource.ValidationError{Field: name, Reason: "unknown field for " + def.Name}
		}
	}
	return body, nil
}

// resolveRef turns a reference value into a primary key. Numeric
// values pass through; names are looked up remotely and must match
// exactly one record.
func (d *Dispatcher) resolveRef(f resource.Field, value string) (int, error) {
	if pk, err := strconv.Atoi(value); err == nil {
		return pk, nil
	}
	refDef, err := resource.Lookup(f.Ref)
	if err != nil {
		return 0, err
	}
	rec, err := d.client.GetOne(refDef.Endpoint, refDef.Name, url.Values{identityField(refDef): {value}})
	if err != nil {
		return 0, err
	}
	return recordID(rec)
}

// resolvePK turns a get/modify/delete identifier into a primary key.
func (d *Dispatcher) resolvePK(def *resource.Definition, identifier string) (int, error) {
	if pk, err := strconv.Atoi(identifier); err == nil {
		return pk, nil
	}
	rec, err := d.client.GetOne(def.Endpoint, def.Name, url.Values{identityField(def): {identifier}})
	if err != nil {
		return 0, err
	}
	return recordID(rec)
}

// identityField is the field a non-numeric identifier filters on.
// Users are identified by username; everything else carries a name.
func identityField(def *resource.Definition) string {
	_, hasName := def.Field("name")
	_, hasUsername := def.Field("username")
	if !hasName && hasUsername {
		return "username"
	}
	return "name"
}

func recordID(rec platform.Record) (int, error) {
	switch id := rec["id"].(type) {
	case float64:
		return int(id), nil
	case int:
		return id, nil
	}
	return 0, fmt.Errorf("record carries no id: %v", rec)
}
