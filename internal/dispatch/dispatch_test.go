package dispatch

import (
	"errors"
	"fmt"
	"net/url"
	"testing"

	"github.com/rflorenc/awxctl/internal/awxmock"
	"github.com/rflorenc/awxctl/internal/monitor"
	"github.com/rflorenc/awxctl/internal/platform"
	"github.com/rflorenc/awxctl/internal/prompt"
	"github.com/rflorenc/awxctl/internal/resource"
)

func newDispatcher(t *testing.T) (*Dispatcher, *awxmock.Server) {
	t.Helper()
	mock := awxmock.New()
	t.Cleanup(mock.Close)
	client := platform.NewClient(&platform.Session{
		Host:      mock.URL(),
		Username:  "admin",
		Password:  "secret",
		VerifySSL: true,
		APIPrefix: "/api/v2/",
	})
	return New(client), mock
}

func TestList_AcrossPages(t *testing.T) {
	d, mock := newDispatcher(t)
	for i := 1; i <= 25; i++ {
		mock.Seed("organizations", awxmock.Record{"name": fmt.Sprintf("org-%02d", i)})
	}

	records, err := d.List("organization", nil, 0)
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(records) != 25 {
		t.Fatalf("got %d records, want 25", len(records))
	}
	// Server order is preserved across page boundaries.
	for i, rec := range records {
		want := fmt.Sprintf("org-%02d", i+1)
		if rec["name"] != want {
			t.Fatalf("records[%d] name = %v, want %s", i, rec["name"], want)
		}
	}
}

func TestList_Filtered(t *testing.T) {
	d, mock := newDispatcher(t)
	mock.Seed("projects", awxmock.Record{"name": "site", "scm_type": "git"})
	mock.Seed("projects", awxmock.Record{"name": "infra", "scm_type": "svn"})

	records, err := d.List("project", url.Values{"scm_type": {"git"}}, 0)
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(records) != 1 || records[0]["name"] != "site" {
		t.Errorf("filtered list = %v, want only site", records)
	}
}

func TestGet_ByPrimaryKey(t *testing.T) {
	d, mock := newDispatcher(t)
	id := mock.Seed("inventories", awxmock.Record{"name": "prod"})

	rec, err := d.Get("inventory", fmt.Sprintf("%d", id))
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if rec["name"] != "prod" {
		t.Errorf("name = %v, want prod", rec["name"])
	}
}

func TestGet_ByName(t *testing.T) {
	d, mock := newDispatcher(t)
	mock.Seed("inventories", awxmock.Record{"name": "prod"})
	mock.Seed("inventories", awxmock.Record{"name": "staging"})

	rec, err := d.Get("inventory", "staging")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if rec["name"] != "staging" {
		t.Errorf("name = %v, want staging", rec["name"])
	}
}

func TestGet_NameErrors(t *testing.T) {
	d, mock := newDispatcher(t)
	mock.Seed("teams", awxmock.Record{"name": "ops", "organization": 1})
	mock.Seed("teams", awxmock.Record{"name": "ops", "organization": 2})

	_, err := d.Get("team", "nonexistent")
	var nf *platform.NotFoundError
	if !errors.As(err, &nf) {
		t.Errorf("unknown name error = %T, want *platform.NotFoundError", err)
	}

	_, err = d.Get("team", "ops")
	var multi *platform.MultipleResultsError
	if !errors.As(err, &multi) {
		t.Fatalf("ambiguous name error = %T, want *platform.MultipleResultsError", err)
	}
	if multi.Count != 2 {
		t.Errorf("Count = %d, want 2", multi.Count)
	}
}

func TestGet_UserByUsername(t *testing.T) {
	d, mock := newDispatcher(t)
	mock.Seed("users", awxmock.Record{"username": "alice"})

	rec, err := d.Get("user", "alice")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if rec["username"] != "alice" {
		t.Errorf("username = %v, want alice", rec["username"])
	}
}

func TestCreate_ResolvesReferences(t *testing.T) {
	d, mock := newDispatcher(t)
	orgID := mock.Seed("organizations", awxmock.Record{"name": "Default"})

	rec, err := d.Create("team", map[string]string{
		"name":         "ops",
		"organization": "Default",
	})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	// The stored record carries the resolved primary key, not the name.
	if got, want := int(rec["organization"].(float64)), orgID; got != want {
		t.Errorf("organization = %d, want %d", got, want)
	}
	if rec["id"] == nil {
		t.Error("create response carries no id")
	}
}

func TestCreate_TypedPayload(t *testing.T) {
	d, mock := newDispatcher(t)
	invID := mock.Seed("inventories", awxmock.Record{"name": "prod"})

	rec, err := d.Create("host", map[string]string{
		"name":      "web01",
		"inventory": fmt.Sprintf("%d", invID),
		"enabled":   "true",
	})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if rec["enabled"] != true {
		t.Errorf("enabled = %v (%T), want boolean true", rec["enabled"], rec["enabled"])
	}
}

func TestCreate_UnknownFieldRejected(t *testing.T) {
	d, _ := newDispatcher(t)
	_, err := d.Create("organization", map[string]string{
		"name":    "x",
		"flavour": "strawberry",
	})
	var ve *resource.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("error type = %T, want *resource.ValidationError", err)
	}
	if ve.Field != "flavour" {
		t.Errorf("Field = %q, want flavour", ve.Field)
	}
}

func TestModify_PartialPatch(t *testing.T) {
	d, mock := newDispatcher(t)
	id := mock.Seed("projects", awxmock.Record{"name": "site", "scm_branch": "main", "scm_url": "git://x"})

	rec, err := d.Modify("project", "site", map[string]string{"scm_branch": "release"})
	if err != nil {
		t.Fatalf("Modify returned error: %v", err)
	}
	if rec["scm_branch"] != "release" {
		t.Errorf("scm_branch = %v, want release", rec["scm_branch"])
	}
	// Untouched fields survive.
	if stored := mock.Get("projects", id); stored["scm_url"] != "git://x" {
		t.Errorf("scm_url = %v, want git://x", stored["scm_url"])
	}
}

func TestDelete(t *testing.T) {
	d, mock := newDispatcher(t)
	id := mock.Seed("hosts", awxmock.Record{"name": "web01", "inventory": 1})

	if err := d.Delete("host", fmt.Sprintf("%d", id)); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	if mock.Get("hosts", id) != nil {
		t.Error("record still present after delete")
	}
	// Deleting again is success: the record is already gone.
	if err := d.Delete("host", fmt.Sprintf("%d", id)); err != nil {
		t.Errorf("second delete returned error: %v", err)
	}
}

func TestUnsupportedOperation_NoNetworkCall(t *testing.T) {
	// The client points at a dead host: any network attempt would fail
	// loudly, so a clean typed error proves the guard fires first.
	client := platform.NewClient(&platform.Session{
		Host: "http://127.0.0.1:1", APIPrefix: "/api/v2/", VerifySSL: true,
	})
	d := New(client)

	_, err := d.Create("job", map[string]string{"name": "x"})
	var unsupported *resource.UnsupportedOperationError
	if !errors.As(err, &unsupported) {
		t.Fatalf("error type = %T, want *resource.UnsupportedOperationError", err)
	}
	if unsupported.Resource != "job" {
		t.Errorf("Resource = %q, want job", unsupported.Resource)
	}
}

func TestLaunch_ReturnsJobHandle(t *testing.T) {
	d, mock := newDispatcher(t)
	mock.Seed("job_templates", awxmock.Record{"name": "deploy"})

	job, err := d.Launch("deploy", nil, prompt.NonInteractive{})
	if err != nil {
		t.Fatalf("Launch returned error: %v", err)
	}
	if job.ID == 0 {
		t.Fatal("job handle carries no id")
	}
	if job.Status != monitor.StatusPending && job.Status != monitor.StatusWaiting {
		t.Errorf("fresh job status = %q, want pending or waiting", job.Status)
	}
}

func TestLaunch_PasswordsNeeded(t *testing.T) {
	d, mock := newDispatcher(t)
	mock.Seed("job_templates", awxmock.Record{"name": "deploy"})
	mock.RequirePasswords("ssh_password")

	// Non-interactive: the launch must fail before any job is created.
	_, err := d.Launch("deploy", nil, prompt.NonInteractive{})
	var mv *prompt.MissingValueError
	if !errors.As(err, &mv) {
		t.Fatalf("error type = %T, want *prompt.MissingValueError", err)
	}

	// Interactive: the prompted password satisfies the controller.
	scripted := &prompt.Scripted{Answers: map[string]string{"ssh_password": "hunter2"}}
	job, err := d.Launch("deploy", nil, scripted)
	if err != nil {
		t.Fatalf("Launch returned error: %v", err)
	}
	if job.ID == 0 {
		t.Error("job handle carries no id")
	}
	if len(scripted.Asked) != 1 || scripted.Asked[0] != "ssh_password" {
		t.Errorf("Asked = %v, want [ssh_password]", scripted.Asked)
	}
}
