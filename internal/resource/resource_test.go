package resource

import (
	"errors"
	"testing"
)

func TestLookup_Known(t *testing.T) {
	d, err := Lookup("job_template")
	if err != nil {
		t.Fatalf("Lookup returned error: %v", err)
	}
	if d.Endpoint != "job_templates/" {
		t.Errorf("Endpoint = %q, want job_templates/", d.Endpoint)
	}
	if !d.Supports(OpLaunch) {
		t.Error("job_template must support launch")
	}
}

func TestLookup_Unknown(t *testing.T) {
	_, err := Lookup("flux_capacitor")
	var ur *UnknownResourceError
	if !errors.As(err, &ur) {
		t.Fatalf("error type = %T, want *UnknownResourceError", err)
	}
	if ur.Name != "flux_capacitor" {
		t.Errorf("Name = %q", ur.Name)
	}
}

func TestSupportedOperations(t *testing.T) {
	ops, err := SupportedOperations("job")
	if err != nil {
		t.Fatalf("SupportedOperations returned error: %v", err)
	}
	want := map[Operation]bool{OpList: true, OpGet: true, OpMonitor: true, OpCancel: true}
	if len(ops) != len(want) {
		t.Fatalf("got %d operations, want %d", len(ops), len(want))
	}
	for _, op := range ops {
		if !want[op] {
			t.Errorf("unexpected operation %s for job", op)
		}
	}
}

func TestDefinition_SupportsDeniesUnlisted(t *testing.T) {
	d, _ := Lookup("job")
	if d.Supports(OpCreate) {
		t.Error("job must not support create (jobs are launched, not created)")
	}
	org, _ := Lookup("organization")
	if org.Supports(OpLaunch) {
		t.Error("organization must not support launch")
	}
}

func TestField_Validate(t *testing.T) {
	tests := []struct {
		name    string
		field   Field
		value   string
		wantErr bool
	}{
		{"string anything", Field{Name: "limit"}, "web*", false},
		{"int ok", Field{Name: "forks", Type: Int}, "10", false},
		{"int bad", Field{Name: "forks", Type: Int}, "ten", true},
		{"bool ok", Field{Name: "enabled", Type: Bool}, "true", false},
		{"bool bad", Field{Name: "enabled", Type: Bool}, "sure", true},
		{"choice ok", Field{Name: "job_type", Type: Choice, Choices: []string{"run", "check"}}, "check", false},
		{"choice bad", Field{Name: "job_type", Type: Choice, Choices: []string{"run", "check"}}, "scan", true},
		{"reference pk", Field{Name: "inventory", Type: Reference, Ref: "inventory"}, "42", false},
		{"reference name", Field{Name: "inventory", Type: Reference, Ref: "inventory"}, "Prod Inventory", false},
		{"ask always valid", Field{Name: "password", Type: String, Secret: true}, AskMarker, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.field.Validate(tc.value)
			if (err != nil) != tc.wantErr {
				t.Errorf("Validate(%q) error = %v, wantErr %v", tc.value, err, tc.wantErr)
			}
			if err != nil {
				var ve *ValidationError
				if !errors.As(err, &ve) {
					t.Errorf("error type = %T, want *ValidationError", err)
				}
			}
		})
	}
}

func TestField_Option(t *testing.T) {
	f := Field{Name: "scm_branch"}
	if got := f.Option(); got != "--scm-branch" {
		t.Errorf("Option() = %q, want --scm-branch", got)
	}
}

func TestNames_SortedAndComplete(t *testing.T) {
	names := Names()
	if len(names) == 0 {
		t.Fatal("no resources registered")
	}
	for i := 1; i < len(names); i++ {
		if names[i-1] >= names[i] {
			t.Fatalf("Names() not sorted: %q before %q", names[i-1], names[i])
		}
	}
	for _, required := range []string{"job_template", "job", "inventory", "project", "credential"} {
		if _, err := Lookup(required); err != nil {
			t.Errorf("catalog missing %s", required)
		}
	}
}
