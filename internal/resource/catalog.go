package resource

// The builtin catalog. Field order matters: prompts walk fields in
// declaration order, so keep identity fields first.

var crud = []Operation{OpList, OpGet, OpCreate, OpModify, OpDelete}

func init() {
	register(&Definition{
		Name:     "organization",
		Label:    "Organizations",
		Endpoint: "organizations/",
		Fields: []Field{
			{Name: "name", Required: true, Help: "Organization name."},
			{Name: "description"},
		},
		Operations: crud,
	})

	register(&Definition{
		Name:     "user",
		Label:    "Users",
		Endpoint: "users/",
		Fields: []Field{
			{Name: "username", Required: true},
			{Name: "password", Secret: true, Required: true},
			{Name: "first_name"},
			{Name: "last_name"},
			{Name: "email"},
			{Name: "is_superuser", Type: Bool, Default: "false"},
		},
		Operations: crud,
	})

	register(&Definition{
		Name:     "team",
		Label:    "Teams",
		Endpoint: "teams/",
		Fields: []Field{
			{Name: "name", Required: true},
			{Name: "organization", Type: Reference, Ref: "organization", Required: true},
			{Name: "description"},
		},
		Operations: crud,
	})

	register(&Definition{
		Name:     "credential",
		Label:    "Credentials",
		Endpoint: "credentials/",
		Fields: []Field{
			{Name: "name", Required: true},
			{Name: "description"},
			{Name: "organization", Type: Reference, Ref: "organization"},
			{Name: "kind", Type: Choice, Choices: []string{"ssh", "scm", "vault", "aws", "gce", "azure_rm"},
				Default: "ssh", Help: "The type of credential being added."},
			{Name: "username"},
			// ASK on a credential secret defers the value to launch
			// time; the controller then reports it via
			// passwords_needed_to_start.
			{Name: "password", Secret: true},
			{Name: "become_password", Secret: true},
			{Name: "vault_password", Secret: true},
		},
		Operations: crud,
	})

	register(&Definition{
		Name:     "project",
		Label:    "Projects",
		Endpoint: "projects/",
		Fields: []Field{
			{Name: "name", Required: true},
			{Name: "description"},
			{Name: "organization", Type: Reference, Ref: "organization"},
			{Name: "scm_type", Type: Choice, Choices: []string{"manual", "git", "svn"}, Default: "git"},
			{Name: "scm_url"},
			{Name: "scm_branch"},
		},
		Operations: crud,
	})

	register(&Definition{
		Name:     "inventory",
		Label:    "Inventories",
		Endpoint: "inventories/",
		Fields: []Field{
			{Name: "name", Required: true},
			{Name: "organization", Type: Reference, Ref: "organization", Required: true},
			{Name: "description"},
			{Name: "variables"},
		},
		Operations: crud,
	})

	register(&Definition{
		Name:     "host",
		Label:    "Hosts",
		Endpoint: "hosts/",
		Fields: []Field{
			{Name: "name", Required: true},
			{Name: "inventory", Type: Reference, Ref: "inventory", Required: true},
			{Name: "description"},
			{Name: "variables"},
			{Name: "enabled", Type: Bool, Default: "true"},
		},
		Operations: crud,
	})

	register(&Definition{
		Name:     "group",
		Label:    "Groups",
		Endpoint: "groups/",
		Fields: []Field{
			{Name: "name", Required: true},
			{Name: "inventory", Type: Reference, Ref: "inventory", Required: true},
			{Name: "description"},
		},
		Operations: crud,
	})

	register(&Definition{
		Name:     "job_template",
		Label:    "Job Templates",
		Endpoint: "job_templates/",
		Fields: []Field{
			{Name: "name", Required: true},
			{Name: "description"},
			{Name: "job_type", Type: Choice, Choices: []string{"run", "check"}, Default: "run"},
			{Name: "inventory", Type: Reference, Ref: "inventory", Required: true},
			{Name: "project", Type: Reference, Ref: "project", Required: true},
			{Name: "playbook", Required: true},
			{Name: "credential", Type: Reference, Ref: "credential"},
			{Name: "forks", Type: Int, Default: "0"},
			{Name: "limit"},
			{Name: "verbosity", Type: Choice, Choices: []string{"0", "1", "2", "3", "4"}, Default: "0"},
			{Name: "extra_vars", Help: "Launch-time variables, inline YAML/JSON or @file."},
			{Name: "job_tags"},
		},
		Operations: append(append([]Operation{}, crud...), OpLaunch),
	})

	register(&Definition{
		Name:     "job",
		Label:    "Jobs",
		Endpoint: "jobs/",
		Fields: []Field{
			{Name: "job_template", Type: Reference, Ref: "job_template"},
			{Name: "status", Type: Choice,
				Choices: []string{"pending", "waiting", "running", "successful", "failed", "error", "canceled"}},
		},
		Operations: []Operation{OpList, OpGet, OpMonitor, OpCancel},
	})
}
