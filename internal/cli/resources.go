package cli

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/rflorenc/awxctl/internal/monitor"
	"github.com/rflorenc/awxctl/internal/prompt"
	"github.com/rflorenc/awxctl/internal/resource"
)

// parseTimeout accepts a duration string or a bare number of seconds,
// matching the configuration file format.
func parseTimeout(raw string) (time.Duration, error) {
	if n, err := strconv.Atoi(raw); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid timeout %q", raw)
	}
	return d, nil
}

// newResourceCmd builds the command group for one catalog resource,
// with a subcommand per supported operation.
func newResourceCmd(def *resource.Definition, flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   def.Name,
		Short: "Manage " + strings.ToLower(def.Label),
	}

	if def.Supports(resource.OpList) {
		cmd.AddCommand(newListCmd(def, flags))
	}
	if def.Supports(resource.OpGet) {
		cmd.AddCommand(newGetCmd(def, flags))
	}
	if def.Supports(resource.OpCreate) {
		cmd.AddCommand(newCreateCmd(def, flags))
	}
	if def.Supports(resource.OpModify) {
		cmd.AddCommand(newModifyCmd(def, flags))
	}
	if def.Supports(resource.OpDelete) {
		cmd.AddCommand(newDeleteCmd(def, flags))
	}
	if def.Supports(resource.OpLaunch) {
		cmd.AddCommand(newLaunchCmd(def, flags))
	}
	if def.Supports(resource.OpMonitor) {
		cmd.AddCommand(newMonitorCmd(def, flags))
	}
	if def.Supports(resource.OpCancel) {
		cmd.AddCommand(newCancelCmd(def, flags))
	}
	return cmd
}

// flagName maps a field to its command-line spelling.
func flagName(f resource.Field) string {
	return strings.ReplaceAll(f.Name, "_", "-")
}

// addFieldFlags registers one string flag per field and returns the
// value holders keyed by field name.
func addFieldFlags(cmd *cobra.Command, fields []resource.Field) map[string]*string {
	holders := make(map[string]*string, len(fields))
	for _, f := range fields {
		help := f.Help
		if help == "" {
			if f.Type == resource.Choice {
				help = "One of: " + strings.Join(f.Choices, ", ")
			} else {
				help = strings.ReplaceAll(f.Name, "_", " ")
			}
		}
		holders[f.Name] = cmd.Flags().String(flagName(f), "", help)
	}
	return holders
}

// changedFieldValues collects only the field flags the operator set.
func changedFieldValues(cmd *cobra.Command, fields []resource.Field, holders map[string]*string) map[string]string {
	values := map[string]string{}
	for _, f := range fields {
		if cmd.Flags().Changed(flagName(f)) {
			values[f.Name] = *holders[f.Name]
		}
	}
	return values
}

// listColumns picks the table columns for a resource: the id plus the
// first few non-secret fields.
func listColumns(def *resource.Definition) []string {
	columns := []string{"id"}
	for _, f := range def.Fields {
		if f.Secret {
			continue
		}
		columns = append(columns, f.Name)
		if len(columns) == 6 {
			break
		}
	}
	return columns
}

func newListCmd(def *resource.Definition, flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List " + strings.ToLower(def.Label),
	}
	holders := addFieldFlags(cmd, def.Fields)

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		d, cfg, out, err := connect(cmd, flags)
		if err != nil {
			return err
		}
		filters := url.Values{}
		for name, value := range changedFieldValues(cmd, def.Fields, holders) {
			filters.Set(name, value)
		}
		records, err := d.List(def.Name, filters, cfg.GetInt("max_pages", 100))
		if err != nil {
			return err
		}
		out.Records(listColumns(def), records)
		return nil
	}
	return cmd
}

func newGetCmd(def *resource.Definition, flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "get NAME_OR_ID",
		Short: "Show one " + def.Name,
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, _, out, err := connect(cmd, flags)
			if err != nil {
				return err
			}
			rec, err := d.Get(def.Name, args[0])
			if err != nil {
				return err
			}
			out.Record(rec)
			return nil
		},
	}
}

func newCreateCmd(def *resource.Definition, flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a " + def.Name,
	}
	holders := addFieldFlags(cmd, def.Fields)

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		d, _, out, err := connect(cmd, flags)
		if err != nil {
			return err
		}
		supplied := changedFieldValues(cmd, def.Fields, holders)
		resolved, err := prompt.Resolve(def.Fields, supplied, provider(flags))
		if err != nil {
			return err
		}
		rec, err := d.Create(def.Name, resolved)
		if err != nil {
			return err
		}
		out.Record(rec)
		return nil
	}
	return cmd
}

func newModifyCmd(def *resource.Definition, flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "modify NAME_OR_ID",
		Short: "Update fields of a " + def.Name,
		Args:  exactArgs(1),
	}
	holders := addFieldFlags(cmd, def.Fields)

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		d, _, out, err := connect(cmd, flags)
		if err != nil {
			return err
		}
		// Partial update: only flags the operator set are sent, so no
		// prompting and no defaults here.
		supplied := changedFieldValues(cmd, def.Fields, holders)
		rec, err := d.Modify(def.Name, args[0], supplied)
		if err != nil {
			return err
		}
		out.Record(rec)
		return nil
	}
	return cmd
}

func newDeleteCmd(def *resource.Definition, flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "delete NAME_OR_ID",
		Short: "Delete a " + def.Name,
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, _, out, err := connect(cmd, flags)
			if err != nil {
				return err
			}
			if err := d.Delete(def.Name, args[0]); err != nil {
				return err
			}
			out.Message("deleted %s %s", def.Name, args[0])
			return nil
		},
	}
}

func newLaunchCmd(def *resource.Definition, flags *rootFlags) *cobra.Command {
	var extraVars []string
	var wait bool
	var follow bool

	cmd := &cobra.Command{
		Use:   "launch NAME_OR_ID",
		Short: "Launch a job from a " + def.Name,
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, cfg, out, err := connect(cmd, flags)
			if err != nil {
				return err
			}
			vars, err := ParseExtraVars(extraVars)
			if err != nil {
				return err
			}
			job, err := d.Launch(args[0], vars, provider(flags))
			if err != nil {
				return err
			}
			out.Message("job %d launched (%s)", job.ID, job.Status)
			if !wait && !follow {
				out.Result(
					map[string]interface{}{"id": job.ID, "status": job.Status},
					fmt.Sprintf("%d\t%s", job.ID, job.Status),
				)
				return nil
			}
			return waitForJob(cmd, d.Monitor(), job, monitor.OptionsFromSettings(cfg), follow, out)
		},
	}
	cmd.Flags().StringArrayVarP(&extraVars, "extra-vars", "e", nil, "Launch variables, inline YAML/JSON or @file (repeatable)")
	cmd.Flags().BoolVar(&wait, "monitor", false, "Wait for the job to finish")
	cmd.Flags().BoolVar(&follow, "follow", false, "Stream job output while waiting")
	return cmd
}

func newMonitorCmd(def *resource.Definition, flags *rootFlags) *cobra.Command {
	var follow bool
	var timeout string

	cmd := &cobra.Command{
		Use:   "monitor ID",
		Short: "Wait for a " + def.Name + " to reach a terminal state",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return &UsageError{Err: fmt.Errorf("invalid job id %q", args[0])}
			}
			d, cfg, out, err := connect(cmd, flags)
			if err != nil {
				return err
			}
			opts := monitor.OptionsFromSettings(cfg)
			if timeout != "" {
				parsed, err := parseTimeout(timeout)
				if err != nil {
					return err
				}
				opts.Timeout = parsed
			}
			m := d.Monitor()
			job, err := m.Status(monitor.Job{ID: id, Resource: def.Name})
			if err != nil {
				return err
			}
			return waitForJob(cmd, m, job, opts, follow, out)
		},
	}
	cmd.Flags().BoolVar(&follow, "follow", false, "Stream job output while waiting")
	cmd.Flags().StringVar(&timeout, "timeout", "", "Give up after this long (e.g. 30s, 10m; job keeps running)")
	return cmd
}

func newCancelCmd(def *resource.Definition, flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel ID",
		Short: "Request cancellation of a " + def.Name,
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return &UsageError{Err: fmt.Errorf("invalid job id %q", args[0])}
			}
			d, cfg, out, err := connect(cmd, flags)
			if err != nil {
				return err
			}
			job, err := d.Monitor().Cancel(
				monitor.Job{ID: id, Resource: def.Name},
				monitor.OptionsFromSettings(cfg),
			)
			if err != nil {
				return err
			}
			out.Message("job %d: %s", job.ID, job.Status)
			return nil
		},
	}
}

// waitForJob runs the monitor loop with interrupt handling, optionally
// streaming live output, and reports the terminal state. A remotely
// failed job is surfaced as a remote failure for the exit code.
func waitForJob(cmd *cobra.Command, m *monitor.Monitor, job monitor.Job, opts monitor.Options, follow bool, out *Output) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if follow {
		// Best effort: if the event stream is unavailable the wait
		// still completes through polling alone.
		go m.FollowOutput(ctx, job.ID, cmd.OutOrStdout())
	}

	final, err := m.Monitor(ctx, job, opts)
	if err != nil {
		return err
	}
	out.Message("job %d finished: %s", final.ID, final.Status)
	if final.Status != monitor.StatusSuccessful {
		return &JobFailedError{Job: final}
	}
	out.Result(
		map[string]interface{}{"id": final.ID, "status": final.Status},
		fmt.Sprintf("%d\t%s", final.ID, final.Status),
	)
	return nil
}

// JobFailedError reports a job that reached a non-successful terminal
// state. The wait itself worked; the remote run did not.
type JobFailedError struct {
	Job monitor.Job
}

func (e *JobFailedError) Error() string {
	return fmt.Sprintf("job %d finished %s", e.Job.ID, e.Job.Status)
}
