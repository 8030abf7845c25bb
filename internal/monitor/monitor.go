// Package monitor launches asynchronous controller jobs and tracks
// them to a terminal state through polling with bounded, jittered
// backoff. It owns the Job value only for the duration of the wait;
// nothing is persisted locally.
package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/rflorenc/awxctl/internal/config"
	"github.com/rflorenc/awxctl/internal/platform"
	"github.com/rflorenc/awxctl/internal/prompt"
	"github.com/rflorenc/awxctl/internal/resource"
)

// Status is a remote job status.
type Status string

const (
	StatusPending    Status = "pending"
	StatusWaiting    Status = "waiting"
	StatusRunning    Status = "running"
	StatusSuccessful Status = "successful"
	StatusFailed     Status = "failed"
	StatusError      Status = "error"
	StatusCanceled   Status = "canceled"
)

// IsTerminal reports whether no further transition can occur.
//
// The three failure-ish terminals are distinct domains: successful
// means the run completed clean, failed means it completed with task
// failures, error means the orchestration system itself could not
// execute it. Callers report them differently.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusSuccessful, StatusFailed, StatusError, StatusCanceled:
		return true
	}
	return false
}

// Job is one asynchronous execution instance, as reported remotely.
type Job struct {
	ID       int
	Resource string // resource type it originated from, e.g. "job"
	Status   Status
	Created  string
	Started  string
	Finished string
}

// TimeoutError wraps the latest known non-terminal job when the wait
// budget elapses. The remote job is left running: the monitor never
// cancels implicitly.
type TimeoutError struct {
	Job     Job
	Elapsed time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("job %d still %s after %s (left running)", e.Job.ID, e.Job.Status, e.Elapsed.Round(time.Second))
}

// TransportError: status polling failed repeatedly. The job's true
// state is unknown; this is deliberately not a job failure.
type TransportError struct {
	JobID    int
	Attempts int
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("job %d: %d status poll(s) failed, last: %v", e.JobID, e.Attempts, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// CancelUnsupportedError: an interrupt arrived but the resource has no
// cancel operation.
type CancelUnsupportedError struct {
	Resource string
}

func (e *CancelUnsupportedError) Error() string {
	return fmt.Sprintf("resource %s does not support cancel; job left running", e.Resource)
}

// Options are the numeric policies of the poll loop. All of them come
// from configuration; see config.Defaults.
type Options struct {
	// Interval is the base poll interval, also used while running.
	Interval time.Duration
	// BackoffMax caps the grown interval while pending/waiting.
	BackoffMax time.Duration
	// Timeout bounds the whole wait; 0 means wait forever.
	Timeout time.Duration
	// TransportRetries bounds consecutive failed polls.
	TransportRetries int
}

// OptionsFromSettings reads the monitor policy keys.
func OptionsFromSettings(s *config.Settings) Options {
	return Options{
		Interval:         s.GetDuration("monitor_interval", 2*time.Second),
		BackoffMax:       s.GetDuration("monitor_backoff_max", 30*time.Second),
		Timeout:          s.GetDuration("monitor_timeout", 0),
		TransportRetries: s.GetInt("transport_retries", 3),
	}
}

// Monitor drives launches and status polling against one controller.
type Monitor struct {
	client *platform.Client
}

// New creates a Monitor.
func New(client *platform.Client) *Monitor {
	return &Monitor{client: client}
}

// launchInfo is the GET response of a template's launch endpoint,
// listing what the controller still needs from the operator.
type launchInfo struct {
	PasswordsNeededToStart []string `json:"passwords_needed_to_start"`
	VariablesNeededToStart []string `json:"variables_needed_to_start"`
}

// launchResponse is the POST response of the launch endpoint.
type launchResponse struct {
	Job    int    `json:"job"`
	ID     int    `json:"id"`
	Status string `json:"status"`
}

// Launch starts a job from a job template. The template's launch page
// is consulted first: any passwords or survey variables the controller
// demands at launch time are collected through the provider (these are
// the launch-time ASK fields).
func (m *Monitor) Launch(templateID int, extraVars map[string]interface{}, provider prompt.ValueProvider) (Job, error) {
	path := fmt.Sprintf("job_templates/%d/launch/", templateID)

	var info launchInfo
	if err := m.client.GetJSON(path, nil, &info); err != nil {
		return Job{}, err
	}

	payload := map[string]interface{}{}
	if len(extraVars) > 0 {
		payload["extra_vars"] = extraVars
	}

	if len(info.PasswordsNeededToStart) > 0 || len(info.VariablesNeededToStart) > 0 {
		askFields := make([]resource.Field, 0, len(info.PasswordsNeededToStart)+len(info.VariablesNeededToStart))
		for _, name := range info.PasswordsNeededToStart {
			askFields = append(askFields, resource.Field{Name: name, Required: true, Secret: true})
		}
		for _, name := range info.VariablesNeededToStart {
			askFields = append(askFields, resource.Field{Name: name, Required: true})
		}
		answers, err := prompt.Resolve(askFields, nil, provider)
		if err != nil {
			return Job{}, err
		}
		credentialPasswords := map[string]interface{}{}
		for _, name := range info.PasswordsNeededToStart {
			credentialPasswords[name] = answers[name]
		}
		if len(credentialPasswords) > 0 {
			payload["credential_passwords"] = credentialPasswords
		}
		if len(info.VariablesNeededToStart) > 0 {
			vars, _ := payload["extra_vars"].(map[string]interface{})
			if vars == nil {
				vars = map[string]interface{}{}
			}
			for _, name := range info.VariablesNeededToStart {
				vars[name] = answers[name]
			}
			payload["extra_vars"] = vars
		}
	}

	body, _, err := m.client.Post(path, payload)
	if err != nil {
		return Job{}, err
	}
	var resp launchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return Job{}, fmt.Errorf("parsing launch response: %w", err)
	}
	id := resp.Job
	if id == 0 {
		id = resp.ID
	}
	if id == 0 {
		return Job{}, fmt.Errorf("launch response carried no job identifier: %s", string(body))
	}
	return Job{ID: id, Resource: "job", Status: Status(resp.Status)}, nil
}

// Monitor polls the job until it reaches a terminal status, the
// timeout elapses, or ctx is canceled (operator interrupt). On
// interrupt it requests a remote cancel when the resource supports it
// and polls briefly to confirm.
func (m *Monitor) Monitor(ctx context.Context, job Job, opts Options) (Job, error) {
	if opts.Interval <= 0 {
		opts.Interval = 2 * time.Second
	}
	if opts.BackoffMax < opts.Interval {
		opts.BackoffMax = opts.Interval
	}

	start := time.Now()
	interval := opts.Interval

	for {
		if job.Status.IsTerminal() {
			return job, nil
		}
		if opts.Timeout > 0 && time.Since(start) >= opts.Timeout {
			return job, &TimeoutError{Job: job, Elapsed: time.Since(start)}
		}

		if err := sleepOrCancel(ctx, jitter(interval)); err != nil {
			return m.Cancel(job, opts)
		}

		updated, err := m.pollWithRetry(ctx, job, opts)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return m.Cancel(job, opts)
			}
			return job, err
		}
		job = updated

		// Backoff grows while queued, tightens once work starts.
		switch job.Status {
		case StatusPending, StatusWaiting:
			interval = time.Duration(float64(interval) * 1.5)
			if interval > opts.BackoffMax {
				interval = opts.BackoffMax
			}
		case StatusRunning:
			interval = opts.Interval
		}
	}
}

// pollWithRetry fetches the job's current state, retrying transient
// transport failures a bounded number of times. A failed poll is never
// interpreted as job failure.
func (m *Monitor) pollWithRetry(ctx context.Context, job Job, opts Options) (Job, error) {
	retries := opts.TransportRetries
	if retries < 0 {
		retries = 0
	}
	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<(attempt-1)) * time.Second
			if err := sleepOrCancel(ctx, backoff); err != nil {
				return job, err
			}
		}
		updated, err := m.Status(job)
		if err == nil {
			return updated, nil
		}
		var remote *platform.RemoteError
		if errors.As(err, &remote) {
			// The controller answered; this is not transient.
			return job, err
		}
		lastErr = err
	}
	return job, &TransportError{JobID: job.ID, Attempts: retries + 1, Err: lastErr}
}

// Status fetches the job's current remote state once.
func (m *Monitor) Status(job Job) (Job, error) {
	def, err := resource.Lookup(job.Resource)
	if err != nil {
		return job, err
	}
	var rec platform.Record
	if err := m.client.GetJSON(fmt.Sprintf("%s%d/", def.Endpoint, job.ID), nil, &rec); err != nil {
		return job, err
	}
	return jobFromRecord(rec, job.Resource), nil
}

// Cancel requests a remote cancel when the resource supports it, then
// polls briefly to confirm the canceled state.
func (m *Monitor) Cancel(job Job, opts Options) (Job, error) {
	def, err := resource.Lookup(job.Resource)
	if err != nil {
		return job, err
	}
	if !def.Supports(resource.OpCancel) {
		return job, &CancelUnsupportedError{Resource: job.Resource}
	}

	if _, _, err := m.client.Post(fmt.Sprintf("%s%d/cancel/", def.Endpoint, job.ID), nil); err != nil {
		return job, fmt.Errorf("requesting cancel of job %d: %w", job.ID, err)
	}

	confirmInterval := opts.Interval / 2
	if confirmInterval <= 0 {
		confirmInterval = time.Second
	}
	for i := 0; i < 5; i++ {
		updated, err := m.Status(job)
		if err == nil {
			job = updated
			if job.Status.IsTerminal() {
				return job, nil
			}
		}
		time.Sleep(confirmInterval)
	}
	return job, fmt.Errorf("cancel of job %d requested but not yet confirmed (last status %s)", job.ID, job.Status)
}

// jobFromRecord maps a controller job record onto a Job.
func jobFromRecord(rec platform.Record, resourceName string) Job {
	job := Job{Resource: resourceName}
	switch id := rec["id"].(type) {
	case float64:
		job.ID = int(id)
	case int:
		job.ID = id
	}
	if s, ok := rec["status"].(string); ok {
		job.Status = Status(s)
	}
	if s, ok := rec["created"].(string); ok {
		job.Created = s
	}
	if s, ok := rec["started"].(string); ok {
		job.Started = s
	}
	if s, ok := rec["finished"].(string); ok {
		job.Finished = s
	}
	return job
}

// jitter spreads an interval by ±20% so many pipelines polling the
// same controller do not align.
func jitter(d time.Duration) time.Duration {
	return time.Duration(float64(d) * (0.8 + 0.4*rand.Float64()))
}

// sleepOrCancel waits for d unless ctx finishes first.
func sleepOrCancel(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
