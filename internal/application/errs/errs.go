package errs

import "fmt"

// IneligibleError marks an event that must be skipped, not retried: the
// tenant is missing, inactive or already provisioned. The consumer treats it
// as success and removes the event from the queue.
type IneligibleError struct {
	Reason string
}

func (t IneligibleError) Error() string {
	return fmt.Sprintf("tenant not eligible for provisioning: %v", t.Reason)
}

// TerminalError wraps a provisioning failure that exhausted its attempt
// budget or was reported failed by the provider.
type TerminalError struct {
	Err error
}

func (t TerminalError) Error() string {
	return fmt.Sprintf("terminal provisioning error: %v", t.Err)
}

func (t TerminalError) Unwrap() error {
	return t.Err
}

// CommitNotFoundError is raised when the ready-commit update affects zero
// rows, meaning the tenant row vanished between validation and commit.
type CommitNotFoundError struct {
	TenantID string
}

func (t CommitNotFoundError) Error() string {
	return fmt.Sprintf("tenant %v not found at commit time", t.TenantID)
}
