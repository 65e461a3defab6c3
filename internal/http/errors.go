package http

import "fmt"

// ReachabilityMessage is the banner shown when the proxy call cannot complete
const ReachabilityMessage = "Failed to reach backend proxy."

// ExecutionError means the proxy call itself did not complete. It is never
// used for an error status returned by the proxied target.
type ExecutionError struct {
	Op  string // "encode", "send", "read", "decode"
	Err error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("proxy call failed (%s): %v", e.Op, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}
