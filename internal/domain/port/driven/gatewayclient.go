package driven

import "context"

// GatewayClient defines the driven port for the remote management service's
// synchronization endpoint. The gateway enforces API keys at traffic time;
// this subsystem only reads and replaces its key set.
//
// ReplaceKeys is a full-replace (last-writer-wins) operation: callers must
// always submit the complete desired set, never a diff. Neither method
// retries; retry policy belongs to the sync engine.
type GatewayClient interface {
	FetchKeys(ctx context.Context) ([]string, error)
	ReplaceKeys(ctx context.Context, keys []string) error
}
