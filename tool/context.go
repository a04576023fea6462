package tool

// CallContext carries per-invocation metadata derived from the webhook
// request that triggered the assistant run.
type CallContext struct {
	UserID    string
	RequestID string
	Metadata  map[string]string
}
