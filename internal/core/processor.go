package core

// Processor is the middleware interface for the gateway pipeline
type Processor interface {
	// Name returns the processor name
	Name() string
	// Priority returns the execution priority (lower = earlier)
	Priority() int
	// OnRequest may rewrite the outbound body before the adapter runs
	OnRequest(ctx *GatewayContext, body []byte) ([]byte, error)
	// OnResponse is called after the adapter returned a result
	OnResponse(ctx *GatewayContext, res *Result) error
}
