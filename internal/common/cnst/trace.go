package cnst

// Tracer names used across the client
const (
	// TraceClient is the tracer name for the session supervisor
	TraceClient = "janus/client"
	// TraceInspect is the tracer name for the inspection server
	TraceInspect = "janus/inspect"
)

// Common span names and prefixes
const (
	// SpanCallPrefix prefixes spans for protocol calls, followed by the method
	SpanCallPrefix = "janus.call "
	SpanConnect    = "janus.connect"
	SpanAttach     = "janus.attach"
)

// Common attribute keys
const (
	AttrMethod       = "cdp.method"
	AttrSessionID    = "cdp.session_id"
	AttrRequestID    = "cdp.request_id"
	AttrTargetID     = "cdp.target_id"
	AttrConnectionID = "janus.connection_id"
	AttrErrorReason  = "error.reason"
	AttrRemoteCode   = "cdp.error_code"
	AttrURL          = "janus.url"
)
