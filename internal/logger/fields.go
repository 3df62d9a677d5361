package logger

// Fields is an alias for map[string]interface{} for convenience.
type Fields map[string]interface{}

// Tracing fields, propagated through the call chain via context.
const (
	// FieldRequestID is the HTTP request ID (UUID)
	FieldRequestID = "request_id"

	// FieldUserID is the user a request acts for
	FieldUserID = "user_id"

	// FieldPinID is the pin being read or written
	FieldPinID = "pin_id"

	// FieldComponent is the component/module name
	FieldComponent = "component"
)

// Metric fields, attached per log line for aggregation.
const (
	// FieldDurationMs is the execution duration in milliseconds
	FieldDurationMs = "duration_ms"

	// FieldCount is a generic count field
	FieldCount = "count"

	// FieldSize is the data size in bytes
	FieldSize = "size"

	// FieldStatus is the operation status
	FieldStatus = "status"

	// FieldStrategy is the recommendation branch taken (personalized, popular)
	FieldStrategy = "strategy"
)
