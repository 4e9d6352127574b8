package services

// RequestContext carries correlation data into outbound calls.
type RequestContext struct {
	TraceID string
	UserID  string
	Route   string
}
