package utils

type contextKey string

// Request-scoped values stored on the flow context by handlers
const (
	RequestIDKey contextKey = "request_id"
	UserAgentKey contextKey = "user_agent"
	IPAddressKey contextKey = "ip_address"
	EndpointKey  contextKey = "endpoint"
	TimeoutKey   contextKey = "timeout"
	OwnerKeyKey  contextKey = "owner_key"
)
