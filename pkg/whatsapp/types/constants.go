package types

const (
	APIBase             = "/api"
	EndpointSendText    = "/sendText"
	EndpointSendSeen    = "/sendSeen"
	EndpointStartTyping = "/startTyping"
	EndpointStopTyping  = "/stopTyping"
	EndpointSessions    = "/sessions"

	// Session sub-actions, appended to /api/sessions/{name}
	SessionActionStart  = "/start"
	SessionActionStop   = "/stop"
	SessionActionLogout = "/logout"
)
