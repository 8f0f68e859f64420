package middlewares

// gin context keys shared between middlewares and handlers.
const (
	CtxUserID    = "auth.userID"
	CtxEmail     = "auth.email"
	CtxRole      = "auth.role"
	CtxRequestID = "request_id"
)
