package middlewares

const (
	// gin context keys
	CtxRequestID = "request_id"
	ctxUserKey   = "auth.user"
)
