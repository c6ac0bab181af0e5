package middlewares

const (
	CtxRequestID = "request_id"

	ctxUserIDKey   = "auth.userID"
	ctxEmailKey    = "auth.email"
	ctxUsernameKey = "auth.username"
	ctxRoleKey     = "auth.role"
	ctxTokenKey    = "auth.token"
)
