package types

import "context"

type ContextKey string

const (
	CtxRequestID ContextKey = "ctx_request_id"
	CtxUserID    ContextKey = "ctx_user_id"
	CtxUserEmail ContextKey = "ctx_user_email"
	CtxIsAdmin   ContextKey = "ctx_is_admin"
	CtxSyncRunID ContextKey = "ctx_sync_run_id"
)

func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(CtxRequestID).(string); ok {
		return id
	}
	return ""
}

func SetRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, CtxRequestID, id)
}

func GetUserID(ctx context.Context) string {
	if id, ok := ctx.Value(CtxUserID).(string); ok {
		return id
	}
	return ""
}

func SetUserID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, CtxUserID, id)
}

func GetUserEmail(ctx context.Context) string {
	if email, ok := ctx.Value(CtxUserEmail).(string); ok {
		return email
	}
	return ""
}

func SetUserEmail(ctx context.Context, email string) context.Context {
	return context.WithValue(ctx, CtxUserEmail, email)
}

// IsAdmin reports whether the authenticated caller carries an admin role
func IsAdmin(ctx context.Context) bool {
	admin, _ := ctx.Value(CtxIsAdmin).(bool)
	return admin
}

func SetIsAdmin(ctx context.Context, admin bool) context.Context {
	return context.WithValue(ctx, CtxIsAdmin, admin)
}

// GetSyncRunID returns the id of the billing sync run executing under ctx
func GetSyncRunID(ctx context.Context) string {
	if id, ok := ctx.Value(CtxSyncRunID).(string); ok {
		return id
	}
	return ""
}

func SetSyncRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, CtxSyncRunID, id)
}
