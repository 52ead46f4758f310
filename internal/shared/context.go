package shared

import "context"

// Scope identifies the tenant and acting user for a request. It is supplied
// by the tenant middleware; services trust it and always filter by TenantID.
type Scope struct {
	TenantID int64
	ActorID  int64
}

type scopeContextKey struct{}

// ContextWithScope stores the request scope in context.
func ContextWithScope(ctx context.Context, scope Scope) context.Context {
	return context.WithValue(ctx, scopeContextKey{}, scope)
}

// ScopeFromContext extracts the request scope from context.
func ScopeFromContext(ctx context.Context) (Scope, bool) {
	scope, ok := ctx.Value(scopeContextKey{}).(Scope)
	return scope, ok
}
