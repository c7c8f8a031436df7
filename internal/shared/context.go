package shared

import "context"

type actorContextKey struct{}

// ContextWithActor stores the opaque actor identifier in context.
func ContextWithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext extracts the actor identifier from context. Empty when the
// request carried no X-Actor header; the core records it as-is without
// validating identity.
func ActorFromContext(ctx context.Context) string {
	actor, _ := ctx.Value(actorContextKey{}).(string)
	return actor
}
