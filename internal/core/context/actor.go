// Package context provides request-scoped values extraction.
package context

import (
	"context"
)

// Actor identifies who is performing the current operation.
// It is set explicitly per request (header or API key lookup) and flows
// through context for audit stamping and log enrichment.
type Actor struct {
	UserID string
	Name   string
	Source string // "api", "ordersync", "worker"
}

type actorContextKey struct{}

// WithActor adds Actor to context.
func WithActor(ctx context.Context, actor *Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// GetActor returns Actor from context or nil.
func GetActor(ctx context.Context) *Actor {
	if v, ok := ctx.Value(actorContextKey{}).(*Actor); ok {
		return v
	}
	return nil
}

// GetActorID returns the acting user ID from context or empty string.
func GetActorID(ctx context.Context) string {
	if a := GetActor(ctx); a != nil {
		return a.UserID
	}
	return ""
}

// GetActorSource returns where the operation originated ("api", "ordersync",
// "worker") or empty string.
func GetActorSource(ctx context.Context) string {
	if a := GetActor(ctx); a != nil {
		return a.Source
	}
	return ""
}
