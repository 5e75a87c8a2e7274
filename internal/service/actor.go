package service

import (
	"context"

	"schedule-service/internal/models"
)

type actorKey struct{}

// WithActor attaches the authenticated caller to ctx. Authentication itself
// happens upstream; the service only records who acted.
func WithActor(ctx context.Context, actor models.Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

func ActorFrom(ctx context.Context) models.Actor {
	actor, _ := ctx.Value(actorKey{}).(models.Actor)
	return actor
}
