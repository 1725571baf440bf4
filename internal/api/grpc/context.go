package grpc

import (
	"context"

	"parkwise-booking-core/internal/domain"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// Metadata keys set by the auth interceptor after token validation. Values supplied by the
// client under these keys are dropped before the handler runs.
const (
	MetadataActorID   = "actor-id"
	MetadataActorRole = "actor-role"
)

// ActorFromContext extracts the authenticated actor from the gRPC metadata.
func ActorFromContext(ctx context.Context) (domain.Actor, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return domain.Actor{}, status.Errorf(codes.Unauthenticated, "metadata is not provided")
	}

	ids := md.Get(MetadataActorID)
	roles := md.Get(MetadataActorRole)
	if len(ids) == 0 || len(roles) == 0 {
		return domain.Actor{}, status.Errorf(codes.Unauthenticated, "actor is not provided in metadata")
	}

	role, err := domain.ParseRole(roles[0])
	if err != nil {
		return domain.Actor{}, status.Errorf(codes.Unauthenticated, "invalid actor role: %v", err)
	}
	return domain.Actor{ID: ids[0], Role: role}, nil
}
