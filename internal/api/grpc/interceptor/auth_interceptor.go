package interceptor

import (
	"context"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"parkwise-booking-core/internal/config"
	"parkwise-booking-core/internal/logger"
	"parkwise-booking-core/internal/security"
)

const (
	actorIDKey   = "actor-id"
	actorRoleKey = "actor-role"
)

type AuthInterceptor struct {
	tokenManager security.TokenManager
}

func NewAuthInterceptor(tm security.TokenManager) *AuthInterceptor {
	return &AuthInterceptor{tokenManager: tm}
}

// Unary returns a server interceptor function to authenticate and authorize unary RPCs
func (i *AuthInterceptor) Unary() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		// Actor headers are only ever set here; anything the client sent is dropped.
		md, ok := metadata.FromIncomingContext(ctx)
		if !ok {
			md = metadata.New(nil)
		} else {
			md = md.Copy()
		}
		md.Delete(actorIDKey)
		md.Delete(actorRoleKey)

		level := config.GetAccessLevel(info.FullMethod)
		if level == config.AccessPublic {
			return handler(metadata.NewIncomingContext(ctx, md), req)
		}

		token, err := extractToken(md)
		if err != nil {
			return nil, err
		}

		claims, err := i.tokenManager.ValidateToken(token)
		if err != nil {
			return nil, status.Errorf(codes.Unauthenticated, "invalid token: %v", err)
		}
		actor, err := claims.Actor()
		if err != nil {
			return nil, status.Errorf(codes.Unauthenticated, "invalid token: %v", err)
		}

		if !level.Permits(actor.Role) {
			logger.Warn("Access denied", "method", info.FullMethod, "actor", actor.String())
			return nil, status.Error(codes.PermissionDenied, "staff role required")
		}

		md.Set(actorIDKey, actor.ID)
		md.Set(actorRoleKey, string(actor.Role))
		return handler(metadata.NewIncomingContext(ctx, md), req)
	}
}

func extractToken(md metadata.MD) (string, error) {
	authHeader := md.Get("authorization")
	if len(authHeader) == 0 {
		return "", status.Error(codes.Unauthenticated, "authorization token is not provided")
	}

	token := authHeader[0]
	// Remove Bearer prefix if present
	if len(token) > 7 && strings.ToUpper(token[0:7]) == "BEARER " {
		token = token[7:]
	}

	return token, nil
}
