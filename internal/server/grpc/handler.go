package grpc

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/anoncommunity/internal/common"
	"github.com/dmitrijs2005/anoncommunity/internal/server/models"
	"github.com/dmitrijs2005/anoncommunity/internal/server/services"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// toStatus maps service errors to gRPC codes. Unknown errors are logged and
// reported as Internal without details.
func (s *GRPCServer) toStatus(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, common.ErrValidation):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, common.ErrInvalidCredentials):
		return status.Error(codes.Unauthenticated, err.Error())
	case errors.Is(err, common.ErrUnauthenticated):
		return status.Error(codes.Unauthenticated, "invalid or missing token")
	case errors.Is(err, common.ErrAccountDisabled), errors.Is(err, common.ErrForbidden):
		return status.Error(codes.PermissionDenied, err.Error())
	case errors.Is(err, common.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, common.ErrDuplicateUsername), errors.Is(err, common.ErrDuplicateEmail):
		return status.Error(codes.AlreadyExists, err.Error())
	default:
		s.logger.Error(ctx, "rpc failed", "error", err)
		return status.Error(codes.Internal, common.ErrInternal.Error())
	}
}

func stringField(in *structpb.Struct, name string) string {
	if in == nil {
		return ""
	}
	return in.GetFields()[name].GetStringValue()
}

func userStruct(u *models.User, withEmail bool) (*structpb.Struct, error) {
	fields := map[string]any{
		"id":         float64(u.ID),
		"username":   u.Username,
		"avatar_url": u.AvatarURL,
		"created_at": u.CreatedAt.UTC().Format(time.RFC3339),
	}
	if withEmail {
		fields["email"] = u.Email
	}
	return structpb.NewStruct(fields)
}

func (s *GRPCServer) Register(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	user, err := s.users.Register(ctx, services.RegisterRequest{
		Username:  stringField(in, "username"),
		Email:     stringField(in, "email"),
		Password:  stringField(in, "password"),
		AvatarURL: stringField(in, "avatar_url"),
	})
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	out, err := userStruct(user, false)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return out, nil
}

func (s *GRPCServer) Login(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	session, err := s.users.Login(ctx, stringField(in, "username"), stringField(in, "password"))
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	out, err := structpb.NewStruct(map[string]any{
		"access_token": session.AccessToken,
		"token_type":   "bearer",
		"expires_at":   session.ExpiresAt.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return out, nil
}

func (s *GRPCServer) WhoAmI(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	user := currentUser(ctx)
	if user == nil {
		return nil, s.toStatus(ctx, common.ErrUnauthenticated)
	}
	out, err := userStruct(user, true)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return out, nil
}
