package grpc

import (
	"context"
	"strings"

	"github.com/dmitrijs2005/anoncommunity/internal/common"
	pb "github.com/dmitrijs2005/anoncommunity/internal/proto"
	"github.com/dmitrijs2005/anoncommunity/internal/server/models"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

type ctxKey string

const currentUserKey ctxKey = "currentUser"

// protectedMethods require a valid session token.
var protectedMethods = map[string]bool{
	pb.AuthService_WhoAmI_FullMethodName: true,
}

// tokenFromMetadata accepts "Bearer <token>" or a bare token.
func tokenFromMetadata(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	values := md.Get(strings.ToLower(common.AuthorizationHeaderName))
	if len(values) == 0 {
		return ""
	}
	v := strings.TrimSpace(values[0])
	if scheme, token, found := strings.Cut(v, " "); found && strings.EqualFold(scheme, common.BearerScheme) {
		return strings.TrimSpace(token)
	}
	return v
}

func (s *GRPCServer) accessTokenInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	if protectedMethods[info.FullMethod] {
		user, err := s.guard.Authenticate(ctx, tokenFromMetadata(ctx))
		if err != nil {
			return nil, s.toStatus(ctx, err)
		}
		ctx = context.WithValue(ctx, currentUserKey, user)
	}
	return handler(ctx, req)
}

func currentUser(ctx context.Context) *models.User {
	u, _ := ctx.Value(currentUserKey).(*models.User)
	return u
}
