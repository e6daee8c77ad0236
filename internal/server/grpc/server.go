// Package grpc exposes registration, login and identity lookup over gRPC.
package grpc

import (
	"context"
	"net"

	"github.com/dmitrijs2005/anoncommunity/internal/logging"
	pb "github.com/dmitrijs2005/anoncommunity/internal/proto"
	"github.com/dmitrijs2005/anoncommunity/internal/server/models"
	"github.com/dmitrijs2005/anoncommunity/internal/server/services"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

type UserService interface {
	Register(ctx context.Context, req services.RegisterRequest) (*models.User, error)
	Login(ctx context.Context, username, password string) (*models.Session, error)
}

type SessionGuard interface {
	Authenticate(ctx context.Context, token string) (*models.User, error)
}

type GRPCServer struct {
	pb.UnimplementedAuthServiceServer
	address string
	users   UserService
	guard   SessionGuard
	logger  logging.Logger
}

var _ pb.AuthServiceServer = (*GRPCServer)(nil)

func NewGRPCServer(a string, l logging.Logger, us UserService, guard SessionGuard) *GRPCServer {
	return &GRPCServer{
		address: a,
		logger:  l.With("module", "grpc_server"),
		users:   us,
		guard:   guard,
	}
}

// newServer builds the gRPC server with the auth service and the standard
// health service registered.
func (s *GRPCServer) newServer() (*grpc.Server, *health.Server) {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.accessTokenInterceptor))
	pb.RegisterAuthServiceServer(srv, s)

	hs := health.NewServer()
	hs.SetServingStatus(pb.AuthService_ServiceDesc.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(srv, hs)
	return srv, hs
}

func (s *GRPCServer) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.serve(ctx, listen)
}

func (s *GRPCServer) serve(ctx context.Context, listen net.Listener) error {
	srv, hs := s.newServer()

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		hs.Shutdown()
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", listen.Addr().String())

	if err := srv.Serve(listen); err != nil {
		return err
	}
	return nil
}
