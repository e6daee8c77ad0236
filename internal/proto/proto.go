// Package proto holds the gRPC service definition for the community server
// and its Go bindings. Messages are google.protobuf.Struct, so only the
// service stubs are generated.
package proto

//go:generate protoc --go-grpc_out=. --go-grpc_opt=paths=source_relative auth.proto
