package grpcsync

import (
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	serviceName  = "gameserver.timesync.TimeSyncService"
	streamMethod = "StreamTimeSync"
)

// ClockProvider captures the simulation state the service needs to answer a
// time sync request: the authoritative tick clock, plus somewhere to record
// the offsets clients are told to apply.
type ClockProvider interface {
	TimeSyncSnapshot() (serverMs, simulatedMs, offsetMs int64)
	LogTimeDrift(channel, target string, offsetMs int64)
}

// Service implements the TimeSyncService contract by hand: StreamTimeSync
// pushes periodic drift samples to connected gRPC clients.
type Service struct {
	clock    ClockProvider
	interval time.Duration
}

// NewService wires a ClockProvider into the gRPC time sync transport.
// interval defaults to one second when zero or negative.
func NewService(clock ClockProvider, interval time.Duration) *Service {
	if interval <= 0 {
		interval = time.Second
	}
	return &Service{clock: clock, interval: interval}
}

// StreamTimeSync pushes periodic drift samples to stream until its context
// is cancelled or a send fails.
func (s *Service) StreamTimeSync(req *TimeSyncRequest, stream grpc.ServerStream) error {
	if s == nil || s.clock == nil {
		return status.Error(codes.Unavailable, "time sync service unavailable")
	}
	clientID := "grpc-client"
	if req != nil && req.ClientID != "" {
		clientID = req.ClientID
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	//1.- Emit an initial sample immediately to minimise startup skew.
	if err := s.sendSample(stream, clientID); err != nil {
		return err
	}

	for {
		select {
		case <-stream.Context().Done():
			return stream.Context().Err()
		case <-ticker.C:
			//2.- Stream successive updates at the configured cadence.
			if err := s.sendSample(stream, clientID); err != nil {
				return err
			}
		}
	}
}

func (s *Service) sendSample(stream grpc.ServerStream, clientID string) error {
	serverMs, simulatedMs, offsetMs := s.clock.TimeSyncSnapshot()
	update := &TimeSyncUpdate{
		ServerTimestampMs:    serverMs,
		SimulatedTimestampMs: simulatedMs,
		RecommendedOffsetMs:  offsetMs,
	}
	if err := stream.SendMsg(update); err != nil {
		return err
	}
	s.clock.LogTimeDrift("grpc", clientID, offsetMs)
	return nil
}

// streamTimeSyncHandler adapts the grpc.StreamHandler signature the
// ServiceDesc requires: receive the request message the client sent first,
// then hand off to Service.StreamTimeSync for the rest of the stream.
func streamTimeSyncHandler(srv interface{}, stream grpc.ServerStream) error {
	service, ok := srv.(*Service)
	if !ok {
		return status.Errorf(codes.Internal, "grpcsync: unexpected service implementation %T", srv)
	}
	var req TimeSyncRequest
	if err := stream.RecvMsg(&req); err != nil {
		return err
	}
	return service.StreamTimeSync(&req, stream)
}

// ServiceDesc is built by hand rather than generated by protoc: there is no
// .proto schema for this contract, only the two plain structs in types.go
// and the codec in codec.go. grpc.ServiceDesc/grpc.StreamDesc are the same
// registration surface protoc-generated code would produce; nothing about
// this service depends on code generation having happened.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*Service)(nil),
	Streams: []grpc.StreamDesc{
		{
			StreamName:    streamMethod,
			Handler:       streamTimeSyncHandler,
			ServerStreams: true,
		},
	},
	Metadata: "internal/grpcsync/service.go",
}

// Register attaches srv to a gRPC server under ServiceDesc.
func Register(s grpc.ServiceRegistrar, srv *Service) {
	s.RegisterService(&ServiceDesc, srv)
}

// NewServer builds a *grpc.Server pre-configured to use this package's
// hand-rolled wire codec for every RPC it serves, in addition to any
// caller-supplied options.
func NewServer(opts ...grpc.ServerOption) *grpc.Server {
	all := make([]grpc.ServerOption, 0, len(opts)+1)
	all = append(all, grpc.ForceServerCodec(Codec))
	all = append(all, opts...)
	return grpc.NewServer(all...)
}
