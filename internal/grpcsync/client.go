package grpcsync

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
)

// Client is a thin hand-rolled stub for the TimeSyncService, standing in
// for the protoc-generated client this contract would normally use.
type Client struct {
	conn *grpc.ClientConn
}

// NewClient wraps an established gRPC connection.
func NewClient(conn *grpc.ClientConn) *Client {
	return &Client{conn: conn}
}

// StreamTimeSync opens the time sync stream and returns a channel of
// updates. The channel closes when ctx is cancelled, the server ends the
// stream, or a receive fails; callers should treat closure as "reconnect".
func (c *Client) StreamTimeSync(ctx context.Context, clientID string) (<-chan TimeSyncUpdate, error) {
	desc := &grpc.StreamDesc{StreamName: streamMethod, ServerStreams: true}
	stream, err := c.conn.NewStream(ctx, desc, fullMethod(streamMethod), grpc.ForceCodec(Codec))
	if err != nil {
		return nil, fmt.Errorf("grpcsync: open stream: %w", err)
	}
	if err := stream.SendMsg(&TimeSyncRequest{ClientID: clientID}); err != nil {
		return nil, fmt.Errorf("grpcsync: send request: %w", err)
	}
	if err := stream.CloseSend(); err != nil {
		return nil, fmt.Errorf("grpcsync: close send: %w", err)
	}

	updates := make(chan TimeSyncUpdate)
	go func() {
		defer close(updates)
		for {
			var upd TimeSyncUpdate
			if err := stream.RecvMsg(&upd); err != nil {
				return
			}
			select {
			case updates <- upd:
			case <-ctx.Done():
				return
			}
		}
	}()
	return updates, nil
}

func fullMethod(name string) string {
	return "/" + serviceName + "/" + name
}
