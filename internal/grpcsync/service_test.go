package grpcsync

import (
	"context"
	"testing"
	"time"

	"google.golang.org/grpc/metadata"
)

type clockStub struct {
	snapshots int
	logged    []struct {
		channel string
		target  string
		offset  int64
	}
}

func (c *clockStub) TimeSyncSnapshot() (int64, int64, int64) {
	c.snapshots++
	return 10, 20, 5
}

func (c *clockStub) LogTimeDrift(channel, target string, offsetMs int64) {
	c.logged = append(c.logged, struct {
		channel string
		target  string
		offset  int64
	}{channel: channel, target: target, offset: offsetMs})
}

type streamStub struct {
	ctx     context.Context
	updates []*TimeSyncUpdate
}

func (s *streamStub) SetHeader(metadata.MD) error  { return nil }
func (s *streamStub) SendHeader(metadata.MD) error { return nil }
func (s *streamStub) SetTrailer(metadata.MD)       {}
func (s *streamStub) Context() context.Context     { return s.ctx }
func (s *streamStub) SendMsg(m interface{}) error {
	s.updates = append(s.updates, m.(*TimeSyncUpdate))
	return nil
}
func (s *streamStub) RecvMsg(interface{}) error { return nil }

func TestServiceStreamTimeSync(t *testing.T) {
	stub := &clockStub{}
	service := NewService(stub, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	stream := &streamStub{ctx: ctx}

	go func() {
		time.Sleep(15 * time.Millisecond)
		cancel()
	}()

	err := service.StreamTimeSync(&TimeSyncRequest{ClientID: "observer"}, stream)
	if err != context.Canceled {
		t.Fatalf("expected context cancellation, got %v", err)
	}

	if len(stream.updates) < 2 {
		t.Fatalf("expected at least two updates, got %d", len(stream.updates))
	}
	if stub.snapshots < len(stream.updates) {
		t.Fatalf("expected snapshot per update, got %d snapshots %d updates", stub.snapshots, len(stream.updates))
	}
	if len(stub.logged) != len(stream.updates) {
		t.Fatalf("expected drift logs per update, got %d", len(stub.logged))
	}
	for _, entry := range stub.logged {
		if entry.channel != "grpc" || entry.target != "observer" {
			t.Fatalf("unexpected log entry %#v", entry)
		}
	}
}

func TestServiceUnavailableWithoutClock(t *testing.T) {
	service := NewService(nil, time.Millisecond)
	stream := &streamStub{ctx: context.Background()}
	if err := service.StreamTimeSync(&TimeSyncRequest{}, stream); err == nil {
		t.Fatalf("expected an error when no clock provider is wired")
	}
}

func TestHandlerRejectsWrongServiceType(t *testing.T) {
	stream := &streamStub{ctx: context.Background()}
	if err := streamTimeSyncHandler("not a service", stream); err == nil {
		t.Fatalf("expected the handler to reject a non-*Service implementation")
	}
}

func TestDefaultClientIDWhenRequestOmitsOne(t *testing.T) {
	stub := &clockStub{}
	service := NewService(stub, time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	stream := &streamStub{ctx: ctx}
	cancel()

	if err := service.StreamTimeSync(&TimeSyncRequest{}, stream); err != context.Canceled {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(stub.logged) == 0 || stub.logged[0].target != "grpc-client" {
		t.Fatalf("expected default client id grpc-client, got %#v", stub.logged)
	}
}
