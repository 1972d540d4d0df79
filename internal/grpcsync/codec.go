package grpcsync

import (
	"encoding/binary"
	"fmt"

	"google.golang.org/grpc/encoding"
)

// CodecName is the content-subtype advertised for every RPC on this
// service. There is no .proto schema behind TimeSyncRequest/TimeSyncUpdate,
// so the default "proto" codec grpc-go assumes cannot marshal them; server
// and client both force this codec instead (grpc.ForceServerCodec /
// grpc.ForceCodec) rather than requiring a protoc-generated message type.
const CodecName = "gamesync"

// wireCodec implements encoding.Codec for the two message types this
// service ever sends, using the same flat, length-prefixed, big-endian
// framing internal/protocol uses for the game's own client/server wire
// format.
type wireCodec struct{}

func (wireCodec) Name() string { return CodecName }

func (wireCodec) Marshal(v interface{}) ([]byte, error) {
	switch m := v.(type) {
	case *TimeSyncRequest:
		return marshalTimeSyncRequest(*m), nil
	case *TimeSyncUpdate:
		return marshalTimeSyncUpdate(*m), nil
	default:
		return nil, fmt.Errorf("grpcsync: codec cannot marshal %T", v)
	}
}

func (wireCodec) Unmarshal(data []byte, v interface{}) error {
	switch m := v.(type) {
	case *TimeSyncRequest:
		req, err := unmarshalTimeSyncRequest(data)
		if err != nil {
			return err
		}
		*m = req
		return nil
	case *TimeSyncUpdate:
		upd, err := unmarshalTimeSyncUpdate(data)
		if err != nil {
			return err
		}
		*m = upd
		return nil
	default:
		return fmt.Errorf("grpcsync: codec cannot unmarshal into %T", v)
	}
}

// Codec is installed via grpc.ForceServerCodec on the server and
// grpc.ForceCodec on every client call.
var Codec encoding.Codec = wireCodec{}

func marshalTimeSyncRequest(r TimeSyncRequest) []byte {
	b := make([]byte, 0, 2+len(r.ClientID))
	b = binary.BigEndian.AppendUint16(b, uint16(len(r.ClientID)))
	b = append(b, r.ClientID...)
	return b
}

func unmarshalTimeSyncRequest(data []byte) (TimeSyncRequest, error) {
	if len(data) < 2 {
		return TimeSyncRequest{}, fmt.Errorf("grpcsync: truncated TimeSyncRequest")
	}
	n := binary.BigEndian.Uint16(data)
	data = data[2:]
	if len(data) < int(n) {
		return TimeSyncRequest{}, fmt.Errorf("grpcsync: truncated TimeSyncRequest client id")
	}
	return TimeSyncRequest{ClientID: string(data[:n])}, nil
}

func marshalTimeSyncUpdate(u TimeSyncUpdate) []byte {
	b := make([]byte, 0, 24)
	b = binary.BigEndian.AppendUint64(b, uint64(u.ServerTimestampMs))
	b = binary.BigEndian.AppendUint64(b, uint64(u.SimulatedTimestampMs))
	b = binary.BigEndian.AppendUint64(b, uint64(u.RecommendedOffsetMs))
	return b
}

func unmarshalTimeSyncUpdate(data []byte) (TimeSyncUpdate, error) {
	if len(data) < 24 {
		return TimeSyncUpdate{}, fmt.Errorf("grpcsync: truncated TimeSyncUpdate")
	}
	return TimeSyncUpdate{
		ServerTimestampMs:    int64(binary.BigEndian.Uint64(data[0:8])),
		SimulatedTimestampMs: int64(binary.BigEndian.Uint64(data[8:16])),
		RecommendedOffsetMs:  int64(binary.BigEndian.Uint64(data[16:24])),
	}, nil
}

func init() {
	encoding.RegisterCodec(Codec)
}
