package grpcsync

import "testing"

func TestTimeSyncRequestRoundTrip(t *testing.T) {
	want := TimeSyncRequest{ClientID: "bot-17"}
	encoded, err := Codec.Marshal(&want)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var got TimeSyncRequest
	if err := Codec.Unmarshal(encoded, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got != want {
		t.Fatalf("round trip mismatch: want %#v got %#v", want, got)
	}
}

func TestTimeSyncUpdateRoundTrip(t *testing.T) {
	want := TimeSyncUpdate{ServerTimestampMs: 1000, SimulatedTimestampMs: 990, RecommendedOffsetMs: -10}
	encoded, err := Codec.Marshal(&want)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var got TimeSyncUpdate
	if err := Codec.Unmarshal(encoded, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got != want {
		t.Fatalf("round trip mismatch: want %#v got %#v", want, got)
	}
}

func TestCodecRejectsUnknownType(t *testing.T) {
	if _, err := Codec.Marshal("not a message"); err == nil {
		t.Fatalf("expected an error marshalling an unsupported type")
	}
	var dst string
	if err := Codec.Unmarshal([]byte{1, 2, 3}, &dst); err == nil {
		t.Fatalf("expected an error unmarshalling into an unsupported type")
	}
}

func TestDecodeTruncatedPayloadsError(t *testing.T) {
	if _, err := unmarshalTimeSyncRequest(nil); err == nil {
		t.Fatalf("expected an error decoding a truncated request")
	}
	if _, err := unmarshalTimeSyncUpdate([]byte{1, 2, 3}); err == nil {
		t.Fatalf("expected an error decoding a truncated update")
	}
}
