package grpcsync

// TimeSyncRequest is a client's request to begin a time synchronisation
// stream against the authoritative server clock.
type TimeSyncRequest struct {
	ClientID string
}

// TimeSyncUpdate carries one drift sample. ServerTimestampMs and
// SimulatedTimestampMs are both wall-clock milliseconds; the former is the
// process clock, the latter the fixed-tick simulation clock they are meant
// to agree on. RecommendedOffsetMs is what the client should add to its own
// clock to align with SimulatedTimestampMs.
type TimeSyncUpdate struct {
	ServerTimestampMs    int64
	SimulatedTimestampMs int64
	RecommendedOffsetMs  int64
}
