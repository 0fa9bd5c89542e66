package coordinator

import "liveclass/pkg/types"

// rememberedWrites bounds how many request ids a session keeps for
// recognizing retransmitted writes
const rememberedWrites = 1024

// DocumentStore holds one session's code buffer. Writes replace the whole
// document and are only accepted with a strictly newer version.
type DocumentStore struct {
	doc types.SharedDocument

	applied map[writeKey]int64 // request -> version it was stored as
	order   []writeKey
}

type writeKey struct {
	userID    string
	requestID string
}

// Current returns a copy of the stored document
func (s *DocumentStore) Current() types.SharedDocument {
	return s.doc
}

// NextVersion is the version the next accepted write must carry
func (s *DocumentStore) NextVersion() int64 {
	return s.doc.Version + 1
}

// Apply stores doc if its version is newer than the stored one and
// reports whether it did. Stale and duplicate deliveries are dropped.
func (s *DocumentStore) Apply(doc types.SharedDocument) bool {
	if doc.Version <= s.doc.Version {
		return false
	}
	s.doc = doc
	return true
}

// Applied returns the version a user's request was stored as. Requests
// without an id are never recognized.
func (s *DocumentStore) Applied(userID, requestID string) (int64, bool) {
	if requestID == "" {
		return 0, false
	}
	version, ok := s.applied[writeKey{userID, requestID}]
	return version, ok
}

// Remember records that a user's request was stored as version. The
// oldest entries are forgotten past rememberedWrites.
func (s *DocumentStore) Remember(userID, requestID string, version int64) {
	if requestID == "" {
		return
	}
	if s.applied == nil {
		s.applied = make(map[writeKey]int64)
	}
	key := writeKey{userID, requestID}
	if _, ok := s.applied[key]; ok {
		return
	}
	s.applied[key] = version
	s.order = append(s.order, key)
	if len(s.order) > rememberedWrites {
		delete(s.applied, s.order[0])
		s.order = s.order[1:]
	}
}
