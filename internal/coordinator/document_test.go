package coordinator

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"liveclass/pkg/types"
)

func TestDocumentStore_DropsStaleVersions(t *testing.T) {
	var s DocumentStore

	v1 := types.SharedDocument{Code: "one", Version: 1}
	v2 := types.SharedDocument{Code: "two", Version: 2}
	v3 := types.SharedDocument{Code: "three", Version: 3}

	assert.True(t, s.Apply(v1))
	assert.True(t, s.Apply(v2))
	assert.True(t, s.Apply(v3))

	// retransmitted v2 arrives after v3
	assert.False(t, s.Apply(v2))
	assert.Equal(t, "three", s.Current().Code)

	// duplicate of the current version
	assert.False(t, s.Apply(types.SharedDocument{Code: "dup", Version: 3}))
	assert.Equal(t, "three", s.Current().Code)
	assert.Equal(t, int64(4), s.NextVersion())
}

func TestDocumentStore_HighestVersionWins(t *testing.T) {
	var s DocumentStore
	for _, v := range []int64{2, 5, 1, 4, 3} {
		s.Apply(types.SharedDocument{Code: string(rune('0' + v)), Version: v})
	}
	assert.Equal(t, "5", s.Current().Code)
	assert.Equal(t, int64(5), s.Current().Version)
}

func TestDocumentStore_RemembersBoundedRequests(t *testing.T) {
	var s DocumentStore

	_, ok := s.Applied("alice", "")
	assert.False(t, ok)
	s.Remember("alice", "", 1)
	_, ok = s.Applied("alice", "")
	assert.False(t, ok)

	s.Remember("alice", "r1", 1)
	s.Remember("alice", "r1", 9)
	v, ok := s.Applied("alice", "r1")
	assert.True(t, ok)
	assert.Equal(t, int64(1), v)
	_, ok = s.Applied("bob", "r1")
	assert.False(t, ok)

	for i := 0; i < rememberedWrites; i++ {
		s.Remember("bob", string(rune('a'+i%26))+strconv.Itoa(i), int64(i+2))
	}
	_, ok = s.Applied("alice", "r1")
	assert.False(t, ok, "oldest request is forgotten")
	assert.Len(t, s.applied, rememberedWrites)
}
