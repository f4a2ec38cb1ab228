package participant

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterIsIdempotent(t *testing.T) {
	r := NewRegistry(Record{PeerID: "local", DisplayName: "me", IsOwner: true})

	rec, joined := r.Register("p1", "bob", false)
	assert.True(t, joined)
	assert.Equal(t, "bob", rec.DisplayName)

	rec, joined = r.Register("p1", "bob again", true)
	assert.False(t, joined)
	assert.Equal(t, "bob", rec.DisplayName, "first registration wins")
	assert.False(t, rec.IsOwner)

	_, joined = r.Register("local", "impostor", false)
	assert.False(t, joined)
	assert.Equal(t, 2, r.Len())
}

func TestAllOrdersLocalFirst(t *testing.T) {
	r := NewRegistry(Record{PeerID: "local", DisplayName: "me"})
	r.Register("c", "carol", false)
	r.Register("a", "alice", true)
	r.Register("b", "bob", false)

	all := r.All()
	require.Len(t, all, 4)
	assert.True(t, all[0].IsLocal)
	assert.Equal(t, []string{"local", "c", "a", "b"}, []string{all[0].PeerID, all[1].PeerID, all[2].PeerID, all[3].PeerID})
}

func TestRemove(t *testing.T) {
	r := NewRegistry(Record{PeerID: "local", DisplayName: "me"})
	r.Register("p1", "bob", false)
	r.Register("p2", "eve", false)

	name, ok := r.Remove("p1")
	assert.True(t, ok)
	assert.Equal(t, "bob", name)

	_, ok = r.Remove("p1")
	assert.False(t, ok)

	_, ok = r.Remove("local")
	assert.False(t, ok)

	all := r.All()
	require.Len(t, all, 2)
	assert.Equal(t, "p2", all[1].PeerID)

	_, joined := r.Register("p1", "bob", false)
	assert.True(t, joined, "a removed peer can rejoin")
}

func TestReset(t *testing.T) {
	r := NewRegistry(Record{PeerID: "local", DisplayName: "me"})
	r.Register("p1", "bob", false)
	r.Reset()

	assert.Equal(t, 1, r.Len())
	_, ok := r.Get("p1")
	assert.False(t, ok)
	_, ok = r.Get("local")
	assert.True(t, ok)
}

func TestNormalizeName(t *testing.T) {
	assert.Equal(t, DefaultName, NormalizeName("   "))
	assert.Equal(t, "alice", NormalizeName("  alice "))

	long := NormalizeName(strings.Repeat("ü", 30))
	assert.Equal(t, MaxNameLength, utf8.RuneCountInString(long))
}
