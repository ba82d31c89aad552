package router

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPairingStore(t *testing.T) *Pairing {
	t.Helper()
	return NewPairing(filepath.Join(t.TempDir(), "pairing.json"))
}

func TestPairingUpsertCreatesOnce(t *testing.T) {
	p := newPairingStore(t)

	code, created, err := p.UpsertRequest("qq", "42", "nick")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Len(t, code, 8)

	// A pending request keeps its code and is not re-created.
	again, created, err := p.UpsertRequest("qq", "42", "nick")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, code, again)
}

func TestPairingApprove(t *testing.T) {
	p := newPairingStore(t)

	code, _, err := p.UpsertRequest("qq", "42", "nick")
	require.NoError(t, err)

	id, err := p.Approve("qq", code)
	require.NoError(t, err)
	assert.Equal(t, "42", id)

	allow, err := p.ReadAllowStore("qq")
	require.NoError(t, err)
	assert.Equal(t, []string{"42"}, allow)

	// The request is consumed.
	pending, err := p.ListRequests("qq")
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestPairingApproveCaseInsensitive(t *testing.T) {
	p := newPairingStore(t)
	code, _, err := p.UpsertRequest("qq", "42", "")
	require.NoError(t, err)

	// Codes are upper-case on the wire; approval tolerates any case.
	_, err = p.Approve("qq", "  ")
	assert.Error(t, err)

	id, err := p.Approve("qq", strings.ToLower(code))
	require.NoError(t, err)
	assert.Equal(t, "42", id)
}

func TestPairingApproveUnknownCode(t *testing.T) {
	p := newPairingStore(t)
	_, err := p.Approve("qq", "NOPE1234")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no pending pairing request")
}

func TestPairingApproveIdempotentAllowStore(t *testing.T) {
	p := newPairingStore(t)

	code, _, err := p.UpsertRequest("qq", "42", "")
	require.NoError(t, err)
	_, err = p.Approve("qq", code)
	require.NoError(t, err)

	code, _, err = p.UpsertRequest("qq", "42", "")
	require.NoError(t, err)
	_, err = p.Approve("qq", code)
	require.NoError(t, err)

	allow, err := p.ReadAllowStore("qq")
	require.NoError(t, err)
	assert.Equal(t, []string{"42"}, allow)
}

func TestPairingChannelsAreIsolated(t *testing.T) {
	p := newPairingStore(t)

	_, _, err := p.UpsertRequest("qq", "42", "")
	require.NoError(t, err)

	pending, err := p.ListRequests("other")
	require.NoError(t, err)
	assert.Empty(t, pending)

	allow, err := p.ReadAllowStore("other")
	require.NoError(t, err)
	assert.Empty(t, allow)
}

func TestPairingReadAllowStoreMissingFile(t *testing.T) {
	p := newPairingStore(t)
	allow, err := p.ReadAllowStore("qq")
	require.NoError(t, err)
	assert.Empty(t, allow)
}

func TestPairingBuildReply(t *testing.T) {
	p := newPairingStore(t)
	reply := p.BuildReply("qq", "Your QQ user id: 42", "ABCD1234")
	assert.Contains(t, reply, "Your QQ user id: 42")
	assert.Contains(t, reply, "Pairing code: ABCD1234")
	assert.Contains(t, reply, "moltbot pairing approve qq ABCD1234")
}
