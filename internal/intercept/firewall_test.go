package intercept

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/khanhnv2901/sparrow-cli/internal/domain/rules"
	sharedErrors "github.com/khanhnv2901/sparrow-cli/internal/shared/errors"
)

func TestFirewallDefaults(t *testing.T) {
	store := &memoryStore{}
	fw, err := NewFirewall(context.Background(), store, zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.True(t, fw.IsBlocked("192.168.1.100"))
	assert.True(t, fw.IsBlocked("10.0.0.50"))
	assert.False(t, fw.IsBlocked("8.8.8.8"))
	require.NotNil(t, store.blockList)
	assert.Equal(t, rules.DefaultBlockList().BlockedIPs, store.blockList.BlockedIPs)
}

func TestFirewallBlockPersists(t *testing.T) {
	store := &memoryStore{blockList: &rules.BlockList{BlockedIPs: []string{"203.0.113.5"}}}
	fw, err := NewFirewall(context.Background(), store, nil)
	require.NoError(t, err)

	require.NoError(t, fw.Block(context.Background(), "198.51.100.7"))
	assert.True(t, fw.IsBlocked("198.51.100.7"))
	assert.Equal(t, []string{"198.51.100.7", "203.0.113.5"}, store.blockList.BlockedIPs)
	assert.Equal(t, []string{"198.51.100.7", "203.0.113.5"}, fw.List())

	saves := store.saves
	require.NoError(t, fw.Block(context.Background(), "198.51.100.7"))
	assert.Equal(t, saves, store.saves, "re-blocking must not rewrite the list")
}

func TestFirewallBlockRejectsInvalidIP(t *testing.T) {
	fw, err := NewFirewall(context.Background(), &memoryStore{}, nil)
	require.NoError(t, err)

	err = fw.Block(context.Background(), "not-an-ip")
	assert.ErrorIs(t, err, sharedErrors.ErrInvalidInput)
	assert.False(t, fw.IsBlocked("not-an-ip"))
}

func TestFirewallFailedSaveLeavesSetUnchanged(t *testing.T) {
	store := &memoryStore{blockList: &rules.BlockList{}}
	fw, err := NewFirewall(context.Background(), store, nil)
	require.NoError(t, err)

	store.saveErr = errors.New("read-only filesystem")
	require.Error(t, fw.Block(context.Background(), "198.51.100.7"))
	assert.False(t, fw.IsBlocked("198.51.100.7"))
}

func TestFirewallUnblock(t *testing.T) {
	store := &memoryStore{blockList: &rules.BlockList{BlockedIPs: []string{"203.0.113.5", "2001:db8::1"}}}
	fw, err := NewFirewall(context.Background(), store, nil)
	require.NoError(t, err)

	assert.True(t, fw.IsBlocked("2001:0db8:0000::1"), "IPv6 addresses compare canonically")

	removed, err := fw.Unblock(context.Background(), "203.0.113.5")
	require.NoError(t, err)
	assert.True(t, removed)
	assert.False(t, fw.IsBlocked("203.0.113.5"))

	removed, err = fw.Unblock(context.Background(), "203.0.113.5")
	require.NoError(t, err)
	assert.False(t, removed)
}
