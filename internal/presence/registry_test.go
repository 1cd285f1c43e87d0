package presence

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_Register_And_Unregister_Keep_Key_Iff_Handles_Remain(t *testing.T) {
	req := require.New(t)
	reg := NewRegistry()

	req.False(reg.IsOnline("alice"))
	req.Equal(0, reg.DeviceCount("alice"))

	online := reg.Register("alice", "h1")
	req.Equal([]string{"alice"}, online)
	req.True(reg.IsOnline("alice"))

	online = reg.Register("alice", "h2")
	req.Equal([]string{"alice"}, online)
	req.Equal(2, reg.DeviceCount("alice"))

	userID, wentOffline, online := reg.Unregister("h1")
	req.Equal("alice", userID)
	req.False(wentOffline)
	req.Equal([]string{"alice"}, online)
	req.True(reg.IsOnline("alice"))

	userID, wentOffline, online = reg.Unregister("h2")
	req.Equal("alice", userID)
	req.True(wentOffline)
	req.Empty(online)
	req.False(reg.IsOnline("alice"))
	req.Equal(0, reg.DeviceCount("alice"))
}

func Test_Register_Same_Handle_Twice_Is_Idempotent(t *testing.T) {
	req := require.New(t)
	reg := NewRegistry()

	reg.Register("alice", "h1")
	reg.Register("alice", "h1")

	req.Equal(1, reg.DeviceCount("alice"))
	req.Equal([]string{"h1"}, reg.HandlesOf("alice"))
}

func Test_Handle_Moves_To_New_Owner(t *testing.T) {
	req := require.New(t)
	reg := NewRegistry()

	reg.Register("alice", "h1")
	online := reg.Register("bob", "h1")

	req.Equal([]string{"bob"}, online)
	req.False(reg.IsOnline("alice"))
	req.Equal([]string{"h1"}, reg.HandlesOf("bob"))

	owner, ok := reg.Owner("h1")
	req.True(ok)
	req.Equal("bob", owner)
}

func Test_Unregister_Unknown_Handle_Is_Noop(t *testing.T) {
	req := require.New(t)
	reg := NewRegistry()

	reg.Register("alice", "h1")
	userID, wentOffline, online := reg.Unregister("missing")

	req.Empty(userID)
	req.False(wentOffline)
	req.Equal([]string{"alice"}, online)
}

func Test_Online_Snapshot_Is_Sorted_And_Complete(t *testing.T) {
	req := require.New(t)
	reg := NewRegistry()

	reg.Register("carol", "h3")
	reg.Register("alice", "h1")
	reg.Register("bob", "h2")

	req.Equal([]string{"alice", "bob", "carol"}, reg.OnlineUsers())
}
