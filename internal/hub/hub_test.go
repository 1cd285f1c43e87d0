package hub

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tidechat/realtime/internal/logging"
)

type fakeClient struct {
	id     string
	frames [][]byte
	fail   bool
	closed bool
}

func (c *fakeClient) ID() string { return c.id }

func (c *fakeClient) Send(message []byte) error {
	if c.fail {
		return errors.New("queue full")
	}
	c.frames = append(c.frames, message)
	return nil
}

func (c *fakeClient) Close() error {
	c.closed = true
	return nil
}

func testLogger() *logging.Logger {
	return logging.New(logging.Config{Level: "error", Format: "text"})
}

func Test_SendTo_Reaches_Only_The_Named_Handle(t *testing.T) {
	req := require.New(t)
	h := New(testLogger())

	a := &fakeClient{id: "a"}
	b := &fakeClient{id: "b"}
	req.NoError(h.Register(a))
	req.NoError(h.Register(b))

	req.NoError(h.SendTo("a", []byte("hello")))
	req.Len(a.frames, 1)
	req.Empty(b.frames)

	req.ErrorIs(h.SendTo("missing", []byte("x")), ErrClientNotFound)
}

func Test_SendToMany_Skips_Missing_And_Failing_Handles(t *testing.T) {
	req := require.New(t)
	h := New(testLogger())

	a := &fakeClient{id: "a"}
	b := &fakeClient{id: "b", fail: true}
	c := &fakeClient{id: "c"}
	req.NoError(h.Register(a))
	req.NoError(h.Register(b))
	req.NoError(h.Register(c))

	h.SendToMany([]string{"a", "b", "missing", "c"}, []byte("frame"))

	req.Len(a.frames, 1)
	req.Empty(b.frames)
	req.Len(c.frames, 1)

	stats := h.GetStats()
	req.Equal(int64(2), stats.MessagesSent)
	req.Equal(int64(1), stats.MessagesDropped)
}

func Test_Register_Rejects_Duplicate_Handle(t *testing.T) {
	req := require.New(t)
	h := New(testLogger())

	req.NoError(h.Register(&fakeClient{id: "a"}))
	req.Error(h.Register(&fakeClient{id: "a"}))
}

func Test_Broadcast_Skips_Failing_Clients(t *testing.T) {
	req := require.New(t)
	h := New(testLogger())

	ok := &fakeClient{id: "ok"}
	bad := &fakeClient{id: "bad", fail: true}
	req.NoError(h.Register(ok))
	req.NoError(h.Register(bad))

	h.Broadcast([]byte("frame"))

	req.Len(ok.frames, 1)
	stats := h.GetStats()
	req.Equal(int64(1), stats.MessagesSent)
	req.Equal(int64(1), stats.MessagesDropped)
	req.Equal(2, stats.ConnectedClients)
}

func Test_Unregister_Closes_And_Removes_Client(t *testing.T) {
	req := require.New(t)
	h := New(testLogger())

	c := &fakeClient{id: "a"}
	req.NoError(h.Register(c))

	h.Unregister("a")
	req.True(c.closed)
	req.ErrorIs(h.SendTo("a", []byte("x")), ErrClientNotFound)

	// unknown handle is a no-op
	h.Unregister("a")
}
