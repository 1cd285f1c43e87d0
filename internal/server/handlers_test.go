package server

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tidechat/realtime/internal/domain"
	"github.com/tidechat/realtime/internal/hub"
	"github.com/tidechat/realtime/internal/logging"
	"github.com/tidechat/realtime/internal/presence"
)

type stubClient struct {
	id     string
	frames [][]byte
}

func (c *stubClient) ID() string { return c.id }

func (c *stubClient) Send(message []byte) error {
	c.frames = append(c.frames, message)
	return nil
}

func (c *stubClient) Close() error { return nil }

func Test_UserOnline_Registers_And_Broadcasts_Presence(t *testing.T) {
	req := require.New(t)

	logger := logging.New(logging.Config{Level: "error", Format: "text"})
	h := hub.New(logger)
	reg := presence.NewRegistry()

	alice := &stubClient{id: "h1"}
	bob := &stubClient{id: "h2"}
	req.NoError(h.Register(alice))
	req.NoError(h.Register(bob))
	reg.Register("bob", "h2")

	handlers := NewEventHandlers(reg, h, nil, nil, logger)

	env, err := domain.NewEnvelope(domain.EventUserOnline, domain.UserOnline{UserID: "alice"})
	req.NoError(err)

	ctx := WithSession(context.Background(), Session{HandleID: "h1"})
	res, err := handlers.handleUserOnline(ctx, env)
	req.NoError(err)
	req.Nil(res)

	req.True(reg.IsOnline("alice"))

	// every live connection saw the same full snapshot
	for _, client := range []*stubClient{alice, bob} {
		req.Len(client.frames, 1)

		var got domain.Envelope
		req.NoError(json.Unmarshal(client.frames[0], &got))
		req.Equal(domain.EventUpdateOnlineUsers, got.Type)

		var users domain.OnlineUsers
		req.NoError(json.Unmarshal(got.Data, &users))
		req.Equal([]string{"alice", "bob"}, users.Users)
	}
}

func Test_UserOnline_Requires_User_Id(t *testing.T) {
	req := require.New(t)

	logger := logging.New(logging.Config{Level: "error", Format: "text"})
	handlers := NewEventHandlers(presence.NewRegistry(), hub.New(logger), nil, nil, logger)

	env, err := domain.NewEnvelope(domain.EventUserOnline, domain.UserOnline{})
	req.NoError(err)

	ctx := WithSession(context.Background(), Session{HandleID: "h1"})
	_, err = handlers.handleUserOnline(ctx, env)
	req.Equal(domain.KindInvalidRequest, domain.KindOf(err))
}
