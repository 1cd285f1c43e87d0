package server

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tidechat/realtime/internal/domain"
)

func Test_Registry_Routes_By_Event_Type(t *testing.T) {
	req := require.New(t)
	reg := NewRegistry()

	var handled domain.EventType
	reg.Register(domain.EventLeaveCall, HandlerFunc(func(_ context.Context, msg *domain.Envelope) (*domain.Envelope, error) {
		handled = msg.Type
		return nil, nil
	}))

	env, err := domain.NewEnvelope(domain.EventLeaveCall, domain.LeaveCall{From: "a", To: "b"})
	req.NoError(err)

	_, err = reg.Handle(context.Background(), env)
	req.NoError(err)
	req.Equal(domain.EventLeaveCall, handled)
}

func Test_Registry_Rejects_Unknown_Event(t *testing.T) {
	req := require.New(t)
	reg := NewRegistry()

	env, err := domain.NewEnvelope(EventTypeUnknownForTest, struct{}{})
	req.NoError(err)

	_, err = reg.Handle(context.Background(), env)
	req.Error(err)
	req.Equal(domain.KindInvalidRequest, domain.KindOf(err))
}

const EventTypeUnknownForTest domain.EventType = "no-such-event"

func Test_Session_Round_Trips_Through_Context(t *testing.T) {
	req := require.New(t)

	ctx := WithSession(context.Background(), Session{HandleID: "h1"})
	sess, ok := SessionFromContext(ctx)
	req.True(ok)
	req.Equal("h1", sess.HandleID)

	_, ok = SessionFromContext(context.Background())
	req.False(ok)
}
