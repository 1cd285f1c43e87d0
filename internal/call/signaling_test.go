package call

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tidechat/realtime/internal/domain"
	"github.com/tidechat/realtime/internal/logging"
	"github.com/tidechat/realtime/internal/presence"
)

type fakeSender struct {
	frames map[string][]domain.Envelope
}

func newFakeSender() *fakeSender {
	return &fakeSender{frames: make(map[string][]domain.Envelope)}
}

func (s *fakeSender) SendTo(handleID string, message []byte) error {
	var env domain.Envelope
	if err := json.Unmarshal(message, &env); err != nil {
		return err
	}
	s.frames[handleID] = append(s.frames[handleID], env)
	return nil
}

func (s *fakeSender) last(handleID string) (domain.Envelope, bool) {
	frames := s.frames[handleID]
	if len(frames) == 0 {
		return domain.Envelope{}, false
	}
	return frames[len(frames)-1], true
}

type fixture struct {
	signaling *Signaling
	registry  *presence.Registry
	blocks    *presence.BlockList
	tracker   *presence.CallTracker
	sender    *fakeSender
}

func newFixture() *fixture {
	registry := presence.NewRegistry()
	blocks := presence.NewBlockList()
	tracker := presence.NewCallTracker()
	sender := newFakeSender()
	logger := logging.New(logging.Config{Level: "error", Format: "text"})

	return &fixture{
		signaling: NewSignaling(registry, blocks, tracker, sender, logger),
		registry:  registry,
		blocks:    blocks,
		tracker:   tracker,
		sender:    sender,
	}
}

func request(from, to string) domain.VideoCallRequest {
	return domain.VideoCallRequest{To: to, Username: "Caller", UserID: from}
}

func Test_Request_Precondition_Failures(t *testing.T) {
	tests := []struct {
		name  string
		setup func(f *fixture)
		want  domain.ErrorKind
	}{
		{
			name: "callee blocking caller",
			setup: func(f *fixture) {
				f.registry.Register("alice", "a1")
				f.registry.Register("bob", "b1")
				f.blocks.Block("bob", "alice")
			},
			want: domain.KindBlocked,
		},
		{
			name: "callee offline",
			setup: func(f *fixture) {
				f.registry.Register("alice", "a1")
			},
			want: domain.KindCalleeOffline,
		},
		{
			name: "caller offline",
			setup: func(f *fixture) {
				f.registry.Register("bob", "b1")
			},
			want: domain.KindCallerOffline,
		},
		{
			name: "callee on multiple devices",
			setup: func(f *fixture) {
				f.registry.Register("alice", "a1")
				f.registry.Register("bob", "b1")
				f.registry.Register("bob", "b2")
			},
			want: domain.KindCalleeMultiDevice,
		},
		{
			name: "caller on multiple devices",
			setup: func(f *fixture) {
				f.registry.Register("alice", "a1")
				f.registry.Register("alice", "a2")
				f.registry.Register("bob", "b1")
			},
			want: domain.KindCallerMultiDevice,
		},
		{
			name: "callee already in a call",
			setup: func(f *fixture) {
				f.registry.Register("alice", "a1")
				f.registry.Register("bob", "b1")
				f.tracker.Join("bob", "carol")
			},
			want: domain.KindAlreadyInCall,
		},
		{
			name: "caller already in a call",
			setup: func(f *fixture) {
				f.registry.Register("alice", "a1")
				f.registry.Register("bob", "b1")
				f.tracker.Join("alice", "carol")
			},
			want: domain.KindAlreadyInCall,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			f := newFixture()
			tt.setup(f)

			err := f.signaling.Request(context.Background(), request("alice", "bob"))
			req.Error(err)
			req.Equal(tt.want, domain.KindOf(err))

			// no invitation reaches anyone on failure
			for handle := range f.sender.frames {
				for _, env := range f.sender.frames[handle] {
					req.NotEqual(domain.EventVideoCallInvite, env.Type)
				}
			}
		})
	}
}

func Test_Request_Relays_Invitation_Without_Recording_State(t *testing.T) {
	req := require.New(t)
	f := newFixture()
	f.registry.Register("alice", "a1")
	f.registry.Register("bob", "b1")

	req.NoError(f.signaling.Request(context.Background(), request("alice", "bob")))

	env, ok := f.sender.last("b1")
	req.True(ok)
	req.Equal(domain.EventVideoCallInvite, env.Type)

	var invite domain.VideoCallInvitation
	req.NoError(json.Unmarshal(env.Data, &invite))
	req.Equal("alice", invite.From)

	// still idle until the callee responds
	req.False(f.tracker.InCall("alice"))
	req.False(f.tracker.InCall("bob"))
}

func Test_Allow_Response_Activates_Call_And_Leave_Ends_It(t *testing.T) {
	req := require.New(t)
	f := newFixture()
	f.registry.Register("alice", "a1")
	f.registry.Register("bob", "b1")

	req.NoError(f.signaling.Request(context.Background(), request("alice", "bob")))
	req.NoError(f.signaling.Respond(context.Background(), domain.CallResponse{
		From: "alice", To: "bob", Action: domain.CallActionAllow,
	}))

	req.True(f.tracker.InCall("alice"))
	req.True(f.tracker.InCall("bob"))

	env, ok := f.sender.last("a1")
	req.True(ok)
	req.Equal(domain.EventCallRemoteResponse, env.Type)

	var resp domain.CallRemoteResponse
	req.NoError(json.Unmarshal(env.Data, &resp))
	req.Equal(domain.CallActionAllow, resp.Action)
	req.Equal("bob", resp.From)

	req.NoError(f.signaling.Leave(context.Background(), domain.LeaveCall{From: "alice", To: "bob"}))
	req.Equal(0, f.tracker.Size())

	env, ok = f.sender.last("b1")
	req.True(ok)
	req.Equal(domain.EventLeaveCall, env.Type)
}

func Test_Block_Response_Bars_Future_Calls_Until_Cleared(t *testing.T) {
	req := require.New(t)
	f := newFixture()
	f.registry.Register("alice", "a1")
	f.registry.Register("bob", "b1")

	req.NoError(f.signaling.Respond(context.Background(), domain.CallResponse{
		From: "alice", To: "bob", Action: domain.CallActionBlock,
	}))
	req.False(f.tracker.InCall("alice"))

	err := f.signaling.Request(context.Background(), request("alice", "bob"))
	req.Equal(domain.KindBlocked, domain.KindOf(err))

	// the block is one-directional
	req.NoError(f.signaling.Request(context.Background(), request("bob", "alice")))

	req.NoError(f.signaling.Clear(context.Background(), "bob"))
	req.NoError(f.signaling.Request(context.Background(), request("alice", "bob")))
}

func Test_Reject_Response_Relays_Without_State_Change(t *testing.T) {
	req := require.New(t)
	f := newFixture()
	f.registry.Register("alice", "a1")
	f.registry.Register("bob", "b1")

	req.NoError(f.signaling.Respond(context.Background(), domain.CallResponse{
		From: "alice", To: "bob", Action: domain.CallActionReject,
	}))

	req.False(f.tracker.InCall("alice"))
	req.False(f.blocks.IsBlocked("bob", "alice"))

	env, ok := f.sender.last("a1")
	req.True(ok)
	req.Equal(domain.EventCallRemoteResponse, env.Type)
}

func Test_Respond_Reports_Gone_Caller(t *testing.T) {
	req := require.New(t)
	f := newFixture()
	f.registry.Register("bob", "b1")

	err := f.signaling.Respond(context.Background(), domain.CallResponse{
		From: "alice", To: "bob", Action: domain.CallActionAllow,
	})
	req.Equal(domain.KindRecipientGone, domain.KindOf(err))
	req.False(f.tracker.InCall("bob"))
}

func Test_Offer_And_Candidate_Relay_To_Sole_Handle(t *testing.T) {
	req := require.New(t)
	f := newFixture()
	f.registry.Register("alice", "a1")
	f.registry.Register("bob", "b1")

	err := f.signaling.RelayOffer(context.Background(), "a1", domain.Offer{To: "bob"})
	req.NoError(err)

	env, ok := f.sender.last("b1")
	req.True(ok)
	req.Equal(domain.EventOffer, env.Type)

	var offer domain.Offer
	req.NoError(json.Unmarshal(env.Data, &offer))
	req.Equal("a1", offer.Sender)

	req.NoError(f.signaling.RelayCandidate(context.Background(), "a1", domain.ICECandidate{To: "bob"}))
	env, _ = f.sender.last("b1")
	req.Equal(domain.EventICECandidate, env.Type)
}

func Test_Offer_Fails_When_Recipient_Unreachable(t *testing.T) {
	req := require.New(t)
	f := newFixture()
	f.registry.Register("alice", "a1")

	err := f.signaling.RelayOffer(context.Background(), "a1", domain.Offer{To: "bob"})
	req.Equal(domain.KindRecipientOffline, domain.KindOf(err))

	// two devices is just as unreachable for the single-device protocol
	f.registry.Register("bob", "b1")
	f.registry.Register("bob", "b2")
	err = f.signaling.RelayOffer(context.Background(), "a1", domain.Offer{To: "bob"})
	req.Equal(domain.KindRecipientOffline, domain.KindOf(err))
}

func Test_Answer_Relays_Directly_To_Handle(t *testing.T) {
	req := require.New(t)
	f := newFixture()
	f.registry.Register("alice", "a1")

	req.NoError(f.signaling.RelayAnswer(context.Background(), "b1", domain.Answer{To: "a1"}))

	env, ok := f.sender.last("a1")
	req.True(ok)
	req.Equal(domain.EventAnswer, env.Type)

	var answer domain.Answer
	req.NoError(json.Unmarshal(env.Data, &answer))
	req.Equal("b1", answer.Sender)
}

func Test_Leave_Is_Noop_When_No_Call_Tracked(t *testing.T) {
	req := require.New(t)
	f := newFixture()
	f.registry.Register("bob", "b1")

	req.NoError(f.signaling.Leave(context.Background(), domain.LeaveCall{From: "alice", To: "bob"}))
	_, ok := f.sender.last("b1")
	req.False(ok)
}

func Test_Disconnect_Force_Terminates_Active_Call(t *testing.T) {
	req := require.New(t)
	f := newFixture()
	f.registry.Register("alice", "a1")
	f.registry.Register("bob", "b1")
	f.tracker.Join("alice", "bob")

	f.signaling.HandleDisconnect("alice")

	req.Equal(0, f.tracker.Size())
	env, ok := f.sender.last("b1")
	req.True(ok)
	req.Equal(domain.EventLeaveCall, env.Type)

	var leave domain.LeaveCall
	req.NoError(json.Unmarshal(env.Data, &leave))
	req.Equal("alice", leave.From)
}

func Test_Clear_Resets_Call_And_Blocks(t *testing.T) {
	req := require.New(t)
	f := newFixture()
	f.tracker.Join("alice", "bob")
	f.blocks.Block("alice", "bob")

	req.NoError(f.signaling.Clear(context.Background(), "alice"))

	req.False(f.tracker.InCall("alice"))
	req.False(f.blocks.IsBlocked("alice", "bob"))
}
