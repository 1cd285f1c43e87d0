// Package call drives the two-party call lifecycle: invitation,
// response, SDP/ICE relay and termination. The offer/answer/candidate
// payloads are relayed opaquely; the core never interprets them.
package call

import (
	"context"

	"github.com/go-playground/validator/v10"

	"github.com/tidechat/realtime/internal/domain"
	"github.com/tidechat/realtime/internal/logging"
	"github.com/tidechat/realtime/internal/presence"
)

// Sender pushes an encoded frame to a single handle.
type Sender interface {
	SendTo(handleID string, message []byte) error
}

type Signaling struct {
	registry *presence.Registry
	blocks   *presence.BlockList
	tracker  *presence.CallTracker
	sender   Sender
	validate *validator.Validate
	logger   *logging.Logger
}

func NewSignaling(
	registry *presence.Registry,
	blocks *presence.BlockList,
	tracker *presence.CallTracker,
	sender Sender,
	logger *logging.Logger,
) *Signaling {
	return &Signaling{
		registry: registry,
		blocks:   blocks,
		tracker:  tracker,
		sender:   sender,
		validate: validator.New(),
		logger:   logger,
	}
}

func (s *Signaling) relay(handleID string, eventType domain.EventType, payload any) error {
	env, err := domain.NewEnvelope(eventType, payload)
	if err != nil {
		return domain.WrapErr(err, domain.KindInternal, "failed to build relay envelope")
	}
	frame, err := env.Encode()
	if err != nil {
		return domain.WrapErr(err, domain.KindInternal, "failed to encode relay envelope")
	}
	return s.sender.SendTo(handleID, frame)
}

func (s *Signaling) relayToUser(userID string, eventType domain.EventType, payload any) {
	for _, handleID := range s.registry.HandlesOf(userID) {
		if err := s.relay(handleID, eventType, payload); err != nil {
			s.logger.Warn("relay failed",
				"event", eventType,
				"user_id", userID,
				"handle_id", handleID,
				"error", err,
			)
		}
	}
}

// soleHandle returns the single live handle of a user. Calls are only
// deliverable to exactly one device; zero or several is a failure.
func (s *Signaling) soleHandle(userID string) (string, bool) {
	handles := s.registry.HandlesOf(userID)
	if len(handles) != 1 {
		return "", false
	}
	return handles[0], true
}

// Request starts the invitation phase. No call state is recorded yet; the
// pair stays idle until the callee responds.
func (s *Signaling) Request(ctx context.Context, req domain.VideoCallRequest) error {
	if err := s.validate.Struct(req); err != nil {
		return domain.E(domain.KindInvalidRequest, "call request is missing required fields")
	}

	caller, callee := req.UserID, req.To

	switch {
	case s.blocks.IsBlocked(callee, caller):
		return domain.E(domain.KindBlocked, "you are blocked from calling this user")
	case !s.registry.IsOnline(callee):
		return domain.E(domain.KindCalleeOffline, "the user you are calling is offline")
	case !s.registry.IsOnline(caller):
		return domain.E(domain.KindCallerOffline, "you are not registered as online")
	case s.registry.DeviceCount(callee) > 1:
		return domain.E(domain.KindCalleeMultiDevice, "the user you are calling is signed in on multiple devices")
	case s.registry.DeviceCount(caller) > 1:
		return domain.E(domain.KindCallerMultiDevice, "calls are not available while signed in on multiple devices")
	case s.tracker.InCall(caller) || s.tracker.InCall(callee):
		return domain.E(domain.KindAlreadyInCall, "one of you is already in a call")
	}

	handleID, ok := s.soleHandle(callee)
	if !ok {
		return domain.E(domain.KindCalleeOffline, "the user you are calling is offline")
	}

	if err := s.relay(handleID, domain.EventVideoCallInvite, domain.VideoCallInvitation{
		From:     caller,
		Username: req.Username,
	}); err != nil {
		return domain.WrapErr(err, domain.KindRecipientOffline, "could not reach the callee")
	}

	s.logger.Info("call invitation relayed", "caller", caller, "callee", callee)
	return nil
}

// Respond handles the callee's answer. From is the original caller, To the
// responder.
func (s *Signaling) Respond(ctx context.Context, req domain.CallResponse) error {
	if err := s.validate.Struct(req); err != nil {
		return domain.E(domain.KindInvalidRequest, "call response is missing required fields")
	}

	caller, callee := req.From, req.To

	handles := s.registry.HandlesOf(caller)
	if len(handles) == 0 {
		return domain.E(domain.KindRecipientGone, "the caller is no longer connected")
	}

	switch req.Action {
	case domain.CallActionAllow:
		s.tracker.Join(caller, callee)
	case domain.CallActionBlock:
		s.blocks.Block(callee, caller)
	case domain.CallActionReject:
		// relay only
	}

	s.relayToUser(caller, domain.EventCallRemoteResponse, domain.CallRemoteResponse{
		Action: req.Action,
		From:   callee,
	})

	s.logger.Info("call response relayed",
		"caller", caller,
		"callee", callee,
		"action", req.Action,
	)
	return nil
}

// RelayOffer forwards an SDP offer to the recipient's sole connection,
// stamping the sender handle so the answer can come straight back.
func (s *Signaling) RelayOffer(ctx context.Context, senderHandle string, req domain.Offer) error {
	if err := s.validate.Struct(req); err != nil {
		return domain.E(domain.KindInvalidRequest, "offer is missing required fields")
	}

	handleID, ok := s.soleHandle(req.To)
	if !ok {
		return domain.E(domain.KindRecipientOffline, "the other party is not reachable")
	}

	req.Sender = senderHandle
	if err := s.relay(handleID, domain.EventOffer, req); err != nil {
		return domain.WrapErr(err, domain.KindRecipientOffline, "the other party is not reachable")
	}
	return nil
}

// RelayAnswer forwards an SDP answer directly to the handle named in To.
func (s *Signaling) RelayAnswer(ctx context.Context, senderHandle string, req domain.Answer) error {
	if err := s.validate.Struct(req); err != nil {
		return domain.E(domain.KindInvalidRequest, "answer is missing required fields")
	}

	req.Sender = senderHandle
	if err := s.relay(req.To, domain.EventAnswer, req); err != nil {
		return domain.WrapErr(err, domain.KindRecipientOffline, "the other party is not reachable")
	}
	return nil
}

// RelayCandidate forwards an ICE candidate to the recipient's sole
// connection.
func (s *Signaling) RelayCandidate(ctx context.Context, senderHandle string, req domain.ICECandidate) error {
	if err := s.validate.Struct(req); err != nil {
		return domain.E(domain.KindInvalidRequest, "candidate is missing required fields")
	}

	handleID, ok := s.soleHandle(req.To)
	if !ok {
		return domain.E(domain.KindRecipientOffline, "the other party is not reachable")
	}

	req.Sender = senderHandle
	if err := s.relay(handleID, domain.EventICECandidate, req); err != nil {
		return domain.WrapErr(err, domain.KindRecipientOffline, "the other party is not reachable")
	}
	return nil
}

// Leave ends an active call. A no-op unless at least one party is tracked.
func (s *Signaling) Leave(ctx context.Context, req domain.LeaveCall) error {
	if err := s.validate.Struct(req); err != nil {
		return domain.E(domain.KindInvalidRequest, "leave request is missing required fields")
	}

	if !s.tracker.Leave(req.From, req.To) {
		return nil
	}

	s.relayToUser(req.To, domain.EventLeaveCall, req)
	s.logger.Info("call ended", "from", req.From, "to", req.To)
	return nil
}

// Clear is the manual reset: the user leaves the ongoing-call set and all
// their block entries are dropped.
func (s *Signaling) Clear(ctx context.Context, userID string) error {
	if userID == "" {
		return domain.E(domain.KindInvalidRequest, "user id is required")
	}

	s.tracker.Remove(userID)
	s.blocks.Clear(userID)
	s.logger.Info("call data cleared", "user_id", userID)
	return nil
}

// HandleDisconnect force-terminates any call the user was in once their
// last connection drops. The peer receives leave-call as if the user had
// hung up.
func (s *Signaling) HandleDisconnect(userID string) {
	peer, ok := s.tracker.PeerOf(userID)
	if !ok {
		return
	}

	s.tracker.Leave(userID, peer)
	s.relayToUser(peer, domain.EventLeaveCall, domain.LeaveCall{
		From: userID,
		To:   peer,
	})
	s.logger.Info("call force-terminated on disconnect", "user_id", userID, "peer", peer)
}
