package server

import (
	"context"
	"encoding/json"

	"github.com/tidechat/realtime/internal/call"
	"github.com/tidechat/realtime/internal/chat"
	"github.com/tidechat/realtime/internal/domain"
	"github.com/tidechat/realtime/internal/hub"
	"github.com/tidechat/realtime/internal/logging"
	"github.com/tidechat/realtime/internal/presence"
)

// EventHandlers binds the event surface to the core services.
type EventHandlers struct {
	presence *presence.Registry
	hub      *hub.Hub
	pipeline *chat.Pipeline
	calls    *call.Signaling
	logger   *logging.Logger
}

func NewEventHandlers(
	reg *presence.Registry,
	h *hub.Hub,
	pipeline *chat.Pipeline,
	calls *call.Signaling,
	logger *logging.Logger,
) *EventHandlers {
	return &EventHandlers{
		presence: reg,
		hub:      h,
		pipeline: pipeline,
		calls:    calls,
		logger:   logger,
	}
}

// NewRouter builds the registry with every inbound event wired.
func NewRouter(h *EventHandlers) *Registry {
	reg := NewRegistry()

	reg.Register(domain.EventUserOnline, HandlerFunc(h.handleUserOnline))

	reg.Register(domain.EventAddChatMessage, HandlerFunc(h.handleAddChatMessage))
	reg.Register(domain.EventPollVote, HandlerFunc(h.handlePollVote))
	reg.Register(domain.EventChatReaction, HandlerFunc(h.handleReaction))
	reg.Register(domain.EventDeleteChatMessage, HandlerFunc(h.handleDelete))
	reg.Register(domain.EventMarkMessagesRead, HandlerFunc(h.handleMarkRead))
	reg.Register(domain.EventStatusViewed, HandlerFunc(h.handleStatusViewed))

	reg.Register(domain.EventVideoCallRequest, HandlerFunc(h.handleCallRequest))
	reg.Register(domain.EventCallResponse, HandlerFunc(h.handleCallResponse))
	reg.Register(domain.EventOffer, HandlerFunc(h.handleOffer))
	reg.Register(domain.EventAnswer, HandlerFunc(h.handleAnswer))
	reg.Register(domain.EventICECandidate, HandlerFunc(h.handleCandidate))
	reg.Register(domain.EventLeaveCall, HandlerFunc(h.handleLeaveCall))
	reg.Register(domain.EventClearCallData, HandlerFunc(h.handleClearCallData))

	return reg
}

func decode[T any](msg *domain.Envelope) (T, error) {
	var payload T
	if err := json.Unmarshal(msg.Data, &payload); err != nil {
		return payload, domain.WrapErr(err, domain.KindInvalidRequest, "malformed event payload")
	}
	return payload, nil
}

func session(ctx context.Context) (Session, error) {
	s, ok := SessionFromContext(ctx)
	if !ok {
		return Session{}, domain.E(domain.KindInternal, "no session on context")
	}
	return s, nil
}

func (h *EventHandlers) handleUserOnline(ctx context.Context, msg *domain.Envelope) (*domain.Envelope, error) {
	req, err := decode[domain.UserOnline](msg)
	if err != nil {
		return nil, err
	}
	if req.UserID == "" {
		return nil, domain.E(domain.KindInvalidRequest, "user id is required")
	}

	sess, err := session(ctx)
	if err != nil {
		return nil, err
	}

	online := h.presence.Register(req.UserID, sess.HandleID)

	env, err := domain.NewEnvelope(domain.EventUpdateOnlineUsers, domain.OnlineUsers{Users: online})
	if err != nil {
		return nil, domain.WrapErr(err, domain.KindInternal, "failed to build presence broadcast")
	}
	frame, err := env.Encode()
	if err != nil {
		return nil, domain.WrapErr(err, domain.KindInternal, "failed to encode presence broadcast")
	}
	h.hub.Broadcast(frame)

	h.logger.Info("user online",
		"user_id", req.UserID,
		"handle_id", sess.HandleID,
		"devices", h.presence.DeviceCount(req.UserID),
	)
	return nil, nil
}

func (h *EventHandlers) handleAddChatMessage(ctx context.Context, msg *domain.Envelope) (*domain.Envelope, error) {
	req, err := decode[domain.AddChatMessage](msg)
	if err != nil {
		return nil, err
	}
	if _, err := h.pipeline.SendMessage(ctx, req); err != nil {
		return nil, err
	}
	return nil, nil
}

func (h *EventHandlers) handlePollVote(ctx context.Context, msg *domain.Envelope) (*domain.Envelope, error) {
	req, err := decode[domain.PollVote](msg)
	if err != nil {
		return nil, err
	}
	return nil, h.pipeline.VotePoll(ctx, req)
}

func (h *EventHandlers) handleReaction(ctx context.Context, msg *domain.Envelope) (*domain.Envelope, error) {
	req, err := decode[domain.ChatReaction](msg)
	if err != nil {
		return nil, err
	}
	return nil, h.pipeline.React(ctx, req)
}

func (h *EventHandlers) handleDelete(ctx context.Context, msg *domain.Envelope) (*domain.Envelope, error) {
	req, err := decode[domain.DeleteChatMessage](msg)
	if err != nil {
		return nil, err
	}
	return nil, h.pipeline.Delete(ctx, req)
}

func (h *EventHandlers) handleMarkRead(ctx context.Context, msg *domain.Envelope) (*domain.Envelope, error) {
	req, err := decode[domain.MarkMessagesRead](msg)
	if err != nil {
		return nil, err
	}
	return nil, h.pipeline.MarkRead(ctx, req)
}

func (h *EventHandlers) handleStatusViewed(ctx context.Context, msg *domain.Envelope) (*domain.Envelope, error) {
	req, err := decode[domain.StatusViewed](msg)
	if err != nil {
		return nil, err
	}
	return nil, h.pipeline.ViewStatus(ctx, req)
}

func (h *EventHandlers) handleCallRequest(ctx context.Context, msg *domain.Envelope) (*domain.Envelope, error) {
	req, err := decode[domain.VideoCallRequest](msg)
	if err != nil {
		return nil, err
	}
	return nil, h.calls.Request(ctx, req)
}

func (h *EventHandlers) handleCallResponse(ctx context.Context, msg *domain.Envelope) (*domain.Envelope, error) {
	req, err := decode[domain.CallResponse](msg)
	if err != nil {
		return nil, err
	}
	return nil, h.calls.Respond(ctx, req)
}

func (h *EventHandlers) handleOffer(ctx context.Context, msg *domain.Envelope) (*domain.Envelope, error) {
	req, err := decode[domain.Offer](msg)
	if err != nil {
		return nil, err
	}
	sess, err := session(ctx)
	if err != nil {
		return nil, err
	}
	return nil, h.calls.RelayOffer(ctx, sess.HandleID, req)
}

func (h *EventHandlers) handleAnswer(ctx context.Context, msg *domain.Envelope) (*domain.Envelope, error) {
	req, err := decode[domain.Answer](msg)
	if err != nil {
		return nil, err
	}
	sess, err := session(ctx)
	if err != nil {
		return nil, err
	}
	return nil, h.calls.RelayAnswer(ctx, sess.HandleID, req)
}

func (h *EventHandlers) handleCandidate(ctx context.Context, msg *domain.Envelope) (*domain.Envelope, error) {
	req, err := decode[domain.ICECandidate](msg)
	if err != nil {
		return nil, err
	}
	sess, err := session(ctx)
	if err != nil {
		return nil, err
	}
	return nil, h.calls.RelayCandidate(ctx, sess.HandleID, req)
}

func (h *EventHandlers) handleLeaveCall(ctx context.Context, msg *domain.Envelope) (*domain.Envelope, error) {
	req, err := decode[domain.LeaveCall](msg)
	if err != nil {
		return nil, err
	}
	return nil, h.calls.Leave(ctx, req)
}

func (h *EventHandlers) handleClearCallData(ctx context.Context, msg *domain.Envelope) (*domain.Envelope, error) {
	req, err := decode[domain.ClearCallData](msg)
	if err != nil {
		return nil, err
	}
	if err := h.calls.Clear(ctx, req.UserID); err != nil {
		return nil, err
	}
	return domain.NewEnvelope(domain.EventClearCallDataOK, struct{}{})
}
