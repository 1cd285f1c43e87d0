// Package fanout delivers one logical event to every live connection of
// every relevant participant.
package fanout

import (
	"context"

	"github.com/samber/lo"

	"github.com/tidechat/realtime/internal/domain"
	"github.com/tidechat/realtime/internal/logging"
)

// Resolver answers who participates in a conversation.
type Resolver interface {
	ResolveConversation(ctx context.Context, conversationID string) (*domain.Conversation, error)
}

// Presence answers which handles a user currently owns.
type Presence interface {
	IsOnline(userID string) bool
	HandlesOf(userID string) []string
}

// Sender pushes an encoded frame to a set of handles, best effort.
type Sender interface {
	SendToMany(handleIDs []string, message []byte)
}

type Dispatcher struct {
	resolver Resolver
	presence Presence
	sender   Sender
	logger   *logging.Logger
}

func NewDispatcher(resolver Resolver, presence Presence, sender Sender, logger *logging.Logger) *Dispatcher {
	return &Dispatcher{
		resolver: resolver,
		presence: presence,
		sender:   sender,
		logger:   logger,
	}
}

// Deliver resolves the conversation and pushes the event to every online
// participant. Offline participants are skipped; there is no retry.
func (d *Dispatcher) Deliver(ctx context.Context, conversationID string, eventType domain.EventType, payload any) error {
	conv, err := d.resolver.ResolveConversation(ctx, conversationID)
	if err != nil {
		return err
	}

	d.DeliverToUsers(conv.Participants, eventType, payload)
	return nil
}

// DeliverToUsers pushes the event to every live handle of each listed user.
// Duplicate ids are collapsed so no device receives the frame twice per
// dispatch.
func (d *Dispatcher) DeliverToUsers(userIDs []string, eventType domain.EventType, payload any) {
	env, err := domain.NewEnvelope(eventType, payload)
	if err != nil {
		d.logger.Error("failed to build envelope", "event", eventType, "error", err)
		return
	}

	frame, err := env.Encode()
	if err != nil {
		d.logger.Error("failed to encode envelope", "event", eventType, "error", err)
		return
	}

	var handles []string
	for _, userID := range lo.Uniq(userIDs) {
		if !d.presence.IsOnline(userID) {
			continue
		}
		handles = append(handles, d.presence.HandlesOf(userID)...)
	}
	d.sender.SendToMany(lo.Uniq(handles), frame)

	d.logger.Debug("fanout complete",
		"event", eventType,
		"recipients", len(userIDs),
		"handles", len(handles),
	)
}
