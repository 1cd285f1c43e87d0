package domain

import (
	"encoding/json"
	"time"

	"github.com/rs/xid"
)

// EventType identifies a realtime event on the wire.
type EventType string

const (
	EventUserOnline        EventType = "user-online"
	EventUpdateOnlineUsers EventType = "update-online-users"

	EventAddChatMessage        EventType = "add-chat-message"
	EventAddChatMessageSuccess EventType = "add-chat-message-success"
	EventPollVote              EventType = "userchat-poll-vote"
	EventPollVoteSuccess       EventType = "poll-vote-success"
	EventChatReaction          EventType = "chat-reaction"
	EventChatReactionSuccess   EventType = "chat-reaction-success"
	EventDeleteChatMessage     EventType = "delete-chat-message"
	EventChatMessageDeleted    EventType = "chat-message-deleted-success"
	EventMarkMessagesRead      EventType = "mark-messages-read"
	EventMarkMessagesReadOK    EventType = "mark-messages-read-success"

	EventVideoCallRequest   EventType = "video-call-request"
	EventVideoCallInvite    EventType = "video-call-invitation"
	EventCallResponse       EventType = "video-call-invitation-response"
	EventCallRemoteResponse EventType = "video-call-invitation-remote-response"
	EventOffer              EventType = "offer"
	EventAnswer             EventType = "answer"
	EventICECandidate       EventType = "ice-candidate"
	EventLeaveCall          EventType = "leave-call"
	EventClearCallData      EventType = "clear-call-data"
	EventClearCallDataOK    EventType = "clear-call-data-success"

	EventStatusViewed      EventType = "status-viewed"
	EventStatusViewUpdated EventType = "status-view-updated"

	EventErrorNotification EventType = "error-notification"
)

// Envelope is the generic frame every event travels in.
type Envelope struct {
	ID        string          `json:"id"`
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// NewEnvelope wraps a payload into a fresh envelope.
func NewEnvelope(eventType EventType, payload any) (*Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return &Envelope{
		ID:        xid.New().String(),
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      data,
	}, nil
}

// Encode marshals an envelope for the wire.
func (e *Envelope) Encode() ([]byte, error) {
	return json.Marshal(e)
}
