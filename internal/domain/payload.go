package domain

import (
	"encoding/json"

	"github.com/pion/webrtc/v4"
)

// StringList accepts either a single string or an array of strings on the
// wire. Clients send mark-messages-read with one chat id or many.
type StringList []string

func (s *StringList) UnmarshalJSON(data []byte) error {
	var one string
	if err := json.Unmarshal(data, &one); err == nil {
		*s = StringList{one}
		return nil
	}

	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*s = StringList(many)
	return nil
}

type UserOnline struct {
	UserID string `json:"userId" validate:"required"`
}

type OnlineUsers struct {
	Users []string `json:"users"`
}

type AddChatMessage struct {
	Message     string   `json:"message"`
	PollOptions []string `json:"pollOptions"`
	Video       string   `json:"video,omitempty"`
	PDF         string   `json:"pdf,omitempty"`
	Image       string   `json:"image,omitempty"`
	UserID      string   `json:"userId" validate:"required"`
	RecipientID string   `json:"recipientId" validate:"required"`
}

type AddChatMessageSuccess struct {
	RecipientID string   `json:"recipientId"`
	Data        *Message `json:"data"`
}

type PollVote struct {
	ConversationID string   `json:"conversationId" validate:"required"`
	UserID         string   `json:"userId" validate:"required"`
	Username       string   `json:"username"`
	ChatID         string   `json:"chatId" validate:"required"`
	PollIdx        int      `json:"pollIdx"`
	JoinedUsers    []string `json:"joinedUsers"`
}

type PollVoteSuccess struct {
	ConversationID string `json:"conversationId"`
	UserID         string `json:"userId"`
	Username       string `json:"username"`
	ChatID         string `json:"chatId"`
	PollIdx        int    `json:"pollIdx"`
}

type ChatReaction struct {
	ChatID      string   `json:"chatId" validate:"required"`
	UserID      string   `json:"userId" validate:"required"`
	Emoji       string   `json:"emoji" validate:"required"`
	RecipientID string   `json:"recipientId"`
	JoinedUsers []string `json:"joinedUsers"`
}

type ChatReactionSuccess struct {
	ChatID      string `json:"chatId"`
	UserID      string `json:"userId"`
	Emoji       string `json:"emoji"`
	RecipientID string `json:"recipientId"`
}

type DeleteChatMessage struct {
	ChatID         string   `json:"chatId" validate:"required"`
	ConversationID string   `json:"conversationId" validate:"required"`
	JoinedUsers    []string `json:"joinedUsers"`
	UserID         string   `json:"userId" validate:"required"`
}

type ChatMessageDeleted struct {
	ChatID         string `json:"chatId"`
	ConversationID string `json:"conversationId"`
	UserID         string `json:"userId"`
}

type MarkMessagesRead struct {
	ChatIDs        StringList `json:"chatId" validate:"required,min=1"`
	UserID         string     `json:"userId" validate:"required"`
	ConversationID string     `json:"conversationId" validate:"required"`
	JoinedUsers    []string   `json:"joinedUsers"`
}

type MarkMessagesReadSuccess struct {
	ChatIDs        []string `json:"chatId"`
	ConversationID string   `json:"conversationId"`
	UserData       UserRef  `json:"userData"`
}

type VideoCallRequest struct {
	To       string `json:"to" validate:"required"`
	Username string `json:"username"`
	UserID   string `json:"userId" validate:"required"`
}

type VideoCallInvitation struct {
	From     string `json:"from"`
	Username string `json:"username"`
}

const (
	CallActionAllow  = "allow"
	CallActionReject = "reject"
	CallActionBlock  = "block"
)

// CallResponse answers an invitation. From is the original caller, To the
// responding callee.
type CallResponse struct {
	From   string `json:"from" validate:"required"`
	To     string `json:"to" validate:"required"`
	Action string `json:"action" validate:"required,oneof=allow reject block"`
}

type CallRemoteResponse struct {
	Action string `json:"action"`
	From   string `json:"from"`
}

type Offer struct {
	Offer  webrtc.SessionDescription `json:"offer"`
	To     string                    `json:"to" validate:"required"`
	Sender string                    `json:"sender,omitempty"`
}

// Answer targets the offering connection handle directly.
type Answer struct {
	Answer webrtc.SessionDescription `json:"answer"`
	To     string                    `json:"to" validate:"required"`
	Sender string                    `json:"sender,omitempty"`
}

type ICECandidate struct {
	Candidate webrtc.ICECandidateInit `json:"candidate"`
	To        string                  `json:"to" validate:"required"`
	Sender    string                  `json:"sender,omitempty"`
}

type LeaveCall struct {
	From string `json:"from" validate:"required"`
	To   string `json:"to" validate:"required"`
}

type ClearCallData struct {
	UserID string `json:"userId" validate:"required"`
}

type StatusViewed struct {
	StatusID string `json:"statusId" validate:"required"`
	UserID   string `json:"userId" validate:"required"`
}

type StatusViewUpdated struct {
	StatusID string   `json:"statusId"`
	Viewers  []string `json:"viewers"`
}

type ErrorNotification struct {
	Message string `json:"message"`
}
