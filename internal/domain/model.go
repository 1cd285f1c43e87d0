package domain

import "time"

// ConversationKind distinguishes 1:1 connections from groups.
type ConversationKind string

const (
	ConversationConnection ConversationKind = "connection"
	ConversationGroup      ConversationKind = "group"
)

// Conversation is the resolved participant view of a connection or group.
// Membership authority lives in the store; this is a read-through snapshot.
type Conversation struct {
	ID           string
	Kind         ConversationKind
	Participants []string
}

// UserRef carries the denormalized profile fields fanned out with events.
type UserRef struct {
	ID       string `json:"id" bson:"-"`
	Username string `json:"username" bson:"username"`
	Avatar   string `json:"avatar,omitempty" bson:"avatar,omitempty"`
}

type PollOption struct {
	Option string   `json:"option" bson:"option"`
	Votes  []string `json:"votes" bson:"votes"`
}

type Reaction struct {
	UserID string `json:"userId" bson:"userId"`
	Emoji  string `json:"emoji" bson:"emoji"`
}

// Message is a stored chat message. Poll, reactions, readBy and deleteBy are
// mutated in place by the pipeline; the document is only removed on
// delete-for-everyone.
type Message struct {
	ID           string       `json:"id" bson:"-"`
	SenderID     string       `json:"senderId" bson:"senderId"`
	SenderName   string       `json:"senderName" bson:"senderName"`
	SenderAvatar string       `json:"senderAvatar,omitempty" bson:"senderAvatar,omitempty"`
	Text         string       `json:"message,omitempty" bson:"message,omitempty"`
	ImageURL     string       `json:"image,omitempty" bson:"image,omitempty"`
	VideoURL     string       `json:"video,omitempty" bson:"video,omitempty"`
	PDFURL       string       `json:"pdf,omitempty" bson:"pdf,omitempty"`
	Poll         []PollOption `json:"poll,omitempty" bson:"poll,omitempty"`
	Reactions    []Reaction   `json:"reactions" bson:"reactions"`
	ReadBy       []string     `json:"readBy" bson:"readBy"`
	DeleteBy     []string     `json:"deleteBy" bson:"deleteBy"`
	CreatedAt    time.Time    `json:"createdAt" bson:"createdAt"`
}

// HasContent reports whether the message carries anything deliverable.
func (m *Message) HasContent() bool {
	return m.Text != "" || len(m.Poll) > 0 ||
		m.ImageURL != "" || m.VideoURL != "" || m.PDFURL != ""
}

// Status is a stored ephemeral status post; the core only appends viewers.
type Status struct {
	ID      string   `json:"id" bson:"-"`
	OwnerID string   `json:"ownerId" bson:"ownerId"`
	Viewers []string `json:"viewers" bson:"viewers"`
}
