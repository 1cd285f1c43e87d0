// Package chat implements the message pipeline: validate, upload
// attachments, persist, fan out.
package chat

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/tidechat/realtime/internal/domain"
	"github.com/tidechat/realtime/internal/logging"
	"github.com/tidechat/realtime/internal/upload"
)

// Store is the narrow persistence surface the pipeline writes through.
type Store interface {
	FindUser(ctx context.Context, userID string) (*domain.UserRef, error)
	ResolveConversation(ctx context.Context, conversationID string) (*domain.Conversation, error)
	SaveMessage(ctx context.Context, conv *domain.Conversation, msg *domain.Message) error
	AddPollVote(ctx context.Context, chatID string, pollIdx int, userID string) error
	UpsertReaction(ctx context.Context, chatID, userID, emoji string) error
	DeleteMessage(ctx context.Context, conv *domain.Conversation, chatID string) error
	MarkRead(ctx context.Context, chatIDs []string, userID string) error
	AddStatusViewer(ctx context.Context, statusID, userID string) (*domain.Status, error)
}

// Uploader pushes attachment bytes to the media service.
type Uploader interface {
	Upload(ctx context.Context, kind upload.Kind, data string) (string, error)
}

// Dispatcher fans events out to participants.
type Dispatcher interface {
	Deliver(ctx context.Context, conversationID string, eventType domain.EventType, payload any) error
	DeliverToUsers(userIDs []string, eventType domain.EventType, payload any)
}

type Pipeline struct {
	store      Store
	uploader   Uploader
	dispatcher Dispatcher
	validate   *validator.Validate
	logger     *logging.Logger
}

func NewPipeline(store Store, uploader Uploader, dispatcher Dispatcher, logger *logging.Logger) *Pipeline {
	return &Pipeline{
		store:      store,
		uploader:   uploader,
		dispatcher: dispatcher,
		validate:   validator.New(),
		logger:     logger,
	}
}

// SendMessage runs the full pipeline for an inbound chat message. Nothing is
// persisted unless every attachment upload succeeds.
func (p *Pipeline) SendMessage(ctx context.Context, req domain.AddChatMessage) (*domain.Message, error) {
	if err := p.validate.Struct(req); err != nil {
		return nil, domain.E(domain.KindInvalidRequest, "sender and conversation ids are required")
	}

	msg := &domain.Message{
		SenderID:  req.UserID,
		Text:      req.Message,
		Reactions: []domain.Reaction{},
		ReadBy:    []string{},
		DeleteBy:  []string{},
		CreatedAt: time.Now(),
	}
	for _, option := range req.PollOptions {
		msg.Poll = append(msg.Poll, domain.PollOption{Option: option, Votes: []string{}})
	}

	if err := p.uploadAttachments(ctx, req, msg); err != nil {
		return nil, err
	}

	if !msg.HasContent() {
		return nil, domain.E(domain.KindEmptyMessage, "message has no text, poll or attachment")
	}

	sender, err := p.store.FindUser(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	msg.SenderName = sender.Username
	msg.SenderAvatar = sender.Avatar

	conv, err := p.store.ResolveConversation(ctx, req.RecipientID)
	if err != nil {
		return nil, err
	}

	if err := p.store.SaveMessage(ctx, conv, msg); err != nil {
		return nil, err
	}

	p.dispatcher.DeliverToUsers(conv.Participants, domain.EventAddChatMessageSuccess,
		domain.AddChatMessageSuccess{
			RecipientID: req.RecipientID,
			Data:        msg,
		})

	p.logger.Info("message delivered",
		"chat_id", msg.ID,
		"conversation_id", req.RecipientID,
		"sender_id", req.UserID,
	)
	return msg, nil
}

func (p *Pipeline) uploadAttachments(ctx context.Context, req domain.AddChatMessage, msg *domain.Message) error {
	if req.Image != "" {
		url, err := p.uploader.Upload(ctx, upload.KindImage, req.Image)
		if err != nil {
			return err
		}
		msg.ImageURL = url
	}
	if req.Video != "" {
		url, err := p.uploader.Upload(ctx, upload.KindVideo, req.Video)
		if err != nil {
			return err
		}
		msg.VideoURL = url
	}
	if req.PDF != "" {
		url, err := p.uploader.Upload(ctx, upload.KindPDF, req.PDF)
		if err != nil {
			return err
		}
		msg.PDFURL = url
	}
	return nil
}

// VotePoll records a single vote per user per poll and fans the result out
// to the conversation members.
func (p *Pipeline) VotePoll(ctx context.Context, req domain.PollVote) error {
	if err := p.validate.Struct(req); err != nil {
		return domain.E(domain.KindInvalidRequest, "vote is missing required fields")
	}

	if err := p.store.AddPollVote(ctx, req.ChatID, req.PollIdx, req.UserID); err != nil {
		return err
	}

	payload := domain.PollVoteSuccess{
		ConversationID: req.ConversationID,
		UserID:         req.UserID,
		Username:       req.Username,
		ChatID:         req.ChatID,
		PollIdx:        req.PollIdx,
	}

	if len(req.JoinedUsers) > 0 {
		p.dispatcher.DeliverToUsers(req.JoinedUsers, domain.EventPollVoteSuccess, payload)
		return nil
	}
	return p.dispatcher.Deliver(ctx, req.ConversationID, domain.EventPollVoteSuccess, payload)
}

// React upserts the user's reaction on a message; the second reaction from
// the same user replaces the first.
func (p *Pipeline) React(ctx context.Context, req domain.ChatReaction) error {
	if err := p.validate.Struct(req); err != nil {
		return domain.E(domain.KindInvalidRequest, "reaction is missing required fields")
	}

	if err := p.store.UpsertReaction(ctx, req.ChatID, req.UserID, req.Emoji); err != nil {
		return err
	}

	p.dispatcher.DeliverToUsers(req.JoinedUsers, domain.EventChatReactionSuccess,
		domain.ChatReactionSuccess{
			ChatID:      req.ChatID,
			UserID:      req.UserID,
			Emoji:       req.Emoji,
			RecipientID: req.RecipientID,
		})
	return nil
}

// Delete removes a message for everyone and unlinks it from its
// conversation.
func (p *Pipeline) Delete(ctx context.Context, req domain.DeleteChatMessage) error {
	if err := p.validate.Struct(req); err != nil {
		return domain.E(domain.KindInvalidRequest, "delete request is missing required fields")
	}

	conv, err := p.store.ResolveConversation(ctx, req.ConversationID)
	if err != nil {
		return err
	}

	if err := p.store.DeleteMessage(ctx, conv, req.ChatID); err != nil {
		return err
	}

	payload := domain.ChatMessageDeleted{
		ChatID:         req.ChatID,
		ConversationID: req.ConversationID,
		UserID:         req.UserID,
	}

	if len(req.JoinedUsers) > 0 {
		p.dispatcher.DeliverToUsers(req.JoinedUsers, domain.EventChatMessageDeleted, payload)
		return nil
	}
	p.dispatcher.DeliverToUsers(conv.Participants, domain.EventChatMessageDeleted, payload)
	return nil
}

// MarkRead unions the reader into the readBy set of one or many messages.
func (p *Pipeline) MarkRead(ctx context.Context, req domain.MarkMessagesRead) error {
	if err := p.validate.Struct(req); err != nil {
		return domain.E(domain.KindInvalidRequest, "read receipt is missing required fields")
	}

	if err := p.store.MarkRead(ctx, req.ChatIDs, req.UserID); err != nil {
		return err
	}

	reader, err := p.store.FindUser(ctx, req.UserID)
	if err != nil {
		return err
	}

	payload := domain.MarkMessagesReadSuccess{
		ChatIDs:        req.ChatIDs,
		ConversationID: req.ConversationID,
		UserData:       *reader,
	}

	if len(req.JoinedUsers) > 0 {
		p.dispatcher.DeliverToUsers(req.JoinedUsers, domain.EventMarkMessagesReadOK, payload)
		return nil
	}
	return p.dispatcher.Deliver(ctx, req.ConversationID, domain.EventMarkMessagesReadOK, payload)
}

// ViewStatus records a status view and notifies the owner and the viewer.
func (p *Pipeline) ViewStatus(ctx context.Context, req domain.StatusViewed) error {
	if err := p.validate.Struct(req); err != nil {
		return domain.E(domain.KindInvalidRequest, "status view is missing required fields")
	}

	status, err := p.store.AddStatusViewer(ctx, req.StatusID, req.UserID)
	if err != nil {
		return err
	}

	p.dispatcher.DeliverToUsers([]string{status.OwnerID, req.UserID},
		domain.EventStatusViewUpdated,
		domain.StatusViewUpdated{
			StatusID: status.ID,
			Viewers:  status.Viewers,
		})
	return nil
}
