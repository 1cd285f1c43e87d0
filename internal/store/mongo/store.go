package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/tidechat/realtime/internal/domain"
)

type userDoc struct {
	ID       primitive.ObjectID `bson:"_id"`
	Username string             `bson:"username"`
	Avatar   string             `bson:"avatar,omitempty"`
}

type connectionDoc struct {
	ID           primitive.ObjectID   `bson:"_id"`
	Participants []primitive.ObjectID `bson:"participants"`
	Messages     []primitive.ObjectID `bson:"messages"`
}

type groupMember struct {
	UserID primitive.ObjectID `bson:"userId"`
	Role   string             `bson:"role"`
}

type groupDoc struct {
	ID       primitive.ObjectID   `bson:"_id"`
	Name     string               `bson:"name"`
	Members  []groupMember        `bson:"members"`
	Messages []primitive.ObjectID `bson:"messages"`
}

type messageDoc struct {
	ID             primitive.ObjectID `bson:"_id,omitempty"`
	domain.Message `bson:",inline"`
}

type statusDoc struct {
	ID      primitive.ObjectID `bson:"_id"`
	OwnerID primitive.ObjectID `bson:"ownerId"`
	Viewers []string           `bson:"viewers"`
}

func parseID(id string, kind domain.ErrorKind, what string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, domain.E(kind, what+" id is not valid")
	}
	return oid, nil
}

// FindUser looks up a user's denormalized profile fields.
func (s *Store) FindUser(ctx context.Context, userID string) (*domain.UserRef, error) {
	oid, err := parseID(userID, domain.KindUnknownSender, "user")
	if err != nil {
		return nil, err
	}

	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	var doc userDoc
	err = s.db.Collection(collUsers).FindOne(ctx, bson.M{"_id": oid}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.E(domain.KindUnknownSender, "sender does not exist")
	}
	if err != nil {
		return nil, domain.WrapErr(err, domain.KindUpstream, "user lookup failed")
	}

	return &domain.UserRef{
		ID:       doc.ID.Hex(),
		Username: doc.Username,
		Avatar:   doc.Avatar,
	}, nil
}

// ResolveConversation determines whether the id names a group or a 1:1
// connection and returns the participant list.
func (s *Store) ResolveConversation(ctx context.Context, conversationID string) (*domain.Conversation, error) {
	oid, err := parseID(conversationID, domain.KindConversationNotFound, "conversation")
	if err != nil {
		return nil, err
	}

	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	var group groupDoc
	err = s.db.Collection(collGroups).FindOne(ctx, bson.M{"_id": oid}).Decode(&group)
	if err == nil {
		participants := make([]string, 0, len(group.Members))
		for _, m := range group.Members {
			participants = append(participants, m.UserID.Hex())
		}
		return &domain.Conversation{
			ID:           conversationID,
			Kind:         domain.ConversationGroup,
			Participants: participants,
		}, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.WrapErr(err, domain.KindUpstream, "group lookup failed")
	}

	var conn connectionDoc
	err = s.db.Collection(collConnections).FindOne(ctx, bson.M{"_id": oid}).Decode(&conn)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.E(domain.KindConversationNotFound, "conversation does not exist")
	}
	if err != nil {
		return nil, domain.WrapErr(err, domain.KindUpstream, "connection lookup failed")
	}

	participants := make([]string, 0, len(conn.Participants))
	for _, p := range conn.Participants {
		participants = append(participants, p.Hex())
	}
	return &domain.Conversation{
		ID:           conversationID,
		Kind:         domain.ConversationConnection,
		Participants: participants,
	}, nil
}

// SaveMessage inserts the message and appends its id to the owning
// conversation's message list.
func (s *Store) SaveMessage(ctx context.Context, conv *domain.Conversation, msg *domain.Message) error {
	convOID, err := parseID(conv.ID, domain.KindConversationNotFound, "conversation")
	if err != nil {
		return err
	}

	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	res, err := s.db.Collection(collMessages).InsertOne(ctx, messageDoc{Message: *msg})
	if err != nil {
		return domain.WrapErr(err, domain.KindUpstream, "failed to persist message")
	}

	msgOID := res.InsertedID.(primitive.ObjectID)
	msg.ID = msgOID.Hex()

	coll := collConnections
	if conv.Kind == domain.ConversationGroup {
		coll = collGroups
	}

	upd, err := s.db.Collection(coll).UpdateOne(ctx,
		bson.M{"_id": convOID},
		bson.M{"$push": bson.M{"messages": msgOID}},
	)
	if err != nil {
		return domain.WrapErr(err, domain.KindUpstream, "failed to append message to conversation")
	}
	if upd.MatchedCount == 0 {
		return domain.E(domain.KindConversationNotFound, "conversation does not exist")
	}
	return nil
}

// AddPollVote records one vote. The filter rejects the update when the voter
// already appears in any option's vote set, so concurrent duplicate votes
// resolve to exactly one winner at the store.
func (s *Store) AddPollVote(ctx context.Context, chatID string, pollIdx int, userID string) error {
	oid, err := parseID(chatID, domain.KindPollNotFound, "message")
	if err != nil {
		return err
	}

	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	filter := bson.M{
		"_id": oid,
		fmt.Sprintf("poll.%d", pollIdx): bson.M{"$exists": true},
		"poll.votes":                    bson.M{"$ne": userID},
	}
	update := bson.M{
		"$addToSet": bson.M{fmt.Sprintf("poll.%d.votes", pollIdx): userID},
	}

	res, err := s.db.Collection(collMessages).UpdateOne(ctx, filter, update)
	if err != nil {
		return domain.WrapErr(err, domain.KindUpstream, "failed to record vote")
	}
	if res.MatchedCount > 0 {
		return nil
	}

	// The guarded update missed; find out why.
	var doc messageDoc
	err = s.db.Collection(collMessages).FindOne(ctx, bson.M{"_id": oid}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.E(domain.KindPollNotFound, "poll message does not exist")
	}
	if err != nil {
		return domain.WrapErr(err, domain.KindUpstream, "failed to inspect poll")
	}
	if len(doc.Poll) == 0 {
		return domain.E(domain.KindPollNotFound, "message has no poll")
	}
	if pollIdx < 0 || pollIdx >= len(doc.Poll) {
		return domain.E(domain.KindInvalidOption, "poll option does not exist")
	}
	return domain.E(domain.KindAlreadyVoted, "you have already voted on this poll")
}

// UpsertReaction overwrites the user's existing reaction or appends a new
// one; last write wins per user. Both steps are guarded on reactions.userId
// so two concurrent first reactions from the same user cannot both append.
func (s *Store) UpsertReaction(ctx context.Context, chatID, userID, emoji string) error {
	oid, err := parseID(chatID, domain.KindNotFound, "message")
	if err != nil {
		return err
	}

	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	coll := s.db.Collection(collMessages)

	for range 3 {
		res, err := coll.UpdateOne(ctx,
			bson.M{"_id": oid, "reactions.userId": userID},
			bson.M{"$set": bson.M{"reactions.$.emoji": emoji}},
		)
		if err != nil {
			return domain.WrapErr(err, domain.KindUpstream, "failed to update reaction")
		}
		if res.MatchedCount > 0 {
			return nil
		}

		res, err = coll.UpdateOne(ctx,
			bson.M{"_id": oid, "reactions.userId": bson.M{"$ne": userID}},
			bson.M{"$push": bson.M{"reactions": domain.Reaction{UserID: userID, Emoji: emoji}}},
		)
		if err != nil {
			return domain.WrapErr(err, domain.KindUpstream, "failed to add reaction")
		}
		if res.MatchedCount > 0 {
			return nil
		}

		// The guarded push missed: either the message is gone or the user's
		// entry appeared between the two updates. Retry the $set on an
		// existing message.
		n, err := coll.CountDocuments(ctx, bson.M{"_id": oid})
		if err != nil {
			return domain.WrapErr(err, domain.KindUpstream, "failed to inspect message")
		}
		if n == 0 {
			return domain.E(domain.KindNotFound, "message does not exist")
		}
	}
	return domain.E(domain.KindUpstream, "reaction update did not settle")
}

// DeleteMessage removes the message document and its reference from the
// conversation (delete-for-everyone).
func (s *Store) DeleteMessage(ctx context.Context, conv *domain.Conversation, chatID string) error {
	msgOID, err := parseID(chatID, domain.KindNotFound, "message")
	if err != nil {
		return err
	}
	convOID, err := parseID(conv.ID, domain.KindConversationNotFound, "conversation")
	if err != nil {
		return err
	}

	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	coll := collConnections
	if conv.Kind == domain.ConversationGroup {
		coll = collGroups
	}

	if _, err := s.db.Collection(coll).UpdateOne(ctx,
		bson.M{"_id": convOID},
		bson.M{"$pull": bson.M{"messages": msgOID}},
	); err != nil {
		return domain.WrapErr(err, domain.KindUpstream, "failed to unlink message")
	}

	res, err := s.db.Collection(collMessages).DeleteOne(ctx, bson.M{"_id": msgOID})
	if err != nil {
		return domain.WrapErr(err, domain.KindUpstream, "failed to delete message")
	}
	if res.DeletedCount == 0 {
		return domain.E(domain.KindNotFound, "message does not exist")
	}
	return nil
}

// MarkRead adds the reader to the readBy set of each listed message.
// Re-reading is idempotent.
func (s *Store) MarkRead(ctx context.Context, chatIDs []string, userID string) error {
	oids := make([]primitive.ObjectID, 0, len(chatIDs))
	for _, id := range chatIDs {
		oid, err := parseID(id, domain.KindNotFound, "message")
		if err != nil {
			return err
		}
		oids = append(oids, oid)
	}

	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	_, err := s.db.Collection(collMessages).UpdateMany(ctx,
		bson.M{"_id": bson.M{"$in": oids}},
		bson.M{"$addToSet": bson.M{"readBy": userID}},
	)
	if err != nil {
		return domain.WrapErr(err, domain.KindUpstream, "failed to mark messages read")
	}
	return nil
}

// AddStatusViewer records a viewer on a status (set union) and returns the
// updated document.
func (s *Store) AddStatusViewer(ctx context.Context, statusID, userID string) (*domain.Status, error) {
	oid, err := parseID(statusID, domain.KindNotFound, "status")
	if err != nil {
		return nil, err
	}

	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	after := options.After
	var doc statusDoc
	err = s.db.Collection(collStatuses).FindOneAndUpdate(ctx,
		bson.M{"_id": oid},
		bson.M{"$addToSet": bson.M{"viewers": userID}},
		&options.FindOneAndUpdateOptions{ReturnDocument: &after},
	).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.E(domain.KindNotFound, "status does not exist")
	}
	if err != nil {
		return nil, domain.WrapErr(err, domain.KindUpstream, "failed to record status view")
	}

	return &domain.Status{
		ID:      doc.ID.Hex(),
		OwnerID: doc.OwnerID.Hex(),
		Viewers: doc.Viewers,
	}, nil
}
