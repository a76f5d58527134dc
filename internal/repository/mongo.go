package repository

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/euOvictin/messaging-service/internal/domain"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrInvalidID = errors.New("invalid message id")
)

// messageDoc is the ledger document. Field names are the storage contract
// shared with the rest of the platform; do not rename.
type messageDoc struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	SenderID    string             `bson:"senderId"`
	ReceiverID  string             `bson:"receiverId"`
	Content     string             `bson:"content"`
	MediaURL    string             `bson:"mediaUrl,omitempty"`
	IsRead      bool               `bson:"isRead"`
	DeliveredAt *time.Time         `bson:"deliveredAt"`
	ReadAt      *time.Time         `bson:"readAt"`
	CreatedAt   time.Time          `bson:"createdAt"`
}

func (d *messageDoc) toDomain() domain.Message {
	return domain.Message{
		ID:          d.ID.Hex(),
		SenderID:    d.SenderID,
		ReceiverID:  d.ReceiverID,
		Content:     d.Content,
		MediaURL:    d.MediaURL,
		IsRead:      d.IsRead,
		DeliveredAt: d.DeliveredAt,
		ReadAt:      d.ReadAt,
		CreatedAt:   d.CreatedAt,
	}
}

// MessageRepository is the durable message ledger backed by the `messages`
// collection.
type MessageRepository struct {
	coll *mongo.Collection
}

func NewMongoClient(ctx context.Context, uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, err
	}
	return client, nil
}

func NewMessageRepository(db *mongo.Database) *MessageRepository {
	coll := db.Collection("messages")
	ixs := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "senderId", Value: 1}, {Key: "receiverId", Value: 1}, {Key: "createdAt", Value: -1}},
			Options: options.Index().SetName("conversation_index"),
		},
		{
			Keys:    bson.D{{Key: "receiverId", Value: 1}, {Key: "isRead", Value: 1}, {Key: "createdAt", Value: -1}},
			Options: options.Index().SetName("unread_messages_index"),
		},
	}
	_, _ = coll.Indexes().CreateMany(context.Background(), ixs)
	return &MessageRepository{coll: coll}
}

// Insert persists a new message and fills in its assigned id.
func (r *MessageRepository) Insert(ctx context.Context, m *domain.Message) error {
	doc := messageDoc{
		ID:          primitive.NewObjectID(),
		SenderID:    m.SenderID,
		ReceiverID:  m.ReceiverID,
		Content:     m.Content,
		MediaURL:    m.MediaURL,
		IsRead:      false,
		DeliveredAt: nil,
		ReadAt:      nil,
		CreatedAt:   m.CreatedAt,
	}
	if _, err := r.coll.InsertOne(ctx, &doc); err != nil {
		return err
	}
	m.ID = doc.ID.Hex()
	return nil
}

func (r *MessageRepository) FindByID(ctx context.Context, id string) (*domain.Message, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrInvalidID
	}
	var doc messageDoc
	if err := r.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	m := doc.toDomain()
	return &m, nil
}

// MarkDelivered sets deliveredAt once. The deliveredAt == null filter keeps
// the timestamp immutable if two deliveries ever race.
func (r *MessageRepository) MarkDelivered(ctx context.Context, id string, at time.Time) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrInvalidID
	}
	_, err = r.coll.UpdateOne(ctx,
		bson.M{"_id": oid, "deliveredAt": nil},
		bson.M{"$set": bson.M{"deliveredAt": at}},
	)
	return err
}

// MarkRead sets isRead and readAt in a single conditional update. Returns
// false without error when the message was already read, so concurrent
// mark-read calls collapse to exactly one mutation.
func (r *MessageRepository) MarkRead(ctx context.Context, id string, at time.Time) (bool, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return false, ErrInvalidID
	}
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": oid, "isRead": false},
		bson.M{"$set": bson.M{"isRead": true, "readAt": at}},
	)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount > 0, nil
}

func pairFilter(userID, otherUserID string) bson.M {
	return bson.M{"$or": bson.A{
		bson.M{"senderId": userID, "receiverId": otherUserID},
		bson.M{"senderId": otherUserID, "receiverId": userID},
	}}
}

// History returns one newest-first page of the conversation between two users
// plus the total count of messages between them.
func (r *MessageRepository) History(ctx context.Context, userID, otherUserID string, skip, limit int64) ([]domain.Message, int64, error) {
	filter := pairFilter(userID, otherUserID)

	total, err := r.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetSkip(skip).
		SetLimit(limit)
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cur.Close(ctx)

	out := []domain.Message{}
	for cur.Next(ctx) {
		var doc messageDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, 0, err
		}
		out = append(out, doc.toDomain())
	}
	if err := cur.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// Conversations groups every message involving userID by counterpart,
// carrying out the most recent message and the unread count addressed to
// userID per group, newest conversation first.
func (r *MessageRepository) Conversations(ctx context.Context, userID string) ([]domain.Conversation, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"$or": bson.A{
			bson.M{"senderId": userID},
			bson.M{"receiverId": userID},
		}}}},
		{{Key: "$sort", Value: bson.D{{Key: "createdAt", Value: -1}}}},
		{{Key: "$group", Value: bson.M{
			"_id": bson.M{"$cond": bson.A{
				bson.M{"$eq": bson.A{"$senderId", userID}},
				"$receiverId",
				"$senderId",
			}},
			"lastMessage": bson.M{"$first": "$$ROOT"},
			"unreadCount": bson.M{"$sum": bson.M{"$cond": bson.A{
				bson.M{"$and": bson.A{
					bson.M{"$eq": bson.A{"$receiverId", userID}},
					bson.M{"$eq": bson.A{"$isRead", false}},
				}},
				1,
				0,
			}}},
		}}},
		{{Key: "$project", Value: bson.M{
			"otherUserId": "$_id",
			"lastMessage": 1,
			"unreadCount": 1,
			"_id":         0,
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "lastMessage.createdAt", Value: -1}}}},
	}

	cur, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	type convRow struct {
		OtherUserID string     `bson:"otherUserId"`
		LastMessage messageDoc `bson:"lastMessage"`
		UnreadCount int64      `bson:"unreadCount"`
	}

	out := []domain.Conversation{}
	for cur.Next(ctx) {
		var row convRow
		if err := cur.Decode(&row); err != nil {
			return nil, err
		}
		out = append(out, domain.Conversation{
			OtherUserID: row.OtherUserID,
			LastMessage: row.LastMessage.toDomain(),
			UnreadCount: row.UnreadCount,
		})
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Ping reports ledger reachability for the readiness probe.
func (r *MessageRepository) Ping(ctx context.Context) error {
	return r.coll.Database().Client().Ping(ctx, nil)
}
