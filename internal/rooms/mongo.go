package rooms

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoDirectory struct {
	coll *mongo.Collection
}

func NewMongoDirectory(coll *mongo.Collection) *MongoDirectory {
	idx := mongo.IndexModel{
		Keys:    bson.D{{Key: "room_id", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("room_id_idx"),
	}
	_, _ = coll.Indexes().CreateOne(context.Background(), idx)
	return &MongoDirectory{coll: coll}
}

func (d *MongoDirectory) Create(ctx context.Context, roomID, name, hostID string) (*Room, error) {
	now := time.Now().UTC()
	r := &Room{
		RoomID:    roomID,
		Name:      name,
		HostID:    hostID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := d.coll.InsertOne(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

func (d *MongoDirectory) Get(ctx context.Context, roomID string) (*Room, error) {
	var r Room
	err := d.coll.FindOne(ctx, bson.M{"room_id": roomID}).Decode(&r)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}
