package mongo

import (
	"context"
	"errors"

	"github.com/impromptu/api.impromptu.app/configure"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	log "github.com/sirupsen/logrus"
)

var Database *mongo.Database
var Ctx = context.TODO()

var ErrNoDocuments = mongo.ErrNoDocuments

const (
	CollectionUsers     = "users"
	CollectionRooms     = "rooms"
	CollectionMembers   = "room_members"
	CollectionQuestions = "questions"
	CollectionAnswers   = "answers"
)

func init() {
	clientOptions := options.Client().ApplyURI(configure.Config.GetString("mongo_uri"))
	client, err := mongo.Connect(Ctx, clientOptions)
	if err != nil {
		panic(err)
	}

	err = client.Ping(Ctx, nil)
	if err != nil {
		panic(err)
	}

	Database = client.Database(configure.Config.GetString("mongo_db"))

	unique := options.Index().SetUnique(true)

	_, err = Database.Collection(CollectionUsers).Indexes().CreateMany(Ctx, []mongo.IndexModel{
		{Keys: bson.M{"user_id": 1}, Options: unique},
	})
	if err != nil {
		log.Errorf("mongodb, err=%v", err)
	}

	// Expired rooms are reaped by mongo itself.
	_, err = Database.Collection(CollectionRooms).Indexes().CreateMany(Ctx, []mongo.IndexModel{
		{Keys: bson.M{"room_code": 1}, Options: unique},
		{Keys: bson.M{"expires_at": 1}, Options: options.Index().SetExpireAfterSeconds(0)},
	})
	if err != nil {
		log.Errorf("mongodb, err=%v", err)
	}

	_, err = Database.Collection(CollectionMembers).Indexes().CreateMany(Ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "room_code", Value: 1}, {Key: "user_id", Value: 1}}, Options: unique},
		{Keys: bson.M{"room_code": 1}},
	})
	if err != nil {
		log.Errorf("mongodb, err=%v", err)
	}

	_, err = Database.Collection(CollectionQuestions).Indexes().CreateMany(Ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "room_code", Value: 1}, {Key: "created_at", Value: -1}}},
	})
	if err != nil {
		log.Errorf("mongodb, err=%v", err)
	}

	_, err = Database.Collection(CollectionAnswers).Indexes().CreateMany(Ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "question_id", Value: 1}, {Key: "alias", Value: 1}}, Options: unique},
		{Keys: bson.M{"question_id": 1}},
	})
	if err != nil {
		log.Errorf("mongodb, err=%v", err)
	}
}

// IsDup reports whether err is a duplicate key write error.
func IsDup(err error) bool {
	var we mongo.WriteException
	if errors.As(err, &we) {
		for _, e := range we.WriteErrors {
			if e.Code == 11000 || e.Code == 11001 {
				return true
			}
		}
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) {
		return ce.Code == 11000 || ce.Code == 11001
	}
	return false
}
