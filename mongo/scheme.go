package mongo

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type QuestionType string

const (
	QuestionPoll        QuestionType = "poll"
	QuestionOneWord     QuestionType = "one_word"
	QuestionDescriptive QuestionType = "descriptive"
)

type User struct {
	ID        primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	UserID    string             `json:"user_id" bson:"user_id"`
	Password  string             `json:"-" bson:"password"`
	CreatedAt time.Time          `json:"created_at" bson:"created_at"`
}

type Room struct {
	ID          primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	RoomCode    string             `json:"room_code" bson:"room_code"`
	Creator     string             `json:"creator" bson:"creator"`
	MemberCount int32              `json:"member_count" bson:"member_count"`
	CreatedAt   time.Time          `json:"created_at" bson:"created_at"`
	ExpiresAt   time.Time          `json:"expires_at" bson:"expires_at"`
}

// Expired reports whether the room is past its deadline. The TTL reaper
// lags by up to a minute, so reads check explicitly.
func (r *Room) Expired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

type RoomMember struct {
	ID       primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	RoomCode string             `json:"room_code" bson:"room_code"`
	UserID   string             `json:"user_id" bson:"user_id"`
	Alias    string             `json:"alias" bson:"alias"`
	JoinedAt time.Time          `json:"joined_at" bson:"joined_at"`
}

type Question struct {
	ID           primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	RoomCode     string             `json:"room_code" bson:"room_code"`
	CreatorAlias string             `json:"creator_alias" bson:"creator_alias"`
	Text         string             `json:"text" bson:"text"`
	Type         QuestionType       `json:"type" bson:"type"`
	OptionsRaw   []string           `json:"options" bson:"options,omitempty"`
	CreatedAt    time.Time          `json:"created_at" bson:"created_at"`

	Options *[]PollOption `json:"-" bson:"-"`
}

type PollOption struct {
	Title   string `json:"title"`
	Votes   int32  `json:"votes"`
	Percent int32  `json:"percent"`
}

type Answer struct {
	ID         primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	QuestionID primitive.ObjectID `json:"question_id" bson:"question_id"`
	Alias      string             `json:"alias" bson:"alias"`
	Text       string             `json:"text" bson:"text"`
	CreatedAt  time.Time          `json:"created_at" bson:"created_at"`
}
