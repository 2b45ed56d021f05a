package resolvers

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/impromptu/api.impromptu.app/mongo"
	"github.com/impromptu/api.impromptu.app/validation"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func (*RootResolver) User(ctx context.Context, args struct{ ID string }) (*userResolver, error) {
	if err := requireSession(ctx); err != nil {
		return nil, err
	}

	user := &mongo.User{}
	result := mongo.Database.Collection(mongo.CollectionUsers).FindOne(mongo.Ctx, bson.M{
		"user_id": validation.NormalizeUserID(args.ID),
	})
	err := result.Err()
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err == nil {
		err = result.Decode(user)
	}
	if err != nil {
		log.Errorf("mongo, err=%v", err)
		return nil, errInternalServer
	}

	return &userResolver{user}, nil
}

func (*RootResolver) Room(ctx context.Context, args struct{ Code string }) (*roomResolver, error) {
	if err := requireSession(ctx); err != nil {
		return nil, err
	}

	room, err := fetchRoom(validation.NormalizeRoomCode(args.Code))
	if err != nil {
		return nil, err
	}
	if room == nil {
		return nil, nil
	}

	return &roomResolver{room}, nil
}

func (*RootResolver) RoomQuestions(ctx context.Context, args struct{ Code string }) ([]*questionResolver, error) {
	if err := requireSession(ctx); err != nil {
		return nil, err
	}

	code := validation.NormalizeRoomCode(args.Code)
	cur, err := mongo.Database.Collection(mongo.CollectionQuestions).Find(mongo.Ctx, bson.M{
		"room_code": code,
	}, options.Find().SetSort(bson.M{"created_at": -1}))
	if err != nil {
		log.Errorf("mongo, err=%v", err)
		return nil, errInternalServer
	}

	var questions []mongo.Question
	if err = cur.All(mongo.Ctx, &questions); err != nil {
		log.Errorf("mongo, err=%v", err)
		return nil, errInternalServer
	}

	resolvers := make([]*questionResolver, len(questions))
	for i := range questions {
		resolvers[i] = &questionResolver{q: &questions[i]}
	}
	return resolvers, nil
}

func (*RootResolver) RoomMembers(ctx context.Context, args struct{ Code string }) ([]*memberResolver, error) {
	if err := requireSession(ctx); err != nil {
		return nil, err
	}

	code := validation.NormalizeRoomCode(args.Code)
	cur, err := mongo.Database.Collection(mongo.CollectionMembers).Find(mongo.Ctx, bson.M{
		"room_code": code,
	}, options.Find().SetSort(bson.M{"joined_at": 1}))
	if err != nil {
		log.Errorf("mongo, err=%v", err)
		return nil, errInternalServer
	}

	var members []mongo.RoomMember
	if err = cur.All(mongo.Ctx, &members); err != nil {
		log.Errorf("mongo, err=%v", err)
		return nil, errInternalServer
	}

	resolvers := make([]*memberResolver, len(members))
	for i := range members {
		resolvers[i] = &memberResolver{&members[i]}
	}
	return resolvers, nil
}

func (*RootResolver) Question(ctx context.Context, args struct{ ID string }) (*questionResolver, error) {
	if err := requireSession(ctx); err != nil {
		return nil, err
	}

	id, err := primitive.ObjectIDFromHex(args.ID)
	if err != nil {
		return nil, nil
	}

	question, err := fetchQuestion(id)
	if err != nil {
		return nil, err
	}
	if question == nil {
		return nil, nil
	}

	return &questionResolver{q: question}, nil
}

func (*RootResolver) Answers(ctx context.Context, args struct{ QuestionID string }) ([]*answerResolver, error) {
	if err := requireSession(ctx); err != nil {
		return nil, err
	}

	id, err := primitive.ObjectIDFromHex(args.QuestionID)
	if err != nil {
		return nil, errUnknownQuestion
	}

	answers, err := loadAnswers(id)
	if err != nil {
		return nil, err
	}

	resolvers := make([]*answerResolver, len(answers))
	for i := range answers {
		resolvers[i] = &answerResolver{&answers[i]}
	}
	return resolvers, nil
}

type userResolver struct {
	user *mongo.User
}

func (r *userResolver) UserID() string {
	return r.user.UserID
}

func (r *userResolver) CreatedAt() string {
	return r.user.CreatedAt.Format(time.RFC3339)
}

type roomResolver struct {
	room *mongo.Room
}

func (r *roomResolver) RoomCode() string {
	return r.room.RoomCode
}

func (r *roomResolver) Creator() string {
	return r.room.Creator
}

func (r *roomResolver) MemberCount() int32 {
	return r.room.MemberCount
}

func (r *roomResolver) CreatedAt() string {
	return r.room.CreatedAt.Format(time.RFC3339)
}

func (r *roomResolver) ExpiresAt() string {
	return r.room.ExpiresAt.Format(time.RFC3339)
}

// memberResolver deliberately never exposes the user id behind an alias.
type memberResolver struct {
	member *mongo.RoomMember
}

func (r *memberResolver) RoomCode() string {
	return r.member.RoomCode
}

func (r *memberResolver) Alias() string {
	return r.member.Alias
}

func (r *memberResolver) JoinedAt() string {
	return r.member.JoinedAt.Format(time.RFC3339)
}

type questionResolver struct {
	q *mongo.Question

	// answers is only populated for free text questions, and only once
	// someone asks for it.
	answers       []mongo.Answer
	answersLoaded bool
	answerCount   int32
	countLoaded   bool
}

func (r *questionResolver) ID() string {
	return r.q.ID.Hex()
}

func (r *questionResolver) RoomCode() string {
	return r.q.RoomCode
}

func (r *questionResolver) CreatorAlias() string {
	return r.q.CreatorAlias
}

func (r *questionResolver) Text() string {
	return r.q.Text
}

func (r *questionResolver) Type() string {
	return string(r.q.Type)
}

func (r *questionResolver) Options() (*[]mongo.PollOption, error) {
	if r.q.Type != mongo.QuestionPoll {
		return nil, nil
	}
	if r.q.Options == nil {
		options, total, err := questionTallies(r.q)
		if err != nil {
			return nil, err
		}
		r.q.Options = &options
		r.answerCount = total
		r.countLoaded = true
	}
	return r.q.Options, nil
}

func (r *questionResolver) Answers() (*[]*answerResolver, error) {
	if r.q.Type == mongo.QuestionPoll {
		return nil, nil
	}
	if !r.answersLoaded {
		answers, err := loadAnswers(r.q.ID)
		if err != nil {
			return nil, err
		}
		r.answers = answers
		r.answersLoaded = true
	}
	resolvers := make([]*answerResolver, len(r.answers))
	for i := range r.answers {
		resolvers[i] = &answerResolver{&r.answers[i]}
	}
	return &resolvers, nil
}

func (r *questionResolver) AnswerCount() (int32, error) {
	if r.countLoaded {
		return r.answerCount, nil
	}
	_, total, err := questionTallies(r.q)
	if err != nil {
		return 0, err
	}
	r.answerCount = total
	r.countLoaded = true
	return total, nil
}

func (r *questionResolver) CreatedAt() string {
	return r.q.CreatedAt.Format(time.RFC3339)
}

type answerResolver struct {
	answer *mongo.Answer
}

func (r *answerResolver) ID() string {
	return r.answer.ID.Hex()
}

func (r *answerResolver) QuestionID() string {
	return r.answer.QuestionID.Hex()
}

func (r *answerResolver) Alias() string {
	return r.answer.Alias
}

func (r *answerResolver) Text() string {
	return r.answer.Text
}

func (r *answerResolver) CreatedAt() string {
	return r.answer.CreatedAt.Format(time.RFC3339)
}
