package resolvers

import (
	"context"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/impromptu/api.impromptu.app/auth"
	"github.com/impromptu/api.impromptu.app/mongo"
	"github.com/impromptu/api.impromptu.app/monitoring"
	"github.com/impromptu/api.impromptu.app/redis"
	"github.com/impromptu/api.impromptu.app/utils"
	"github.com/impromptu/api.impromptu.app/validation"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// createRoom retries a handful of times before giving up on a free code.
const maxCodeAttempts = 5

func count(operation, state string) string {
	monitoring.Mutations.WithLabelValues(operation, state).Inc()
	return state
}

type sessionResult struct {
	State string
	Token *string
}

func (*RootResolver) CreateSession(ctx context.Context, args struct{ Token *string }) (sessionResult, error) {
	var token string
	if args.Token != nil {
		token = *args.Token
	}

	token, err := auth.Resolve(token)
	if err != nil {
		return sessionResult{}, errInternalServer
	}

	return sessionResult{count("create_session", "SUCCESS"), &token}, nil
}

type accountResult struct {
	State string
	User  *userResolver
}

func (*RootResolver) Signup(ctx context.Context, args struct {
	UserID   string
	Password string
}) (accountResult, error) {
	if err := requireSession(ctx); err != nil {
		return accountResult{}, err
	}

	creds := validation.Credentials{
		UserID:   validation.NormalizeUserID(args.UserID),
		Password: args.Password,
	}
	if err := validation.Struct(creds); err != nil {
		return accountResult{count("signup", "INVALID_INPUT"), nil}, nil
	}

	user := &mongo.User{
		UserID:    creds.UserID,
		Password:  creds.Password,
		CreatedAt: time.Now(),
	}

	// The unique index on user_id settles concurrent signups, no
	// check-then-write race.
	res, err := mongo.Database.Collection(mongo.CollectionUsers).InsertOne(mongo.Ctx, user)
	if err != nil {
		if mongo.IsDup(err) {
			return accountResult{count("signup", "USER_TAKEN"), nil}, nil
		}
		log.Errorf("mongo, err=%v", err)
		return accountResult{}, errInternalServer
	}
	user.ID = res.InsertedID.(primitive.ObjectID)

	return accountResult{count("signup", "SUCCESS"), &userResolver{user}}, nil
}

func (*RootResolver) Login(ctx context.Context, args struct {
	UserID   string
	Password string
}) (accountResult, error) {
	if err := requireSession(ctx); err != nil {
		return accountResult{}, err
	}

	creds := validation.Credentials{
		UserID:   validation.NormalizeUserID(args.UserID),
		Password: args.Password,
	}
	if err := validation.Struct(creds); err != nil {
		return accountResult{count("login", "INVALID_INPUT"), nil}, nil
	}

	user := &mongo.User{}
	result := mongo.Database.Collection(mongo.CollectionUsers).FindOne(mongo.Ctx, bson.M{
		"user_id": creds.UserID,
	})
	err := result.Err()
	if err == mongo.ErrNoDocuments {
		// Unknown id and wrong password are indistinguishable on purpose.
		return accountResult{count("login", "INVALID_CREDENTIALS"), nil}, nil
	}
	if err == nil {
		err = result.Decode(user)
	}
	if err != nil {
		log.Errorf("mongo, err=%v", err)
		return accountResult{}, errInternalServer
	}

	if user.Password != creds.Password {
		return accountResult{count("login", "INVALID_CREDENTIALS"), nil}, nil
	}

	return accountResult{count("login", "SUCCESS"), &userResolver{user}}, nil
}

type roomResult struct {
	State string
	Room  *roomResolver
}

func (*RootResolver) CreateRoom(ctx context.Context, args struct{ UserID string }) (roomResult, error) {
	if err := requireSession(ctx); err != nil {
		return roomResult{}, err
	}

	userID := validation.NormalizeUserID(args.UserID)
	result := mongo.Database.Collection(mongo.CollectionUsers).FindOne(mongo.Ctx, bson.M{
		"user_id": userID,
	})
	if err := result.Err(); err != nil {
		if err == mongo.ErrNoDocuments {
			return roomResult{count("create_room", "INVALID_USER"), nil}, nil
		}
		log.Errorf("mongo, err=%v", err)
		return roomResult{}, errInternalServer
	}

	now := time.Now()
	room := &mongo.Room{
		Creator:   userID,
		CreatedAt: now,
		ExpiresAt: now.Add(roomLifetime),
	}

	for attempt := 0; ; attempt++ {
		code, err := utils.GenerateRoomCode()
		if err != nil {
			log.Errorf("random, err=%v", err)
			return roomResult{}, errInternalServer
		}
		room.RoomCode = code

		res, err := mongo.Database.Collection(mongo.CollectionRooms).InsertOne(mongo.Ctx, room)
		if err == nil {
			room.ID = res.InsertedID.(primitive.ObjectID)
			break
		}
		if mongo.IsDup(err) && attempt < maxCodeAttempts {
			continue
		}
		log.Errorf("mongo, err=%v", err)
		return roomResult{}, errInternalServer
	}

	roomStr, err := json.MarshalToString(room)
	if err == nil {
		if err = redis.Client.Set(redis.Ctx, redis.Key("cached:rooms:%s", room.RoomCode), roomStr, roomLifetime).Err(); err != nil {
			log.Errorf("redis, err=%v", err)
		}
	} else {
		log.Errorf("json, err=%v", err)
	}

	return roomResult{count("create_room", "SUCCESS"), &roomResolver{room}}, nil
}

type joinResult struct {
	State  string
	Room   *roomResolver
	Member *memberResolver
}

func (*RootResolver) JoinRoom(ctx context.Context, args struct {
	Code   string
	UserID string
}) (joinResult, error) {
	if err := requireSession(ctx); err != nil {
		return joinResult{}, err
	}

	code := validation.NormalizeRoomCode(args.Code)
	userID := validation.NormalizeUserID(args.UserID)

	room, err := fetchRoom(code)
	if err != nil {
		return joinResult{}, err
	}
	if room == nil {
		return joinResult{count("join_room", "ROOM_NOT_FOUND"), nil, nil}, nil
	}

	member, err := ensureMember(room, userID)
	if err != nil {
		return joinResult{}, err
	}

	return joinResult{count("join_room", "SUCCESS"), &roomResolver{room}, &memberResolver{member}}, nil
}

// ensureMember returns the existing membership for (room, user) or creates
// one with a fresh alias. The alias is assigned exactly once, a concurrent
// first join loses the insert and reads the winner back.
func ensureMember(room *mongo.Room, userID string) (*mongo.RoomMember, error) {
	members := mongo.Database.Collection(mongo.CollectionMembers)
	filter := bson.M{
		"room_code": room.RoomCode,
		"user_id":   userID,
	}

	member := &mongo.RoomMember{}
	result := members.FindOne(mongo.Ctx, filter)
	err := result.Err()
	if err == nil {
		if err = result.Decode(member); err != nil {
			log.Errorf("mongo, err=%v", err)
			return nil, errInternalServer
		}
		return member, nil
	}
	if err != mongo.ErrNoDocuments {
		log.Errorf("mongo, err=%v", err)
		return nil, errInternalServer
	}

	alias, err := utils.GenerateAlias()
	if err != nil {
		log.Errorf("random, err=%v", err)
		return nil, errInternalServer
	}

	member = &mongo.RoomMember{
		RoomCode: room.RoomCode,
		UserID:   userID,
		Alias:    alias,
		JoinedAt: time.Now(),
	}

	res, err := members.InsertOne(mongo.Ctx, member)
	if err != nil {
		if mongo.IsDup(err) {
			// Lost the race to another tab of the same user.
			result = members.FindOne(mongo.Ctx, filter)
			if err = result.Err(); err == nil {
				err = result.Decode(member)
			}
			if err != nil {
				log.Errorf("mongo, err=%v", err)
				return nil, errInternalServer
			}
			return member, nil
		}
		log.Errorf("mongo, err=%v", err)
		return nil, errInternalServer
	}
	member.ID = res.InsertedID.(primitive.ObjectID)

	_, err = mongo.Database.Collection(mongo.CollectionRooms).UpdateOne(mongo.Ctx, bson.M{
		"room_code": room.RoomCode,
	}, bson.M{
		"$inc": bson.M{"member_count": 1},
	})
	if err != nil {
		log.Errorf("mongo, err=%v", err)
	}

	pipe := redis.Client.Pipeline()
	// Cached room carries a stale member count now.
	pipe.Del(redis.Ctx, redis.Key("cached:rooms:%s", room.RoomCode))
	memberStr, err := json.MarshalToString(member)
	if err != nil {
		log.Errorf("json, err=%v", err)
	} else {
		pipe.Publish(redis.Ctx, chanRoomMembers(room.RoomCode), memberStr)
	}
	if _, err = pipe.Exec(redis.Ctx); err != nil {
		log.Errorf("join-pipe, err=%v", err)
	}

	return member, nil
}

type questionResult struct {
	State    string
	Question *questionResolver
}

func (*RootResolver) AskQuestion(ctx context.Context, args struct {
	Question struct {
		RoomCode string
		Alias    string
		Text     string
		Type     string
		Options  *[]string
	}
}) (questionResult, error) {
	if err := requireSession(ctx); err != nil {
		return questionResult{}, err
	}

	input := validation.QuestionInput{
		RoomCode: validation.NormalizeRoomCode(args.Question.RoomCode),
		Alias:    args.Question.Alias,
		Text:     args.Question.Text,
		Type:     args.Question.Type,
	}
	if args.Question.Options != nil {
		input.Options = *args.Question.Options
	}
	if err := validation.Struct(input); err != nil {
		return questionResult{count("ask_question", "INVALID_INPUT"), nil}, nil
	}

	qType := mongo.QuestionType(input.Type)

	var cleaned []string
	if qType == mongo.QuestionPoll {
		cleaned = validation.CleanOptions(input.Options)
		if !validation.CheckPollOptions(cleaned) {
			return questionResult{count("ask_question", "INVALID_OPTIONS"), nil}, nil
		}
	}

	room, err := fetchRoom(input.RoomCode)
	if err != nil {
		return questionResult{}, err
	}
	if room == nil {
		return questionResult{count("ask_question", "ROOM_NOT_FOUND"), nil}, nil
	}

	member, err := fetchMember(input.RoomCode, input.Alias)
	if err != nil {
		return questionResult{}, err
	}
	if member == nil {
		return questionResult{count("ask_question", "INVALID_ALIAS"), nil}, nil
	}

	question := &mongo.Question{
		RoomCode:     input.RoomCode,
		CreatorAlias: input.Alias,
		Text:         input.Text,
		Type:         qType,
		OptionsRaw:   cleaned,
		CreatedAt:    time.Now(),
	}

	res, err := mongo.Database.Collection(mongo.CollectionQuestions).InsertOne(mongo.Ctx, question)
	if err != nil {
		log.Errorf("mongo, err=%v", err)
		return questionResult{}, errInternalServer
	}
	question.ID = res.InsertedID.(primitive.ObjectID)

	pipe := redis.Client.Pipeline()
	questionStr, err := json.MarshalToString(question)
	if err != nil {
		log.Errorf("json, err=%v", err)
	} else {
		pipe.Set(redis.Ctx, redis.Key("cached:questions:%s", question.ID.Hex()), questionStr, cacheTTL)
		pipe.Publish(redis.Ctx, chanRoomQuestions(question.RoomCode), questionStr)
	}
	if _, err = pipe.Exec(redis.Ctx); err != nil {
		log.Errorf("ask-pipe, err=%v", err)
	}

	return questionResult{count("ask_question", "SUCCESS"), &questionResolver{q: question}}, nil
}

type answerResult struct {
	State  string
	Answer *answerResolver
}

func (*RootResolver) SubmitAnswer(ctx context.Context, args struct {
	QuestionID string
	Alias      string
	Text       string
}) (answerResult, error) {
	if err := requireSession(ctx); err != nil {
		return answerResult{}, err
	}

	input := validation.AnswerInput{
		QuestionID: args.QuestionID,
		Alias:      args.Alias,
		Text:       args.Text,
	}
	if err := validation.Struct(input); err != nil {
		return answerResult{count("submit_answer", "INVALID_INPUT"), nil}, nil
	}

	id, err := primitive.ObjectIDFromHex(input.QuestionID)
	if err != nil {
		return answerResult{}, errUnknownQuestion
	}

	question, err := fetchQuestion(id)
	if err != nil {
		return answerResult{}, err
	}
	if question == nil {
		return answerResult{}, errUnknownQuestion
	}

	member, err := fetchMember(question.RoomCode, input.Alias)
	if err != nil {
		return answerResult{}, err
	}
	if member == nil {
		return answerResult{count("submit_answer", "INVALID_ALIAS"), nil}, nil
	}

	optionIndex := -1
	if question.Type == mongo.QuestionPoll {
		optionIndex = validation.OptionIndex(question.OptionsRaw, input.Text)
		if optionIndex < 0 {
			return answerResult{count("submit_answer", "INVALID_SELECTION"), nil}, nil
		}
	} else if !validation.CheckAnswerText(string(question.Type), input.Text) {
		return answerResult{count("submit_answer", "INVALID_TEXT"), nil}, nil
	}

	// First gate, atomic set membership per alias.
	added, err := redis.Client.SAdd(redis.Ctx, redis.Key("question:answers:%s:aliases", question.ID.Hex()), input.Alias).Result()
	if err != nil && err != redis.ErrNil {
		log.Errorf("redis, err=%v", err)
		return answerResult{}, errInternalServer
	}
	if added == 0 {
		return answerResult{count("submit_answer", "ALREADY_ANSWERED"), nil}, nil
	}

	answer := &mongo.Answer{
		QuestionID: question.ID,
		Alias:      input.Alias,
		Text:       input.Text,
		CreatedAt:  time.Now(),
	}

	// Second gate, the unique (question_id, alias) index backs the redis
	// set in case it was flushed.
	res, err := mongo.Database.Collection(mongo.CollectionAnswers).InsertOne(mongo.Ctx, answer)
	if err != nil {
		if mongo.IsDup(err) {
			return answerResult{count("submit_answer", "ALREADY_ANSWERED"), nil}, nil
		}
		log.Errorf("mongo, err=%v", err)
		return answerResult{}, errInternalServer
	}
	answer.ID = res.InsertedID.(primitive.ObjectID)

	pipe := redis.Client.Pipeline()
	pipe.Incr(redis.Ctx, redis.Key("question:votes:%s:total", question.ID.Hex()))
	if optionIndex >= 0 {
		pipe.HIncrBy(redis.Ctx, redis.Key("question:votes:%s:options", question.ID.Hex()), strconv.Itoa(optionIndex), 1)
	}
	answerStr, err := json.MarshalToString(answer)
	if err != nil {
		log.Errorf("json, err=%v", err)
	} else {
		pipe.Publish(redis.Ctx, chanQuestionAnswers(question.ID), answerStr)
	}
	if _, err = pipe.Exec(redis.Ctx); err != nil {
		log.Errorf("answer-pipe, err=%v", err)
	}

	return answerResult{count("submit_answer", "SUCCESS"), &answerResolver{answer}}, nil
}
