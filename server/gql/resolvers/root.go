package resolvers

import (
	"context"
	"fmt"
	"strconv"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/impromptu/api.impromptu.app/events"
	"github.com/impromptu/api.impromptu.app/mongo"
	"github.com/impromptu/api.impromptu.app/redis"
	"github.com/impromptu/api.impromptu.app/utils"
	"github.com/impromptu/api.impromptu.app/validation"
	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var (
	errInternalServer  = fmt.Errorf("internal server error")
	errAuthNotReady    = fmt.Errorf("authentication not ready")
	errRoomNotFound    = fmt.Errorf("room not found or expired")
	errUnknownQuestion = fmt.Errorf("we don't know what question that is")
)

const roomLifetime = 12 * time.Hour

const cacheTTL = 6 * time.Hour

func New() *RootResolver {
	pubsub := redis.Client.Subscribe(redis.Ctx)
	rr := &RootResolver{
		bus:    events.NewBus(redis.Ctx, pubsub),
		pubsub: pubsub,
	}

	go func() {
		ch := pubsub.Channel()
		for msg := range ch {
			rr.bus.Dispatch(msg.Channel, utils.S2B(msg.Payload))
		}
	}()

	return rr
}

type RootResolver struct {
	bus    *events.Bus
	pubsub *redis.PubSub
}

// Event channel names, one per room feed and one per question.
func chanRoomQuestions(code string) string {
	return redis.Key("events:room:%s:questions", code)
}

func chanRoomMembers(code string) string {
	return redis.Key("events:room:%s:members", code)
}

func chanQuestionAnswers(id primitive.ObjectID) string {
	return redis.Key("events:question:%s:answers", id.Hex())
}

// sessionFromContext returns the validated session token, empty when the
// request carried none.
func sessionFromContext(ctx context.Context) string {
	if v := ctx.Value(utils.Key("session")); v != nil {
		return v.(string)
	}
	return ""
}

func requireSession(ctx context.Context) error {
	if sessionFromContext(ctx) == "" {
		return errAuthNotReady
	}
	return nil
}

// fetchRoom loads a room through the redis cache. A missing or expired room
// is cached as a dead entry so repeated joins with a bad code stay cheap.
// Returns nil without error when the room does not exist.
func fetchRoom(code string) (*mongo.Room, error) {
	redisKey := redis.Key("cached:rooms:%s", code)

	val, err := redis.Client.Get(redis.Ctx, redisKey).Result()
	if err != nil && err != redis.ErrNil {
		log.Errorf("redis, err=%v", err)
		return nil, errInternalServer
	}

	if val == "dead" {
		return nil, nil
	}

	room := &mongo.Room{}
	if err == redis.ErrNil {
		result := mongo.Database.Collection(mongo.CollectionRooms).FindOne(mongo.Ctx, bson.M{
			"room_code": code,
		})
		err = result.Err()
		if err == mongo.ErrNoDocuments {
			if err = redis.Client.Set(redis.Ctx, redisKey, "dead", cacheTTL).Err(); err != nil {
				log.Errorf("redis, err=%v", err)
			}
			return nil, nil
		}
		if err == nil {
			err = result.Decode(room)
		}
		if err != nil {
			log.Errorf("mongo, err=%v", err)
			return nil, errInternalServer
		}

		if ttl := time.Until(room.ExpiresAt); ttl > 0 {
			roomStr, err := json.MarshalToString(room)
			if err == nil {
				if err = redis.Client.Set(redis.Ctx, redisKey, roomStr, ttl).Err(); err != nil {
					log.Errorf("redis, err=%v", err)
				}
			} else {
				log.Errorf("json, err=%v", err)
			}
		}
	} else if err = json.UnmarshalFromString(val, room); err != nil {
		log.Errorf("json, err=%v", err)
		return nil, errInternalServer
	}

	if room.Expired(time.Now()) {
		return nil, nil
	}

	return room, nil
}

// fetchQuestion loads a question through the redis cache. Questions are
// append only so the cached copy never goes stale.
func fetchQuestion(id primitive.ObjectID) (*mongo.Question, error) {
	redisKey := redis.Key("cached:questions:%s", id.Hex())

	val, err := redis.Client.Get(redis.Ctx, redisKey).Result()
	if err != nil && err != redis.ErrNil {
		log.Errorf("redis, err=%v", err)
		return nil, errInternalServer
	}

	if val == "dead" {
		return nil, nil
	}

	question := &mongo.Question{}
	if err == redis.ErrNil {
		result := mongo.Database.Collection(mongo.CollectionQuestions).FindOne(mongo.Ctx, bson.M{
			"_id": id,
		})
		err = result.Err()
		if err == mongo.ErrNoDocuments {
			if err = redis.Client.Set(redis.Ctx, redisKey, "dead", cacheTTL).Err(); err != nil {
				log.Errorf("redis, err=%v", err)
			}
			return nil, nil
		}
		if err == nil {
			err = result.Decode(question)
		}
		if err != nil {
			log.Errorf("mongo, err=%v", err)
			return nil, errInternalServer
		}

		questionStr, err := json.MarshalToString(question)
		if err == nil {
			if err = redis.Client.Set(redis.Ctx, redisKey, questionStr, cacheTTL).Err(); err != nil {
				log.Errorf("redis, err=%v", err)
			}
		} else {
			log.Errorf("json, err=%v", err)
		}
	} else if err = json.UnmarshalFromString(val, question); err != nil {
		log.Errorf("json, err=%v", err)
		return nil, errInternalServer
	}

	return question, nil
}

// fetchMember returns the membership record for (code, alias), nil when the
// alias is not part of the room.
func fetchMember(code, alias string) (*mongo.RoomMember, error) {
	member := &mongo.RoomMember{}
	result := mongo.Database.Collection(mongo.CollectionMembers).FindOne(mongo.Ctx, bson.M{
		"room_code": code,
		"alias":     alias,
	})
	err := result.Err()
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err == nil {
		err = result.Decode(member)
	}
	if err != nil {
		log.Errorf("mongo, err=%v", err)
		return nil, errInternalServer
	}
	return member, nil
}

// questionTallies reads the redis counters for a question and returns the
// per-option votes plus the total answer count.
func questionTallies(q *mongo.Question) ([]mongo.PollOption, int32, error) {
	pipe := redis.Client.Pipeline()
	totalCmd := pipe.Get(redis.Ctx, redis.Key("question:votes:%s:total", q.ID.Hex()))
	var votesCmd *redis.StringStringMapCmd
	if q.Type == mongo.QuestionPoll {
		votesCmd = pipe.HGetAll(redis.Ctx, redis.Key("question:votes:%s:options", q.ID.Hex()))
	}
	_, err := pipe.Exec(redis.Ctx)
	if err != nil && err != redis.ErrNil {
		log.Errorf("redis, err=%v", err)
		return nil, 0, errInternalServer
	}

	var total int32
	if v, err := totalCmd.Int64(); err == nil {
		total = int32(v)
	} else if err != redis.ErrNil {
		log.Errorf("redis, err=%v", err)
		return nil, 0, errInternalServer
	}

	if q.Type != mongo.QuestionPoll {
		return nil, total, nil
	}

	votes, err := votesCmd.Result()
	if err != nil && err != redis.ErrNil {
		log.Errorf("redis, err=%v", err)
		return nil, 0, errInternalServer
	}

	options := make([]mongo.PollOption, len(q.OptionsRaw))
	for i, title := range q.OptionsRaw {
		var count int32
		if v, ok := votes[fmt.Sprint(i)]; ok {
			parsed, err := strconv.ParseInt(v, 10, 32)
			if err != nil {
				return nil, 0, err
			}
			count = int32(parsed)
		}
		options[i] = mongo.PollOption{
			Title: title,
			Votes: count,
		}
	}
	for i := range options {
		options[i].Percent = validation.Percent(options[i].Votes, total)
	}
	return options, total, nil
}

// loadAnswers returns all answers for a question, oldest first.
func loadAnswers(id primitive.ObjectID) ([]mongo.Answer, error) {
	cur, err := mongo.Database.Collection(mongo.CollectionAnswers).Find(mongo.Ctx, bson.M{
		"question_id": id,
	}, options.Find().SetSort(bson.M{"created_at": 1}))
	if err != nil {
		log.Errorf("mongo, err=%v", err)
		return nil, errInternalServer
	}
	var answers []mongo.Answer
	if err = cur.All(mongo.Ctx, &answers); err != nil {
		log.Errorf("mongo, err=%v", err)
		return nil, errInternalServer
	}
	return answers, nil
}
