package resolvers

import (
	"context"

	log "github.com/sirupsen/logrus"
	"github.com/impromptu/api.impromptu.app/mongo"
	"github.com/impromptu/api.impromptu.app/monitoring"
	"github.com/impromptu/api.impromptu.app/validation"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// RoomFeed streams the questions of one room, current backlog first, then
// live as they are asked.
func (r *RootResolver) RoomFeed(ctx context.Context, args struct{ Code string }) (<-chan *questionResolver, error) {
	if err := requireSession(ctx); err != nil {
		return nil, err
	}

	code := validation.NormalizeRoomCode(args.Code)
	room, err := fetchRoom(code)
	if err != nil {
		return nil, err
	}
	if room == nil {
		return nil, errRoomNotFound
	}

	event := chanRoomQuestions(code)
	raw := make(chan []byte, 100)
	if err = r.bus.Subscribe(event, raw); err != nil {
		log.Errorf("redis, err=%v", err)
		return nil, errInternalServer
	}

	rChan := make(chan *questionResolver, 16)
	monitoring.LiveSubscriptions.WithLabelValues("room_feed").Inc()

	go func() {
		defer monitoring.LiveSubscriptions.WithLabelValues("room_feed").Dec()
		defer close(rChan)

		cur, err := mongo.Database.Collection(mongo.CollectionQuestions).Find(mongo.Ctx, bson.M{
			"room_code": code,
		}, options.Find().SetSort(bson.M{"created_at": -1}))
		if err != nil {
			log.Errorf("mongo, err=%v", err)
		} else {
			var backlog []mongo.Question
			if err = cur.All(mongo.Ctx, &backlog); err != nil {
				log.Errorf("mongo, err=%v", err)
			}
			for i := range backlog {
				select {
				case rChan <- &questionResolver{q: &backlog[i]}:
				case <-ctx.Done():
				}
				if ctx.Err() != nil {
					break
				}
			}
		}

		for {
			select {
			case <-ctx.Done():
				if err := r.bus.Unsubscribe(event, raw); err != nil {
					log.Errorf("redis, err=%v", err)
				}
				return
			case payload := <-raw:
				question := &mongo.Question{}
				if err := json.Unmarshal(payload, question); err != nil {
					log.Errorf("json, err=%v", err)
					continue
				}
				select {
				case rChan <- &questionResolver{q: question}:
				case <-ctx.Done():
				}
			}
		}
	}()

	return rChan, nil
}

// WatchMembers streams the member list of one room, everyone already in the
// room first, then each join.
func (r *RootResolver) WatchMembers(ctx context.Context, args struct{ Code string }) (<-chan *memberResolver, error) {
	if err := requireSession(ctx); err != nil {
		return nil, err
	}

	code := validation.NormalizeRoomCode(args.Code)
	room, err := fetchRoom(code)
	if err != nil {
		return nil, err
	}
	if room == nil {
		return nil, errRoomNotFound
	}

	event := chanRoomMembers(code)
	raw := make(chan []byte, 100)
	if err = r.bus.Subscribe(event, raw); err != nil {
		log.Errorf("redis, err=%v", err)
		return nil, errInternalServer
	}

	rChan := make(chan *memberResolver, 16)
	monitoring.LiveSubscriptions.WithLabelValues("watch_members").Inc()

	go func() {
		defer monitoring.LiveSubscriptions.WithLabelValues("watch_members").Dec()
		defer close(rChan)

		cur, err := mongo.Database.Collection(mongo.CollectionMembers).Find(mongo.Ctx, bson.M{
			"room_code": code,
		}, options.Find().SetSort(bson.M{"joined_at": 1}))
		if err != nil {
			log.Errorf("mongo, err=%v", err)
		} else {
			var backlog []mongo.RoomMember
			if err = cur.All(mongo.Ctx, &backlog); err != nil {
				log.Errorf("mongo, err=%v", err)
			}
			for i := range backlog {
				select {
				case rChan <- &memberResolver{&backlog[i]}:
				case <-ctx.Done():
				}
				if ctx.Err() != nil {
					break
				}
			}
		}

		for {
			select {
			case <-ctx.Done():
				if err := r.bus.Unsubscribe(event, raw); err != nil {
					log.Errorf("redis, err=%v", err)
				}
				return
			case payload := <-raw:
				member := &mongo.RoomMember{}
				if err := json.Unmarshal(payload, member); err != nil {
					log.Errorf("json, err=%v", err)
					continue
				}
				select {
				case rChan <- &memberResolver{member}:
				case <-ctx.Done():
				}
			}
		}
	}()

	return rChan, nil
}

// WatchQuestion streams one question with live tallies. The current state
// goes out immediately, every new answer re-emits the question with its
// counters advanced in place.
func (r *RootResolver) WatchQuestion(ctx context.Context, args struct{ ID string }) (<-chan *questionResolver, error) {
	if err := requireSession(ctx); err != nil {
		return nil, err
	}

	id, err := primitive.ObjectIDFromHex(args.ID)
	if err != nil {
		return nil, errUnknownQuestion
	}

	question, err := fetchQuestion(id)
	if err != nil {
		return nil, err
	}
	if question == nil {
		return nil, errUnknownQuestion
	}

	resolver := &questionResolver{q: question}

	tallies, total, err := questionTallies(question)
	if err != nil {
		return nil, err
	}
	if question.Type == mongo.QuestionPoll {
		question.Options = &tallies
	} else {
		answers, err := loadAnswers(question.ID)
		if err != nil {
			return nil, err
		}
		resolver.answers = answers
		resolver.answersLoaded = true
	}
	resolver.answerCount = total
	resolver.countLoaded = true

	event := chanQuestionAnswers(question.ID)
	raw := make(chan []byte, 100)
	if err = r.bus.Subscribe(event, raw); err != nil {
		log.Errorf("redis, err=%v", err)
		return nil, errInternalServer
	}

	rChan := make(chan *questionResolver, 1)
	monitoring.LiveSubscriptions.WithLabelValues("watch_question").Inc()

	go func() {
		defer monitoring.LiveSubscriptions.WithLabelValues("watch_question").Dec()
		defer close(rChan)
		for {
			select {
			case <-ctx.Done():
				if err := r.bus.Unsubscribe(event, raw); err != nil {
					log.Errorf("redis, err=%v", err)
				}
				return
			case payload := <-raw:
				answer := mongo.Answer{}
				if err := json.Unmarshal(payload, &answer); err != nil {
					log.Errorf("json, err=%v", err)
					continue
				}
				resolver.answerCount++
				if question.Type == mongo.QuestionPoll {
					opts := *question.Options
					if i := validation.OptionIndex(question.OptionsRaw, answer.Text); i >= 0 {
						opts[i].Votes++
					}
					for i := range opts {
						opts[i].Percent = validation.Percent(opts[i].Votes, resolver.answerCount)
					}
					question.Options = &opts
				} else {
					resolver.answers = append(resolver.answers, answer)
				}
				select {
				case rChan <- resolver:
				case <-ctx.Done():
				}
			}
		}
	}()

	rChan <- resolver
	return rChan, nil
}
