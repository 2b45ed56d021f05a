package redis

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/impromptu/api.impromptu.app/configure"
)

var Ctx = context.Background()

var Client *redis.Client

// ns prefixes every key and channel so multiple deployments can share one
// redis instance.
var ns string

func init() {
	options, err := redis.ParseURL(configure.Config.GetString("redis_uri"))
	if err != nil {
		panic(err)
	}

	Client = redis.NewClient(options)

	ns = configure.Config.GetString("app_id")
}

// Key returns the namespaced form of a formatted key.
func Key(format string, args ...interface{}) string {
	return ns + ":" + fmt.Sprintf(format, args...)
}

type Message = redis.Message

const ErrNil = redis.Nil

type StringCmd = redis.StringCmd

type Pipeliner = redis.Pipeliner

type StringStringMapCmd = redis.StringStringMapCmd

type PubSub = redis.PubSub
