package auth

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/impromptu/api.impromptu.app/configure"
	"github.com/impromptu/api.impromptu.app/redis"
	"github.com/impromptu/api.impromptu.app/utils"

	log "github.com/sirupsen/logrus"
)

// Sessions are opaque bearer tokens held in redis. They only gate access to
// the store, they are not the user-facing account system.

var errInternalServer = fmt.Errorf("internal server error")

func sessionTTL() time.Duration {
	return time.Duration(configure.Config.GetInt("session_ttl_minutes")) * time.Minute
}

// NewSession issues an anonymous session token.
func NewSession() (string, error) {
	suffix, err := utils.GenerateRandomString(12)
	if err != nil {
		log.Errorf("random, err=%v", err)
		return "", errInternalServer
	}
	token := uuid.NewString() + "." + suffix

	err = redis.Client.Set(redis.Ctx, redis.Key("sessions:%s", token), time.Now().Format(time.RFC3339), sessionTTL()).Err()
	if err != nil {
		log.Errorf("redis, err=%v", err)
		return "", errInternalServer
	}
	return token, nil
}

// Resolve validates token and slides its expiry. An empty or unknown token
// yields a fresh anonymous session, mirroring custom-token-else-anonymous
// sign-in.
func Resolve(token string) (string, error) {
	if token == "" {
		return NewSession()
	}

	ok, err := Check(token)
	if err != nil {
		return "", err
	}
	if !ok {
		return NewSession()
	}
	return token, nil
}

// Check reports whether token names a live session, refreshing its TTL when
// it does.
func Check(token string) (bool, error) {
	if token == "" {
		return false, nil
	}
	val, err := redis.Client.Expire(redis.Ctx, redis.Key("sessions:%s", token), sessionTTL()).Result()
	if err != nil && err != redis.ErrNil {
		log.Errorf("redis, err=%v", err)
		return false, errInternalServer
	}
	return val, nil
}
