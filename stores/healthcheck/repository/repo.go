package repository

import (
	"time"

	"github.com/gomodule/redigo/redis"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/bidvault/goapi/base/ctx"
	"github.com/bidvault/goapi/base/database/mongoclient"
	hcdomain "github.com/bidvault/goapi/domain/healthcheck"
	"github.com/bidvault/goapi/domain/keys"
)

type impl struct {
	mgoClient *mongoclient.Client
	redisPool *redis.Pool
}

// New creates new healthCheckRepo object representation of HealthCheckRepo interface
func New(
	mgoClient *mongoclient.Client,
	redisPool *redis.Pool,
) hcdomain.HealthCheckRepo {
	return &impl{
		mgoClient: mgoClient,
		redisPool: redisPool,
	}
}

func (im *impl) PingDB(context ctx.Ctx) error {
	ctx, cancel := ctx.WithTimeout(context, 2*time.Second)
	defer cancel()
	if err := im.mgoClient.Ping(ctx, readpref.Primary()); err != nil {
		context.WithField("err", err).Error("ping mongo error")
		return err
	}

	conn, err := im.redisPool.GetContext(ctx)
	if err != nil {
		context.WithField("err", err).Error("acquire redis conn failed")
		return err
	}
	defer conn.Close()
	if _, err := conn.Do("SET", keys.RedisKey(keys.PfxHealthCheck, "testset"), "1", "EX", 30); err != nil {
		context.WithField("err", err).Error("test redis set failed")
		return err
	}
	return nil
}
