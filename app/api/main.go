package main

import (
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/bidvault/goapi/base/ctx"
	"github.com/bidvault/goapi/base/database/mongoclient"
	"github.com/bidvault/goapi/base/database/redisclient"
	"github.com/bidvault/goapi/base/log"
	bValidator "github.com/bidvault/goapi/base/validator"
	"github.com/bidvault/goapi/domain"
	mmiddleware "github.com/bidvault/goapi/middleware"
	custody_service "github.com/bidvault/goapi/service/custody"
	"github.com/bidvault/goapi/service/query"
	auction_delivery "github.com/bidvault/goapi/stores/auction/delivery/http"
	auction_repository "github.com/bidvault/goapi/stores/auction/repository"
	auction_usecase "github.com/bidvault/goapi/stores/auction/usecase"
	auth_delivery "github.com/bidvault/goapi/stores/auth/delivery/http"
	auth_middleware "github.com/bidvault/goapi/stores/auth/delivery/http/middleware"
	auth_usecase "github.com/bidvault/goapi/stores/auth/usecase"
	hc_delivery "github.com/bidvault/goapi/stores/healthcheck/delivery/http"
	hc_repo "github.com/bidvault/goapi/stores/healthcheck/repository"
	hc_usecase "github.com/bidvault/goapi/stores/healthcheck/usecase"
)

func init() {
	configPath := pflag.String("config", "infra/configs/config.yaml", "path to config file")
	pflag.Parse()

	viper.SetConfigType("yaml")
	viper.SetConfigFile(*configPath)
	err := viper.ReadInConfig()
	if err != nil {
		panic(err)
	}

	if viper.GetBool(`debug`) {
		log.Log().Info("Service RUN on DEBUG mode")
	}
}

func main() {
	// init echo
	e := echo.New()
	e.Use(middleware.Recover())
	e.Use(middleware.GzipWithConfig(middleware.GzipConfig{}))
	e.Use(middleware.RequestID())
	middL := mmiddleware.InitMiddleware()
	e.Use(middL.ResponseLogger())
	e.Use(middL.AddContext())
	e.Use(middleware.CORS())
	e.Validator = bValidator.NewCustomValidator(validator.New())

	context := ctx.Background()

	// init mongo client
	context.Info("init mongo")
	uri := viper.GetString("mongo.uri")
	authDBName := viper.GetString("mongo.authDBName")
	dbName := viper.GetString("mongo.dbName")
	enableSSL := viper.GetBool("mongo.enableSSL")
	checkIndex := viper.GetBool("mongo.checkIndex")
	mongoClient := mongoclient.MustConnectMongoClient(uri, authDBName, dbName, enableSSL, true, 2)
	q := query.New(mongoClient, checkIndex)

	// init redis pool for liveness probing
	context.Info("init redis")
	redisURI := viper.GetString("redis.uri")
	redisPwd := viper.GetString("redis.password")
	redisPoolMultiplier := viper.GetFloat64("redis.poolMultiplier")
	redisPool := redisclient.MustConnectRedis(redisURI, redisPwd, redisclient.RedisParam{
		PoolMultiplier: redisPoolMultiplier,
		Retry:          true,
	})

	vaultAddress := domain.Address(viper.GetString("custody.vaultAddress")).ToLower()
	fungible, nonFungible := custody_service.NewClient(&custody_service.ClientCfg{
		HttpClient:   http.Client{},
		BaseUrl:      viper.GetString("custody.baseUrl"),
		Timeout:      viper.GetDuration("custody.timeout"),
		Apikey:       viper.GetString("custody.apikey"),
		VaultAddress: string(vaultAddress),
	})

	// construct repository, usecase and delivery
	hcRepo := hc_repo.New(mongoClient, redisPool)
	auctionRepo := auction_repository.NewAuctionRepo(q)
	escrowRepo := auction_repository.NewEscrowRepo(q)
	eventRepo := auction_repository.NewEventRepo(q)

	hc := hc_usecase.New(hcRepo)
	ledger := auction_usecase.NewEscrowLedger(&auction_usecase.EscrowLedgerCfg{
		EscrowRepo: escrowRepo,
	})
	auction := auction_usecase.New(&auction_usecase.AuctionUseCaseCfg{
		AuctionRepo:  auctionRepo,
		EventRepo:    eventRepo,
		Ledger:       ledger,
		Fungible:     fungible,
		NonFungible:  nonFungible,
		Query:        q,
		Clock:        clock.New(),
		VaultAddress: vaultAddress,
	})
	auth := auth_usecase.New(viper.GetString("auth.jwtSecret"))

	authMiddleware := auth_middleware.New(auth)

	hc_delivery.New(e, hc)
	auth_delivery.New(e, auth)
	auction_delivery.New(e, auction, authMiddleware)

	e.GET("/check", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"address": c.Get("address").(domain.Address),
		})
	}, authMiddleware.Auth())

	go func() {
		if err := e.Start(viper.GetString("server.address")); err != nil && err != http.ErrServerClosed {
			log.Log().WithField("err", err).Error("shutting down the server")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server with a timeout of 10 seconds.
	// Use a buffered channel to avoid missing signals as recommended for signal.Notify
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	sig := <-quit
	log.Log().WithField("signal", sig).Info("received signal")
	ctx, cancel := ctx.WithTimeout(context, 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		log.Log().WithField("err", err).Error("shutting down the server")
	} else {
		log.Log().Info("shutdown server successfully")
	}
}
