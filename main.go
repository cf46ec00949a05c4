package main

import (
	"time"

	"github.com/devarispbrown/gtsd/config"
	"github.com/devarispbrown/gtsd/events"
	"github.com/devarispbrown/gtsd/models"
	"github.com/devarispbrown/gtsd/routes"
	"github.com/devarispbrown/gtsd/services"
	"github.com/devarispbrown/gtsd/utils"
)

func main() {
	cfg := config.Load()

	// Initialize logger early
	if err := utils.InitLogger(cfg); err != nil {
		panic(err)
	}
	defer func() { _ = utils.Logger.Sync() }()

	db := config.InitDatabase(&models.User{}, &models.Task{}, &models.StreakRecord{}, &models.BadgeAward{})

	var cache utils.ResultCache = utils.NoopCache{}
	if cfg.CacheEnabled {
		cache = utils.NewRedisCache(utils.GetRedis())
	}

	var publisher events.Publisher = events.NoopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		publisher = events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopicPrefix)
		utils.Sugar.Infof("publishing streak events to %v (prefix %q)", cfg.KafkaBrokers, cfg.KafkaTopicPrefix)
	}

	engine := services.NewStreakEngine(db, services.EngineConfig{
		DefaultThreshold: cfg.ComplianceThreshold,
		RequireTimezone:  cfg.RequireTimezone,
		LockWait:         time.Duration(cfg.LockWaitTimeoutMS) * time.Millisecond,
		CacheTTL:         time.Duration(cfg.StreakCacheTTLSec) * time.Second,
	}, cache, publisher, utils.Logger)

	r := routes.SetupRouter(cfg, engine)

	closePublisher := func() {
		if err := publisher.Close(); err != nil {
			utils.Sugar.Warnf("closing event publisher: %v", err)
		}
	}
	closeRedis := func() {
		if cfg.CacheEnabled {
			_ = utils.GetRedis().Close()
		}
	}

	utils.Sugar.Infof("Starting server on port %s (graceful)", cfg.AppPort)
	if err := utils.GraceServer(":"+cfg.AppPort, r, closePublisher, closeRedis); err != nil {
		utils.Sugar.Fatalf("server stopped with error: %v", err)
	}
}
