package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	rd "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"bookstore/internal/config"
	"bookstore/internal/gateway/vnpay"
	"bookstore/internal/model"
	"bookstore/internal/order"
	"bookstore/internal/queue"
	"bookstore/internal/router"
	"bookstore/pkg/logging"
	rediskey "bookstore/pkg/redis"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := logging.New(cfg.Env)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	db, err := gorm.Open(sqlite.Open(cfg.DBPath), &gorm.Config{})
	if err != nil {
		logger.Fatal("db open", zap.Error(err))
	}
	if err := db.AutoMigrate(
		&model.User{}, &model.Address{}, &model.Book{},
		&model.Cart{}, &model.CartItem{},
		&model.Order{}, &model.OrderLine{}, &model.Payment{},
	); err != nil {
		logger.Fatal("db migrate", zap.Error(err))
	}

	rdb := rd.NewClient(&rd.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
	producer := queue.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
	defer producer.Close()
	outbox := queue.NewOutbox(rdb, cfg.OrderEventStream)

	svc := order.NewService(db, logger,
		order.WithEmitter(outbox),
		order.WithGatewayTTL(cfg.GatewayExpire),
	)
	vnp := vnpay.New(vnpay.Config{
		TmnCode:    cfg.VNPTmnCode,
		HashSecret: cfg.VNPHashSecret,
		PayURL:     cfg.VNPPayURL,
		ReturnURL:  cfg.VNPReturnURL,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	relay := queue.NewRelay(rdb, producer, logger,
		cfg.OrderEventStream, cfg.OrderEventGroup, cfg.OrderEventConsumer)
	go relay.Run(ctx)

	consumer := queue.NewConsumer(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaGroupID, logger)
	defer consumer.Close()
	go consumer.Run(ctx)

	if cfg.Env != "dev" && cfg.Env != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.Default()
	router.Setup(r, router.Deps{
		DB:    db,
		RDB:   rdb,
		Svc:   svc,
		VNPay: vnp,
		Cache: rediskey.NewCallbackCache(rdb, cfg.CallbackCacheTTL),
		Log:   logger,
		Cfg:   cfg,
	})

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: r}
	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http serve", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
}
