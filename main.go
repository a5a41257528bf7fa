package main

import (
	"context"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"checkout-service/common/auth"
	apperrors "checkout-service/common/errors"
	"checkout-service/common/logger"
	commonmw "checkout-service/common/middleware"
	"checkout-service/config"
	"checkout-service/controllers"
	"checkout-service/database"
	"checkout-service/locker"
	"checkout-service/models"
	"checkout-service/notifier"
	awspkg "checkout-service/pkg/aws"
	"checkout-service/providers"
	"checkout-service/repository"
	"checkout-service/routes"
	"checkout-service/services"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		panic("config load failed: " + err.Error())
	}

	ctx := context.Background()

	// AWS is optional; every AWS-backed feature degrades to off without it.
	awsCfg, awsErr := awspkg.LoadAWSConfig(ctx)

	var logSink io.Writer
	if cfg.CloudWatchLogGroup != "" && awsErr == nil {
		if cw, err := awspkg.NewCloudWatchLogsClient(ctx, awsCfg, cfg.CloudWatchLogGroup, cfg.ServiceName); err == nil {
			logSink = cw
		}
	}
	log, err := logger.Initialize(cfg.Env, logSink)
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	defer log.Sync()

	if awsErr != nil {
		log.Warn("AWS config unavailable, SNS/SQS/CloudWatch disabled", zap.Error(awsErr))
	}

	// Stores
	var (
		checkoutRepo repository.CheckoutRepository
		orderRepo    repository.OrderRepository
		db           *gorm.DB
		mongoClient  *mongo.Client
	)
	switch cfg.StoreDriver {
	case config.StoreDriverMongo:
		client, mdb, err := database.ConnectMongo(ctx, cfg.MongoURI, cfg.MongoDB, log)
		if err != nil {
			log.Fatal("MongoDB connection failed", zap.Error(err))
		}
		if err := repository.EnsureMongoIndexes(ctx, mdb); err != nil {
			log.Fatal("MongoDB index creation failed", zap.Error(err))
		}
		mongoClient = client
		checkoutRepo = repository.NewMongoCheckoutRepo(mdb)
		orderRepo = repository.NewMongoOrderRepo(mdb)
	default:
		db, err = database.ConnectPostgres(cfg, log, &models.Order{}, &models.Checkout{})
		if err != nil {
			log.Fatal("PostgreSQL connection failed", zap.Error(err))
		}
		checkoutRepo = repository.NewGormCheckoutRepo(db)
		orderRepo = repository.NewGormOrderRepo(db)
	}

	redisClient, err := database.ConnectRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, log)
	if err != nil {
		log.Warn("Redis unavailable, webhook locking and notification dedupe disabled", zap.Error(err))
		redisClient = nil
	}

	// Metrics
	var metrics awspkg.MetricsRecorder
	if awsErr == nil {
		metrics = awspkg.NewMetricsClient(awsCfg, cfg.MetricsNamespace, cfg.MetricsEnabled)
	}

	// Notifications
	dispatcher, kafkaSink := buildDispatcher(cfg, awsCfg, awsErr == nil, redisClient, metrics, log)
	dispatcher.Start()

	// Payment providers
	payos := providers.NewPayosProvider(providers.PayosConfig{
		ClientID:    cfg.PayosClientID,
		APIKey:      cfg.PayosAPIKey,
		ChecksumKey: cfg.PayosChecksumKey,
		BaseURL:     cfg.PayosBaseURL,
		ReturnURL:   cfg.PayosReturnURL,
		CancelURL:   cfg.PayosCancelURL,
		Timeout:     cfg.PayosTimeout,
	}, log)

	rate, err := decimal.NewFromString(cfg.WalletExchangeRate)
	if err != nil {
		log.Fatal("invalid WALLET_EXCHANGE_RATE", zap.String("value", cfg.WalletExchangeRate), zap.Error(err))
	}
	wallet := providers.NewWalletProvider(providers.WalletConfig{
		ReceivingAddress: cfg.WalletReceivingAddress,
		TokenAddress:     cfg.WalletTokenAddress,
		TokenDecimals:    cfg.WalletTokenDecimals,
		ExchangeRate:     rate,
	})

	registry := providers.NewRegistry(
		providers.NewCashProvider(),
		providers.NewBankTransferProvider(providers.BankConfig{
			BankID:      cfg.BankID,
			AccountNo:   cfg.BankAccountNo,
			AccountName: cfg.BankAccountName,
			Template:    cfg.BankQRTemplate,
		}),
		payos,
		wallet,
	)

	var lock locker.Locker = locker.NoopLocker{}
	if redisClient != nil {
		lock = locker.NewRedisLocker(redisClient, "checkout:lock:", cfg.WebhookLockTTL, 5*time.Second)
	}

	// Dependency injection
	checkoutService := services.NewCheckoutService(checkoutRepo, orderRepo, registry, wallet, dispatcher, lock, metrics, log)
	reconciler := services.NewReconciler(checkoutService, payos, metrics, log)
	checkoutController := controllers.NewCheckoutController(checkoutService, log)
	payosController := controllers.NewPayosController(reconciler, checkoutService, log)
	controllers.RegisterValidators()

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.RequestID())
	r.Use(commonmw.RequestLogger(log))
	if metrics != nil {
		r.Use(commonmw.MetricsMiddleware(metrics, cfg.ServiceName))
	}
	r.Use(commonmw.SecurityHeaders())
	if cfg.RateLimitPerMinute > 0 {
		r.Use(commonmw.RateLimitMiddleware(cfg.RateLimitPerMinute, cfg.RateLimitPerMinute/4+1))
	}
	r.Use(commonmw.CORSMiddleware(cfg.CORSOrigins))
	r.Use(commonmw.Timeout(cfg.RequestTimeout))
	r.Use(apperrors.ErrorMiddleware())

	routes.RegisterHealthRoutes(r, cfg.ServiceName)
	routes.RegisterCheckoutRoutes(r, checkoutController, auth.NewTokenParser(cfg.JWTSecret))
	routes.RegisterPayosRoutes(r, payosController)

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: r}
	go func() {
		log.Info("Checkout service started", zap.String("port", cfg.Port), zap.String("store", cfg.StoreDriver))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Initiating graceful shutdown...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown error", zap.Error(err))
	}
	if err := dispatcher.Close(shutdownCtx); err != nil {
		log.Error("Notification drain incomplete", zap.Error(err))
	}
	if kafkaSink != nil {
		if err := kafkaSink.Close(); err != nil {
			log.Error("Kafka writer close error", zap.Error(err))
		}
	}
	if redisClient != nil {
		_ = redisClient.Close()
	}
	if db != nil {
		if err := database.ClosePostgres(db); err != nil {
			log.Error("Database close error", zap.Error(err))
		}
	}
	if mongoClient != nil {
		if err := database.CloseMongo(mongoClient); err != nil {
			log.Error("MongoDB close error", zap.Error(err))
		}
	}
	log.Info("Checkout service stopped gracefully")
}

// buildDispatcher wires every configured notification sink.
func buildDispatcher(
	cfg *config.Config,
	awsCfg sdkaws.Config,
	awsOK bool,
	redisClient *redis.Client,
	metrics awspkg.MetricsRecorder,
	log *zap.Logger,
) (*notifier.Dispatcher, *notifier.KafkaSink) {
	var sinks []notifier.Sink

	if awsOK && cfg.PaymentSNSTopicARN != "" {
		sinks = append(sinks, notifier.NewSNSSink(awspkg.NewSNSClient(awsCfg), cfg.PaymentSNSTopicARN))
	}
	if awsOK && cfg.NotificationQueueURL != "" {
		sinks = append(sinks, notifier.NewSQSSink(awspkg.NewSQSClient(awsCfg, cfg.NotificationQueueURL)))
	}

	var kafkaSink *notifier.KafkaSink
	if len(cfg.KafkaBrokers) > 0 {
		kafkaSink = notifier.NewKafkaSink(cfg.KafkaBrokers, cfg.KafkaTopic)
		sinks = append(sinks, kafkaSink)
	}

	if cfg.SMTPHost != "" {
		sender, err := notifier.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.SMTPFrom)
		if err != nil {
			log.Warn("SMTP sender disabled", zap.Error(err))
		} else if emailSink, err := notifier.NewEmailSink(sender, log); err != nil {
			log.Warn("Email sink disabled", zap.Error(err))
		} else {
			sinks = append(sinks, emailSink)
		}
	}

	opts := notifier.Options{
		QueueSize: cfg.NotifyQueueSize,
		Workers:   cfg.NotifyWorkers,
		Metrics:   metrics,
	}
	if redisClient != nil {
		opts.Idempotency = notifier.NewRedisIdempotency(redisClient, cfg.NotifyIdempotencyTTL)
	}

	names := make([]string, 0, len(sinks))
	for _, s := range sinks {
		names = append(names, s.Name())
	}
	log.Info("Notification sinks configured", zap.Strings("sinks", names))

	return notifier.NewDispatcher(opts, log, sinks...), kafkaSink
}
