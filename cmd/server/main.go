package main // Entry point package

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"                   // Echo web framework
	echomw "github.com/labstack/echo/v4/middleware" // request id and panic recovery
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/iliyamo/schedule-reservation/internal/config"
	"github.com/iliyamo/schedule-reservation/internal/database"
	"github.com/iliyamo/schedule-reservation/internal/gateway"
	"github.com/iliyamo/schedule-reservation/internal/handler"
	"github.com/iliyamo/schedule-reservation/internal/logger"
	"github.com/iliyamo/schedule-reservation/internal/middleware"
	"github.com/iliyamo/schedule-reservation/internal/queue"
	"github.com/iliyamo/schedule-reservation/internal/repository"
	"github.com/iliyamo/schedule-reservation/internal/router"
	"github.com/iliyamo/schedule-reservation/internal/rpc"
	"github.com/iliyamo/schedule-reservation/internal/service"
	"github.com/iliyamo/schedule-reservation/internal/telemetry"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load() // .env, config file and environment
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	log, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	// Cancelled on SIGINT/SIGTERM; every server below stops with it.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:     cfg.OTelEnabled,
		ServiceName: cfg.OTelServiceName,
		Environment: cfg.Env,
		Endpoint:    cfg.OTelEndpoint,
	})
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(ctx); err != nil {
			log.Warn("tracer shutdown", zap.Error(err))
		}
	}()

	db, dialect, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := database.Migrate(ctx, db, dialect); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	// Redis is optional: without it rate limiting and the profile cache are off.
	rdb := config.NewRedisClient(ctx, cfg.Redis)
	if rdb == nil {
		log.Warn("redis unavailable; rate limiting and profile cache disabled", zap.String("addr", cfg.Redis.Addr))
	} else {
		defer rdb.Close()
	}

	identity, closeIdentity, err := newIdentity(cfg)
	if err != nil {
		return err
	}
	defer closeIdentity()
	profiles, closeProfiles, err := newProfiles(cfg, rdb, log)
	if err != nil {
		return err
	}
	defer closeProfiles()

	reservations := repository.NewReservationRepo(db)
	deps := service.Dependencies{
		Reservations: reservations,
		Schedules:    repository.NewScheduleRepo(db, dialect),
		Queries:      reservations,
		Tx:           repository.NewStore(db, dialect),
		Profiles:     profiles,
		Logger:       log,
	}
	var consumer *queue.Consumer
	if cfg.RabbitMQURL != "" {
		pub := queue.NewPublisher(cfg.RabbitMQURL, cfg.ReservationQueue, cfg.RabbitMQDialTimeout, log)
		defer pub.Close()
		deps.Events = pub

		audit, err := queue.OpenAuditLog(cfg.AuditLogPath)
		if err != nil {
			return fmt.Errorf("audit log: %w", err)
		}
		defer audit.Close()
		consumer = queue.NewConsumer(cfg.RabbitMQURL, cfg.ReservationQueue, audit, log)
	} else {
		log.Info("RABBITMQ_URL not set; reservation events disabled")
	}
	svc := service.NewReservationService(deps, service.Options{
		ReleaseSeatsOnCancel: cfg.ReleaseSeatsOnCancel,
		RejectOverlapping:    cfg.RejectOverlappingBookings,
	})

	e := echo.New() // Create Echo instance
	e.HideBanner = true
	e.Use(echomw.RequestID(), echomw.Recover(), middleware.RequestLogger(log))
	router.RegisterRoutes(e, handler.Health(db), handler.NewReservationHandler(svc),
		middleware.Protect(identity, cfg.RateLimit, rdb, log)...)

	gs := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(rpc.LoggingInterceptor(log)),
	)
	rpc.Register(gs, rpc.NewServer(svc, identity, log))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		addr := ":" + cfg.Port
		log.Info("http listening", zap.String("addr", addr), zap.String("env", cfg.Env))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
		if err != nil {
			return fmt.Errorf("grpc listen: %w", err)
		}
		log.Info("grpc listening", zap.String("addr", lis.Addr().String()))
		return gs.Serve(lis)
	})
	if consumer != nil {
		g.Go(func() error { return consumer.Run(gctx) })
	}
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		gs.GracefulStop()
		return e.Shutdown(ctx)
	})
	return g.Wait()
}

func openDatabase(cfg config.Config) (*sql.DB, database.Dialect, error) {
	if cfg.DBDriver == "sqlite" {
		db, err := database.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, "", fmt.Errorf("sqlite: %w", err)
		}
		return db, database.SQLite, nil
	}
	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		return nil, "", fmt.Errorf("mysql: %w", err)
	}
	return db, database.MySQL, nil
}

// newIdentity selects local JWT validation or the remote auth service.
func newIdentity(cfg config.Config) (service.IdentityGateway, func(), error) {
	if cfg.IdentityMode == "rpc" {
		conn, err := gateway.Dial(cfg.AuthServiceAddr)
		if err != nil {
			return nil, nil, fmt.Errorf("auth service: %w", err)
		}
		return gateway.NewRPCIdentity(conn), func() { _ = conn.Close() }, nil
	}
	return gateway.NewJWTIdentity(cfg.JWTSecret), func() {}, nil
}

// newProfiles uses the remote user service when configured and grants
// the default limits to everyone otherwise.
func newProfiles(cfg config.Config, rdb *redis.Client, log *zap.Logger) (service.ProfileGateway, func(), error) {
	if cfg.UserServiceAddr == "" {
		log.Info("USER_SERVICE_ADDR not set; using default seat limits",
			zap.Int32("max_adult", cfg.DefaultMaxAdult), zap.Int32("max_child", cfg.DefaultMaxChild))
		return gateway.StaticProfile{MaxAdult: cfg.DefaultMaxAdult, MaxChild: cfg.DefaultMaxChild}, func() {}, nil
	}
	conn, err := gateway.Dial(cfg.UserServiceAddr)
	if err != nil {
		return nil, nil, fmt.Errorf("user service: %w", err)
	}
	return gateway.NewRPCProfile(conn, rdb, cfg.ProfileCacheTTL, log), func() { _ = conn.Close() }, nil
}
