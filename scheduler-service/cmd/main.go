package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	monzocmd "github.com/joelsaunders/bilbo/scheduler-service/internal/command"
	"github.com/joelsaunders/bilbo/scheduler-service/internal/config"
	"github.com/joelsaunders/bilbo/scheduler-service/internal/handler"
	"github.com/joelsaunders/bilbo/scheduler-service/internal/monzo"
	monzoqry "github.com/joelsaunders/bilbo/scheduler-service/internal/query"
	"github.com/joelsaunders/bilbo/scheduler-service/internal/repository"
	"github.com/joelsaunders/bilbo/scheduler-service/internal/scheduler"
	"github.com/joelsaunders/bilbo/shared/db"
	"github.com/joelsaunders/bilbo/shared/events"
	"github.com/joelsaunders/bilbo/shared/middleware"
	redisClient "github.com/joelsaunders/bilbo/shared/redis"
)

func main() {
	cfg := config.MustLoad()
	middleware.MustInitJWTSecret()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database connection
	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	if cfg.Migrate {
		if err := db.ApplyMigrations(ctx, pool, db.Migrations()); err != nil {
			log.Fatalf("Failed to apply migrations: %v", err)
		}
	}

	// Redis connection
	redis, err := redisClient.NewClient(cfg.RedisAddr, "", 0)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redis.Close()

	publisher := events.NewPublisher(redis.Client)

	users := repository.NewUserStore(pool)
	ledger := repository.NewLedgerStore(pool)

	client := monzo.NewClient(monzo.Config{
		BaseURL:      cfg.MonzoBaseURL,
		ClientID:     cfg.MonzoClientID,
		ClientSecret: cfg.MonzoSecret,
		RedirectURL:  cfg.MonzoRedirect,
	})
	bank := monzo.NewBank(client, users)

	sched := scheduler.New(users, ledger, bank, publisher, scheduler.Options{
		Interval: cfg.TickInterval,
		Location: cfg.Location,
	})

	commandSvc := monzocmd.NewMonzoCommandService(users, client, bank, publisher)
	querySvc := monzoqry.NewMonzoQueryService(users, bank)

	schedulerHandler := handler.NewSchedulerHandler(sched)
	monzoHandler := handler.NewMonzoHandler(commandSvc, querySvc)

	// Setup router
	router := gin.Default()
	router.Use(middleware.LoggingMiddleware())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok", "scheduler": sched.State().String()})
	})

	// OAuth redirect target, identified by state rather than a bearer token
	router.GET("/v1/users/monzo-login", monzoHandler.CompleteLogin)

	me := router.Group("/v1/users/me", middleware.AuthMiddleware())
	{
		me.GET("/accounts", monzoHandler.ListAccounts)
		me.GET("/pots", monzoHandler.ListPots)
		me.POST("/monzo-refresh", monzoHandler.Refresh)
	}

	ops := router.Group("/v1/scheduler", middleware.AuthMiddleware(), handler.RequireOperator(cfg.OperatorIDs))
	{
		ops.POST("/start", schedulerHandler.Start)
		ops.POST("/stop", schedulerHandler.Stop)
		ops.POST("/run", schedulerHandler.RunNow)
		ops.GET("/status", schedulerHandler.Status)
	}

	if cfg.Autostart {
		sched.Start()
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		log.Println("Shutting down...")
		sched.Stop()
		cancel()
		os.Exit(0)
	}()

	log.Printf("Scheduler service starting on port %s", cfg.Port)
	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
