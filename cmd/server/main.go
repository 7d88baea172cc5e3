package main

import (
	"context"
	"database/sql"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/holyokefd/portal/internal/config"
	"github.com/holyokefd/portal/internal/database"
	"github.com/holyokefd/portal/internal/handler"
	"github.com/holyokefd/portal/internal/queue"
	"github.com/holyokefd/portal/internal/repository"
	"github.com/holyokefd/portal/internal/retention"
	"github.com/holyokefd/portal/internal/router"
	"github.com/holyokefd/portal/internal/storage"
	"github.com/holyokefd/portal/internal/utils"
)

func main() {
	// A missing .env is fine in containerized deployments where the
	// environment is injected directly.
	_ = godotenv.Load()

	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := database.EnsureSchema(ctx, db); err != nil {
		cancel()
		log.Fatalf("ensure schema: %v", err)
	}
	if err := seedSuperUser(ctx, db, cfg); err != nil {
		cancel()
		log.Fatalf("seed super user: %v", err)
	}
	cancel()

	store, err := storage.NewStore(cfg.UploadDir)
	if err != nil {
		log.Fatalf("init upload store: %v", err)
	}

	users := repository.NewUserRepo(db)
	bulletins := repository.NewBulletinRepo(db)
	messages := repository.NewMessageRepo(db)
	attachments := repository.NewAttachmentRepo(db)
	resets := repository.NewResetRepo(db)

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Printf("redis unavailable; rate limiting and response caching disabled")
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Logger())
	e.Use(echomw.Recover())
	e.Use(echomw.CORS())

	router.Register(e, router.Handlers{
		Auth:        handler.NewAuthHandler(cfg, users, resets),
		Users:       handler.NewUserHandler(users),
		Bulletins:   handler.NewBulletinHandler(users, bulletins, attachments, store),
		Messages:    handler.NewMessageHandler(users, messages, attachments, store),
		Admin:       handler.NewAdminHandler(cfg, users, resets),
		Attachments: handler.NewAttachmentHandler(users, bulletins, messages, attachments, store),
	}, cfg.JWTSecret, rdb, config.LoadRateLimitConfig(), config.LoadCacheConfig())

	sweeper := retention.New(db, cfg.BulletinMaxAge, cfg.MessageMaxAge)
	cronRunner := sweeper.Start()
	defer cronRunner.Stop()

	go queue.StartNotificationConsumer()

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}

// seedSuperUser guarantees at least one account that can administer
// the portal on a fresh database. Credentials come from the
// environment; the seeded account should change its password
// immediately.
func seedSuperUser(ctx context.Context, db *sql.DB, cfg config.Config) error {
	password := os.Getenv("SUPER_USER_PASSWORD")
	if password == "" {
		return nil
	}
	hash, err := utils.HashPassword(password, cfg.BcryptCost)
	if err != nil {
		return err
	}
	return database.EnsureSuperUser(ctx, db,
		getenvDefault("SUPER_USER_EMAIL", "admin@holyokefd.local"),
		getenvDefault("SUPER_USER_NAME", "System Administrator"),
		getenvDefault("SUPER_USER_USERNAME", "admin"),
		hash)
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
