package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"marketplace/internal/config"
	"marketplace/internal/database"
	"marketplace/internal/handlers"
	"marketplace/internal/metrics"
	"marketplace/internal/notify"
	"marketplace/internal/service"
	"marketplace/internal/storage"
	"marketplace/internal/store"
	"marketplace/internal/store/memstore"
)

func main() {
	config.Load()
	cfg := config.AppEnv
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}

	st, pinger, closeStore := openStore(cfg)
	defer closeStore()

	var sender notify.Sender = notify.LogSender{}
	if cfg.MailEnabled() {
		sender = notify.NewSMTPSender(notify.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			User:     cfg.SMTPUser,
			Password: cfg.SMTPPassword,
			From:     cfg.MailFrom,
		})
	}
	dispatcher := notify.NewDispatcher(sender, 256)
	defer dispatcher.Close()

	m := metrics.New()
	svc := service.New(st,
		service.WithNotifier(dispatcher),
		service.WithRecorder(m),
		service.WithAuth(service.AuthConfig{
			JWTSecret:       cfg.JWTSecret,
			AccessTokenTTL:  cfg.AccessTokenTTL,
			RefreshTokenTTL: cfg.RefreshTokenTTL,
		}),
	)

	if cfg.AdminEmail != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := svc.EnsureAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword); err != nil {
			log.Printf("⚠️ admin bootstrap warning: %v", err)
		}
		cancel()
	}

	r := gin.Default()
	r.Use(m.Middleware())
	r.GET("/metrics", gin.WrapH(m.Handler()))
	r.Static("/public", filepath.Dir(cfg.UploadDir))

	opts := []handlers.Option{handlers.WithTimeout(cfg.RequestTimeout)}
	if pinger != nil {
		opts = append(opts, handlers.WithPinger(pinger))
	}
	handlers.New(svc, storage.NewLocal(cfg.UploadDir), opts...).Routes(r)

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: r}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Println("listening on", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	<-ctx.Done()
	log.Println("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Println("shutdown error:", err)
	}
}

// openStore picks the persistence backend. The pinger is nil for the
// in-memory store.
func openStore(cfg config.Config) (store.Store, handlers.Pinger, func()) {
	if cfg.StoreDriver == "memory" {
		log.Println("using in-memory store")
		return memstore.New(), nil, func() {}
	}

	client, err := database.Connect(cfg.MongoURI)
	if err != nil {
		log.Fatal(err)
	}
	db := client.Database(cfg.DBName)
	log.Println("MongoDB connected to:", db.Name())

	if err := database.EnsureIndexes(db); err != nil {
		log.Printf("⚠️ index warning: %v", err)
	}

	mongoStore := database.NewMongoStore(db)
	return mongoStore, mongoStore, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Disconnect(ctx); err != nil {
			log.Println("mongo disconnect error:", err)
		}
	}
}
