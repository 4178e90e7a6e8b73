package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	_ "github.com/lib/pq"

	"github.com/banksys/banking-backend/internal/accounts"
	"github.com/banksys/banking-backend/internal/auth"
	"github.com/banksys/banking-backend/internal/config"
	"github.com/banksys/banking-backend/internal/events/kafka"
	interfaces "github.com/banksys/banking-backend/internal/interfaces"
	"github.com/banksys/banking-backend/internal/ledger"
	"github.com/banksys/banking-backend/internal/server"
	"github.com/banksys/banking-backend/internal/storage/memory"
	"github.com/banksys/banking-backend/internal/storage/postgres"
	"github.com/banksys/banking-backend/internal/txlog"
)

func main() {
	cfg := config.Load()

	var (
		store interfaces.LedgerStore
		users interfaces.UserStore
	)

	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("open database: %v", err)
		}
		defer db.Close()
		if err := db.Ping(); err != nil {
			log.Fatalf("ping database: %v", err)
		}

		pg := postgres.NewStore(db)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := pg.InitSchema(ctx); err != nil {
			cancel()
			log.Fatalf("init schema: %v", err)
		}
		cancel()
		store, users = pg, pg
		log.Println("using postgres store")
	} else {
		mem := memory.NewStore()
		store, users = mem, mem
		log.Println("using in-memory store")
	}

	var publisher interfaces.EventPublisher
	if len(cfg.KafkaBrokers) > 0 {
		kp := kafka.NewPublisher(cfg.KafkaBrokers)
		defer kp.Close()
		publisher = kp
		log.Printf("publishing events to kafka %v", cfg.KafkaBrokers)
	}

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			log.Printf("redis unreachable, idempotency disabled: %v", err)
			rdb = nil
		}
	}

	records := txlog.New(store)
	engine := ledger.NewEngine(store, users, records, publisher, cfg.StoreTimeout)
	registry := accounts.NewRegistry(store, users, cfg.StoreTimeout)
	authSvc := auth.NewService(users, cfg.JWTSecret, cfg.TokenTTL)

	handlers := server.NewHandlers(registry, engine, authSvc)
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: server.Router(handlers, rdb),
	}

	go func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
		<-ch
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("shutdown: %v", err)
		}
	}()

	log.Printf("bank server listening on %s", cfg.HTTPAddr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal(err)
	}
}
