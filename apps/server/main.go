package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/dawson0919/texasporker-sub000/apps/server/internal/gateway"
	"github.com/dawson0919/texasporker-sub000/apps/server/internal/store"
	"github.com/dawson0919/texasporker-sub000/apps/server/internal/table"
	"github.com/dawson0919/texasporker-sub000/holdem"
)

func main() {
	addr := envOrDefault("LISTEN_ADDR", ":8080")

	st, backend, err := store.NewFromEnv()
	if err != nil {
		log.Fatalf("[Main] init storage failed: %v", err)
	}
	defer st.Close()
	log.Printf("[Main] storage backend: %s", backend)

	cfg := holdem.DefaultConfig()
	if v := envInt64("POKER_SMALL_BLIND"); v > 0 {
		cfg.SmallBlind = v
	}
	if v := envInt64("POKER_BIG_BLIND"); v > 0 {
		cfg.BigBlind = v
	}
	if v := envInt64("POKER_BUY_IN"); v > 0 {
		cfg.DefaultBuyIn = v
	}
	if v := envDuration("POKER_TURN_TIMER"); v > 0 {
		cfg.TurnTimer = v
	}
	if v := envDuration("POKER_FILL_DEADLINE"); v > 0 {
		cfg.AutoStartDelay = v
	}

	manager := table.New(cfg, st, table.WithMaxTables(int(envInt64("POKER_MAX_TABLES"))))
	defer manager.Close()

	gw := gateway.New(manager)
	manager.SetNotify(gw.Broadcast)

	mux := http.NewServeMux()
	gw.Register(mux)

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("[Main] listening on %s", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("[Main] server failed: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	log.Printf("[Main] shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("[Main] shutdown error: %v", err)
	}
}

func envOrDefault(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt64(key string) int64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return 0
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0
	}
	return v
}

func envDuration(key string) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return 0
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0
	}
	return d
}
