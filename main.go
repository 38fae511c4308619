package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"taskbot/api"
	"taskbot/config"
	"taskbot/db"
	"taskbot/logger"
	"taskbot/scheduler"
	"taskbot/tgbot"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// No logger yet.
		fmt.Fprintln(os.Stderr, "configuration error:", err)
		os.Exit(1)
	}

	log, syncLogs := logger.New(cfg.LogFile)
	defer syncLogs()

	ctx := context.Background()

	d, err := db.Init(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalw("failed to initialize database", "err", err)
	}
	defer d.Close()

	bot, err := tgbot.New(cfg.TgToken, d, cfg.DefaultOffsets, log)
	if err != nil {
		log.Fatalw("failed to initialize Telegram bot", "err", err)
	}

	sched := scheduler.New(d, bot, cfg.PollInterval, log)
	sched.Start()

	var apiServer *http.Server
	if cfg.APIPort != "" {
		apiServer = &http.Server{Addr: ":" + cfg.APIPort, Handler: api.NewRouter(d, log)}
		go func() {
			log.Infow("starting HTTP API", "addr", apiServer.Addr)
			if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Errorw("HTTP API stopped", "err", err)
			}
		}()
	}

	go bot.Run()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info("shutting down")
	if apiServer != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		if err := apiServer.Shutdown(shutdownCtx); err != nil {
			log.Errorw("HTTP API shutdown", "err", err)
		}
		cancel()
	}
	sched.Stop()
}
