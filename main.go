package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"certportal/config"
	"certportal/database"
	"certportal/server"
)

func main() {
	log := slog.New(slog.NewTextHandler(os.Stdout, nil))

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	db, err := database.ConnectDb(cfg, log)
	if err != nil {
		log.Error("database connection failed", "err", err)
		os.Exit(1)
	}
	defer database.Close(db)

	srv, err := server.New(cfg, db, log)
	if err != nil {
		log.Error("server setup failed", "err", err)
		os.Exit(1)
	}
	srv.Scheduler.Start()

	go func() {
		log.Info("server is running", "port", cfg.Port)
		if err := srv.App.Listen(":" + cfg.Port); err != nil {
			log.Error("listen failed", "err", err)
			os.Exit(1)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	log.Info("shutting down")
	if err := srv.App.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Error("shutdown failed", "err", err)
	}
	srv.Scheduler.Stop()
	srv.Notifier.Wait()
}
