package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/taskhub/taskhub/internal/config"
	"github.com/taskhub/taskhub/internal/db"
	"github.com/taskhub/taskhub/internal/notifications"
	"github.com/taskhub/taskhub/internal/observability"
	"github.com/taskhub/taskhub/internal/queue/worker"
	"github.com/taskhub/taskhub/internal/repo/postgres"
)

func main() {
	cfg := config.Load()

	log := observability.NewLogger(cfg.Env)

	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)

	defer stop()

	pool, err := db.NewPool(cfg.DBURL)

	if err != nil {
		log.Error("db connect failed", "err", err)
		os.Exit(1)
	}

	defer pool.Close()

	prom := observability.NewProm(prometheus.NewRegistry())

	jobsRepo := postgres.NewJobsRepo(pool, prom)
	tasksRepo := postgres.NewTasksRepo(pool, prom)
	notifier := notifications.NewLogNotifier(log)

	host, _ := os.Hostname()
	workerID := host + "-" + strconv.Itoa(os.Getpid())

	w := worker.New(worker.Config{
		PollInterval:  cfg.WorkerPollInterval,
		WorkerID:      workerID,
		ShutdownGrace: cfg.WorkerShutdownGrace,
	}, jobsRepo, tasksRepo, notifier, prom, log)

	log.Info("worker started", "worker_id", workerID)

	if err := w.Run(ctx); err != nil {
		log.Error("worker stopped with error", "err", err)
	}

	log.Info("worker shutdown complete")
}
