package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/quietbell/reminderd/internal/alarm"
	"github.com/quietbell/reminderd/internal/bot"
	"github.com/quietbell/reminderd/internal/clock"
	"github.com/quietbell/reminderd/internal/config"
	"github.com/quietbell/reminderd/internal/database"
	"github.com/quietbell/reminderd/internal/delivery"
	"github.com/quietbell/reminderd/internal/guard"
	"github.com/quietbell/reminderd/internal/repository"
	"github.com/quietbell/reminderd/internal/scheduler"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Validate required config
	if cfg.DatabaseURI == "" {
		log.Fatal("DATABASE_URI is required")
	}
	if cfg.TelegramToken == "" {
		log.Fatal("TELEGRAM_TOKEN is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Connect to database
	db, err := database.New(ctx, cfg.DatabaseURI)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Println("Connected to database")

	// Run migrations
	if err := db.Migrate(ctx); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	log.Println("Database migrations completed")

	repo := repository.NewReminderRepository(db)
	clk := clock.RealClock{}

	// Presentation surface
	b, err := bot.New(cfg.TelegramToken)
	if err != nil {
		log.Fatalf("Failed to create bot: %v", err)
	}

	// Delivery funnel and the two timer paths
	wake := delivery.NewWakeLock()
	handler := delivery.NewHandler(wake)
	exact := scheduler.NewExactBackend(handler.HandleFire, clk)
	queue := scheduler.NewQueueBackend(db, handler.HandleFire, clk, cfg.QueuePollInterval)
	sched := scheduler.New(exact, queue, clk)

	// Alarm controller, wired to the surface, store and scheduler
	sessions := alarm.NewRegistry(alarm.Config{
		Surface:       b,
		Store:         repo,
		Scheduler:     sched,
		Clock:         clk,
		DismissAfter:  cfg.AlarmTimeout,
		DefaultSnooze: cfg.DefaultSnooze,
	})
	handler.Bind(sessions)
	b.Bind(sessions)

	// The guarded run: re-arm every active reminder, surface the ones
	// that came due while we were down, then drain the durable queue
	// until shutdown. A crash anywhere in here gets one restart per
	// termination; Stop never restarts.
	run := func(ctx context.Context) error {
		reminders, err := repo.GetActiveReminders(ctx)
		if err != nil {
			return fmt.Errorf("failed to load active reminders: %w", err)
		}

		res := sched.ScheduleAllActive(ctx, reminders)
		log.Printf("Re-armed %d reminders (%d degraded, %d failed, %d missed)",
			res.Scheduled, res.Degraded, len(res.Failed), len(res.Missed))
		for _, missed := range res.Missed {
			sessions.HandleMissed(ctx, missed)
		}

		return queue.Run(ctx)
	}
	g := guard.New(run, cfg.RestartBackoff)
	if err := g.Start(ctx); err != nil {
		log.Fatalf("Failed to start guard: %v", err)
	}

	// Handle graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Println("Shutting down...")
		g.Stop()
		waitForIdle(wake, 10*time.Second)
		cancel()
	}()

	log.Println("Starting bot...")
	if err := b.Start(ctx); err != nil && err != context.Canceled {
		log.Fatalf("Bot error: %v", err)
	}
}

// waitForIdle gives in-flight presentations a chance to release their
// wake holds before the process exits.
func waitForIdle(wake *delivery.WakeLock, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for !wake.Idle() {
		if time.Now().After(deadline) {
			log.Printf("Shutting down with %d wake holds still open", wake.HoldCount())
			return
		}
		time.Sleep(100 * time.Millisecond)
	}
}
