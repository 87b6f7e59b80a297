package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"feedback-engine/internal/analytics"
	"feedback-engine/internal/config"
	"feedback-engine/internal/conversation"
	"feedback-engine/internal/llm"
	"feedback-engine/internal/notify"
	"feedback-engine/internal/scheduler"
	"feedback-engine/internal/server"
	"feedback-engine/internal/storage"
)

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: .env file not found: %v", err)
	}

	cfg := config.New()

	store, err := storage.NewFileStore(cfg.ConversationsDir)
	if err != nil {
		log.Fatalf("failed to init conversation store: %v", err)
	}

	factory := llm.NewFactory(cfg)
	client, err := factory.CreateClient(string(cfg.LLMProvider))
	if err != nil {
		log.Fatalf("failed to init llm client: %v", err)
	}
	log.Printf("✅ LLM provider configured: %s", cfg.LLMProvider)

	var notifier *notify.Notifier
	if cfg.TelegramBotToken != "" && cfg.AdminChatID != 0 {
		notifier, err = notify.New(cfg.TelegramBotToken, cfg.AdminChatID)
		if err != nil {
			log.Printf("failed to init notifier, continuing without: %v", err)
		}
	}

	var alerter conversation.Alerter
	if notifier != nil {
		alerter = notifier
	}
	engine := conversation.NewEngine(client, store, alerter)

	var sched *scheduler.Scheduler
	if cfg.DailyDigest && notifier != nil {
		sched = scheduler.New()
		sched.SetDigestFunction(func(ctx context.Context) error {
			return sendDailyDigest(store, notifier)
		})
		if err := sched.Start(); err != nil {
			log.Printf("failed to start digest scheduler: %v", err)
		}
	}

	srv := server.New(engine, store, client, cfg.Port)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-stop
		log.Println("shutting down...")
		if sched != nil {
			sched.Stop()
		}
		if err := srv.Stop(); err != nil {
			log.Printf("server shutdown error: %v", err)
		}
	}()

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("server error: %v", err)
	}
}

// sendDailyDigest renders yesterday-inclusive totals into a short admin
// message. Empty stores are not an error worth paging anyone about.
func sendDailyDigest(store storage.Store, notifier *notify.Notifier) error {
	report, err := analytics.BuildReport(store, "", "")
	if err != nil {
		if errors.Is(err, analytics.ErrNoRecords) {
			log.Println("daily digest skipped: no conversations yet")
			return nil
		}
		return err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📊 Daily feedback digest\nConversations: %d\n", report.Summary.TotalConversations)
	if report.Summary.AvgScore != nil {
		fmt.Fprintf(&b, "Average score: %.2f\n", *report.Summary.AvgScore)
	}
	fmt.Fprintf(&b, "Completed: %.1f%%\n", report.Summary.CompletedPct)
	if len(report.TopFeedback) > 0 {
		b.WriteString("Top feedback:\n")
		for _, item := range report.TopFeedback {
			fmt.Fprintf(&b, "- %s (%d)\n", item.Text, item.Count)
		}
	}
	notifier.Send(b.String())
	return nil
}
