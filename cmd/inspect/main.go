package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"busticket/internal/config"
	"busticket/internal/infrastructure/postgres"
)

func main() {
	fix := flag.Bool("fix", false, "reset outbox events stuck in processing back to new")
	limit := flag.Int("n", 5, "rows to show per table")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	cfg, err := config.New()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := postgres.NewClient(ctx, cfg.Postgres)
	if err != nil {
		logger.Error("unable to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	ticketRepo := postgres.NewTicketRepository(pool)
	outboxRepo := postgres.NewOutboxRepository(pool)

	if *fix {
		n, err := outboxRepo.ResetStuck(ctx)
		if err != nil {
			fmt.Printf("Fix failed: %v\n", err)
		} else {
			fmt.Printf("Fixed %d messages\n", n)
		}
	}

	loc := cfg.Ticket.Location()

	fmt.Println("--- Tickets ---")
	tickets, err := ticketRepo.ListRecent(ctx, *limit)
	if err != nil {
		logger.Error("list tickets", "error", err)
		os.Exit(1)
	}
	for _, t := range tickets {
		fmt.Printf("%s | %s | %s %s -> %s | Rs %d | %s | scans %d/%d | expires %s\n",
			t.ID, t.Number, t.RouteNumber, t.SourceStopName, t.DestinationStopName,
			t.Fare, t.Status, t.ScanCount, cfg.Ticket.MaxScans, t.ExpiresAt.In(loc).Format(time.DateTime))
	}

	fmt.Println("\n--- Outbox ---")
	events, err := outboxRepo.ListRecent(ctx, *limit)
	if err != nil {
		logger.Error("list outbox", "error", err)
		os.Exit(1)
	}
	for _, e := range events {
		fmt.Printf("ID: %s | Status: %s | Type: %s | Ticket: %s\n", e.ID, e.Status, e.EventType, e.CorrelationID)
	}
}
