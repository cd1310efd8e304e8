package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"photobooth/internal/domain"
	"photobooth/internal/infra"
	"photobooth/internal/tenant"
)

func main() {
	_ = godotenv.Load()

	var (
		listFlag   bool
		slugFlag   string
		activeFlag string
	)
	flag.BoolVar(&listFlag, "list", false, "list every event with its active flag")
	flag.StringVar(&slugFlag, "slug", "", "event slug to update")
	flag.StringVar(&activeFlag, "active", "", "set the event active flag (true or false)")
	flag.Parse()

	slug := strings.TrimSpace(slugFlag)
	if !listFlag && slug == "" {
		exitWithError(errors.New("either -list or -slug must be provided"))
	}

	dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dbURL == "" {
		exitWithError(errors.New("DATABASE_URL is required"))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		exitWithError(fmt.Errorf("failed to connect database: %w", err))
	}
	defer pool.Close()

	logger := infra.NewLogger("cli").With().Str("cmd", "eventctl").Logger()
	svc := tenant.NewService(tenant.NewPostgresStore(infra.NewSQLRunner(pool, logger)))

	if listFlag {
		events, err := svc.ListEvents(ctx, false)
		if err != nil {
			exitWithError(fmt.Errorf("failed to list events: %w", err))
		}
		for _, ev := range events {
			fmt.Printf("%s\t%s\tactive=%t\t%s\n", ev.ID, ev.Slug, ev.IsActive, ev.Name)
		}
		return
	}

	ev, err := svc.EventBySlug(ctx, slug, false)
	if err != nil {
		exitWithError(fmt.Errorf("failed to load event: %w", err))
	}
	if strings.TrimSpace(activeFlag) == "" {
		fmt.Printf("Event %s (%s) active=%t prompts=%d\n", ev.Slug, ev.ID, ev.IsActive, len(ev.Prompts))
		return
	}

	active, err := strconv.ParseBool(activeFlag)
	if err != nil {
		exitWithError(fmt.Errorf("invalid -active value %q", activeFlag))
	}
	updated, err := svc.UpdateEvent(ctx, ev.ID, domain.EventPatch{IsActive: &active})
	if err != nil {
		exitWithError(fmt.Errorf("failed to update event: %w", err))
	}
	fmt.Printf("Event %s (%s) updated to active=%t\n", updated.Slug, updated.ID, updated.IsActive)
}

func exitWithError(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
