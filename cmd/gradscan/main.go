// gradscan runs one eligibility scan: it mints and delivers a handover token
// for every student whose graduation date has passed, then prints the report.
// Deploy it on a schedule next to the server.
package main

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"gradlink/internal/delivery"
	"gradlink/internal/handover/metrics"
	"gradlink/internal/handover/token"
	studentstore "gradlink/internal/identity/store/student"
	"gradlink/internal/platform/config"
	"gradlink/internal/platform/logger"
	"gradlink/internal/platform/postgres"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel)

	if cfg.PostgresDSN == "" {
		log.Error("gradscan requires GRADLINK_POSTGRES_DSN")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	db, err := postgres.Open(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Error("postgres unavailable", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	var channel delivery.Channel
	if cfg.SESSender != "" {
		ses, err := delivery.NewSES(ctx, cfg.SESSender)
		if err != nil {
			log.Error("ses unavailable", "error", err)
			os.Exit(1)
		}
		channel = ses
	} else {
		log.Warn("no SES sender configured, tokens are minted without delivery")
	}

	svc := token.NewService(token.NewPostgres(db), studentstore.NewPostgres(db),
		channel, cfg.FrontendBaseURL, metrics.New(), log)

	report, err := svc.ScanEligible(ctx)
	if err != nil {
		log.Error("scan failed", "error", err)
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(report)
	if len(report.Errors) > 0 {
		os.Exit(2)
	}
}
