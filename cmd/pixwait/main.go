// Command pixwait follows a PIX intent the way the buyer's browser does: it polls the
// status endpoint with backoff until the payment settles or the wait budget runs out.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"desapego-pix/internal/pixclient"
)

func main() {
	base := flag.String("url", "http://localhost:8080", "service base URL")
	id := flag.String("id", "", "payment intent id")
	budget := flag.Duration("budget", 15*time.Minute, "give up after this long")
	verbose := flag.Bool("v", false, "log every poll")
	flag.Parse()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).With().Timestamp().Logger()
	if !*verbose {
		logger = logger.Level(zerolog.InfoLevel)
	}
	if *id == "" {
		logger.Fatal().Msg("-id is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	p, err := pixclient.New(pixclient.Options{
		BaseURL: *base,
		Budget:  *budget,
		Logger:  &logger,
		OnTick: func(status string, err error) {
			if err != nil {
				logger.Debug().Err(err).Msg("waiting for payment (status unavailable)")
				return
			}
			logger.Debug().Str("status", status).Msg("waiting for payment")
		},
		OnApproved: func(intentID string) {
			fmt.Printf("payment %s approved, listing is live\n", intentID)
		},
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("poller")
	}

	out, err := p.Wait(ctx, *id)
	if err != nil {
		logger.Error().Err(err).Msg("stopped")
		os.Exit(130)
	}
	switch out {
	case pixclient.OutcomeApproved:
	case pixclient.OutcomeRejected:
		fmt.Printf("payment %s was rejected\n", *id)
		os.Exit(1)
	case pixclient.OutcomeGaveUp:
		fmt.Printf("payment %s still pending after %s; check back later\n", *id, *budget)
		os.Exit(2)
	}
}
