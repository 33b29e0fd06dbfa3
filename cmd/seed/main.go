// Command seed inserts a pending listing so the payment flow can be exercised end to end.
package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/rs/zerolog"

	"desapego-pix/internal/clock"
	"desapego-pix/internal/config"
	"desapego-pix/internal/domain/model"
	pg "desapego-pix/internal/infra/db/postgres"
	"desapego-pix/internal/infra/logging"
	"desapego-pix/internal/usecase"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	seller := flag.String("seller", "seed-seller", "seller id")
	title := flag.String("title", "Bicicleta aro 29", "listing title")
	planID := flag.Int("plan", model.DefaultPlanID, "plan id")
	price := flag.Float64("price", 850, "asking price in BRL")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, false)
	if err != nil {
		boot := zerolog.New(os.Stderr)
		boot.Fatal().Err(err).Msg("load config")
	}
	logger := logging.New(cfg.Log, false)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 2)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()

	plans := model.DefaultPlanCatalog()
	uc := usecase.NewListingUseCase(pg.NewListingRepo(pool), plans, pg.NewTxManager(pool), clock.New(), logger)
	l, err := uc.Create(ctx, *seller, *title, *planID, int64(math.Round(*price*100)))
	if err != nil {
		logger.Fatal().Err(err).Msg("create listing")
	}
	plan, _ := plans.Lookup(l.PlanID)
	fmt.Printf("seeded listing %s (%q, plan %s: %d days, R$ %.2f, status=%s)\n",
		l.ID, l.Title, plan.Name, plan.DurationDays, float64(plan.PriceCents)/100, l.Status)
}
