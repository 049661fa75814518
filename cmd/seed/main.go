package main

import (
	"context"
	"os"

	"github.com/rs/zerolog"

	"carflex/internal/config"
	"carflex/internal/pack"
	packrepository "carflex/internal/pack/repository"
	"carflex/pkg/db"
)

func intPtr(n int) *int { return &n }

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg := config.Load()

	database, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("database connection failed")
	}
	defer database.Close()

	ctx := context.Background()
	repo := packrepository.NewPostgresPackRepository(database)

	count, err := repo.Count(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("counting packs failed")
	}
	if count > 0 {
		logger.Info().Int("packs", count).Msg("packs already seeded, skipping")
		return
	}

	packs := []*pack.Pack{
		{
			Name:         "Budget",
			Subtitle:     "Economy & Compact",
			PriceMonthly: "299.00",
			PriceYearly:  "2990.00",
			MileageLimit: intPtr(1500),
			Features: []string{
				"Economy and compact vehicles",
				"1,500 miles per month",
				"Basic insurance included",
				"24/7 roadside assistance",
				"1 free vehicle swap per month",
				"Standard maintenance",
			},
		},
		{
			Name:         "Midrange",
			Subtitle:     "Sedans & SUVs",
			PriceMonthly: "499.00",
			PriceYearly:  "4990.00",
			MileageLimit: intPtr(2500),
			Features: []string{
				"Premium sedans and SUVs",
				"2,500 miles per month",
				"Comprehensive insurance",
				"Priority roadside assistance",
				"2 free vehicle swaps per month",
				"Premium maintenance",
				"Dedicated support line",
			},
			IsPopular: true,
		},
		{
			Name:         "Luxury",
			Subtitle:     "Premium & Sports",
			PriceMonthly: "899.00",
			PriceYearly:  "8990.00",
			Features: []string{
				"Luxury and sports vehicles",
				"Unlimited mileage",
				"Full coverage insurance",
				"VIP roadside assistance",
				"Unlimited vehicle swaps",
				"White-glove service",
				"Concierge support 24/7",
				"Airport delivery available",
			},
		},
	}

	for _, p := range packs {
		if err := repo.Create(ctx, p); err != nil {
			logger.Fatal().Err(err).Str("pack", p.Name).Msg("seeding pack failed")
		}
		logger.Info().Str("pack", p.Name).Str("id", p.ID).Msg("pack created")
	}

	logger.Info().Msg("database seeded")
}
