package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"ad-delivery-engine/internal/config"
	"ad-delivery-engine/internal/engine"
	"ad-delivery-engine/internal/recorder"
)

type Store struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, cfg config.Config) (*Store, error) {
	dsn := cfg.DSN()
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres DSN: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.Postgres.MaxOpenConns)
	poolCfg.MinConns = int32(cfg.Postgres.MaxIdleConns)
	poolCfg.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// LoadEligibleCampaigns loads campaigns that are schedule-eligible on the
// given date. Location filtering stays in the engine, per request. The
// bound parameter is truncated to a calendar date so an end_date of today
// stays inside the inclusive window all day.
func (s *Store) LoadEligibleCampaigns(ctx context.Context, today time.Time) ([]engine.Campaign, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	day := engine.DateOnly(today)

	rows, err := s.pool.Query(ctx, `
		SELECT id, advertiser, headline, description, creative_url, video_seconds,
		       cta_text, cta_url, ad_level, target_countries, target_cities,
		       status, start_date, end_date
		FROM ad_campaigns
		WHERE status = 'active'
		  AND start_date <= $1
		  AND (end_date IS NULL OR end_date >= $1)
		ORDER BY id
	`, day)
	if err != nil {
		return nil, fmt.Errorf("query campaigns: %w", err)
	}
	defer rows.Close()

	var out []engine.Campaign
	for rows.Next() {
		var (
			c                  engine.Campaign
			headline, desc     sql.NullString
			videoSecs          sql.NullFloat64
			ctaText, ctaURL    sql.NullString
			level              string
			countries, cities  []string
			status             string
			startDate, endDate *time.Time
		)
		if err := rows.Scan(&c.ID, &c.Advertiser, &headline, &desc, &c.CreativeURL, &videoSecs,
			&ctaText, &ctaURL, &level, &countries, &cities,
			&status, &startDate, &endDate); err != nil {
			return nil, fmt.Errorf("scan campaign: %w", err)
		}
		c.Headline = headline.String
		c.Description = desc.String
		c.VideoSeconds = videoSecs.Float64
		c.CTAText = ctaText.String
		c.CTAURL = ctaURL.String
		c.AdLevel = engine.AdLevel(strings.ToLower(strings.TrimSpace(level)))
		c.TargetCountries = countries
		c.TargetCities = cities
		c.Status = engine.Status(strings.ToLower(strings.TrimSpace(status)))
		if startDate != nil {
			c.StartDate = *startDate
		}
		c.EndDate = endDate
		out = append(out, c)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

// InsertImpression appends one impression to the attribution ledger.
func (s *Store) InsertImpression(ctx context.Context, imp recorder.Impression) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO ad_impressions (id, campaign_id, country, city, device, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, imp.EventID, imp.CampaignID, imp.Country, imp.City, imp.Device, imp.OccurredAt)
	if err != nil {
		return fmt.Errorf("insert impression: %w", err)
	}
	return nil
}

// InsertClick appends one click to the attribution ledger.
func (s *Store) InsertClick(ctx context.Context, clk recorder.Click) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO ad_clicks (id, campaign_id, occurred_at)
		VALUES ($1, $2, $3)
	`, clk.EventID, clk.CampaignID, clk.OccurredAt)
	if err != nil {
		return fmt.Errorf("insert click: %w", err)
	}
	return nil
}

func (s *Store) ListenChannel() string {
	return "ad_data_change"
}

func (s *Store) PgxPool() *pgxpool.Pool {
	if s.pool == nil {
		panic(errors.New("pgx pool is nil"))
	}
	return s.pool
}
