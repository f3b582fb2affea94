package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("RIDEHAIL_STORAGE", "")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Matching.RadiusKm != 10 || cfg.Matching.MaxCandidates != 5 {
		t.Errorf("unexpected matching defaults: %+v", cfg.Matching)
	}
	if cfg.Matching.CandidateTTL != 5*time.Minute || cfg.Matching.StaleAfter != 5*time.Minute {
		t.Errorf("unexpected matching ttl defaults: %+v", cfg.Matching)
	}
	if cfg.Pricing.BaseFare != 50 || cfg.Pricing.PerKm != 12 || cfg.Pricing.PerMinute != 2 {
		t.Errorf("unexpected pricing defaults: %+v", cfg.Pricing)
	}
	if cfg.Pricing.Multipliers["premium"] != 1.5 {
		t.Errorf("premium multiplier = %v", cfg.Pricing.Multipliers["premium"])
	}
	if cfg.Settlement.CommissionRate != 0.10 {
		t.Errorf("commission = %v", cfg.Settlement.CommissionRate)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("RIDEHAIL_STORAGE", StorageMemory)
	t.Setenv("RIDEHAIL_MATCH_RADIUS_KM", "4.5")
	t.Setenv("RIDEHAIL_MATCH_STALE_AFTER", "90")
	t.Setenv("RIDEHAIL_MATCH_CANDIDATE_TTL", "2m")
	t.Setenv("RIDEHAIL_MATCH_REQUIRE_OFFER", "true")
	t.Setenv("RIDEHAIL_PRICING_USE_ROAD_ROUTES", "true")
	t.Setenv("RIDEHAIL_GOOGLE_MAPS_KEY", "test-key")
	t.Setenv("RIDEHAIL_COMMISSION_RATE", "0.2")
	t.Setenv("RIDEHAIL_NOTIFY_WORKERS", "not-a-number")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Matching.RadiusKm != 4.5 {
		t.Errorf("radius = %v", cfg.Matching.RadiusKm)
	}
	if cfg.Matching.StaleAfter != 90*time.Second {
		t.Errorf("stale after = %v", cfg.Matching.StaleAfter)
	}
	if cfg.Matching.CandidateTTL != 2*time.Minute {
		t.Errorf("candidate ttl = %v", cfg.Matching.CandidateTTL)
	}
	if !cfg.Matching.RequireOffer {
		t.Errorf("require offer not applied")
	}
	if !cfg.Pricing.UseRoadRoutes {
		t.Errorf("road routes not applied")
	}
	if cfg.Settlement.CommissionRate != 0.2 {
		t.Errorf("commission rate = %v", cfg.Settlement.CommissionRate)
	}
	if cfg.Notification.Workers != 4 {
		t.Errorf("bad int should fall back to default, got %d", cfg.Notification.Workers)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"RIDEHAIL_STORAGE":         "mongo",
		"RIDEHAIL_COMMISSION_RATE": "1.5",
		"RIDEHAIL_NOTIFY_SENDER":   "sms",
	}
	for key, val := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, val)
			if _, err := Load(); err == nil {
				t.Fatalf("expected error for %s=%s", key, val)
			}
		})
	}
}
