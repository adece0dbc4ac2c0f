// Package feedgen writes synthetic vendor maintenance feeds for load and
// end-to-end testing. Every vendor uses its own column names and file
// format, and a share of events is reported by two vendors with skewed
// timestamps so the merge path is exercised.
package feedgen

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/fleetready/pkg/logger"
)

// Error constants.
var (
	ErrInvalidConfig = errors.New("invalid feed config")
	ErrWrite         = errors.New("feed write failed")
)

// Generate builds the fleet, renders one file per vendor into cfg.OutDir
// and reports what was written. The same Seed always yields the same files.
func Generate(ctx context.Context, cfg Config) (Stats, error) {
	if cfg.Ships < 1 || cfg.EventsPerShip < 1 {
		return Stats{}, fmt.Errorf("%w: ships and events must be positive", ErrInvalidConfig)
	}
	if cfg.Overlap < 0 || cfg.Overlap > 1 {
		return Stats{}, fmt.Errorf("%w: overlap must be within 0..1", ErrInvalidConfig)
	}
	if cfg.Now.IsZero() {
		cfg.Now = time.Now()
	}
	if err := os.MkdirAll(cfg.OutDir, dirPermission); err != nil {
		return Stats{}, fmt.Errorf("%w: %v", ErrWrite, err)
	}

	log := logger.Get().Named("feedgen")
	log.Info(ctx, "generating vendor feeds",
		logger.Int("ships", cfg.Ships),
		logger.Int("events_per_ship", cfg.EventsPerShip),
		logger.Float64("overlap", cfg.Overlap))

	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)) //nolint:gosec // synthetic data
	feeds := make(map[string][]report, len(Vendors))
	events := generateEvents(rng, cfg)
	for i, ev := range events {
		primary := Vendors[i%len(Vendors)]
		feeds[primary] = append(feeds[primary], report{event: ev, occurred: ev.occurred})
		if rng.Float64() >= cfg.Overlap {
			continue
		}
		second := Vendors[(i+1+rng.IntN(len(Vendors)-1))%len(Vendors)]
		skew := time.Duration(rng.Int64N(int64(2*maxSkew))) - maxSkew
		feeds[second] = append(feeds[second], report{event: ev, occurred: ev.occurred.Add(skew).Truncate(time.Minute)})
	}

	stats := Stats{Ships: cfg.Ships, Events: len(events), Files: make(map[string]string, len(Vendors))}
	paths := make([]string, len(Vendors))
	g, gctx := errgroup.WithContext(ctx)
	for i, vendor := range Vendors {
		reports := feeds[vendor]
		stats.Records += len(reports)
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			path, err := writeFeed(cfg.OutDir, vendor, reports)
			if err != nil {
				return fmt.Errorf("%w: %s: %v", ErrWrite, vendor, err)
			}
			paths[i] = path
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Stats{}, err
	}
	for i, vendor := range Vendors {
		if len(feeds[vendor]) > 0 {
			stats.Files[vendor] = paths[i]
		}
	}

	log.Info(ctx, "vendor feeds written",
		logger.Int("events", stats.Events),
		logger.Int("records", stats.Records),
		logger.String("dir", cfg.OutDir))
	return stats, nil
}

// generateEvents creates EventsPerShip events per ship spread over the year
// before cfg.Now. Corrective repairs carry a start time.
func generateEvents(rng *rand.Rand, cfg Config) []event {
	end := cfg.Now.UTC().Truncate(time.Hour)
	out := make([]event, 0, cfg.Ships*cfg.EventsPerShip)
	for s := 0; s < cfg.Ships; s++ {
		class := shipClasses[s%len(shipClasses)]
		hull := class + "-" + strconv.Itoa(100+s)
		name := "USS Synthetic " + strconv.Itoa(s+1)
		for e := 0; e < cfg.EventsPerShip; e++ {
			typ := EventTypes[rng.IntN(len(EventTypes))]
			occurred := end.Add(-time.Duration(rng.IntN(yearDays*24)) * time.Hour)
			ev := event{
				hull:      hull,
				name:      name,
				class:     class,
				eventType: typ,
				occurred:  occurred,
				workOrder: fmt.Sprintf("WO-%04d-%05d", s, e),
				parts:     pickParts(rng, hull),
			}
			if typ == "Corrective Repair" {
				started := occurred.Add(-time.Duration(1+rng.Int64N(int64(maxRepair/time.Hour))) * time.Hour)
				ev.started = &started
			}
			out = append(out, ev)
		}
	}
	return out
}

func pickParts(rng *rand.Rand, hull string) []string {
	n := 1 + rng.IntN(3)
	seen := make(map[string]struct{}, n)
	parts := make([]string, 0, n)
	for len(parts) < n {
		p := hull + "-P" + strconv.Itoa(rng.IntN(partsPerShip))
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		parts = append(parts, p)
	}
	return parts
}
