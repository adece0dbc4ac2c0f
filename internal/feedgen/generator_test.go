package feedgen

import (
	"context"
	"os"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/fleetready/internal/adapters/inbox"
	"github.com/okian/fleetready/internal/domain/model"
	"github.com/okian/fleetready/internal/domain/normalize"
	"github.com/okian/fleetready/pkg/logger"
)

func init() {
	_ = logger.Init()
}

var genNow = time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)

func TestGenerate(t *testing.T) {
	Convey("Given a feed configuration", t, func() {
		ctx := context.Background()
		cfg := Config{Ships: 3, EventsPerShip: 8, OutDir: t.TempDir(), Seed: 42, Overlap: 0.5, Now: genNow}

		Convey("When generating feeds", func() {
			stats, err := Generate(ctx, cfg)
			So(err, ShouldBeNil)

			Convey("Then every vendor file exists", func() {
				So(stats.Ships, ShouldEqual, 3)
				So(stats.Events, ShouldEqual, 24)
				So(stats.Records, ShouldBeGreaterThanOrEqualTo, 24)
				So(len(stats.Files), ShouldEqual, len(Vendors))
			})

			Convey("And every record normalizes", func() {
				n := normalize.New()
				total := 0
				for _, vendor := range Vendors {
					path := stats.Files[vendor]
					format, ok := inbox.FormatFor(path)
					So(ok, ShouldBeTrue)
					data, err := os.ReadFile(path)
					So(err, ShouldBeNil)
					parts, err := normalize.Split(format, data)
					So(err, ShouldBeNil)
					for _, p := range parts {
						rec, err := n.Normalize(model.RawRecord{Source: vendor, Format: format, Data: p})
						So(err, ShouldBeNil)
						So(rec.ShipID, ShouldNotBeBlank)
						So(rec.WorkOrder, ShouldStartWith, "WO-")
						So(rec.OccurredAt.Before(genNow), ShouldBeTrue)
						So(len(rec.Parts), ShouldBeGreaterThan, 0)
					}
					total += len(parts)
				}
				So(total, ShouldEqual, stats.Records)
			})
		})

		Convey("When the same seed is used twice", func() {
			other := cfg
			other.OutDir = t.TempDir()
			first, err := Generate(ctx, cfg)
			So(err, ShouldBeNil)
			second, err := Generate(ctx, other)
			So(err, ShouldBeNil)

			Convey("Then the files are identical", func() {
				for _, vendor := range Vendors {
					a, _ := os.ReadFile(first.Files[vendor])
					b, _ := os.ReadFile(second.Files[vendor])
					So(string(a), ShouldEqual, string(b))
				}
			})
		})

		Convey("When overlap is total", func() {
			cfg.Overlap = 1
			stats, err := Generate(ctx, cfg)
			So(err, ShouldBeNil)
			So(stats.Records, ShouldEqual, 2*stats.Events)
		})

		Convey("When overlap is zero", func() {
			cfg.Overlap = 0
			stats, err := Generate(ctx, cfg)
			So(err, ShouldBeNil)
			So(stats.Records, ShouldEqual, stats.Events)
		})
	})
}

func TestGenerateRejectsBadConfig(t *testing.T) {
	ctx := context.Background()
	cases := []Config{
		{Ships: 0, EventsPerShip: 1, OutDir: t.TempDir()},
		{Ships: 1, EventsPerShip: 0, OutDir: t.TempDir()},
		{Ships: 1, EventsPerShip: 1, OutDir: t.TempDir(), Overlap: 1.5},
	}
	for _, c := range cases {
		if _, err := Generate(ctx, c); err == nil {
			t.Errorf("expected error for %+v", c)
		}
	}
}
