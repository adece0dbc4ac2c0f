package types_test

import (
	"encoding/json"
	"testing"
	"time"

	types "github.com/okian/fleetready/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

func TestEntry(t *testing.T) {
	Convey("Given a board entry", t, func() {
		entry := types.Entry{Rank: 1, ShipID: "DDG-51", Score: 42.5, ComputedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}

		Convey("When encoding it", func() {
			b, err := json.Marshal(entry)

			Convey("Then it uses snake case keys", func() {
				So(err, ShouldBeNil)
				So(string(b), ShouldEqual, `{"rank":1,"ship_id":"DDG-51","score":42.5,"computed_at":"2025-01-01T00:00:00Z"}`)
			})
		})
	})
}

func TestShipStatus(t *testing.T) {
	Convey("Given a ship that was never scored", t, func() {
		status := types.ShipStatus{ShipID: "DDG-51", RecentEvents: []types.EventView{}, OpenIssues: []types.IssueView{}}

		Convey("When encoding it", func() {
			b, err := json.Marshal(status)

			Convey("Then optional fields are omitted and lists stay arrays", func() {
				So(err, ShouldBeNil)
				So(string(b), ShouldEqual, `{"ship_id":"DDG-51","recent_events":[],"open_issues":[]}`)
			})
		})
	})
}
