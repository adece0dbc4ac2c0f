package normalize_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/okian/fleetready/internal/domain/model"
	"github.com/okian/fleetready/internal/domain/normalize"
	. "github.com/smartystreets/goconvey/convey"
)

var overhaulAt = time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

type sample struct {
	format model.Format
	data   []byte
}

func samples() []sample {
	return []sample{
		{model.FormatCSV, []byte("Hull Number,Vessel,Maintenance Type,Completion Date,WO,Parts\n" +
			"DDG-51,Arleigh Burke,Engine Overhaul,2025-03-01,WO-1,\"GT-2;GT-1\"\n")},
		{model.FormatXML, []byte(`<record hull="DDG-51"><vessel>Arleigh Burke</vessel>` +
			`<type>engine overhaul</type><completed_at>2025-03-01T00:00:00Z</completed_at>` +
			`<wo>WO-1</wo><parts><part>GT-1</part><part>GT-2</part></parts></record>`)},
		{model.FormatJSON, []byte(`{"ship_id":"DDG-51","vessel":"Arleigh Burke","event_type":"Engine Overhaul",` +
			`"occurred_at":"2025-03-01 00:00:00","work_order":"WO-1","parts":["GT-2","GT-1","GT-1"]}`)},
		{model.FormatYAML, []byte("hull: DDG-51\nvessel: Arleigh Burke\ntype: engine-overhaul\n" +
			"date: 01/03/2025\nwo: WO-1\nparts:\n  - GT-1\n  - GT-2\n")},
	}
}

func TestNormalizeFormats(t *testing.T) {
	n := normalize.New()

	Convey("Given the same engine overhaul in every supported format", t, func() {
		for _, sm := range samples() {
			format, data := sm.format, sm.data
			Convey(fmt.Sprintf("When normalizing the %s record", format), func() {
				rec, err := n.Normalize(model.RawRecord{Source: "vendor-a", Format: format, Data: data})

				Convey("Then it yields the same canonical fields", func() {
					So(err, ShouldBeNil)
					So(rec.ShipID, ShouldEqual, "DDG-51")
					So(rec.ShipName, ShouldEqual, "Arleigh Burke")
					So(rec.EventType, ShouldEqual, "engine_overhaul")
					So(rec.OccurredAt.Equal(overhaulAt), ShouldBeTrue)
					So(rec.OccurredAt.Location(), ShouldEqual, time.UTC)
					So(rec.WorkOrder, ShouldEqual, "WO-1")
					So(rec.Parts, ShouldResemble, []string{"GT-1", "GT-2"})
					So(rec.RecordID, ShouldEqual, model.RecordID("vendor-a", format, data))
				})

				Convey("Then repeated calls are identical", func() {
					again, err2 := n.Normalize(model.RawRecord{Source: "vendor-a", Format: format, Data: data})
					So(err2, ShouldBeNil)
					So(again, ShouldResemble, rec)
				})
			})
		}
	})
}

func TestNormalizeErrors(t *testing.T) {
	n := normalize.New()

	Convey("Given malformed input", t, func() {
		cases := []struct {
			name string
			raw  model.RawRecord
		}{
			{"unknown format", model.RawRecord{Source: "s", Format: "edifact", Data: []byte("x")}},
			{"broken json", model.RawRecord{Source: "s", Format: model.FormatJSON, Data: []byte(`{"ship_id":`)}},
			{"json array", model.RawRecord{Source: "s", Format: model.FormatJSON, Data: []byte(`[1,2]`)}},
			{"broken xml", model.RawRecord{Source: "s", Format: model.FormatXML, Data: []byte(`<record><hull>`)}},
			{"header only csv", model.RawRecord{Source: "s", Format: model.FormatCSV, Data: []byte("hull,type,date\n")}},
			{"ragged csv", model.RawRecord{Source: "s", Format: model.FormatCSV, Data: []byte("hull,type,date\nA,b\n")}},
			{"multi-row csv", model.RawRecord{Source: "s", Format: model.FormatCSV, Data: []byte("hull,type,date\nA,b,2025-01-01\nB,c,2025-01-02\n")}},
			{"yaml scalar", model.RawRecord{Source: "s", Format: model.FormatYAML, Data: []byte("just text")}},
			{"bad timestamp", model.RawRecord{Source: "s", Format: model.FormatJSON, Data: []byte(`{"ship_id":"A","event_type":"x","occurred_at":"yesterday"}`)}},
			{"bad due timestamp", model.RawRecord{Source: "s", Format: model.FormatJSON, Data: []byte(`{"ship_id":"A","event_type":"x","occurred_at":"2025-01-01","due_at":"soon"}`)}},
		}
		for _, tc := range cases {
			Convey("When normalizing "+tc.name, func() {
				_, err := n.Normalize(tc.raw)

				Convey("Then a FormatError is returned", func() {
					So(err, ShouldNotBeNil)
					So(errors.Is(err, normalize.ErrFormat), ShouldBeTrue)
					var fe *normalize.FormatError
					So(errors.As(err, &fe), ShouldBeTrue)
					So(normalize.Reason(err), ShouldEqual, "format")
				})
			})
		}
	})

	Convey("Given a record without required fields", t, func() {
		raw := model.RawRecord{Source: "s", Format: model.FormatJSON, Data: []byte(`{"vessel":"Arleigh Burke","notes":"done"}`)}

		Convey("When normalizing it", func() {
			_, err := n.Normalize(raw)

			Convey("Then a SchemaMismatchError names every missing field", func() {
				So(errors.Is(err, normalize.ErrSchemaMismatch), ShouldBeTrue)
				var se *normalize.SchemaMismatchError
				So(errors.As(err, &se), ShouldBeTrue)
				So(se.Missing, ShouldContain, "ship_id")
				So(se.Missing, ShouldContain, "event_type")
				So(se.Missing, ShouldContain, "occurred_at")
				So(normalize.Reason(err), ShouldEqual, "schema")
			})
		})
	})
}

func TestNormalizeOptions(t *testing.T) {
	Convey("Given vendor-specific aliases and layouts", t, func() {
		n := normalize.New(
			normalize.WithAliases(map[string]string{"Pennant": normalize.FieldShipID}),
			normalize.WithTimeLayouts("Jan 2 2006"),
		)
		raw := model.RawRecord{Source: "s", Format: model.FormatCSV, Data: []byte("pennant,job,when\nF-230,Hull Inspection,Mar 1 2025\n")}

		Convey("When a column is unknown", func() {
			_, err := n.Normalize(raw)

			Convey("Then it is ignored and the record lacks fields", func() {
				So(errors.Is(err, normalize.ErrSchemaMismatch), ShouldBeTrue)
			})
		})

		Convey("When every column is known", func() {
			n2 := normalize.New(
				normalize.WithAliases(map[string]string{"pennant": "ship_id", "job": "event_type", "when": "occurred_at"}),
				normalize.WithTimeLayouts("Jan 2 2006"),
			)
			rec, err := n2.Normalize(raw)

			Convey("Then aliases and layouts are applied", func() {
				So(err, ShouldBeNil)
				So(rec.ShipID, ShouldEqual, "F-230")
				So(rec.EventType, ShouldEqual, "hull_inspection")
				So(rec.OccurredAt.Equal(overhaulAt), ShouldBeTrue)
			})
		})
	})

	Convey("Given a JSON payload with explicit field paths", t, func() {
		n := normalize.New()
		raw := model.RawRecord{
			Source: "vendor-api",
			Format: model.FormatJSON,
			Data:   []byte(`{"asset":{"hull":"LHD-1"},"job":{"kind":"Radar Calibration","done":"2025-03-01T00:00:00Z","started":"2025-02-27T00:00:00Z"}}`),
			Fields: map[string]string{
				"ship_id":     "asset.hull",
				"event_type":  "job.kind",
				"occurred_at": "job.done",
				"started_at":  "job.started",
			},
		}
		rec, err := n.Normalize(raw)

		Convey("Then nested values are resolved", func() {
			So(err, ShouldBeNil)
			So(rec.ShipID, ShouldEqual, "LHD-1")
			So(rec.EventType, ShouldEqual, "radar_calibration")
			So(rec.StartedAt, ShouldNotBeNil)
			So(rec.OccurredAt.Sub(*rec.StartedAt), ShouldEqual, 48*time.Hour)
		})
	})
}

func TestParts(t *testing.T) {
	Convey("Given part lists with mixed separators", t, func() {
		So(normalize.Parts("b; a | c,a ,"), ShouldResemble, []string{"a", "b", "c"})
		So(normalize.Parts("  "), ShouldBeNil)
		So(normalize.Parts(",;|"), ShouldBeNil)
	})
}

func TestSplit(t *testing.T) {
	Convey("Given multi-record files", t, func() {
		Convey("When splitting a CSV file", func() {
			data := []byte("hull,type,date\nA,x,2025-01-01\nB,y,2025-01-02\n")
			parts, err := normalize.Split(model.FormatCSV, data)

			Convey("Then each row keeps the header", func() {
				So(err, ShouldBeNil)
				So(len(parts), ShouldEqual, 2)
				So(string(parts[0]), ShouldEqual, "hull,type,date\nA,x,2025-01-01\n")
				So(string(parts[1]), ShouldEqual, "hull,type,date\nB,y,2025-01-02\n")
			})
		})

		Convey("When splitting a single-row CSV file", func() {
			data := []byte("hull,type,date\nA,x,2025-01-01")
			parts, err := normalize.Split(model.FormatCSV, data)

			Convey("Then the bytes are unchanged", func() {
				So(err, ShouldBeNil)
				So(len(parts), ShouldEqual, 1)
				So(string(parts[0]), ShouldEqual, string(data))
			})
		})

		Convey("When splitting a JSON array", func() {
			parts, err := normalize.Split(model.FormatJSON, []byte(`[{"ship_id":"A"}, {"ship_id":"B"}]`))

			Convey("Then each element is one record", func() {
				So(err, ShouldBeNil)
				So(len(parts), ShouldEqual, 2)
				So(string(parts[1]), ShouldEqual, `{"ship_id":"B"}`)
			})
		})

		Convey("When splitting an XML envelope", func() {
			data := []byte(`<records><record hull="A"><type>x</type><date>2025-01-01</date></record><record hull="B"><type>y</type><date>2025-01-02</date></record></records>`)
			parts, err := normalize.Split(model.FormatXML, data)

			Convey("Then each record normalizes on its own", func() {
				So(err, ShouldBeNil)
				So(len(parts), ShouldEqual, 2)
				rec, err := normalize.New().Normalize(model.RawRecord{Source: "s", Format: model.FormatXML, Data: parts[1]})
				So(err, ShouldBeNil)
				So(rec.ShipID, ShouldEqual, "B")
				So(rec.EventType, ShouldEqual, "y")
			})
		})

		Convey("When splitting a YAML sequence", func() {
			data := []byte("- hull: A\n  type: x\n  date: 2025-01-01\n- hull: B\n  type: y\n  date: 2025-01-02\n")
			parts, err := normalize.Split(model.FormatYAML, data)

			Convey("Then each item normalizes on its own", func() {
				So(err, ShouldBeNil)
				So(len(parts), ShouldEqual, 2)
				rec, err := normalize.New().Normalize(model.RawRecord{Source: "s", Format: model.FormatYAML, Data: parts[0]})
				So(err, ShouldBeNil)
				So(rec.ShipID, ShouldEqual, "A")
			})
		})

		Convey("When splitting a single YAML mapping", func() {
			data := []byte("hull: A\ntype: x\ndate: 2025-01-01\n")
			parts, err := normalize.Split(model.FormatYAML, data)

			Convey("Then the bytes are unchanged", func() {
				So(err, ShouldBeNil)
				So(len(parts), ShouldEqual, 1)
				So(string(parts[0]), ShouldEqual, string(data))
			})
		})

		Convey("When the format is unknown", func() {
			_, err := normalize.Split("edifact", []byte("x"))

			Convey("Then a FormatError is returned", func() {
				So(errors.Is(err, normalize.ErrFormat), ShouldBeTrue)
			})
		})
	})
}

func TestNormalizeBatch(t *testing.T) {
	n := normalize.New()

	Convey("Given a batch mixing valid and invalid records", t, func() {
		raws := make([]model.RawRecord, 0, 50)
		for i := 0; i < 50; i++ {
			data := []byte(fmt.Sprintf(`{"ship_id":"S-%d","event_type":"hull_inspection","occurred_at":"2025-01-01"}`, i))
			if i%10 == 0 {
				data = []byte(`{"ship_id":`)
			}
			raws = append(raws, model.RawRecord{Source: "s", Format: model.FormatJSON, Data: data})
		}

		Convey("When normalizing in parallel", func() {
			results, err := n.NormalizeBatch(context.Background(), raws, 4)

			Convey("Then results keep the input order", func() {
				So(err, ShouldBeNil)
				So(len(results), ShouldEqual, len(raws))
				for i, r := range results {
					if i%10 == 0 {
						So(errors.Is(r.Err, normalize.ErrFormat), ShouldBeTrue)
						continue
					}
					So(r.Err, ShouldBeNil)
					So(r.Record.ShipID, ShouldEqual, fmt.Sprintf("S-%d", i))
				}
			})
		})

		Convey("When the context is already cancelled", func() {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			_, err := n.NormalizeBatch(ctx, raws, 4)

			Convey("Then the context error is returned", func() {
				So(errors.Is(err, context.Canceled), ShouldBeTrue)
			})
		})
	})
}

func TestByteOrderMark(t *testing.T) {
	bom := "\ufeff"

	Convey("Given a spreadsheet export that starts with a byte order mark", t, func() {
		data := []byte(bom + "Hull Number,Maintenance Type,Completion Date\nDDG-51,Engine Overhaul,2025-03-01\n")

		Convey("When normalizing it", func() {
			rec, err := normalize.New().Normalize(model.RawRecord{Source: "vendor-a", Format: model.FormatCSV, Data: data})

			Convey("Then the first header still maps to the ship", func() {
				So(err, ShouldBeNil)
				So(rec.ShipID, ShouldEqual, "DDG-51")
				So(rec.OccurredAt.Equal(overhaulAt), ShouldBeTrue)
			})
		})

		Convey("When splitting a multi-row export", func() {
			multi := []byte(bom + "hull,type,date\nA,x,2025-01-01\nB,y,2025-01-02\n")
			parts, err := normalize.Split(model.FormatCSV, multi)

			Convey("Then the rows carry a clean header", func() {
				So(err, ShouldBeNil)
				So(len(parts), ShouldEqual, 2)
				So(string(parts[0]), ShouldEqual, "hull,type,date\nA,x,2025-01-01\n")
				rec, err := normalize.New().Normalize(model.RawRecord{Source: "s", Format: model.FormatCSV, Data: parts[1]})
				So(err, ShouldBeNil)
				So(rec.ShipID, ShouldEqual, "B")
			})
		})
	})
}
