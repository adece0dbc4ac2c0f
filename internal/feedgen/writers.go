package feedgen

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// report is one vendor's rendering of an event.
type report struct {
	event
	occurred time.Time
}

// writeFeed renders reports in the vendor's format and writes the file.
func writeFeed(dir, vendor string, reports []report) (string, error) {
	if len(reports) == 0 {
		return "", nil
	}
	sort.SliceStable(reports, func(i, j int) bool { return reports[i].occurred.Before(reports[j].occurred) })

	var (
		data []byte
		ext  string
		err  error
	)
	switch vendor {
	case VendorYardA:
		data, err = renderCSV(reports)
		ext = ".csv"
	case VendorYardB:
		data, err = renderJSON(reports)
		ext = ".json"
	case VendorDepotC:
		data, err = renderXML(reports)
		ext = ".xml"
	case VendorNavseaD:
		data, err = renderYAML(reports)
		ext = ".yaml"
	default:
		return "", fmt.Errorf("unknown vendor %q", vendor)
	}
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, vendor+ext)
	if err := os.WriteFile(path, data, filePermission); err != nil {
		return "", err
	}
	return path, nil
}

// renderCSV uses yard A's column names and day-first dates.
func renderCSV(reports []report) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write([]string{"Hull", "Vessel", "Class", "Type", "Completed At", "Started", "WO", "Parts"})
	for _, r := range reports {
		started := ""
		if r.started != nil {
			started = r.started.UTC().Format("2006-01-02 15:04")
		}
		_ = w.Write([]string{
			r.hull, r.name, r.class, r.eventType,
			r.occurred.UTC().Format("2006-01-02 15:04"),
			started, r.workOrder, strings.Join(r.parts, ";"),
		})
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

type yardBRecord struct {
	VesselID        string   `json:"vessel_id"`
	VesselName      string   `json:"vessel_name"`
	MaintenanceType string   `json:"maintenance_type"`
	CompletionDate  string   `json:"completion_date"`
	StartDate       string   `json:"start_date,omitempty"`
	WONumber        string   `json:"wo_number"`
	Components      []string `json:"components"`
}

func renderJSON(reports []report) ([]byte, error) {
	out := make([]yardBRecord, 0, len(reports))
	for _, r := range reports {
		rec := yardBRecord{
			VesselID:        r.hull,
			VesselName:      r.name,
			MaintenanceType: r.eventType,
			CompletionDate:  r.occurred.UTC().Format(time.RFC3339),
			WONumber:        r.workOrder,
			Components:      r.parts,
		}
		if r.started != nil {
			rec.StartDate = r.started.UTC().Format(time.RFC3339)
		}
		out = append(out, rec)
	}
	return json.MarshalIndent(out, "", "  ")
}

type depotCParts struct {
	Part []string `xml:"part"`
}

type depotCRecord struct {
	XMLName     xml.Name    `xml:"record"`
	Hull        string      `xml:"hull,attr"`
	Task        string      `xml:"task"`
	PerformedAt string      `xml:"performed_at"`
	OpenedAt    string      `xml:"opened_at,omitempty"`
	WorkOrder   string      `xml:"work_order"`
	PartNumbers depotCParts `xml:"part_numbers"`
}

type depotCFeed struct {
	XMLName xml.Name       `xml:"records"`
	Records []depotCRecord `xml:"record"`
}

func renderXML(reports []report) ([]byte, error) {
	feed := depotCFeed{Records: make([]depotCRecord, 0, len(reports))}
	for _, r := range reports {
		rec := depotCRecord{
			Hull:        r.hull,
			Task:        r.eventType,
			PerformedAt: r.occurred.UTC().Format("2006-01-02T15:04:05"),
			WorkOrder:   r.workOrder,
			PartNumbers: depotCParts{Part: r.parts},
		}
		if r.started != nil {
			rec.OpenedAt = r.started.UTC().Format("2006-01-02T15:04:05")
		}
		feed.Records = append(feed.Records, rec)
	}
	body, err := xml.MarshalIndent(feed, "", "  ")
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), body...), nil
}

type navseaDRecord struct {
	Ship      string   `yaml:"ship"`
	Class     string   `yaml:"vessel_class"`
	Event     string   `yaml:"event"`
	Date      string   `yaml:"date"`
	Started   string   `yaml:"started,omitempty"`
	WorkOrder string   `yaml:"work_order"`
	Parts     []string `yaml:"parts"`
}

func renderYAML(reports []report) ([]byte, error) {
	out := make([]navseaDRecord, 0, len(reports))
	for _, r := range reports {
		rec := navseaDRecord{
			Ship:      r.hull,
			Class:     r.class,
			Event:     r.eventType,
			Date:      r.occurred.UTC().Format(time.RFC3339),
			WorkOrder: r.workOrder,
			Parts:     r.parts,
		}
		if r.started != nil {
			rec.Started = r.started.UTC().Format(time.RFC3339)
		}
		out = append(out, rec)
	}
	return yaml.Marshal(out)
}
