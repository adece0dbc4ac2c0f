// Package normalize turns raw vendor records of any supported format into
// canonical records.
//
// Normalization is side-effect free and deterministic: the same raw record
// always yields the same canonical record, including its RecordID.
package normalize

import (
	"bytes"
	"encoding/csv"
	"encoding/xml"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/tidwall/gjson"
	"gopkg.in/yaml.v3"

	"github.com/okian/fleetready/internal/domain/model"
)

// DefaultTimeLayouts are tried in order when parsing vendor timestamps.
// Values without a zone are read as UTC.
var DefaultTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"02/01/2006",
	"02.01.2006",
}

// Normalizer converts RawRecords into CanonicalRecords.
type Normalizer struct {
	aliases  map[string]string
	layouts  []string
	validate *validator.Validate
}

// New creates a Normalizer with the built-in alias table and layouts.
func New(opts ...Option) *Normalizer {
	n := &Normalizer{
		aliases: make(map[string]string, len(DefaultAliases)+len(canonicalFields)),
		layouts: append([]string(nil), DefaultTimeLayouts...),
	}
	for k, v := range DefaultAliases {
		n.aliases[k] = v
	}
	for _, f := range canonicalFields {
		n.aliases[f] = f
	}
	for _, opt := range opts {
		opt(n)
	}

	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		return name
	})
	n.validate = v
	return n
}

// Normalize parses raw into a canonical record.
// Errors are *FormatError or *SchemaMismatchError.
func (n *Normalizer) Normalize(raw model.RawRecord) (model.CanonicalRecord, error) {
	var (
		fields map[string]string
		err    error
	)
	switch raw.Format {
	case model.FormatCSV:
		fields, err = n.csvFields(raw.Data)
	case model.FormatXML:
		fields, err = n.xmlFields(raw.Data)
	case model.FormatJSON:
		fields, err = n.jsonFields(raw.Data, raw.Fields)
	case model.FormatYAML:
		fields, err = n.yamlFields(raw.Data)
	default:
		return model.CanonicalRecord{}, &FormatError{Format: raw.Format, Reason: "unknown format tag"}
	}
	if err != nil {
		return model.CanonicalRecord{}, err
	}
	return n.build(raw, fields)
}

// canonicalize folds vendor keys through the alias table. Unknown columns
// are ignored. The first non-empty value for a canonical field wins.
func (n *Normalizer) canonicalize(in map[string]string, order []string) map[string]string {
	out := make(map[string]string, len(canonicalFields))
	for _, key := range order {
		field, ok := n.aliases[columnKey(key)]
		if !ok {
			continue
		}
		v := strings.TrimSpace(in[key])
		if v == "" {
			continue
		}
		if _, set := out[field]; !set {
			out[field] = v
		}
	}
	return out
}

func (n *Normalizer) csvFields(data []byte) (map[string]string, error) {
	r := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(data, utf8BOM)))
	r.TrimLeadingSpace = true
	rows, err := r.ReadAll()
	if err != nil {
		return nil, &FormatError{Format: model.FormatCSV, Reason: "unparseable delimited text", Err: err}
	}
	switch {
	case len(rows) < 2:
		return nil, &FormatError{Format: model.FormatCSV, Reason: "expected a header row and one data row"}
	case len(rows) > 2:
		return nil, &FormatError{Format: model.FormatCSV, Reason: fmt.Sprintf("expected one data row, got %d", len(rows)-1)}
	}
	header, row := rows[0], rows[1]
	in := make(map[string]string, len(header))
	for i, col := range header {
		in[col] = row[i]
	}
	return n.canonicalize(in, header), nil
}

// xmlNode is a generic element tree.
type xmlNode struct {
	XMLName  xml.Name
	Attrs    []xml.Attr `xml:",any,attr"`
	Content  string     `xml:",chardata"`
	Children []xmlNode  `xml:",any"`
}

func (n *Normalizer) xmlFields(data []byte) (map[string]string, error) {
	var root xmlNode
	if err := xml.Unmarshal(data, &root); err != nil {
		return nil, &FormatError{Format: model.FormatXML, Reason: "unparseable markup", Err: err}
	}
	in := make(map[string]string, len(root.Attrs)+len(root.Children))
	order := make([]string, 0, len(root.Attrs)+len(root.Children))
	for _, a := range root.Attrs {
		in[a.Name.Local] = a.Value
		order = append(order, a.Name.Local)
	}
	for _, c := range root.Children {
		key := c.XMLName.Local
		v := strings.TrimSpace(c.Content)
		if len(c.Children) > 0 {
			items := make([]string, 0, len(c.Children))
			for _, leaf := range c.Children {
				items = append(items, strings.TrimSpace(leaf.Content))
			}
			v = strings.Join(items, ",")
		}
		if _, dup := in[key]; !dup {
			order = append(order, key)
		}
		in[key] = v
	}
	return n.canonicalize(in, order), nil
}

func (n *Normalizer) jsonFields(data []byte, paths map[string]string) (map[string]string, error) {
	if !gjson.ValidBytes(data) {
		return nil, &FormatError{Format: model.FormatJSON, Reason: "unparseable structured text"}
	}
	doc := gjson.ParseBytes(data)
	if !doc.IsObject() {
		return nil, &FormatError{Format: model.FormatJSON, Reason: "record must be an object"}
	}
	in := make(map[string]string)
	order := make([]string, 0)
	doc.ForEach(func(key, value gjson.Result) bool {
		k := key.String()
		in[k] = jsonString(value)
		order = append(order, k)
		return true
	})
	out := n.canonicalize(in, order)

	// Explicit paths override alias resolution.
	for field, path := range paths {
		if v := strings.TrimSpace(jsonString(doc.Get(path))); v != "" {
			out[field] = v
		}
	}
	return out, nil
}

func jsonString(v gjson.Result) string {
	if !v.IsArray() {
		return v.String()
	}
	items := v.Array()
	parts := make([]string, 0, len(items))
	for _, item := range items {
		parts = append(parts, item.String())
	}
	return strings.Join(parts, ",")
}

func (n *Normalizer) yamlFields(data []byte) (map[string]string, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &FormatError{Format: model.FormatYAML, Reason: "unparseable structured text", Err: err}
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 || doc.Content[0].Kind != yaml.MappingNode {
		return nil, &FormatError{Format: model.FormatYAML, Reason: "record must be a mapping"}
	}
	m := doc.Content[0]
	in := make(map[string]string, len(m.Content)/2)
	order := make([]string, 0, len(m.Content)/2)
	for i := 0; i+1 < len(m.Content); i += 2 {
		key, val := m.Content[i].Value, m.Content[i+1]
		switch val.Kind {
		case yaml.ScalarNode:
			in[key] = val.Value
		case yaml.SequenceNode:
			items := make([]string, 0, len(val.Content))
			for _, item := range val.Content {
				items = append(items, item.Value)
			}
			in[key] = strings.Join(items, ",")
		default:
			continue
		}
		order = append(order, key)
	}
	return n.canonicalize(in, order), nil
}

func (n *Normalizer) build(raw model.RawRecord, f map[string]string) (model.CanonicalRecord, error) {
	rec := model.CanonicalRecord{
		RecordID:    model.RecordID(raw.Source, raw.Format, raw.Data),
		Source:      raw.Source,
		ShipID:      f[FieldShipID],
		ShipName:    f[FieldShipName],
		ShipClass:   f[FieldShipClass],
		EventType:   EventType(f[FieldEventType]),
		WorkOrder:   f[FieldWorkOrder],
		Status:      strings.ToLower(f[FieldStatus]),
		Description: f[FieldDescription],
		Parts:       Parts(f[FieldParts]),
	}

	var err error
	if s := f[FieldOccurredAt]; s != "" {
		if rec.OccurredAt, err = n.parseTime(s); err != nil {
			return model.CanonicalRecord{}, &FormatError{Format: raw.Format, Field: FieldOccurredAt, Reason: "unparseable timestamp " + strconv.Quote(s)}
		}
	}
	if rec.StartedAt, err = n.optionalTime(raw.Format, FieldStartedAt, f[FieldStartedAt]); err != nil {
		return model.CanonicalRecord{}, err
	}
	if rec.DueAt, err = n.optionalTime(raw.Format, FieldDueAt, f[FieldDueAt]); err != nil {
		return model.CanonicalRecord{}, err
	}

	if err := n.validate.Struct(rec); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			missing := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				missing = append(missing, fe.Field())
			}
			return model.CanonicalRecord{}, &SchemaMismatchError{Format: raw.Format, Missing: missing}
		}
		return model.CanonicalRecord{}, &SchemaMismatchError{Format: raw.Format, Missing: []string{err.Error()}}
	}
	return rec, nil
}

func (n *Normalizer) optionalTime(format model.Format, field, s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := n.parseTime(s)
	if err != nil {
		return nil, &FormatError{Format: format, Field: field, Reason: "unparseable timestamp " + strconv.Quote(s)}
	}
	return &t, nil
}

// parseTime tries each layout, then unix seconds. The result is UTC.
func (n *Normalizer) parseTime(s string) (time.Time, error) {
	for _, layout := range n.layouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil && len(s) >= 9 {
		return time.Unix(secs, 0).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("no layout matches %q", s)
}

// EventType folds a vendor event type: " Engine Overhaul " -> "engine_overhaul".
func EventType(s string) string {
	return columnKey(s)
}

// Parts splits a part list on , ; or |, trims, dedupes and sorts it.
func Parts(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ';' || r == '|'
	})
	seen := make(map[string]struct{}, len(fields))
	out := make([]string, 0, len(fields))
	for _, p := range fields {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	if len(out) == 0 {
		return nil
	}
	sort.Strings(out)
	return out
}
