package normalize

import (
	"bytes"
	"encoding/csv"
	"encoding/xml"
	"errors"
	"io"

	"github.com/tidwall/gjson"
	"gopkg.in/yaml.v3"

	"github.com/okian/fleetready/internal/domain/model"
)

// Split breaks one uploaded file into per-record raw payloads.
// A file that already holds a single record is returned unchanged so its
// RecordID matches a single-record ingest of the same bytes.
func Split(format model.Format, data []byte) ([][]byte, error) {
	switch format {
	case model.FormatCSV:
		return splitCSV(data)
	case model.FormatXML:
		return splitXML(data)
	case model.FormatJSON:
		return splitJSON(data)
	case model.FormatYAML:
		return splitYAML(data)
	default:
		return nil, &FormatError{Format: format, Reason: "unknown format tag"}
	}
}

// utf8BOM is prepended to CSV exports by many spreadsheet tools.
var utf8BOM = []byte("\ufeff")

func splitCSV(data []byte) ([][]byte, error) {
	r := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(data, utf8BOM)))
	r.TrimLeadingSpace = true
	rows, err := r.ReadAll()
	if err != nil {
		return nil, &FormatError{Format: model.FormatCSV, Reason: "unparseable delimited text", Err: err}
	}
	if len(rows) < 2 {
		return nil, &FormatError{Format: model.FormatCSV, Reason: "expected a header row and at least one data row"}
	}
	if len(rows) == 2 {
		return [][]byte{data}, nil
	}
	out := make([][]byte, 0, len(rows)-1)
	for _, row := range rows[1:] {
		var buf bytes.Buffer
		w := csv.NewWriter(&buf)
		_ = w.Write(rows[0])
		_ = w.Write(row)
		w.Flush()
		if err := w.Error(); err != nil {
			return nil, &FormatError{Format: model.FormatCSV, Reason: "re-encoding row", Err: err}
		}
		out = append(out, buf.Bytes())
	}
	return out, nil
}

type xmlRecord struct {
	Attrs []xml.Attr `xml:",any,attr"`
	Inner []byte     `xml:",innerxml"`
}

type xmlEnvelope struct {
	XMLName xml.Name
	Records []xmlRecord `xml:"record"`
}

func splitXML(data []byte) ([][]byte, error) {
	var env xmlEnvelope
	if err := xml.Unmarshal(data, &env); err != nil {
		return nil, &FormatError{Format: model.FormatXML, Reason: "unparseable markup", Err: err}
	}
	if env.XMLName.Local == "record" {
		return [][]byte{data}, nil
	}
	if len(env.Records) == 0 {
		return nil, &FormatError{Format: model.FormatXML, Reason: "no <record> elements"}
	}
	out := make([][]byte, 0, len(env.Records))
	for _, rec := range env.Records {
		var buf bytes.Buffer
		buf.WriteString("<record")
		for _, a := range rec.Attrs {
			buf.WriteByte(' ')
			buf.WriteString(a.Name.Local)
			buf.WriteString(`="`)
			_ = xml.EscapeText(&buf, []byte(a.Value))
			buf.WriteByte('"')
		}
		buf.WriteByte('>')
		buf.Write(rec.Inner)
		buf.WriteString("</record>")
		out = append(out, buf.Bytes())
	}
	return out, nil
}

func splitJSON(data []byte) ([][]byte, error) {
	if !gjson.ValidBytes(data) {
		return nil, &FormatError{Format: model.FormatJSON, Reason: "unparseable structured text"}
	}
	doc := gjson.ParseBytes(data)
	if !doc.IsArray() {
		return [][]byte{data}, nil
	}
	items := doc.Array()
	out := make([][]byte, 0, len(items))
	for _, item := range items {
		out = append(out, []byte(item.Raw))
	}
	return out, nil
}

func splitYAML(data []byte) ([][]byte, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	var (
		nodes    []*yaml.Node
		docs     int
		sequence bool
	)
	for {
		var doc yaml.Node
		err := dec.Decode(&doc)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &FormatError{Format: model.FormatYAML, Reason: "unparseable structured text", Err: err}
		}
		if len(doc.Content) == 0 {
			continue
		}
		docs++
		root := doc.Content[0]
		if root.Kind == yaml.SequenceNode {
			sequence = true
			nodes = append(nodes, root.Content...)
		} else {
			nodes = append(nodes, root)
		}
	}
	if len(nodes) == 0 {
		return nil, &FormatError{Format: model.FormatYAML, Reason: "empty document"}
	}
	if docs == 1 && !sequence && nodes[0].Kind == yaml.MappingNode {
		return [][]byte{data}, nil
	}
	out := make([][]byte, 0, len(nodes))
	for _, n := range nodes {
		b, err := yaml.Marshal(n)
		if err != nil {
			return nil, &FormatError{Format: model.FormatYAML, Reason: "re-encoding item", Err: err}
		}
		out = append(out, b)
	}
	return out, nil
}
