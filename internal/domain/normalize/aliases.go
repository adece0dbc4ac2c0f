package normalize

import "strings"

// Canonical field names.
const (
	FieldShipID      = "ship_id"
	FieldShipName    = "ship_name"
	FieldShipClass   = "ship_class"
	FieldEventType   = "event_type"
	FieldOccurredAt  = "occurred_at"
	FieldStartedAt   = "started_at"
	FieldDueAt       = "due_at"
	FieldWorkOrder   = "work_order"
	FieldStatus      = "status"
	FieldDescription = "description"
	FieldParts       = "parts"
)

// DefaultAliases maps vendor column names to canonical fields.
// Canonical names always map to themselves.
var DefaultAliases = map[string]string{
	"hull":              FieldShipID,
	"hull_number":       FieldShipID,
	"hull_no":           FieldShipID,
	"vessel_id":         FieldShipID,
	"ship":              FieldShipID,
	"vessel":            FieldShipName,
	"vessel_name":       FieldShipName,
	"name":              FieldShipName,
	"class":             FieldShipClass,
	"vessel_class":      FieldShipClass,
	"type":              FieldEventType,
	"event":             FieldEventType,
	"maintenance_type":  FieldEventType,
	"activity":          FieldEventType,
	"task":              FieldEventType,
	"completed_at":      FieldOccurredAt,
	"completed":         FieldOccurredAt,
	"completion_date":   FieldOccurredAt,
	"date":              FieldOccurredAt,
	"performed_at":      FieldOccurredAt,
	"timestamp":         FieldOccurredAt,
	"started":           FieldStartedAt,
	"start_date":        FieldStartedAt,
	"opened_at":         FieldStartedAt,
	"due":               FieldDueAt,
	"due_date":          FieldDueAt,
	"next_due":          FieldDueAt,
	"wo":                FieldWorkOrder,
	"wo_number":         FieldWorkOrder,
	"work_order_number": FieldWorkOrder,
	"state":             FieldStatus,
	"notes":             FieldDescription,
	"remarks":           FieldDescription,
	"desc":              FieldDescription,
	"part":              FieldParts,
	"part_numbers":      FieldParts,
	"components":        FieldParts,
}

var canonicalFields = []string{
	FieldShipID, FieldShipName, FieldShipClass, FieldEventType, FieldOccurredAt,
	FieldStartedAt, FieldDueAt, FieldWorkOrder, FieldStatus, FieldDescription, FieldParts,
}

// columnKey folds a vendor column name: "Hull Number" -> "hull_number".
func columnKey(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.Map(func(r rune) rune {
		if r == ' ' || r == '-' || r == '.' {
			return '_'
		}
		return r
	}, s)
}
