package feedgen

import "time"

// Vendor feed names; each writes one file format.
const (
	VendorYardA   = "yard_a"   // CSV
	VendorYardB   = "yard_b"   // JSON
	VendorDepotC  = "depot_c"  // XML
	VendorNavseaD = "navsea_d" // YAML
)

// Vendors lists every vendor in rendering order.
var Vendors = []string{VendorYardA, VendorYardB, VendorDepotC, VendorNavseaD}

// EventTypes are the maintenance activities generated, in vendor spelling.
var EventTypes = []string{
	"Engine Overhaul",
	"Hull Inspection",
	"Fire System Check",
	"Radar Calibration",
	"Lifeboat Inspection",
	"Corrective Repair",
}

var shipClasses = []string{"DDG-51", "LCS", "CG-47", "FFG-62"}

const (
	filePermission = 0o600
	dirPermission  = 0o750

	// maxSkew stays well inside the default merge tolerance.
	maxSkew      = 36 * time.Hour
	maxRepair    = 96 * time.Hour
	partsPerShip = 12
	yearDays     = 365
)
