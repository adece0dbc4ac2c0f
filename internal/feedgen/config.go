package feedgen

import "time"

// Config holds configuration for a synthetic feed run.
type Config struct {
	Ships         int       // Number of ships in the fleet
	EventsPerShip int       // Maintenance events per ship
	OutDir        string    // Directory the vendor files are written to
	Seed          uint64    // Seed for reproducible output
	Overlap       float64   // Share of events also reported by a second vendor, 0..1
	Now           time.Time // Events fall in the year before Now
}

// Stats describes one generated feed set.
type Stats struct {
	Ships   int
	Events  int
	Records int
	// Files maps vendor name to the written file path.
	Files map[string]string
}

// event is one real-world maintenance action before vendor rendering.
type event struct {
	hull      string
	name      string
	class     string
	eventType string
	occurred  time.Time
	started   *time.Time
	workOrder string
	parts     []string
}
