package model

import (
	"github.com/google/uuid"
)

var (
	recordNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("urn:fleetready:vendor-record"))
	eventNamespace  = uuid.NewSHA1(uuid.NameSpaceURL, []byte("urn:fleetready:maintenance-event"))
)

// RecordID derives the VendorRecord ID from the exact bytes received.
// Identical input always yields the identical ID.
func RecordID(source string, format Format, raw []byte) string {
	name := make([]byte, 0, len(source)+len(format)+len(raw)+2)
	name = append(name, source...)
	name = append(name, 0)
	name = append(name, format...)
	name = append(name, 0)
	name = append(name, raw...)
	return uuid.NewSHA1(recordNamespace, name).String()
}

// EventID derives a MaintenanceEvent ID from the record that founded it.
func EventID(shipID, eventType, foundingRecordID string) string {
	return uuid.NewSHA1(eventNamespace, []byte(shipID+"\x00"+eventType+"\x00"+foundingRecordID)).String()
}
