package order

import "strings"

// Status is one of the platform status keywords. The set below is what the
// platform is known to send; the service stores whatever arrives without
// enforcing an ordering between values.
type Status string

const (
	StatusAccepted  Status = "order_accepted"
	StatusRejected  Status = "order_rejected"
	StatusPickedUp  Status = "order_picked_up"
	StatusPreparing Status = "order_preparing"
	StatusReady     Status = "order_ready"
	StatusPrepared  Status = "order_prepared"
	StatusDelivered Status = "order_delivered"
)

// Known reports whether s is one of the recognized status keywords.
func (s Status) Known() bool {
	switch s {
	case StatusAccepted, StatusRejected, StatusPickedUp,
		StatusPreparing, StatusReady, StatusPrepared, StatusDelivered:
		return true
	}
	return false
}

// ParseStatus maps an inbound status keyword ("accepted", "picked_up") to
// its canonical Status. The prefixed form ("order_accepted") is accepted too.
func ParseStatus(raw string) (Status, bool) {
	keyword := strings.ToLower(strings.TrimSpace(raw))
	if !strings.HasPrefix(keyword, "order_") {
		keyword = "order_" + keyword
	}
	s := Status(keyword)
	return s, s.Known()
}

// RequiresCallback reports whether this status must be acknowledged to the
// platform through a callback URL.
func (s Status) RequiresCallback() bool {
	switch s {
	case StatusAccepted, StatusRejected, StatusPickedUp:
		return true
	}
	return false
}

// Parameter map keys used by the POS status path.
const (
	ParamPOSStatus        = "posStatus"
	ParamLastStatusUpdate = "lastStatusUpdate"
)

// posStatusMap translates the POS-side vocabulary to canonical tokens.
var posStatusMap = map[string]string{
	"received":  "RECEIVED",
	"accepted":  "ACCEPTED",
	"rejected":  "REJECTED",
	"preparing": "PREPARING",
	"ready":     "READY",
	"picked_up": "PICKED_UP",
	"delivered": "DELIVERED",
	"cancelled": "CANCELLED",
}

// MapPOSStatus maps a POS status keyword to its canonical uppercase token.
// Unrecognized values pass through verbatim-uppercased; the second return
// value reports whether the input was in the known table.
func MapPOSStatus(raw string) (string, bool) {
	if mapped, ok := posStatusMap[strings.ToLower(raw)]; ok {
		return mapped, true
	}
	return strings.ToUpper(raw), false
}
