package plate

import (
	"time"
)

// ExpiryUnknown is the display token used when no expiry was read from the plate.
const ExpiryUnknown = "—"

// Record is the canonical view of one observed plate.
type Record struct {
	PlateNumber   string    `json:"plate_number"`
	PlateOrigin   string    `json:"plate_origin"`
	ExpiryToken   string    `json:"expiry_date"`
	RemainingDays *int      `json:"remaining_days"`
	ObservedAt    time.Time `json:"observed_at"`
}

// HasExpiry reports whether the record carries a usable expiry.
func (r Record) HasExpiry() bool {
	return r.RemainingDays != nil
}

// Upgrade applies the merge rule for two sightings of the same plate. The
// incoming record wins only when it resolves an expiry the existing one
// lacks; replaced reports whether that happened.
func Upgrade(existing, incoming Record) (kept Record, replaced bool) {
	if incoming.HasExpiry() && !existing.HasExpiry() {
		return incoming, true
	}
	return existing, false
}

// NewRecord derives origin and remaining days from the plate text and expiry token.
// An empty token is stored as ExpiryUnknown.
func NewRecord(plateNumber, expiryToken string, observedAt time.Time) Record {
	rec := Record{
		PlateNumber: plateNumber,
		PlateOrigin: OriginFromPlate(plateNumber),
		ExpiryToken: expiryToken,
		ObservedAt:  observedAt,
	}
	if rec.ExpiryToken == "" {
		rec.ExpiryToken = ExpiryUnknown
	}
	if days, ok := RemainingDaysFromExpiry(expiryToken, observedAt); ok {
		rec.RemainingDays = &days
	}
	return rec
}

// AsOf returns a copy with RemainingDays recomputed against now, taken in the
// location the record was observed in. The copy shares no memory with r.
func (r Record) AsOf(now time.Time) Record {
	r.RemainingDays = nil
	if days, ok := RemainingDaysFromExpiry(r.ExpiryToken, now.In(r.ObservedAt.Location())); ok {
		r.RemainingDays = &days
	}
	return r
}

// FormatObserved renders a timestamp the way the operator table shows it.
func FormatObserved(t time.Time) string {
	return t.Format("02-01-2006 | 15:04:05")
}
