package detection

import (
	"strings"
	"time"

	"lpr-service/internal/domain/plate"
)

// RawDetection is one decoded inference detection. Its shape depends on the
// pipeline that produced it.
type RawDetection map[string]any

// FieldPath addresses a (possibly nested) string field of a RawDetection.
type FieldPath []string

func (p FieldPath) String() string {
	return strings.Join(p, ".")
}

// PlateTextFields lists where plate text is looked up, most processed form first.
var PlateTextFields = []FieldPath{
	{"ocr", "plate_spaced"},
	{"ocr", "plate_plain"},
	{"ocr", "canon"},
	{"plate_spaced"},
	{"plate"},
}

// ExpiryFields lists where the human-readable expiry token is looked up.
var ExpiryFields = []FieldPath{
	{"expiry", "human"},
	{"expiry_human"},
}

// Normalizer maps raw detections to canonical plate records.
type Normalizer struct {
	now func() time.Time
	loc *time.Location
}

type Option func(*Normalizer)

// WithClock overrides the wall clock used for observation timestamps.
func WithClock(now func() time.Time) Option {
	return func(n *Normalizer) {
		n.now = now
	}
}

// WithLocation sets the timezone in which "today" is evaluated.
func WithLocation(loc *time.Location) Option {
	return func(n *Normalizer) {
		if loc != nil {
			n.loc = loc
		}
	}
}

func NewNormalizer(opts ...Option) *Normalizer {
	n := &Normalizer{
		now: time.Now,
		loc: time.Local,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Normalize converts a raw detection into a record. ok is false when the
// detection carries no plate text.
func (n *Normalizer) Normalize(raw RawDetection) (rec plate.Record, ok bool) {
	plateText := firstString(raw, PlateTextFields)
	if plateText == "" {
		return plate.Record{}, false
	}
	expiry := firstString(raw, ExpiryFields)
	return plate.NewRecord(plateText, expiry, n.now().In(n.loc)), true
}

// NormalizeAll normalizes a list of detections, dropping rejected ones and
// folding repeated plates with the upgrade rule so the batch holds one
// record per plate, in first-seen order. accepted counts the detections that
// carried plate text, before folding.
func (n *Normalizer) NormalizeAll(raws []RawDetection) (batch []plate.Record, accepted int) {
	batch = make([]plate.Record, 0, len(raws))
	index := make(map[string]int, len(raws))
	for _, raw := range raws {
		rec, ok := n.Normalize(raw)
		if !ok {
			continue
		}
		accepted++
		if i, seen := index[rec.PlateNumber]; seen {
			batch[i], _ = plate.Upgrade(batch[i], rec)
			continue
		}
		index[rec.PlateNumber] = len(batch)
		batch = append(batch, rec)
	}
	return batch, accepted
}

func firstString(raw RawDetection, paths []FieldPath) string {
	for _, path := range paths {
		if v := lookup(raw, path); v != "" {
			return v
		}
	}
	return ""
}

func lookup(raw RawDetection, path FieldPath) string {
	var cur any = map[string]any(raw)
	for _, key := range path {
		var m map[string]any
		switch v := cur.(type) {
		case map[string]any:
			m = v
		case RawDetection:
			m = v
		default:
			return ""
		}
		next, ok := m[key]
		if !ok {
			return ""
		}
		cur = next
	}
	s, ok := cur.(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(s)
}
