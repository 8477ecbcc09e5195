package detection

import (
	"encoding/json"
	"testing"
	"time"

	"lpr-service/internal/domain/plate"
)

var fixedNow = time.Date(2025, time.January, 15, 10, 30, 0, 0, time.UTC)

func newTestNormalizer() *Normalizer {
	return NewNormalizer(
		WithClock(func() time.Time { return fixedNow }),
		WithLocation(time.UTC),
	)
}

func decode(t *testing.T, payload string) RawDetection {
	t.Helper()
	var raw RawDetection
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		t.Fatalf("decode %s: %v", payload, err)
	}
	return raw
}

func TestNormalizePlateTextPriority(t *testing.T) {
	tests := []struct {
		name     string
		payload  string
		expected string
	}{
		{
			name:     "spaced form wins",
			payload:  `{"ocr":{"plate_spaced":"AB 1234 C","plate_plain":"AB1234C","canon":"AB1234C"},"plate":"X"}`,
			expected: "AB 1234 C",
		},
		{
			name:     "plain form when spaced is null",
			payload:  `{"ocr":{"plate_spaced":null,"plate_plain":"AB1234C"}}`,
			expected: "AB1234C",
		},
		{
			name:     "canon form",
			payload:  `{"ocr":{"canon":"B1970SSW"}}`,
			expected: "B1970SSW",
		},
		{
			name:     "flat spaced fallback",
			payload:  `{"ocr":{"raw":"??"},"plate_spaced":"D 12 XY"}`,
			expected: "D 12 XY",
		},
		{
			name:     "flat plate fallback",
			payload:  `{"plate":"L 99 Z"}`,
			expected: "L 99 Z",
		},
		{
			name:     "empty string skipped",
			payload:  `{"ocr":{"plate_spaced":"   "},"plate":"H 1 A"}`,
			expected: "H 1 A",
		},
		{
			name:     "non string skipped",
			payload:  `{"ocr":{"plate_spaced":42},"plate_spaced":"K 7"}`,
			expected: "K 7",
		},
		{
			name:     "surrounding whitespace trimmed",
			payload:  `{"plate":"  B 1  "}`,
			expected: "B 1",
		},
	}

	n := newTestNormalizer()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, ok := n.Normalize(decode(t, tt.payload))
			if !ok {
				t.Fatalf("Normalize(%s) rejected", tt.payload)
			}
			if rec.PlateNumber != tt.expected {
				t.Errorf("PlateNumber = %q, want %q", rec.PlateNumber, tt.expected)
			}
		})
	}
}

func TestNormalizeRejects(t *testing.T) {
	payloads := []string{
		`{}`,
		`{"xyxy":[1,2,3,4],"conf":0.91}`,
		`{"ocr":{"raw":"B1970","plate_spaced":null,"plate_plain":null},"expiry":{"human":"05-26"}}`,
		`{"ocr":"B 1970 SSW"}`,
		`{"plate":""}`,
		`{"expiry_human":"05-26"}`,
	}

	n := newTestNormalizer()
	for _, p := range payloads {
		if rec, ok := n.Normalize(decode(t, p)); ok {
			t.Errorf("Normalize(%s) = %+v, want rejection", p, rec)
		}
	}
}

func TestNormalizeExpiry(t *testing.T) {
	tests := []struct {
		name      string
		payload   string
		wantToken string
		wantDays  *int
	}{
		{
			name:      "nested expiry",
			payload:   `{"plate":"B 1","expiry":{"month":5,"year":26,"human":"05-26"}}`,
			wantToken: "05-26",
			wantDays:  intPtr(501),
		},
		{
			name:      "flat expiry",
			payload:   `{"plate":"B 1","expiry_human":"13-25"}`,
			wantToken: "13-25",
			wantDays:  intPtr(350),
		},
		{
			name:      "nested null falls back to flat",
			payload:   `{"plate":"B 1","expiry":{"human":null},"expiry_human":"01-25"}`,
			wantToken: "01-25",
			wantDays:  intPtr(16),
		},
		{
			name:      "missing expiry",
			payload:   `{"plate":"B 1"}`,
			wantToken: plate.ExpiryUnknown,
		},
		{
			name:      "unparseable expiry kept for display",
			payload:   `{"plate":"B 1","expiry":{"human":"5-2026"}}`,
			wantToken: "5-2026",
		},
	}

	n := newTestNormalizer()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, ok := n.Normalize(decode(t, tt.payload))
			if !ok {
				t.Fatal("unexpected rejection")
			}
			if rec.ExpiryToken != tt.wantToken {
				t.Errorf("ExpiryToken = %q, want %q", rec.ExpiryToken, tt.wantToken)
			}
			switch {
			case tt.wantDays == nil && rec.RemainingDays != nil:
				t.Errorf("RemainingDays = %d, want unknown", *rec.RemainingDays)
			case tt.wantDays != nil && rec.RemainingDays == nil:
				t.Errorf("RemainingDays unknown, want %d", *tt.wantDays)
			case tt.wantDays != nil && *rec.RemainingDays != *tt.wantDays:
				t.Errorf("RemainingDays = %d, want %d", *rec.RemainingDays, *tt.wantDays)
			}
		})
	}
}

func TestNormalizeDerivedFields(t *testing.T) {
	rec, ok := newTestNormalizer().Normalize(RawDetection{"plate": "AB 1234 XY"})
	if !ok {
		t.Fatal("unexpected rejection")
	}
	if rec.PlateOrigin != "Yogyakarta" {
		t.Errorf("PlateOrigin = %q", rec.PlateOrigin)
	}
	if !rec.ObservedAt.Equal(fixedNow) {
		t.Errorf("ObservedAt = %v, want %v", rec.ObservedAt, fixedNow)
	}
}

func TestNormalizeAllFoldsDuplicates(t *testing.T) {
	raws := []RawDetection{
		{"plate": "B 1"},
		{"conf": 0.4},
		{"plate": "D 2", "expiry_human": "03-27"},
		{"plate": "B 1", "expiry_human": "05-26"},
		{"plate": "D 2"},
		{"plate": "B 1", "expiry_human": "07-28"},
	}

	batch, accepted := newTestNormalizer().NormalizeAll(raws)
	if accepted != 5 {
		t.Errorf("accepted = %d, want 5", accepted)
	}
	if len(batch) != 2 {
		t.Fatalf("len(batch) = %d, want 2", len(batch))
	}
	if batch[0].PlateNumber != "B 1" || batch[0].ExpiryToken != "05-26" {
		t.Errorf("batch[0] = %+v, want B 1 upgraded to 05-26", batch[0])
	}
	if batch[1].PlateNumber != "D 2" || batch[1].ExpiryToken != "03-27" {
		t.Errorf("batch[1] = %+v, want D 2 with 03-27", batch[1])
	}
}

func TestFieldTables(t *testing.T) {
	if got := PlateTextFields[0].String(); got != "ocr.plate_spaced" {
		t.Errorf("first plate field = %q", got)
	}
	if got := ExpiryFields[len(ExpiryFields)-1].String(); got != "expiry_human" {
		t.Errorf("last expiry field = %q", got)
	}
}

func intPtr(v int) *int {
	return &v
}
