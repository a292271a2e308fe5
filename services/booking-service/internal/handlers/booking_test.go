package handlers

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestSlotsRangeValidation(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewBookingHandler(nil, nil, nil, logger, "secret")

	const providerID = "33333333-3333-3333-3333-333333333333"
	const serviceID = "44444444-4444-4444-4444-444444444444"

	today := time.Now().UTC().Truncate(24 * time.Hour)
	day := func(offset int) string { return today.AddDate(0, 0, offset).Format("2006-01-02") }

	cases := []struct {
		name string
		from string
		to   string
	}{
		{"from in the past", day(-1), day(1)},
		{"inverted range", day(3), day(1)},
		{"malformed from", "yesterday", day(1)},
		// Inclusive to: from..from+31 spans 32 calendar days.
		{"range too long", day(0), day(31)},
	}
	for _, tc := range cases {
		r := httptest.NewRequest(http.MethodGet, "/providers/"+providerID+"/slots?service_id="+serviceID+"&from="+tc.from+"&to="+tc.to, nil)
		r.SetPathValue("id", providerID)
		rec := httptest.NewRecorder()
		h.Slots(rec, r)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", tc.name, rec.Code)
		}
	}

	r := httptest.NewRequest(http.MethodGet, "/providers/"+providerID+"/slots?service_id=nope", nil)
	r.SetPathValue("id", providerID)
	rec := httptest.NewRecorder()
	h.Slots(rec, r)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad service_id: status = %d, want 400", rec.Code)
	}
}
