package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/d-castillo/trimbook/libs/auth"
	"github.com/d-castillo/trimbook/services/booking-service/internal/fault"
)

func TestStatusForKind(t *testing.T) {
	cases := []struct {
		kind fault.Kind
		want int
	}{
		{fault.InvalidArgument, http.StatusBadRequest},
		{fault.InvalidReference, http.StatusUnprocessableEntity},
		{fault.Forbidden, http.StatusForbidden},
		{fault.InvalidState, http.StatusConflict},
		{fault.Conflict, http.StatusConflict},
		{fault.Duplicate, http.StatusConflict},
		{fault.NotFound, http.StatusNotFound},
	}
	for _, tc := range cases {
		if got := statusForKind(tc.kind); got != tc.want {
			t.Errorf("statusForKind(%s) = %d, want %d", tc.kind, got, tc.want)
		}
	}
}

func TestWriteFaultBody(t *testing.T) {
	rec := httptest.NewRecorder()
	writeFault(rec, fault.New(fault.Conflict, "slot", "time slot is already booked"))

	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
	var body errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Error.Kind != "conflict" || body.Error.Subject != "slot" {
		t.Fatalf("unexpected body %+v", body)
	}
}

func TestRequireClaims(t *testing.T) {
	const secret = "test-secret"
	token, err := auth.SignHS256(auth.Claims{
		Sub:  "11111111-1111-1111-1111-111111111111",
		Role: auth.RoleClient,
		Exp:  time.Now().Add(time.Hour).Unix(),
		Iat:  time.Now().Unix(),
	}, secret)
	if err != nil {
		t.Fatal(err)
	}

	r := httptest.NewRequest(http.MethodGet, "/appointments", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	claims, ok := requireClaims(rec, r, secret)
	if !ok || claims.Sub != "11111111-1111-1111-1111-111111111111" {
		t.Fatalf("valid token rejected: %v", rec.Body.String())
	}

	r = httptest.NewRequest(http.MethodGet, "/appointments", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	if _, ok := requireClaims(rec, r, "other-secret"); ok {
		t.Fatal("token signed with another secret accepted")
	}
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}

	r = httptest.NewRequest(http.MethodGet, "/appointments", nil)
	rec = httptest.NewRecorder()
	if _, ok := requireClaims(rec, r, secret); ok {
		t.Fatal("missing header accepted")
	}
}

func TestParseUUID(t *testing.T) {
	if _, f := parseUUID("provider_id", "not-a-uuid"); f == nil || f.Kind != fault.InvalidArgument {
		t.Fatalf("bad uuid: got %v", f)
	}
	id, f := parseUUID("provider_id", " 11111111-1111-1111-1111-111111111111 ")
	if f != nil || id != "11111111-1111-1111-1111-111111111111" {
		t.Fatalf("got %q, %v", id, f)
	}
}
