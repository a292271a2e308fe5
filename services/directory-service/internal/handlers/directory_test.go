package handlers

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/d-castillo/trimbook/libs/auth"
)

const testSecret = "directory-test-secret"

func testHandler() *DirectoryHandler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewDirectoryHandler(nil, nil, logger, testSecret)
}

func signedToken(t *testing.T, role string) string {
	t.Helper()
	token, err := auth.SignHS256(auth.Claims{
		Sub:  "22222222-2222-2222-2222-222222222222",
		Role: role,
		Exp:  time.Now().Add(time.Hour).Unix(),
		Iat:  time.Now().Unix(),
	}, testSecret)
	if err != nil {
		t.Fatal(err)
	}
	return token
}

func TestCreateServiceRequiresProviderRole(t *testing.T) {
	h := testHandler()

	r := httptest.NewRequest(http.MethodPost, "/services", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	h.CreateService(rec, r)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("no token: status = %d, want 401", rec.Code)
	}

	r = httptest.NewRequest(http.MethodPost, "/services", strings.NewReader(`{}`))
	r.Header.Set("Authorization", "Bearer "+signedToken(t, auth.RoleClient))
	rec = httptest.NewRecorder()
	h.CreateService(rec, r)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("client role: status = %d, want 403", rec.Code)
	}
}

func TestCreateServiceValidation(t *testing.T) {
	h := testHandler()
	token := signedToken(t, auth.RoleProvider)

	cases := []struct {
		name string
		body string
	}{
		{"empty name", `{"name":"","price":"35.00","duration_minutes":30}`},
		{"bad price", `{"name":"Haircut","price":"lots","duration_minutes":30}`},
		{"negative price", `{"name":"Haircut","price":"-1","duration_minutes":30}`},
		{"duration too short", `{"name":"Haircut","price":"35.00","duration_minutes":1}`},
		{"duration too long", `{"name":"Haircut","price":"35.00","duration_minutes":9999}`},
		{"malformed json", `{`},
	}
	for _, tc := range cases {
		r := httptest.NewRequest(http.MethodPost, "/services", strings.NewReader(tc.body))
		r.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		h.CreateService(rec, r)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", tc.name, rec.Code)
		}
	}
}

func TestCreateWindowValidation(t *testing.T) {
	h := testHandler()
	token := signedToken(t, auth.RoleProvider)

	past := time.Now().UTC().Add(-time.Hour).Format(time.RFC3339)
	future := time.Now().UTC().Add(time.Hour).Format(time.RFC3339)
	later := time.Now().UTC().Add(2 * time.Hour).Format(time.RFC3339)

	cases := []struct {
		name string
		body string
	}{
		{"bad start", `{"start_time":"yesterday","end_time":"` + later + `"}`},
		{"end before start", `{"start_time":"` + later + `","end_time":"` + future + `"}`},
		{"past start", `{"start_time":"` + past + `","end_time":"` + future + `"}`},
	}
	for _, tc := range cases {
		r := httptest.NewRequest(http.MethodPost, "/windows", strings.NewReader(tc.body))
		r.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		h.CreateWindow(rec, r)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", tc.name, rec.Code)
		}
	}
}

func TestUpdateSettingsValidation(t *testing.T) {
	h := testHandler()
	token := signedToken(t, auth.RoleProvider)

	for _, body := range []string{
		`{"closed_weekdays":[7]}`,
		`{"closed_weekdays":[-1]}`,
		`{"closed_weekdays":[1,1]}`,
	} {
		r := httptest.NewRequest(http.MethodPut, "/settings", strings.NewReader(body))
		r.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		h.UpdateSettings(rec, r)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", body, rec.Code)
		}
	}
}
