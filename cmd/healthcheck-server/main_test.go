package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/healthcheck/healthcheck/internal/config"
	"github.com/healthcheck/healthcheck/internal/domain/healthcheck"
	"github.com/healthcheck/healthcheck/internal/platform/db"
)

func testServer(t *testing.T) (*echo.Echo, *stores) {
	t.Helper()
	cfg := &config.Config{
		Env:           "development",
		Store:         config.StoreMemory,
		Timezone:      "UTC",
		ApproverRoles: []string{"admin", "physician"},
		CORSOrigins:   []string{"http://localhost:3000"},
		BodyLimit:     "1M",
		SurveyBaseURL: "http://localhost:3000/surveys",
		SurveyTTL:     14 * 24 * time.Hour,
	}
	st, err := openStores(context.Background(), cfg)
	if err != nil {
		t.Fatalf("open stores: %v", err)
	}
	e, err := newServer(cfg, zerolog.Nop(), st)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	return e, st
}

func do(t *testing.T, e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestServer_LifecycleToSurvey(t *testing.T) {
	e, _ := testServer(t)
	patientID := uuid.NewString()

	rec := do(t, e, http.MethodPost, "/api/v1/health-checks", `{"patient_id":"`+patientID+`","patient_name":"Mai Tran",
		"patient_email":"mai@example.com","staff_id":"`+uuid.NewString()+`","staff_name":"Dr. Le","checkup_date":"2024-01-02",
		"details":[{"summary":"BP high","diagnosis":"hypertension","recommendation":"recheck"}],
		"follow_up_required":true,"follow_up_date":"2030-01-20"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var created struct {
		ID string `json:"id"`
	}
	json.Unmarshal(rec.Body.Bytes(), &created)

	for _, cmd := range []string{"Approve", "Complete"} {
		rec = do(t, e, http.MethodPost, "/api/v1/health-checks/"+created.ID+"/commands", `{"command":"`+cmd+`"}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d: %s", cmd, rec.Code, rec.Body.String())
		}
		var res healthcheck.Result
		json.Unmarshal(rec.Body.Bytes(), &res)
		if len(res.Warnings) != 0 {
			t.Errorf("%s: unexpected warnings %+v", cmd, res.Warnings)
		}
	}

	rec = do(t, e, http.MethodGet, "/api/v1/health-checks/"+created.ID+"/history", "")
	var history []healthcheck.HistoryEntry
	json.Unmarshal(rec.Body.Bytes(), &history)
	if len(history) != 3 {
		t.Errorf("expected 3 history entries, got %d", len(history))
	}

	rec = do(t, e, http.MethodGet, "/api/v1/surveys?patient_id="+patientID, "")
	var page struct {
		Total int `json:"total"`
	}
	json.Unmarshal(rec.Body.Bytes(), &page)
	if page.Total != 1 {
		t.Errorf("expected one post-visit survey, got %d (%s)", page.Total, rec.Body.String())
	}
}

func TestServer_HealthAndMetrics(t *testing.T) {
	e, _ := testServer(t)

	if rec := do(t, e, http.MethodGet, "/health", ""); rec.Code != http.StatusOK {
		t.Errorf("/health: expected 200, got %d", rec.Code)
	}
	if rec := do(t, e, http.MethodGet, "/health/db", ""); !strings.Contains(rec.Body.String(), "memory") {
		t.Errorf("/health/db: expected memory status, got %s", rec.Body.String())
	}
	do(t, e, http.MethodGet, "/api/v1/insurance", "")
	rec := do(t, e, http.MethodGet, "/metrics", "")
	if !strings.Contains(rec.Body.String(), "healthcheck_http_requests_total") {
		t.Errorf("expected request counter in /metrics output")
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("expected request id header")
	}
}

func TestPrintFollowUps(t *testing.T) {
	today := time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)
	d := time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC)
	recs := []*healthcheck.HealthCheckResult{{
		Code: "HC-20240101-AAAAAA", PatientName: "Mai Tran",
		Status: healthcheck.StatusFollowUpRequired, FollowUpRequired: true, FollowUpDate: &d,
	}}
	var buf bytes.Buffer
	printFollowUps(&buf, recs, today)
	out := buf.String()
	for _, want := range []string{"CODE", "URGENCY", "HC-20240101-AAAAAA", "2024-01-08", "overdue", "1 result(s) as of 2024-01-10"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestPrintMigrationStatus(t *testing.T) {
	at := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	var buf bytes.Buffer
	printMigrationStatus(&buf, "facility_default", []db.MigrationStatus{
		{Version: 1, Name: "001_health_check.sql", Applied: true, AppliedAt: &at},
		{Version: 2, Name: "002_survey.sql"},
	})
	out := buf.String()
	if !strings.Contains(out, "APPLIED AT") || !strings.Contains(out, "2024-01-01 08:00:00") || !strings.Contains(out, "pending") {
		t.Errorf("unexpected output:\n%s", out)
	}
}
