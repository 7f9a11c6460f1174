package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/healthcheck/healthcheck/internal/platform/auth"
	"github.com/healthcheck/healthcheck/internal/platform/db"
)

const apiPrefix = "/api/v1/"

// AuditEntry records who touched which patient record and how.
type AuditEntry struct {
	Timestamp  time.Time
	RequestID  string
	UserID     string
	UserRoles  []string
	Facility   string
	Collection string
	RecordID   string
	PatientID  string
	Action     string // read, create, update, delete
	Method     string
	Route      string
	RemoteIP   string
	StatusCode int
}

// AuditRecorder persists audit entries in addition to the structured log.
type AuditRecorder interface {
	RecordAccess(entry AuditEntry) error
}

type AuditRecorderFunc func(entry AuditEntry) error

func (f AuditRecorderFunc) RecordAccess(entry AuditEntry) error { return f(entry) }

// Audit logs every /api/v1 request as a record access event. The optional
// recorder receives the same entry; its failures are logged, never returned.
func Audit(logger zerolog.Logger, recorder AuditRecorder) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if !strings.HasPrefix(req.URL.Path, apiPrefix) {
				return next(c)
			}

			err := next(c)

			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			}
			entry := AuditEntry{
				Timestamp:  time.Now().UTC(),
				UserID:     auth.UserIDFromContext(req.Context()),
				UserRoles:  auth.RolesFromContext(req.Context()),
				Facility:   db.FacilityFromContext(c.Request().Context()),
				Collection: collectionOf(req.URL.Path),
				RecordID:   recordIDOf(c),
				PatientID:  c.QueryParam("patient_id"),
				Action:     actionOf(req.Method),
				Method:     req.Method,
				Route:      c.Path(),
				RemoteIP:   c.RealIP(),
				StatusCode: status,
			}
			entry.RequestID, _ = c.Get("request_id").(string)

			if recorder != nil {
				if recErr := recorder.RecordAccess(entry); recErr != nil {
					logger.Error().Err(recErr).Str("request_id", entry.RequestID).Msg("failed to record audit entry")
				}
			}

			logger.Info().
				Str("type", "record_access").
				Str("request_id", entry.RequestID).
				Str("user_id", entry.UserID).
				Strs("user_roles", entry.UserRoles).
				Str("facility", entry.Facility).
				Str("collection", entry.Collection).
				Str("record_id", entry.RecordID).
				Str("patient_id", entry.PatientID).
				Str("action", entry.Action).
				Str("route", entry.Route).
				Str("remote_ip", entry.RemoteIP).
				Int("status", entry.StatusCode).
				Msg("record access")
			return err
		}
	}
}

func actionOf(method string) string {
	switch method {
	case http.MethodPost:
		return "create"
	case http.MethodPut, http.MethodPatch:
		return "update"
	case http.MethodDelete:
		return "delete"
	}
	return "read"
}

// collectionOf returns the first path segment under /api/v1/.
func collectionOf(path string) string {
	seg, _, _ := strings.Cut(strings.TrimPrefix(path, apiPrefix), "/")
	if seg == "" {
		return "unknown"
	}
	return seg
}

func recordIDOf(c echo.Context) string {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		return ""
	}
	return id
}
