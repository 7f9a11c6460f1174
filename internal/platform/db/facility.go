package db

import (
	"context"
	"fmt"
	"net/http"
	"regexp"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"

	"github.com/healthcheck/healthcheck/internal/platform/auth"
)

type contextKey string

const (
	FacilityIDKey contextKey = "facility_id"
	DBConnKey     contextKey = "db_conn"
)

var facilityIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

// FacilitySchema is the schema holding one facility's records.
func FacilitySchema(facilityID string) (string, error) {
	if !facilityIDPattern.MatchString(facilityID) {
		return "", fmt.Errorf("invalid facility identifier %q", facilityID)
	}
	return "facility_" + facilityID, nil
}

// Scope acquires a connection whose search_path is the facility schema and
// stores it in ctx. The returned func releases the connection.
func Scope(ctx context.Context, pool *pgxpool.Pool, facilityID string) (context.Context, func(), error) {
	schema, err := FacilitySchema(facilityID)
	if err != nil {
		return ctx, func() {}, err
	}
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return ctx, func() {}, fmt.Errorf("acquire connection: %w", err)
	}
	if _, err := conn.Exec(ctx, "SET search_path TO "+pgx.Identifier{schema}.Sanitize()+", public"); err != nil {
		conn.Release()
		return ctx, func() {}, fmt.Errorf("set search_path for %s: %w", schema, err)
	}
	ctx = context.WithValue(ctx, FacilityIDKey, facilityID)
	ctx = context.WithValue(ctx, DBConnKey, conn)
	return ctx, conn.Release, nil
}

// FacilityMiddleware pins a pooled connection to the request with its
// search_path set to the caller's facility schema.
func FacilityMiddleware(pool *pgxpool.Pool, defaultFacility string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			facilityID := extractFacilityID(c, defaultFacility)
			if !facilityIDPattern.MatchString(facilityID) {
				return echo.NewHTTPError(http.StatusBadRequest, "invalid facility identifier")
			}
			ctx, release, err := Scope(c.Request().Context(), pool, facilityID)
			if err != nil {
				return echo.NewHTTPError(http.StatusServiceUnavailable, "database unavailable").SetInternal(err)
			}
			defer release()

			c.SetRequest(c.Request().WithContext(ctx))
			c.Set("facility_id", facilityID)
			return next(c)
		}
	}
}

// extractFacilityID prefers the token claim, then the X-Facility-ID header.
func extractFacilityID(c echo.Context, defaultFacility string) string {
	if fid, ok := c.Get(auth.FacilityKey).(string); ok && fid != "" {
		return fid
	}
	if fid := c.Request().Header.Get("X-Facility-ID"); fid != "" {
		return fid
	}
	return defaultFacility
}

// ConnFromContext returns the facility-scoped connection, or nil outside a
// request.
func ConnFromContext(ctx context.Context) *pgxpool.Conn {
	conn, _ := ctx.Value(DBConnKey).(*pgxpool.Conn)
	return conn
}

func FacilityFromContext(ctx context.Context) string {
	fid, _ := ctx.Value(FacilityIDKey).(string)
	return fid
}
