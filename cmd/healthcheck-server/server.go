package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/olekukonko/tablewriter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/healthcheck/healthcheck/internal/config"
	"github.com/healthcheck/healthcheck/internal/domain/filter"
	"github.com/healthcheck/healthcheck/internal/domain/healthcheck"
	"github.com/healthcheck/healthcheck/internal/domain/insurance"
	"github.com/healthcheck/healthcheck/internal/domain/survey"
	"github.com/healthcheck/healthcheck/internal/platform/auth"
	"github.com/healthcheck/healthcheck/internal/platform/db"
	"github.com/healthcheck/healthcheck/internal/platform/metrics"
	"github.com/healthcheck/healthcheck/internal/platform/middleware"
	"github.com/healthcheck/healthcheck/internal/platform/notification"
)

type stores struct {
	pool    *pgxpool.Pool
	results healthcheck.Repository
	surveys survey.Repository
	cards   insurance.Repository
}

func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	if cfg.Store == config.StoreMemory {
		return &stores{
			results: healthcheck.NewMemoryRepo(),
			surveys: survey.NewMemoryRepo(),
			cards:   insurance.NewMemoryRepo(),
		}, nil
	}
	pool, err := db.NewPool(ctx, db.PoolConfig{
		URL:      cfg.DatabaseURL,
		MaxConns: cfg.DBMaxConns,
		MinConns: cfg.DBMinConns,
	})
	if err != nil {
		return nil, err
	}
	return &stores{
		pool:    pool,
		results: healthcheck.NewRepoPG(pool),
		surveys: survey.NewRepoPG(pool),
		cards:   insurance.NewRepoPG(pool),
	}, nil
}

// scope binds ctx to a facility schema when running against PostgreSQL.
func (s *stores) scope(ctx context.Context, facility string) (context.Context, func(), error) {
	if s.pool == nil {
		return ctx, func() {}, nil
	}
	return db.Scope(ctx, s.pool, facility)
}

func (s *stores) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func newMailer(cfg *config.Config, logger zerolog.Logger) *notification.Dispatcher {
	var sender notification.EmailSender = notification.LogEmailSender{Logger: logger}
	if cfg.SMTPAddr != "" {
		sender = notification.SMTPSender{
			Addr:     cfg.SMTPAddr,
			From:     cfg.MailFrom,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
		}
	}
	d := notification.NewDispatcher(sender, notification.NewTemplateEngine())
	d.SetLogger(logger)
	return d
}

// newServer wires services, middleware and routes over st.
func newServer(cfg *config.Config, logger zerolog.Logger, st *stores) (*echo.Echo, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)
	mailer := newMailer(cfg, logger)

	surveySvc := survey.NewService(st.surveys, cfg.SurveyBaseURL)
	surveySvc.SetTTL(cfg.SurveyTTL)
	surveySvc.SetInviter(survey.NewEmailInviter(mailer))

	hcSvc := healthcheck.NewService(st.results, cfg.ApproverRoles...)
	hcSvc.SetLocation(loc)
	hcSvc.SetLogger(logger.With().Str("component", "healthcheck").Logger())
	hcSvc.SetMetrics(m)
	hcSvc.SetSurveyCreator(surveySvc)
	hcSvc.SetNotifier(healthcheck.NewEmailNotifier(mailer))

	cardSvc := insurance.NewService(st.cards)
	cardSvc.SetMetrics(m)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger, m))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.BodyLimit(cfg.BodyLimit))
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", middleware.RequestIDHeader, "X-Facility-ID"},
	}))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/health/db", db.HealthHandler(st.pool))
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	api := e.Group("/api/v1")
	switch cfg.ResolvedAuthMode() {
	case config.AuthDevelopment:
		api.Use(auth.DevAuthMiddleware())
	default:
		api.Use(auth.JWTMiddleware(auth.JWTConfig{
			Issuer:     cfg.AuthIssuer,
			Audience:   cfg.AuthAudience,
			JWKSURL:    cfg.AuthJWKSURL,
			SigningKey: []byte(cfg.AuthSigningKey),
		}))
	}
	if st.pool != nil {
		api.Use(db.FacilityMiddleware(st.pool, cfg.DefaultFacility))
	}
	api.Use(middleware.Audit(logger.With().Str("component", "audit").Logger(), nil))

	healthcheck.NewHandler(hcSvc).RegisterRoutes(api)
	survey.NewHandler(surveySvc).RegisterRoutes(api)
	insurance.NewHandler(cardSvc).RegisterRoutes(api)
	return e, nil
}

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	t := tablewriter.NewWriter(w)
	t.SetHeader(header)
	t.SetAutoWrapText(false)
	t.SetBorder(false)
	t.SetColumnSeparator("")
	t.SetHeaderLine(false)
	t.SetAlignment(tablewriter.ALIGN_LEFT)
	t.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	return t
}

func printFollowUps(w io.Writer, recs []*healthcheck.HealthCheckResult, today time.Time) {
	t := newTable(w, "Code", "Patient", "Follow-up", "Urgency")
	for _, r := range recs {
		date := "-"
		if r.FollowUpDate != nil {
			date = r.FollowUpDate.Format(filter.DayLayout)
		}
		t.Append([]string{r.Code, r.PatientName, date, strings.ToLower(string(r.FollowUpUrgency(today)))})
	}
	t.Render()
	fmt.Fprintf(w, "%d result(s) as of %s\n", len(recs), today.Format(filter.DayLayout))
}

func printMigrationStatus(w io.Writer, schema string, statuses []db.MigrationStatus) {
	fmt.Fprintf(w, "Migration status for schema: %s\n", schema)
	t := newTable(w, "Version", "Name", "Status", "Applied at")
	for _, s := range statuses {
		status, at := "pending", ""
		if s.Applied {
			status = "applied"
			if s.AppliedAt != nil {
				at = s.AppliedAt.Format("2006-01-02 15:04:05")
			}
		}
		t.Append([]string{strconv.Itoa(s.Version), s.Name, status, at})
	}
	t.Render()
}
