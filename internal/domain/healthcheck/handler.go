package healthcheck

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/healthcheck/healthcheck/internal/domain/filter"
	"github.com/healthcheck/healthcheck/internal/platform/auth"
	"github.com/healthcheck/healthcheck/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	read := api.Group("/health-checks", auth.RequireRole("physician", "nurse", "receptionist"))
	read.GET("", h.List)
	read.GET("/:id", h.Get)
	read.GET("/code/:code", h.GetByCode)
	read.GET("/:id/history", h.History)

	write := api.Group("/health-checks", auth.RequireRole("physician", "nurse"))
	write.POST("", h.Create)
	write.POST("/:id/commands", h.Command)
	write.DELETE("/:id", h.Delete)
	write.POST("/:id/restore", h.Restore)
}

type createRequest struct {
	PatientID        uuid.UUID     `json:"patient_id"`
	PatientName      string        `json:"patient_name"`
	PatientEmail     *string       `json:"patient_email"`
	StaffID          uuid.UUID     `json:"staff_id"`
	StaffName        string        `json:"staff_name"`
	CheckupDate      string        `json:"checkup_date"`
	Details          []DetailEntry `json:"details"`
	AttachmentURL    *string       `json:"attachment_url"`
	FollowUpRequired bool          `json:"follow_up_required"`
	FollowUpDate     string        `json:"follow_up_date"`
}

type commandRequest struct {
	Command          CommandKind   `json:"command"`
	Reason           string        `json:"reason"`
	Details          []DetailEntry `json:"details"`
	FollowUpRequired *bool         `json:"follow_up_required"`
	FollowUpDate     string        `json:"follow_up_date"`
}

type recordResponse struct {
	*HealthCheckResult
	Urgency         Urgency       `json:"urgency,omitempty"`
	AllowedCommands []CommandKind `json:"allowed_commands"`
}

func (h *Handler) Create(c echo.Context) error {
	var req createRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	checkup, err := filter.ParseDay(req.CheckupDate)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "checkup_date: "+err.Error())
	}
	followUp, err := filter.ParseDay(req.FollowUpDate)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "follow_up_date: "+err.Error())
	}
	in := &HealthCheckResult{
		PatientID:        req.PatientID,
		PatientName:      req.PatientName,
		PatientEmail:     req.PatientEmail,
		StaffID:          req.StaffID,
		StaffName:        req.StaffName,
		Details:          req.Details,
		AttachmentURL:    req.AttachmentURL,
		FollowUpRequired: req.FollowUpRequired,
		FollowUpDate:     followUp,
	}
	if checkup != nil {
		in.CheckupDate = *checkup
	}
	rec, err := h.svc.Create(c.Request().Context(), in, actorFrom(c))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, h.present(rec))
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	rec, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, h.present(rec))
}

// GetByCode looks a record up by its printed HC-YYYYMMDD-XXXXXX code.
func (h *Handler) GetByCode(c echo.Context) error {
	code := strings.ToUpper(strings.TrimSpace(c.Param("code")))
	if code == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "code is required")
	}
	rec, err := h.svc.GetByCode(c.Request().Context(), code)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, h.present(rec))
}

func (h *Handler) History(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	entries, err := h.svc.History(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, entries)
}

func (h *Handler) List(c echo.Context) error {
	q, err := queryFromRequest(c)
	if err != nil {
		return err
	}
	recs, err := h.svc.Search(c.Request().Context(), q)
	if err != nil {
		return httpError(err)
	}
	out := make([]recordResponse, len(recs))
	for i, r := range recs {
		out[i] = h.present(r)
	}
	return c.JSON(http.StatusOK, pagination.Page(out, pagination.FromContext(c)))
}

func (h *Handler) Command(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req commandRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	followUp, err := filter.ParseDay(req.FollowUpDate)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "follow_up_date: "+err.Error())
	}
	return h.execute(c, Command{
		RecordID: id,
		Kind:     req.Command,
		Actor:    actorFrom(c),
		Payload: Payload{
			Reason:           req.Reason,
			Details:          req.Details,
			FollowUpRequired: req.FollowUpRequired,
			FollowUpDate:     followUp,
		},
	})
}

func (h *Handler) Delete(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return h.execute(c, Command{RecordID: id, Kind: CommandSoftDelete, Actor: actorFrom(c)})
}

func (h *Handler) Restore(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return h.execute(c, Command{RecordID: id, Kind: CommandRestore, Actor: actorFrom(c)})
}

func (h *Handler) execute(c echo.Context, cmd Command) error {
	res, err := h.svc.Execute(c.Request().Context(), cmd)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) present(rec *HealthCheckResult) recordResponse {
	return recordResponse{
		HealthCheckResult: rec,
		Urgency:           rec.FollowUpUrgency(h.svc.Today()),
		AllowedCommands:   h.svc.Allowed(rec),
	}
}

func actorFrom(c echo.Context) Actor {
	ctx := c.Request().Context()
	return Actor{ID: auth.UserIDFromContext(ctx), Roles: auth.RolesFromContext(ctx)}
}

// queryFromRequest maps list query parameters onto a Query. Absent
// parameters add no constraint.
func queryFromRequest(c echo.Context) (Query, error) {
	q := Query{View: c.QueryParam("view")}
	var cr filter.Criteria

	for _, g := range [][2]string{{GroupKeyword, "q"}, {GroupPatient, "patient"}, {GroupStaff, "staff"}} {
		if term := strings.TrimSpace(c.QueryParam(g[1])); term != "" {
			cr.Text = append(cr.Text, filter.Search(g[0], term))
		}
	}
	if v := c.QueryParam("status"); v != "" {
		cr.Membership = append(cr.Membership, filter.In(FieldStatus, filter.SplitList(v)...))
	}
	if v := c.QueryParam("urgency"); v != "" {
		var levels []string
		for _, u := range filter.SplitList(v) {
			level, ok := ParseUrgency(u)
			if !ok {
				return q, echo.NewHTTPError(http.StatusBadRequest, "invalid urgency "+strconv.Quote(u))
			}
			levels = append(levels, string(level))
		}
		cr.Membership = append(cr.Membership, filter.In(FieldUrgency, levels...))
	}
	if v := c.QueryParam("patient_id"); v != "" {
		cr.Membership = append(cr.Membership, filter.In(FieldPatientID, filter.SplitList(v)...))
	}

	from, err := filter.ParseDay(c.QueryParam("from"))
	if err != nil {
		return q, echo.NewHTTPError(http.StatusBadRequest, "from: "+err.Error())
	}
	to, err := filter.ParseDay(c.QueryParam("to"))
	if err != nil {
		return q, echo.NewHTTPError(http.StatusBadRequest, "to: "+err.Error())
	}
	if from != nil || to != nil {
		field := c.QueryParam("date_field")
		if field == "" {
			field = DefaultDateField(q.View)
		}
		cr.Ranges = append(cr.Ranges, filter.Between(from, to, field))
	}

	hasAttachment, err := filter.ParseTriState(c.QueryParam("has_attachment"))
	if err != nil {
		return q, echo.NewHTTPError(http.StatusBadRequest, "has_attachment: "+err.Error())
	}
	if hasAttachment != nil {
		cr.Presence = append(cr.Presence, filter.Presence{Field: FieldAttachment, Want: hasAttachment})
	}

	q.Criteria = cr
	q.IncludeDeleted, _ = strconv.ParseBool(c.QueryParam("include_deleted"))
	q.SortByFollowUp = c.QueryParam("sort") == "follow_up_date"
	return q, nil
}

// httpError maps the domain error taxonomy onto HTTP status codes.
func httpError(err error) error {
	var verr *ValidationError
	var terr *InvalidTransitionError
	switch {
	case errors.As(err, &verr):
		return echo.NewHTTPError(http.StatusBadRequest, verr.Error())
	case errors.Is(err, ErrNotAuthorized):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.As(err, &terr), errors.Is(err, ErrConcurrentModification):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, "internal error").SetInternal(err)
}
