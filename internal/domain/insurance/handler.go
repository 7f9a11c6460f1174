package insurance

import (
	"errors"
	"net/http"
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
	read := api.Group("/insurance", auth.RequireRole("physician", "nurse", "receptionist"))
	read.GET("", h.List)
	read.GET("/:id", h.Get)

	write := api.Group("/insurance", auth.RequireRole("receptionist"))
	write.POST("", h.Create)
}

func (h *Handler) Create(c echo.Context) error {
	var req CreateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	card, err := h.svc.Create(c.Request().Context(), req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, card)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	card, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, card)
}

// List supports q, provider, from, to and has_card_image.
func (h *Handler) List(c echo.Context) error {
	var cr filter.Criteria
	if q := strings.TrimSpace(c.QueryParam("q")); q != "" {
		cr.Text = append(cr.Text, filter.Search(GroupKeyword, q))
	}
	if v := c.QueryParam("provider"); v != "" {
		cr.Membership = append(cr.Membership, filter.In(FieldProvider, filter.SplitList(v)...))
	}
	from, err := filter.ParseDay(c.QueryParam("from"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "from: "+err.Error())
	}
	to, err := filter.ParseDay(c.QueryParam("to"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "to: "+err.Error())
	}
	if from != nil || to != nil {
		cr.Ranges = append(cr.Ranges, ValidityWindow(from, to))
	}
	hasImage, err := filter.ParseTriState(c.QueryParam("has_card_image"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "has_card_image: "+err.Error())
	}
	if hasImage != nil {
		cr.Presence = append(cr.Presence, filter.Presence{Field: FieldCardImage, Want: hasImage})
	}

	cards, err := h.svc.Search(c.Request().Context(), cr)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.Page(cards, pagination.FromContext(c)))
}

func httpError(err error) error {
	switch {
	case IsValidation(err):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, "internal error").SetInternal(err)
}
