package pharmacy

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/clinic/clinic/internal/platform/apperr"
	"github.com/clinic/clinic/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/purchases/patient/:id", h.ListByPatient)

	staff := api.Group("", auth.RequireRole(auth.RoleStaff))
	staff.POST("/purchases", h.CreatePurchase)
	staff.POST("/bills", h.CreatePurchase)
	staff.DELETE("/bills/:id", h.DeletePurchase)
	staff.DELETE("/purchases/:id", h.DeletePurchase)
}

func parseID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func (h *Handler) CreatePurchase(c echo.Context) error {
	var req PurchaseRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	result, err := h.svc.CreatePurchase(c.Request().Context(), &req)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusCreated, map[string]interface{}{
		"message":       "Purchase created successfully",
		"purchase_id":   result.PurchaseID,
		"total":         result.Total,
		"items":         result.Lines,
		"skipped_lines": result.Skipped,
		"payment_id":    result.PaymentID,
	})
}

func (h *Handler) ListByPatient(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	items, err := h.svc.ListPurchasesByPatient(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTPError(err)
	}
	if items == nil {
		items = []*PurchaseSummary{}
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) DeletePurchase(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeletePurchase(c.Request().Context(), id); err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Purchase deleted"})
}
