package handlers

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"restopay_app/internal/services"
)

type InvoiceHandler struct {
	downloads *services.InvoiceDownloadService
}

func NewInvoiceHandler(downloads *services.InvoiceDownloadService) *InvoiceHandler {
	return &InvoiceHandler{downloads: downloads}
}

// Download handles GET /api/orders/:id/invoice?phone=
func (h *InvoiceHandler) Download(c echo.Context) error {
	inv, err := h.downloads.GetInvoice(c.Request().Context(), c.Param("id"), c.QueryParam("phone"))
	if err != nil {
		return err
	}

	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", inv.Filename))
	return c.Blob(http.StatusOK, inv.Document.ContentType, inv.Document.Content)
}

// Healthz handles GET /healthz
func Healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, MessageResponse{Success: true, Message: "ok"})
}
