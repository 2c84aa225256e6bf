// Copyright 2026 Naturkirken
// Licensed under the EUPL-1.2

package handlers

import (
	"net/http"

	"codeberg.org/naturkirken/medlemsportal/internal/services/payment"
	"github.com/labstack/echo/v4"
)

// PaymentHandlers contains the membership checkout handler.
type PaymentHandlers struct {
	initiator *payment.Initiator
}

// NewPayment creates a new PaymentHandlers instance.
func NewPayment(initiator *payment.Initiator) *PaymentHandlers {
	return &PaymentHandlers{initiator: initiator}
}

// Checkout starts a membership subscription checkout and returns its URL.
func (h *PaymentHandlers) Checkout(c echo.Context) error {
	cl, err := claims(c)
	if err != nil {
		return err
	}

	var req payment.Request
	if err := bindStrict(c, &req); err != nil {
		return err
	}

	url, err := h.initiator.Initiate(c.Request().Context(), payment.Caller{
		UserID:    cl.UserID,
		Email:     cl.Email,
		RequestID: requestID(c),
	}, &req)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, map[string]string{"url": url})
}
