// Copyright 2026 Naturkirken
// Licensed under the EUPL-1.2

// Package handlers contains the HTTP handlers of the member portal API.
package handlers

import (
	"errors"
	"net/http"

	"codeberg.org/naturkirken/medlemsportal/internal/models"
	"codeberg.org/naturkirken/medlemsportal/internal/repository"
	"github.com/labstack/echo/v4"
)

// Handlers contains the health and profile handlers.
type Handlers struct {
	repo *repository.Repository
}

// New creates a new Handlers instance.
func New(repo *repository.Repository) *Handlers {
	return &Handlers{repo: repo}
}

// Health returns the health status.
func (h *Handlers) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// ProfileResponse is a member profile with the personnummer masked.
type ProfileResponse struct {
	*models.MemberProfile
	Personnummer string `json:"personnummer"`
}

// Profile returns the signed-in member's profile.
func (h *Handlers) Profile(c echo.Context) error {
	cl, err := claims(c)
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	profile, err := h.repo.GetMemberProfileByID(ctx, cl.UserID)
	if errors.Is(err, repository.ErrNotFound) {
		profile, err = h.repo.GetMemberProfileByEmail(ctx, cl.Email)
	}
	if errors.Is(err, repository.ErrNotFound) {
		return newAPIError(http.StatusNotFound, CodeNotFound, "error_profile_not_found", err)
	}
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, ProfileResponse{
		MemberProfile: profile,
		Personnummer:  profile.MaskedPersonnummer(),
	})
}
