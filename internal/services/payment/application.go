// Copyright 2026 Naturkirken
// Licensed under the EUPL-1.2

package payment

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"codeberg.org/naturkirken/medlemsportal/internal/models"
	"codeberg.org/naturkirken/medlemsportal/internal/security"
	"github.com/go-playground/validator/v10"
)

var personnummerPattern = regexp.MustCompile(`^\d{6,12}$`)

// Application is the membership form submitted with a checkout request.
type Application struct { //nolint:govet // fieldalignment: readability over optimization
	FirstName            string   `json:"first_name" validate:"required,max=100"`
	MiddleName           string   `json:"middle_name" validate:"max=100"`
	LastName             string   `json:"last_name" validate:"required,max=100"`
	Phone                string   `json:"phone" validate:"required,min=8,max=20"`
	Address              string   `json:"address" validate:"max=200"`
	PostalCode           string   `json:"postal_code" validate:"max=10"`
	City                 string   `json:"city" validate:"max=100"`
	Country              string   `json:"country" validate:"max=100"`
	Personnummer         string   `json:"personnummer" validate:"required,personnummer"`
	Gender               string   `json:"gender" validate:"omitempty,oneof=mann kvinne annet uoppgitt"`
	MembershipType       string   `json:"membership_type" validate:"required,membership_type"`
	ThemeGroups          []string `json:"theme_groups" validate:"max=20,dive,max=100"`
	NewsletterSubscribed bool     `json:"newsletter_subscribed"`
	CommunityOptOut      bool     `json:"community_opt_out"`
}

// ValidationError lists the fields that failed validation. The detail is
// meant for logs, not for clients.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "invalid membership application: " + strings.Join(e.Fields, ", ")
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("personnummer", func(fl validator.FieldLevel) bool {
		return personnummerPattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("membership_type", func(fl validator.FieldLevel) bool {
		return models.MembershipType(fl.Field().String()).Applicable()
	})
	return v
}

// Validate checks the application against the form rules.
func (a *Application) Validate(v *validator.Validate) error {
	err := v.Struct(a)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validating application: %w", err)
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fe.Namespace()+":"+fe.Tag())
	}
	return &ValidationError{Fields: fields}
}

// ApplyTo copies the sanitized application onto a member profile.
func (a *Application) ApplyTo(p *models.MemberProfile, s *security.Sanitizer) {
	p.FirstName = s.Text(a.FirstName)
	p.MiddleName = s.Text(a.MiddleName)
	p.LastName = s.Text(a.LastName)
	p.FullName = models.JoinFullName(p.FirstName, p.MiddleName, p.LastName)
	p.Phone = s.Text(a.Phone)
	p.Address = s.Text(a.Address)
	p.PostalCode = s.Text(a.PostalCode)
	p.City = s.Text(a.City)
	p.Country = s.Text(a.Country)
	p.Personnummer = a.Personnummer
	p.Gender = models.Gender(a.Gender)
	if p.Gender == "" {
		p.Gender = models.GenderUnspecified
	}
	p.MembershipType = models.MembershipType(a.MembershipType)
	p.ThemeGroups = models.NewStringSet(s.Texts(a.ThemeGroups)...)
	p.NewsletterSubscribed = a.NewsletterSubscribed
	p.CommunityOptOut = a.CommunityOptOut
}
