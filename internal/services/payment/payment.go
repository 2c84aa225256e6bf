// Copyright 2026 Naturkirken
// Licensed under the EUPL-1.2

// Package payment starts membership subscriptions through a hosted checkout.
package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"codeberg.org/naturkirken/medlemsportal/internal/config"
	"codeberg.org/naturkirken/medlemsportal/internal/metrics"
	"codeberg.org/naturkirken/medlemsportal/internal/repository"
	"codeberg.org/naturkirken/medlemsportal/internal/security"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// MethodStripe is the only supported payment method.
const MethodStripe = "stripe"

// idempotencyWindow bounds how long a repeated submit reuses the same session.
const idempotencyWindow = 10 * time.Minute

var (
	ErrInvalidRequest    = errors.New("invalid payment request")
	ErrMissingData       = errors.New("membership data is missing")
	ErrConfig            = errors.New("payment processor is not configured")
	ErrAlreadySubscribed = errors.New("member already has an active subscription")
)

var checkoutNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://naturkirken.no/medlemskap/checkout"))

// Request is the checkout request body.
type Request struct {
	MembershipData *Application `json:"membershipData"`
	PaymentMethod  string       `json:"paymentMethod"`
}

// Caller identifies the signed-in member starting the checkout.
type Caller struct {
	UserID    string
	Email     string
	RequestID string
}

// CheckoutParams describes a subscription checkout session.
type CheckoutParams struct {
	CustomerID     string
	Email          string
	UserID         string
	MembershipType string
	IdempotencyKey string
}

// Processor is the payment provider used for checkout.
type Processor interface {
	// FindCustomerByEmail returns the customer ID for email, or "" if none exists.
	FindCustomerByEmail(ctx context.Context, email string) (string, error)
	HasActiveSubscription(ctx context.Context, customerID string) (bool, error)
	// CreateCheckoutSession returns the hosted checkout URL.
	CreateCheckoutSession(ctx context.Context, params CheckoutParams) (string, error)
}

type Initiator struct {
	repo      *repository.Repository
	processor Processor
	validate  *validator.Validate
	sanitizer *security.Sanitizer
	metrics   metrics.Recorder
	now       func() time.Time
}

// NewInitiator creates an Initiator. A nil processor makes every checkout
// fail with ErrConfig.
func NewInitiator(repo *repository.Repository, processor Processor, rec metrics.Recorder) *Initiator {
	if rec == nil {
		rec = metrics.Nop{}
	}
	return &Initiator{
		repo:      repo,
		processor: processor,
		validate:  newValidator(),
		sanitizer: security.NewSanitizer(),
		metrics:   rec,
		now:       time.Now,
	}
}

// NewInitiatorFromConfig creates an Initiator backed by Stripe when cfg is complete.
func NewInitiatorFromConfig(repo *repository.Repository, cfg config.StripeConfig, rec metrics.Recorder) *Initiator {
	var processor Processor
	if cfg.Configured() {
		processor = NewStripeProcessor(cfg)
	} else {
		slog.Warn("stripe not configured, checkout disabled")
	}
	return NewInitiator(repo, processor, rec)
}

// Initiate validates the application and returns a checkout URL for the caller.
func (i *Initiator) Initiate(ctx context.Context, caller Caller, req *Request) (string, error) {
	url, err := i.initiate(ctx, caller, req)
	if err != nil {
		i.metrics.CheckoutFailed(failureReason(err))
		return "", err
	}
	i.metrics.CheckoutCreated(req.MembershipData.MembershipType)
	return url, nil
}

func (i *Initiator) initiate(ctx context.Context, caller Caller, req *Request) (string, error) {
	if req == nil || req.PaymentMethod != MethodStripe {
		return "", ErrInvalidRequest
	}
	if req.MembershipData == nil {
		return "", ErrMissingData
	}

	app := req.MembershipData
	if err := app.Validate(i.validate); err != nil {
		slog.Warn("checkout_validation_failed",
			"user_id", caller.UserID, "request_id", caller.RequestID, "error", err)
		return "", err
	}

	if i.processor == nil {
		return "", ErrConfig
	}

	customerID, err := i.processor.FindCustomerByEmail(ctx, caller.Email)
	if err != nil {
		return "", fmt.Errorf("looking up customer: %w", err)
	}
	if customerID != "" {
		active, err := i.processor.HasActiveSubscription(ctx, customerID)
		if err != nil {
			return "", fmt.Errorf("checking subscriptions: %w", err)
		}
		if active {
			slog.Info("checkout_already_subscribed", "user_id", caller.UserID, "customer_id", customerID)
			return "", ErrAlreadySubscribed
		}
	}

	url, err := i.processor.CreateCheckoutSession(ctx, CheckoutParams{
		CustomerID:     customerID,
		Email:          caller.Email,
		UserID:         caller.UserID,
		MembershipType: app.MembershipType,
		IdempotencyKey: IdempotencyKey(caller.UserID, app.MembershipType, i.now()),
	})
	if err != nil {
		return "", fmt.Errorf("creating checkout session: %w", err)
	}

	i.saveApplication(ctx, caller, app)

	slog.Info("checkout_created",
		"user_id", caller.UserID, "membership_type", app.MembershipType, "request_id", caller.RequestID)
	return url, nil
}

// saveApplication stores the application on the caller's profile. Failures
// are logged only.
func (i *Initiator) saveApplication(ctx context.Context, caller Caller, app *Application) {
	profile, err := i.repo.GetMemberProfileByID(ctx, caller.UserID)
	if errors.Is(err, repository.ErrNotFound) {
		profile, err = i.repo.GetMemberProfileByEmail(ctx, caller.Email)
	}
	if err == nil {
		app.ApplyTo(profile, i.sanitizer)
		err = i.repo.UpdateMemberApplication(ctx, profile)
	}
	if err != nil {
		slog.Error("checkout_profile_update_failed",
			"user_id", caller.UserID, "request_id", caller.RequestID, "error", err)
	}
}

// IdempotencyKey derives a stable key for one member, membership type and
// time window, so a repeated submit yields the same checkout session.
func IdempotencyKey(userID, membershipType string, at time.Time) string {
	bucket := at.Unix() / int64(idempotencyWindow/time.Second)
	name := userID + "|" + membershipType + "|" + strconv.FormatInt(bucket, 10)
	return uuid.NewSHA1(checkoutNamespace, []byte(name)).String()
}

func failureReason(err error) string {
	var verr *ValidationError
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return "invalid_request"
	case errors.Is(err, ErrMissingData):
		return "missing_data"
	case errors.As(err, &verr):
		return "validation"
	case errors.Is(err, ErrConfig):
		return "config"
	case errors.Is(err, ErrAlreadySubscribed):
		return "already_subscribed"
	default:
		return "internal"
	}
}
