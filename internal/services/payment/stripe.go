// Copyright 2026 Naturkirken
// Licensed under the EUPL-1.2

package payment

import (
	"context"

	"codeberg.org/naturkirken/medlemsportal/internal/config"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/client"
)

// StripeProcessor creates subscription checkouts with Stripe.
type StripeProcessor struct {
	api        *client.API
	priceID    string
	successURL string
	cancelURL  string
}

var _ Processor = (*StripeProcessor)(nil)

func NewStripeProcessor(cfg config.StripeConfig) *StripeProcessor {
	return NewStripeProcessorWithBackends(cfg, nil)
}

// NewStripeProcessorWithBackends allows tests to point the client at a stub API.
func NewStripeProcessorWithBackends(cfg config.StripeConfig, backends *stripe.Backends) *StripeProcessor {
	api := &client.API{}
	api.Init(cfg.SecretKey, backends)
	return &StripeProcessor{
		api:        api,
		priceID:    cfg.PriceID,
		successURL: cfg.SuccessURL,
		cancelURL:  cfg.CancelURL,
	}
}

func (p *StripeProcessor) FindCustomerByEmail(ctx context.Context, email string) (string, error) {
	params := &stripe.CustomerListParams{Email: stripe.String(email)}
	params.Context = ctx
	params.Limit = stripe.Int64(1)
	params.Single = true

	iter := p.api.Customers.List(params)
	if iter.Next() {
		return iter.Customer().ID, nil
	}
	return "", iter.Err()
}

func (p *StripeProcessor) HasActiveSubscription(ctx context.Context, customerID string) (bool, error) {
	params := &stripe.SubscriptionListParams{
		Customer: stripe.String(customerID),
		Status:   stripe.String(string(stripe.SubscriptionStatusActive)),
	}
	params.Context = ctx
	params.Limit = stripe.Int64(1)
	params.Single = true

	iter := p.api.Subscriptions.List(params)
	if iter.Next() {
		return true, nil
	}
	return false, iter.Err()
}

func (p *StripeProcessor) CreateCheckoutSession(ctx context.Context, cp CheckoutParams) (string, error) {
	metadata := map[string]string{
		"user_id":         cp.UserID,
		"membership_type": cp.MembershipType,
	}

	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{Price: stripe.String(p.priceID), Quantity: stripe.Int64(1)},
		},
		SuccessURL:        stripe.String(p.successURL),
		CancelURL:         stripe.String(p.cancelURL),
		ClientReferenceID: stripe.String(cp.UserID),
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: metadata,
		},
	}
	if cp.CustomerID != "" {
		params.Customer = stripe.String(cp.CustomerID)
	} else {
		params.CustomerEmail = stripe.String(cp.Email)
	}
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}
	params.Context = ctx
	if cp.IdempotencyKey != "" {
		params.SetIdempotencyKey(cp.IdempotencyKey)
	}

	sess, err := p.api.CheckoutSessions.New(params)
	if err != nil {
		return "", err
	}
	return sess.URL, nil
}
