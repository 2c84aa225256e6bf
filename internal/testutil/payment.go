// Copyright 2026 Naturkirken
// Licensed under the EUPL-1.2

package testutil

import (
	"context"
	"sync"

	"codeberg.org/naturkirken/medlemsportal/internal/services/payment"
)

// FakeCheckoutDomain prefixes every URL returned by FakeProcessor.
const FakeCheckoutDomain = "https://checkout.stripe.com/c/pay/"

// FakeProcessor is an in-memory payment processor. Sessions created with the
// same idempotency key return the same URL.
type FakeProcessor struct {
	mu        sync.Mutex
	Customers map[string]string // email to customer ID
	Active    map[string]bool   // customer IDs with an active subscription
	Sessions  []payment.CheckoutParams
	FindErr   error
	CreateErr error
	urls      map[string]string
}

var _ payment.Processor = (*FakeProcessor)(nil)

func NewFakeProcessor() *FakeProcessor {
	return &FakeProcessor{
		Customers: map[string]string{},
		Active:    map[string]bool{},
		urls:      map[string]string{},
	}
}

func (f *FakeProcessor) FindCustomerByEmail(_ context.Context, email string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Customers[email], f.FindErr
}

func (f *FakeProcessor) HasActiveSubscription(_ context.Context, customerID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Active[customerID], nil
}

func (f *FakeProcessor) CreateCheckoutSession(_ context.Context, params payment.CheckoutParams) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.CreateErr != nil {
		return "", f.CreateErr
	}
	f.Sessions = append(f.Sessions, params)
	if url, ok := f.urls[params.IdempotencyKey]; ok {
		return url, nil
	}
	url := FakeCheckoutDomain + "cs_test_" + params.IdempotencyKey
	f.urls[params.IdempotencyKey] = url
	return url, nil
}

// SessionCount returns the number of checkout requests received.
func (f *FakeProcessor) SessionCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Sessions)
}
