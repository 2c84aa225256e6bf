// Copyright 2026 Naturkirken
// Licensed under the EUPL-1.2

package payment_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"codeberg.org/naturkirken/medlemsportal/internal/config"
	"codeberg.org/naturkirken/medlemsportal/internal/models"
	"codeberg.org/naturkirken/medlemsportal/internal/repository"
	"codeberg.org/naturkirken/medlemsportal/internal/services/payment"
	"codeberg.org/naturkirken/medlemsportal/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validApplication() *payment.Application {
	return &payment.Application{
		FirstName:      "Kari",
		LastName:       "Nordmann",
		Phone:          "+4791234567",
		Address:        "Skogveien 1",
		PostalCode:     "0150",
		City:           "Oslo",
		Country:        "Norge",
		Personnummer:   "01019012345",
		Gender:         "kvinne",
		MembershipType: "Hovedmedlem",
		ThemeGroups:    []string{"natur", "stillhet"},
	}
}

func setup(t *testing.T) (*payment.Initiator, *testutil.FakeProcessor, *repository.Repository, payment.Caller) {
	t.Helper()
	_, repo := testutil.NewTestDB(t)
	member := testutil.NewTestMember(t, repo, "kari@example.com")
	proc := testutil.NewFakeProcessor()
	caller := payment.Caller{UserID: member.ID, Email: member.Email, RequestID: "req-1"}
	return payment.NewInitiator(repo, proc, nil), proc, repo, caller
}

func TestInitiate_Success(t *testing.T) {
	initiator, proc, repo, caller := setup(t)
	ctx := context.Background()

	url, err := initiator.Initiate(ctx, caller, &payment.Request{
		MembershipData: validApplication(),
		PaymentMethod:  payment.MethodStripe,
	})

	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, testutil.FakeCheckoutDomain))
	require.Len(t, proc.Sessions, 1)
	assert.Equal(t, caller.UserID, proc.Sessions[0].UserID)
	assert.Equal(t, "Hovedmedlem", proc.Sessions[0].MembershipType)
	assert.Empty(t, proc.Sessions[0].CustomerID)
	assert.Equal(t, "kari@example.com", proc.Sessions[0].Email)

	profile, err := repo.GetMemberProfileByID(ctx, caller.UserID)
	require.NoError(t, err)
	assert.Equal(t, "Kari Nordmann", profile.FullName)
	assert.Equal(t, models.MembershipFull, profile.MembershipType)
	assert.Equal(t, models.StringSet{"natur", "stillhet"}, profile.ThemeGroups)
}

func TestInitiate_RequestErrors(t *testing.T) {
	initiator, _, _, caller := setup(t)
	ctx := context.Background()

	_, err := initiator.Initiate(ctx, caller, &payment.Request{MembershipData: validApplication(), PaymentMethod: "vipps"})
	assert.ErrorIs(t, err, payment.ErrInvalidRequest)

	_, err = initiator.Initiate(ctx, caller, nil)
	assert.ErrorIs(t, err, payment.ErrInvalidRequest)

	_, err = initiator.Initiate(ctx, caller, &payment.Request{PaymentMethod: payment.MethodStripe})
	assert.ErrorIs(t, err, payment.ErrMissingData)
}

func TestInitiate_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*payment.Application)
		valid  bool
	}{
		{"personnummer 5 digits", func(a *payment.Application) { a.Personnummer = "12345" }, false},
		{"personnummer 13 digits", func(a *payment.Application) { a.Personnummer = "1234567890123" }, false},
		{"personnummer 6 digits", func(a *payment.Application) { a.Personnummer = "123456" }, true},
		{"personnummer 12 digits", func(a *payment.Application) { a.Personnummer = "123456789012" }, true},
		{"personnummer with letters", func(a *payment.Application) { a.Personnummer = "0101901234A" }, false},
		{"withdrawn membership", func(a *payment.Application) { a.MembershipType = "Utmeldt" }, false},
		{"unknown membership", func(a *payment.Application) { a.MembershipType = "Æresmedlem" }, false},
		{"supporting membership", func(a *payment.Application) { a.MembershipType = "Støttemedlem" }, true},
		{"unknown gender", func(a *payment.Application) { a.Gender = "x" }, false},
		{"gender omitted", func(a *payment.Application) { a.Gender = "" }, true},
		{"phone too short", func(a *payment.Application) { a.Phone = "1234567" }, false},
		{"phone too long", func(a *payment.Application) { a.Phone = strings.Repeat("1", 21) }, false},
		{"first name missing", func(a *payment.Application) { a.FirstName = "" }, false},
		{"first name too long", func(a *payment.Application) { a.FirstName = strings.Repeat("å", 101) }, false},
		{"too many theme groups", func(a *payment.Application) { a.ThemeGroups = make([]string, 21) }, false},
		{"theme group too long", func(a *payment.Application) { a.ThemeGroups = []string{strings.Repeat("x", 101)} }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			initiator, proc, _, caller := setup(t)
			app := validApplication()
			tt.mutate(app)

			_, err := initiator.Initiate(context.Background(), caller, &payment.Request{
				MembershipData: app,
				PaymentMethod:  payment.MethodStripe,
			})

			if tt.valid {
				assert.NoError(t, err)
				return
			}
			var verr *payment.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.NotEmpty(t, verr.Fields)
			assert.Empty(t, proc.Sessions)
		})
	}
}

func TestInitiate_NotConfigured(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	initiator := payment.NewInitiatorFromConfig(repo, config.StripeConfig{}, nil)

	_, err := initiator.Initiate(context.Background(), payment.Caller{UserID: "u1", Email: "a@example.com"}, &payment.Request{
		MembershipData: validApplication(),
		PaymentMethod:  payment.MethodStripe,
	})

	assert.ErrorIs(t, err, payment.ErrConfig)
}

func TestInitiate_AlreadySubscribed(t *testing.T) {
	initiator, proc, _, caller := setup(t)
	proc.Customers[caller.Email] = "cus_123"
	proc.Active["cus_123"] = true

	_, err := initiator.Initiate(context.Background(), caller, &payment.Request{
		MembershipData: validApplication(),
		PaymentMethod:  payment.MethodStripe,
	})

	assert.ErrorIs(t, err, payment.ErrAlreadySubscribed)
	assert.Empty(t, proc.Sessions)
}

func TestInitiate_ExistingCustomerWithoutSubscription(t *testing.T) {
	initiator, proc, _, caller := setup(t)
	proc.Customers[caller.Email] = "cus_123"

	_, err := initiator.Initiate(context.Background(), caller, &payment.Request{
		MembershipData: validApplication(),
		PaymentMethod:  payment.MethodStripe,
	})

	require.NoError(t, err)
	require.Len(t, proc.Sessions, 1)
	assert.Equal(t, "cus_123", proc.Sessions[0].CustomerID)
}

func TestInitiate_ProcessorErrors(t *testing.T) {
	initiator, proc, _, caller := setup(t)
	req := &payment.Request{MembershipData: validApplication(), PaymentMethod: payment.MethodStripe}

	proc.FindErr = errors.New("stripe unavailable")
	_, err := initiator.Initiate(context.Background(), caller, req)
	require.Error(t, err)
	assert.NotErrorIs(t, err, payment.ErrConfig)

	proc.FindErr = nil
	proc.CreateErr = errors.New("card declined")
	_, err = initiator.Initiate(context.Background(), caller, req)
	require.Error(t, err)
}

func TestInitiate_DoubleSubmitReusesSession(t *testing.T) {
	initiator, proc, _, caller := setup(t)
	req := &payment.Request{MembershipData: validApplication(), PaymentMethod: payment.MethodStripe}

	first, err := initiator.Initiate(context.Background(), caller, req)
	require.NoError(t, err)
	second, err := initiator.Initiate(context.Background(), caller, req)
	require.NoError(t, err)

	require.Len(t, proc.Sessions, 2)
	assert.Equal(t, proc.Sessions[0].IdempotencyKey, proc.Sessions[1].IdempotencyKey)
	assert.Equal(t, first, second)
}

func TestInitiate_SanitizesStoredFields(t *testing.T) {
	initiator, _, repo, caller := setup(t)
	app := validApplication()
	app.FirstName = `<script>alert(1)</script>Kari`
	app.City = "Bø i Telemark & omegn"

	_, err := initiator.Initiate(context.Background(), caller, &payment.Request{MembershipData: app, PaymentMethod: payment.MethodStripe})
	require.NoError(t, err)

	profile, err := repo.GetMemberProfileByID(context.Background(), caller.UserID)
	require.NoError(t, err)
	assert.Equal(t, "Kari", profile.FirstName)
	assert.Equal(t, "Bø i Telemark &amp; omegn", profile.City)
}

func TestInitiate_ProfileUpdateFailureIsNotFatal(t *testing.T) {
	initiator, _, _, _ := setup(t)

	url, err := initiator.Initiate(context.Background(), payment.Caller{UserID: "missing", Email: "missing@example.com"}, &payment.Request{
		MembershipData: validApplication(),
		PaymentMethod:  payment.MethodStripe,
	})

	require.NoError(t, err)
	assert.NotEmpty(t, url)
}

func TestIdempotencyKey(t *testing.T) {
	at := time.Date(2025, 5, 1, 12, 1, 0, 0, time.UTC)

	key := payment.IdempotencyKey("u1", "Hovedmedlem", at)

	assert.Equal(t, key, payment.IdempotencyKey("u1", "Hovedmedlem", at.Add(5*time.Minute)))
	assert.NotEqual(t, key, payment.IdempotencyKey("u1", "Hovedmedlem", at.Add(10*time.Minute)))
	assert.NotEqual(t, key, payment.IdempotencyKey("u1", "Støttemedlem", at))
	assert.NotEqual(t, key, payment.IdempotencyKey("u2", "Hovedmedlem", at))
}
