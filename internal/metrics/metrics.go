// Copyright 2026 Naturkirken
// Licensed under the EUPL-1.2

// Package metrics exposes Prometheus counters for the sign-in and payment flows.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is the metrics interface used by services and middleware.
type Recorder interface {
	CodeIssued()
	CodeIssueFailed(reason string)
	CodeVerified(userType string)
	CodeVerifyFailed(reason string)
	IdentityProvisioned()
	CheckoutCreated(membershipType string)
	CheckoutFailed(reason string)
	HTTPRequest(method, route string, status int, latency time.Duration)
}

// Collector records metrics in a Prometheus registry.
type Collector struct {
	codesIssued         prometheus.Counter
	codeIssueFailures   *prometheus.CounterVec
	codesVerified       *prometheus.CounterVec
	codeVerifyFailures  *prometheus.CounterVec
	identitiesProvision prometheus.Counter
	checkouts           *prometheus.CounterVec
	checkoutFailures    *prometheus.CounterVec
	httpDuration        *prometheus.HistogramVec
}

var _ Recorder = (*Collector)(nil)

// NewCollector creates a Collector and registers its metrics with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		codesIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "medlemsportal_codes_issued_total",
			Help: "Sign-in codes issued and emailed.",
		}),
		codeIssueFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "medlemsportal_code_issue_failures_total",
			Help: "Sign-in code requests that did not send a code, by reason.",
		}, []string{"reason"}),
		codesVerified: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "medlemsportal_codes_verified_total",
			Help: "Sign-in codes redeemed, by resolution type.",
		}, []string{"type"}),
		codeVerifyFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "medlemsportal_code_verify_failures_total",
			Help: "Failed sign-in code verifications, by reason.",
		}, []string{"reason"}),
		identitiesProvision: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "medlemsportal_identities_provisioned_total",
			Help: "Identities created on first sign-in.",
		}),
		checkouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "medlemsportal_checkouts_created_total",
			Help: "Checkout sessions created, by membership type.",
		}, []string{"membership_type"}),
		checkoutFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "medlemsportal_checkout_failures_total",
			Help: "Rejected or failed checkout requests, by reason.",
		}, []string{"reason"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "medlemsportal_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}

	reg.MustRegister(
		c.codesIssued,
		c.codeIssueFailures,
		c.codesVerified,
		c.codeVerifyFailures,
		c.identitiesProvision,
		c.checkouts,
		c.checkoutFailures,
		c.httpDuration,
	)

	return c
}

func (c *Collector) CodeIssued() { c.codesIssued.Inc() }

func (c *Collector) CodeIssueFailed(reason string) {
	c.codeIssueFailures.WithLabelValues(reason).Inc()
}

func (c *Collector) CodeVerified(userType string) {
	c.codesVerified.WithLabelValues(userType).Inc()
}

func (c *Collector) CodeVerifyFailed(reason string) {
	c.codeVerifyFailures.WithLabelValues(reason).Inc()
}

func (c *Collector) IdentityProvisioned() { c.identitiesProvision.Inc() }

func (c *Collector) CheckoutCreated(membershipType string) {
	c.checkouts.WithLabelValues(membershipType).Inc()
}

func (c *Collector) CheckoutFailed(reason string) {
	c.checkoutFailures.WithLabelValues(reason).Inc()
}

func (c *Collector) HTTPRequest(method, route string, status int, latency time.Duration) {
	c.httpDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(latency.Seconds())
}

// Nop discards all metrics.
type Nop struct{}

var _ Recorder = Nop{}

func (Nop) CodeIssued() {}
func (Nop) CodeIssueFailed(string) {}
func (Nop) CodeVerified(string) {}
func (Nop) CodeVerifyFailed(string) {}
func (Nop) IdentityProvisioned() {}
func (Nop) CheckoutCreated(string) {}
func (Nop) CheckoutFailed(string) {}
func (Nop) HTTPRequest(string, string, int, time.Duration) {}

// Handler returns the scrape handler for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
