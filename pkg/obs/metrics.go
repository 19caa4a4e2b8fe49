// Package obs exposes the Prometheus metrics of the identity core.
package obs

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	loginsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_logins_total",
			Help: "Login attempts by outcome.",
		},
		[]string{"outcome"},
	)

	tokenValidationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_token_validations_total",
			Help: "Access token validations by status.",
		},
		[]string{"status"},
	)

	refreshRedemptionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_refresh_redemptions_total",
			Help: "Refresh token redemptions by outcome.",
		},
		[]string{"outcome"},
	)

	refreshReuseTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "auth_refresh_reuse_detected_total",
			Help: "Refresh token reuse detections.",
		},
	)

	mfaVerificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_mfa_verifications_total",
			Help: "MFA code verifications by method and outcome.",
		},
		[]string{"method", "outcome"},
	)

	oauthFlowsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_oauth_flows_total",
			Help: "OAuth flows by provider and stage.",
		},
		[]string{"provider", "stage"},
	)
)

// Init registers the metrics in the default registry.
func Init() {
	prometheus.MustRegister(
		loginsTotal,
		tokenValidationsTotal,
		refreshRedemptionsTotal,
		refreshReuseTotal,
		mfaVerificationsTotal,
		oauthFlowsTotal,
	)
}

// Handler serves the scrape endpoint inside a fiber app.
func Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}

func RecordLogin(outcome string) {
	loginsTotal.WithLabelValues(outcome).Inc()
}

func RecordTokenValidation(status string) {
	tokenValidationsTotal.WithLabelValues(status).Inc()
}

func RecordRefreshRedemption(outcome string) {
	refreshRedemptionsTotal.WithLabelValues(outcome).Inc()
}

func RecordRefreshReuse() {
	refreshReuseTotal.Inc()
}

func RecordMFAVerification(method, outcome string) {
	mfaVerificationsTotal.WithLabelValues(method, outcome).Inc()
}

func RecordOAuthFlow(provider, stage string) {
	oauthFlowsTotal.WithLabelValues(provider, stage).Inc()
}
