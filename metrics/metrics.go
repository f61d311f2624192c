// Package metrics exposes cookieguard counters through Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Result label values of the signed cookies counter.
const (
	ResultVerified = "verified"
	ResultRejected = "rejected"
	ResultSigned   = "signed"
)

// Prometheus records signed cookie and forced SSL events. It satisfies the
// recorder interfaces of the signedcookie and forcedssl packages.
//
// Cookie names are not used as labels: with a wildcard policy they are
// chosen by the client.
type Prometheus struct {
	cookies   *prometheus.CounterVec
	redirects prometheus.Counter
}

// New registers the cookieguard collectors on reg. A nil reg registers on
// prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer) *Prometheus {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	factory := promauto.With(reg)

	return &Prometheus{
		cookies: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cookieguard_signed_cookies_total",
			Help: "Number of signed cookies processed, by result (verified, rejected, signed)",
		}, []string{"result"}),
		redirects: factory.NewCounter(prometheus.CounterOpts{
			Name: "cookieguard_ssl_redirects_total",
			Help: "Number of plain HTTP requests redirected to HTTPS",
		}),
	}
}

// CookieVerified counts an inbound cookie whose signature was valid.
func (p *Prometheus) CookieVerified(string) {
	p.cookies.WithLabelValues(ResultVerified).Inc()
}

// CookieRejected counts an inbound cookie dropped because its signature
// did not verify.
func (p *Prometheus) CookieRejected(string) {
	p.cookies.WithLabelValues(ResultRejected).Inc()
}

// CookieSigned counts an outbound cookie that was signed.
func (p *Prometheus) CookieSigned(string) {
	p.cookies.WithLabelValues(ResultSigned).Inc()
}

// Redirected counts a redirect to HTTPS.
func (p *Prometheus) Redirected() {
	p.redirects.Inc()
}
