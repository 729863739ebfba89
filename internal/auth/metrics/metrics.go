package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

var durationBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1}

// Metrics provides observability for the auth module.
// Tracks sign-ups, sign-in outcomes, revocations and the bcrypt-bound paths.
type Metrics struct {
	UsersCreated      prometheus.Counter
	SigninAttempts    *prometheus.CounterVec
	SessionsRevoked   prometheus.Counter
	SessionsSwept     prometheus.Counter
	SignupDuration    prometheus.Histogram
	SigninDuration    prometheus.Histogram
	AuthenticateDelay prometheus.Histogram
}

// New registers the auth metrics with the default registry.
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers the auth metrics with reg.
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		UsersCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "taskboard_users_created_total",
			Help: "Total number of users created",
		}),
		SigninAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "taskboard_signin_attempts_total",
			Help: "Sign-in attempts by result",
		}, []string{"result"}),
		SessionsRevoked: factory.NewCounter(prometheus.CounterOpts{
			Name: "taskboard_sessions_revoked_total",
			Help: "Sessions revoked by sign-out, explicit revocation or expiry",
		}),
		SessionsSwept: factory.NewCounter(prometheus.CounterOpts{
			Name: "taskboard_sessions_swept_total",
			Help: "Expired sessions revoked by the sweep command",
		}),
		SignupDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "taskboard_signup_duration_seconds",
			Help:    "Duration of Signup operations (dominated by bcrypt)",
			Buckets: durationBuckets,
		}),
		SigninDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "taskboard_signin_duration_seconds",
			Help:    "Duration of Signin operations (dominated by bcrypt)",
			Buckets: durationBuckets,
		}),
		AuthenticateDelay: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "taskboard_authenticate_duration_seconds",
			Help:    "Duration of bearer token resolution on authenticated requests",
			Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1},
		}),
	}
}

func (m *Metrics) IncrementUsersCreated() {
	m.UsersCreated.Inc()
}

// IncrementSigninAttempt records a sign-in outcome, ResultSuccess or ResultFailure.
func (m *Metrics) IncrementSigninAttempt(result string) {
	m.SigninAttempts.WithLabelValues(result).Inc()
}

func (m *Metrics) AddSessionsRevoked(n int) {
	m.SessionsRevoked.Add(float64(n))
}

func (m *Metrics) AddSessionsSwept(n int) {
	m.SessionsSwept.Add(float64(n))
}

// ObserveSignup records the duration of a Signup call started at start.
func (m *Metrics) ObserveSignup(start time.Time) {
	m.SignupDuration.Observe(time.Since(start).Seconds())
}

// ObserveSignin records the duration of a Signin call started at start.
func (m *Metrics) ObserveSignin(start time.Time) {
	m.SigninDuration.Observe(time.Since(start).Seconds())
}

// ObserveAuthenticate records the duration of an Authenticate call started at start.
func (m *Metrics) ObserveAuthenticate(start time.Time) {
	m.AuthenticateDelay.Observe(time.Since(start).Seconds())
}
