// Package audit records every terminal access decision with its reason
// code.
package audit

import (
	"net"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/doorman-proxy/doorman/pkg/clock"
	"github.com/doorman-proxy/doorman/pkg/logger"
)

// Reason identifies why a decision was made. 1xx codes allow, 2xx deny.
type Reason int

const (
	ReasonAllowedByRule       Reason = 100
	ReasonAllowedNoAuth       Reason = 101
	ReasonAllowedAccessToken  Reason = 102
	ReasonAllowedHeaderAuth   Reason = 103
	ReasonAllowedPincode      Reason = 104
	ReasonAllowedPassword     Reason = 105
	ReasonAllowedWhitelist    Reason = 106
	ReasonAllowedSSO          Reason = 107
	ReasonResourceNotFound    Reason = 201
	ReasonResourceBlocked     Reason = 202
	ReasonDroppedByRule       Reason = 203
	ReasonNoSessions          Reason = 204
	ReasonRequestToken        Reason = 205
	ReasonNoMoreAuthMethods   Reason = 299
)

// Allowed reports whether the reason is an allow code.
func (r Reason) Allowed() bool {
	return r >= 100 && r < 200
}

func (r Reason) String() string {
	switch r {
	case ReasonAllowedByRule:
		return "allowed-by-rule"
	case ReasonAllowedNoAuth:
		return "allowed-no-auth"
	case ReasonAllowedAccessToken:
		return "allowed-valid-access-token"
	case ReasonAllowedHeaderAuth:
		return "allowed-valid-header-auth"
	case ReasonAllowedPincode:
		return "allowed-valid-pincode"
	case ReasonAllowedPassword:
		return "allowed-valid-password"
	case ReasonAllowedWhitelist:
		return "allowed-valid-email-whitelist"
	case ReasonAllowedSSO:
		return "allowed-valid-sso"
	case ReasonResourceNotFound:
		return "resource-not-found"
	case ReasonResourceBlocked:
		return "resource-blocked"
	case ReasonDroppedByRule:
		return "dropped-by-rule"
	case ReasonNoSessions:
		return "no-sessions"
	case ReasonRequestToken:
		return "temporary-request-token"
	case ReasonNoMoreAuthMethods:
		return "no-more-auth-methods"
	default:
		return "unknown"
	}
}

// Record is one terminal decision.
type Record struct {
	ID          string
	Timestamp   time.Time
	Valid       bool
	Reason      Reason
	ResourceID  string
	OrgID       string
	Host        string
	Method      string
	Path        string
	Scheme      string
	ClientIP    net.IP
	CountryCode string
	RequestID   string

	// Username and Email identify the user on SSO decisions.
	Username string
	Email    string

	// TokenID and TokenTitle identify the access token on token
	// decisions.
	TokenID    string
	TokenTitle string
}

// Recorder consumes terminal decision records.
type Recorder interface {
	Record(record *Record)
}

// LogRecorder writes records to the auth log class and counts them in
// the decisions metric.
type LogRecorder struct {
	decisions *prometheus.CounterVec
}

// NewLogRecorder registers the decisions counter on the given registerer.
func NewLogRecorder(registerer prometheus.Registerer) *LogRecorder {
	counter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "doorman_decisions_total",
			Help: "Total number of terminal access decisions by reason code.",
		},
		[]string{"reason", "valid"},
	)

	if err := registerer.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			counter = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			panic(err)
		}
	}

	return &LogRecorder{decisions: counter}
}

func (r *LogRecorder) Record(record *Record) {
	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	if record.Timestamp.IsZero() {
		record.Timestamp = clock.Now()
	}

	status := logger.AuthFailure
	if record.Valid {
		status = logger.AuthSuccess
	}

	username := record.Username
	if username == "" && record.TokenTitle != "" {
		username = record.TokenTitle
	}

	var client string
	if record.ClientIP != nil {
		client = record.ClientIP.String()
	}

	logger.PrintAuthf(logger.AuthEventData{
		Client:        client,
		Host:          record.Host,
		Protocol:      record.Scheme,
		RequestID:     record.RequestID,
		RequestMethod: record.Method,
		Username:      username,
	}, status, "decision %s (%d) resource=%s org=%s path=%s country=%s",
		record.Reason, int(record.Reason), record.ResourceID, record.OrgID,
		record.Path, record.CountryCode)

	r.decisions.WithLabelValues(
		strconv.Itoa(int(record.Reason)),
		strconv.FormatBool(record.Valid),
	).Inc()
}
