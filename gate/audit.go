package gate

import (
	"log/slog"
	"net/http"

	"github.com/jmcleod/eventgate/internal/uuid"
	"github.com/jmcleod/eventgate/token"
)

// AuditEvent identifies the type of gate decision being logged.
type AuditEvent string

const (
	AuditAdmittedQuery  AuditEvent = "admitted_query"
	AuditAdmittedCookie AuditEvent = "admitted_cookie"
	AuditExempt         AuditEvent = "exempt"
	AuditBypassed       AuditEvent = "bypassed"
	AuditDenied         AuditEvent = "denied"
)

// auditLogger wraps slog.Logger for gate decision logging. Token values
// never reach it; admissions are correlated through token.Fingerprint.
type auditLogger struct {
	logger *slog.Logger
}

func newAuditLogger(logger *slog.Logger) *auditLogger {
	return &auditLogger{
		logger: logger.With("component", "gate"),
	}
}

func eventFor(d Decision) AuditEvent {
	switch d.Source {
	case SourceQuery:
		return AuditAdmittedQuery
	case SourceCookie:
		return AuditAdmittedCookie
	case SourceExempt:
		return AuditExempt
	case SourceBypass:
		return AuditBypassed
	default:
		return AuditDenied
	}
}

// record logs d. Query admissions and denials are logged at info, the
// per-request cookie, exempt and bypass allowances at debug. A missing
// secret is reported at error level as a configuration problem.
func (al *auditLogger) record(r *http.Request, d Decision) {
	if d.misconfigured() {
		al.logger.LogAttrs(r.Context(), slog.LevelError, "gate secret not configured; token rejected",
			slog.String("path", r.URL.Path),
		)
	}

	event := eventFor(d)
	level := slog.LevelDebug
	if event == AuditAdmittedQuery || event == AuditDenied {
		level = slog.LevelInfo
	}
	if !al.logger.Enabled(r.Context(), level) {
		return
	}

	attrs := []slog.Attr{
		slog.String("event", string(event)),
		slog.String("decision_id", uuid.New()),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("remote_addr", r.RemoteAddr),
	}
	if d.QueryReason != "" {
		attrs = append(attrs, slog.String("link_result", string(d.QueryReason)))
	}
	if d.CookieReason != "" {
		attrs = append(attrs, slog.String("session_result", string(d.CookieReason)))
	}
	if d.Source == SourceQuery {
		attrs = append(attrs,
			slog.String("fingerprint", token.Fingerprint(d.Token)),
			slog.Time("expires_at", d.Claims.ExpiresAt().UTC()),
		)
	}
	al.logger.LogAttrs(r.Context(), level, "gate", attrs...)
}
