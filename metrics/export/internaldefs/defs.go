package internaldefs

import (
	"math"

	stayAuth "github.com/MrEthical07/stayAuth"
)

// Prefix starts every exported series name.
const Prefix = "stayauth_"

// AuditDroppedName is the counter for events lost to a full audit buffer.
// It is read from Engine.AuditDropped rather than the metrics snapshot.
const (
	AuditDroppedName = Prefix + "audit_dropped_total"
	AuditDroppedHelp = "Audit events dropped because the dispatcher buffer was full."
)

// Def binds an engine MetricID to its exported name.
type Def struct {
	ID   stayAuth.MetricID
	Name string
	Help string
}

func counter(id stayAuth.MetricID, name, help string) Def {
	return Def{ID: id, Name: Prefix + name + "_total", Help: help}
}

// Counters lists every engine counter in exposition order.
var Counters = []Def{
	counter(stayAuth.MetricLoginSuccess, "login_success", "Successful logins."),
	counter(stayAuth.MetricLoginFailure, "login_failure", "Logins rejected for bad credentials."),
	counter(stayAuth.MetricLoginRateLimited, "login_rate_limited", "Logins rejected by the failure throttle."),
	counter(stayAuth.MetricCaptchaIssued, "captcha_issued", "Captcha challenges issued."),
	counter(stayAuth.MetricCaptchaRejected, "captcha_rejected", "Logins with a missing or wrong captcha."),
	counter(stayAuth.MetricRefreshSuccess, "refresh_success", "Refresh token rotations."),
	counter(stayAuth.MetricRefreshFailure, "refresh_failure", "Rejected refresh attempts."),
	counter(stayAuth.MetricRefreshReuseDetected, "refresh_reuse_detected", "Replays of an already rotated refresh token."),
	counter(stayAuth.MetricLogout, "logout", "Sessions ended by logout."),
	counter(stayAuth.MetricRegisterSuccess, "register_success", "Accounts created."),
	counter(stayAuth.MetricRegisterDuplicate, "register_duplicate", "Signups rejected because the email is taken."),
	counter(stayAuth.MetricSignupOTPRequested, "signup_otp_requested", "Signup OTPs generated."),
	counter(stayAuth.MetricSignupOTPVerified, "signup_otp_verified", "Signup OTPs confirmed."),
	counter(stayAuth.MetricSignupOTPFailure, "signup_otp_failure", "Missing, expired or wrong signup OTPs."),
	counter(stayAuth.MetricPasswordResetRequest, "password_reset_request", "Password reset requests."),
	counter(stayAuth.MetricPasswordResetConfirmSuccess, "password_reset_confirm_success", "Passwords changed with a reset token."),
	counter(stayAuth.MetricPasswordResetConfirmFailure, "password_reset_confirm_failure", "Invalid or expired reset tokens."),
	counter(stayAuth.MetricPasswordChangeSuccess, "password_change_success", "Passwords changed by their owner."),
	counter(stayAuth.MetricPasswordChangeInvalidOld, "password_change_invalid_old", "Password changes with a wrong current password."),
	counter(stayAuth.MetricProfileUpdated, "profile_updated", "Profile updates."),
	counter(stayAuth.MetricRateLimitHit, "rate_limit_hit", "Requests denied by any auth throttle."),
}

// ValidateLatency is the only histogram.
var ValidateLatency = Def{
	ID:   stayAuth.MetricValidateLatency,
	Name: Prefix + "validate_latency_seconds",
	Help: "Access token validation latency.",
}

// Bounds are the upper bucket edges in seconds. They mirror the engine's
// fixed millisecond buckets; the last one is +Inf.
var Bounds = []Bound{
	{Upper: 0.005, Label: "0.005", Suffix: "0_005"},
	{Upper: 0.01, Label: "0.01", Suffix: "0_01"},
	{Upper: 0.025, Label: "0.025", Suffix: "0_025"},
	{Upper: 0.05, Label: "0.05", Suffix: "0_05"},
	{Upper: 0.1, Label: "0.1", Suffix: "0_1"},
	{Upper: 0.25, Label: "0.25", Suffix: "0_25"},
	{Upper: 0.5, Label: "0.5", Suffix: "0_5"},
	{Upper: math.Inf(1), Label: "+Inf", Suffix: "inf"},
}

// Bound names one bucket edge: Upper in seconds, Label for the Prometheus
// le label, Suffix for instrument names that cannot carry labels.
type Bound struct {
	Upper  float64
	Label  string
	Suffix string
}

// Cumulative turns per-bucket counts into running totals sized to Bounds.
// Missing trailing buckets count as zero.
func Cumulative(raw []uint64) []uint64 {
	out := make([]uint64, len(Bounds))
	var running uint64
	for i := range out {
		if i < len(raw) {
			running += raw[i]
		}
		out[i] = running
	}
	return out
}
