package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	stayAuth "github.com/MrEthical07/stayAuth"
	"github.com/MrEthical07/stayAuth/middleware"
	"go.uber.org/zap"
)

var errBadJSON = errors.New("malformed json body")

var statusTable = []struct {
	err     error
	status  int
	message string
}{
	{errBadJSON, http.StatusBadRequest, "Invalid JSON body."},
	{stayAuth.ErrCaptchaRequired, http.StatusBadRequest, "CAPTCHA is required."},
	{stayAuth.ErrCaptchaInvalid, http.StatusBadRequest, "Invalid or expired CAPTCHA."},
	{stayAuth.ErrOTPNotFound, http.StatusBadRequest, "No pending signup found."},
	{stayAuth.ErrOTPExpired, http.StatusBadRequest, "OTP expired. Request a new OTP."},
	{stayAuth.ErrOTPInvalid, http.StatusBadRequest, "Invalid OTP."},
	{stayAuth.ErrPasswordResetInvalid, http.StatusBadRequest, "Invalid or expired reset token."},
	{stayAuth.ErrInvalidCredentials, http.StatusUnauthorized, "Invalid credentials."},
	{stayAuth.ErrRefreshMissing, http.StatusUnauthorized, "Missing refresh token."},
	{stayAuth.ErrRefreshInvalid, http.StatusUnauthorized, "Invalid refresh token."},
	{stayAuth.ErrCurrentPasswordInvalid, http.StatusUnauthorized, "Current password is incorrect."},
	{stayAuth.ErrUnauthorized, http.StatusUnauthorized, "Authentication required."},
	{stayAuth.ErrTokenInvalid, http.StatusUnauthorized, "Invalid or expired token."},
	{stayAuth.ErrPermissionDenied, http.StatusForbidden, "Not authorized."},
	{stayAuth.ErrUserNotFound, http.StatusNotFound, "User not found."},
	{stayAuth.ErrAccountExists, http.StatusConflict, "Email already registered."},
	{stayAuth.ErrRateLimited, http.StatusTooManyRequests, "Too many requests. Try again later."},
}

// statusFor maps an engine error to a status and client message. ok is
// false for errors the client should only see as a generic 500.
func statusFor(err error) (status int, message string, ok bool) {
	var verr *stayAuth.ValidationError
	if errors.As(err, &verr) {
		return http.StatusBadRequest, verr.Message, true
	}
	for _, row := range statusTable {
		if errors.Is(err, row.err) {
			return row.status, row.message, true
		}
	}
	return http.StatusInternalServerError, "", false
}

// fail writes the mapped error, or fallback with a 500 after logging.
func (a *API) fail(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	status, message, ok := statusFor(err)
	if !ok {
		a.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		message = fallback
	}
	middleware.WriteMessage(w, status, message)
}

// decode reads a JSON body into dst. An empty body leaves dst zero so the
// engine reports the missing fields.
func (a *API) decode(w http.ResponseWriter, r *http.Request, dst any) error {
	body := http.MaxBytesReader(w, r.Body, a.cfg.MaxBodyBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return errBadJSON
	}
	return nil
}
