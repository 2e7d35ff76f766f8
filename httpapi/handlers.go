package httpapi

import (
	"errors"
	"net/http"

	stayAuth "github.com/MrEthical07/stayAuth"
	"github.com/MrEthical07/stayAuth/middleware"
	"go.uber.org/zap"
)

const msgResetRequested = "If an account exists, a reset link has been sent."

func (a *API) register(w http.ResponseWriter, r *http.Request) {
	var req stayAuth.RegisterRequest
	if err := a.decode(w, r, &req); err != nil {
		a.fail(w, r, err, "")
		return
	}
	session, err := a.engine.Register(r.Context(), req)
	if err != nil {
		a.fail(w, r, err, "Registration failed.")
		return
	}
	a.writeSession(w, http.StatusCreated, "Registration successful", session)
}

func (a *API) requestOTP(w http.ResponseWriter, r *http.Request) {
	var req stayAuth.SignupOTPRequest
	if err := a.decode(w, r, &req); err != nil {
		a.fail(w, r, err, "")
		return
	}
	res, err := a.engine.RequestSignupOTP(r.Context(), req)
	if err != nil {
		a.fail(w, r, err, "Could not send OTP.")
		return
	}

	resp := otpResponse{Message: "OTP sent to your email."}
	switch {
	case res.Delivered:
	case res.Preview != "":
		resp.Message = "Email delivery unavailable. Using dev OTP preview."
		resp.OTPPreview = res.Preview
	default:
		resp.Message = "Email delivery unavailable. Try again later."
	}
	middleware.WriteJSON(w, http.StatusOK, resp)
}

func (a *API) verifyOTP(w http.ResponseWriter, r *http.Request) {
	var req stayAuth.VerifyOTPRequest
	if err := a.decode(w, r, &req); err != nil {
		a.fail(w, r, err, "")
		return
	}
	session, err := a.engine.VerifySignupOTP(r.Context(), req)
	if err != nil {
		a.fail(w, r, err, "Registration failed.")
		return
	}
	a.writeSession(w, http.StatusCreated, "Registration successful", session)
}

func (a *API) login(w http.ResponseWriter, r *http.Request) {
	var req stayAuth.LoginRequest
	if err := a.decode(w, r, &req); err != nil {
		a.fail(w, r, err, "")
		return
	}
	session, err := a.engine.Login(r.Context(), req)
	if err != nil {
		a.fail(w, r, err, "Login failed.")
		return
	}
	a.writeSession(w, http.StatusOK, "Login successful", session)
}

// refresh answers every failure with a 401 so clients simply re-login.
func (a *API) refresh(w http.ResponseWriter, r *http.Request) {
	session, err := a.engine.Refresh(r.Context(), refreshTokenFrom(r))
	if err != nil {
		if !errors.Is(err, stayAuth.ErrRefreshMissing) && !errors.Is(err, stayAuth.ErrRefreshInvalid) {
			a.logger.Warn("refresh failed", zap.Error(err))
			err = stayAuth.ErrRefreshInvalid
		}
		a.fail(w, r, err, "")
		return
	}
	a.writeSession(w, http.StatusOK, "", session)
}

func (a *API) logout(w http.ResponseWriter, r *http.Request) {
	a.engine.Logout(r.Context(), refreshTokenFrom(r))
	a.cookies.clear(w)
	middleware.WriteJSON(w, http.StatusOK, messageResponse{Message: "Logged out."})
}

func (a *API) forgotPassword(w http.ResponseWriter, r *http.Request) {
	var req stayAuth.ForgotPasswordRequest
	if err := a.decode(w, r, &req); err != nil {
		a.fail(w, r, err, "")
		return
	}
	res, err := a.engine.RequestPasswordReset(r.Context(), req.Email)
	if err != nil {
		a.fail(w, r, err, "Reset request failed.")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, forgotResponse{Message: msgResetRequested, ResetToken: res.Token})
}

func (a *API) resetPassword(w http.ResponseWriter, r *http.Request) {
	var req stayAuth.ResetPasswordRequest
	if err := a.decode(w, r, &req); err != nil {
		a.fail(w, r, err, "")
		return
	}
	if err := a.engine.ConfirmPasswordReset(r.Context(), req); err != nil {
		a.fail(w, r, err, "Password reset failed.")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, messageResponse{Message: "Password reset successful."})
}

func (a *API) changePassword(w http.ResponseWriter, r *http.Request) {
	caller, _ := middleware.AuthResultFromContext(r.Context())
	var req stayAuth.ChangePasswordRequest
	if err := a.decode(w, r, &req); err != nil {
		a.fail(w, r, err, "")
		return
	}
	if err := a.engine.ChangePassword(r.Context(), caller.UserID, req); err != nil {
		a.fail(w, r, err, "Password update failed.")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, messageResponse{Message: "Password updated."})
}

func (a *API) me(w http.ResponseWriter, r *http.Request) {
	caller, _ := middleware.AuthResultFromContext(r.Context())
	user, err := a.engine.Me(r.Context(), caller.UserID)
	if err != nil {
		a.fail(w, r, err, "Could not load profile.")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, userResponse{User: user})
}

func (a *API) updateMe(w http.ResponseWriter, r *http.Request) {
	caller, _ := middleware.AuthResultFromContext(r.Context())
	var req stayAuth.UpdateProfileRequest
	if err := a.decode(w, r, &req); err != nil {
		a.fail(w, r, err, "")
		return
	}
	user, err := a.engine.UpdateProfile(r.Context(), caller.UserID, req)
	if err != nil {
		a.fail(w, r, err, "Profile update failed.")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, userResponse{Message: "Profile updated.", User: user})
}

func (a *API) writeSession(w http.ResponseWriter, status int, message string, s stayAuth.SessionResult) {
	a.cookies.set(w, s.RefreshToken)
	middleware.WriteJSON(w, status, sessionResponse{
		Message:     message,
		AccessToken: s.AccessToken,
		User:        s.User,
	})
}
