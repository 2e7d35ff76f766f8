package httpapi

import stayAuth "github.com/MrEthical07/stayAuth"

type healthResponse struct {
	OK      bool   `json:"ok"`
	Service string `json:"service"`
	Time    string `json:"time"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type sessionResponse struct {
	Message     string              `json:"message,omitempty"`
	AccessToken string              `json:"accessToken"`
	User        stayAuth.PublicUser `json:"user"`
}

type otpResponse struct {
	Message    string `json:"message"`
	OTPPreview string `json:"otpPreview,omitempty"`
}

type forgotResponse struct {
	Message    string `json:"message"`
	ResetToken string `json:"resetToken,omitempty"`
}

type userResponse struct {
	Message string              `json:"message,omitempty"`
	User    stayAuth.PublicUser `json:"user"`
}
