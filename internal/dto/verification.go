package dto

import "time"

// IssueCodeRequest asks for a delivery code.
type IssueCodeRequest struct {
	CustomerPhone string `json:"customerPhone" validate:"omitempty,e164"`
	CustomerName  string `json:"customerName" validate:"max=200"`
}

// VerifyCodeRequest is a courier's proof-of-delivery attempt.
type VerifyCodeRequest struct {
	Code       string `json:"code" validate:"required,numeric,min=4,max=12"`
	VerifiedBy string `json:"verifiedBy"`
	Location   string `json:"location" validate:"max=500"`
}

// IssueCodeResponse never carries the code in clear.
type IssueCodeResponse struct {
	VerificationCode string    `json:"verificationCode"`
	ExpiresAt        time.Time `json:"expiresAt"`
	SMSStatus        string    `json:"smsStatus"`
}

// VerifyCodeResponse reports a successful verification.
type VerifyCodeResponse struct {
	Verified   bool           `json:"verified"`
	VerifiedAt *time.Time     `json:"verifiedAt,omitempty"`
	VerifiedBy string         `json:"verifiedBy,omitempty"`
	Order      *OrderResponse `json:"order,omitempty"`
}
