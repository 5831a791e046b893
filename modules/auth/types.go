package auth

// Failure reasons carried in VerifyTokenResponse.
const (
	ReasonMissingToken = "missing_token"
	ReasonInvalidToken = "invalid_token"
	ReasonExpiredToken = "expired_token"
	ReasonUnknownUser  = "unknown_user"
)

// VerifyTokenRequest represents a token verification request.
type VerifyTokenRequest struct {
	Token string `json:"token"`
}

// VerifyTokenResponse represents a token verification response.
type VerifyTokenResponse struct {
	Valid    bool   `json:"valid"`
	UserID   int64  `json:"user_id,omitempty"`
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
	Role     string `json:"role,omitempty"`
	Reason   string `json:"reason,omitempty"`
	Error    string `json:"error,omitempty"`
}

func reasonFor(err error) string {
	switch err {
	case ErrMissingToken:
		return ReasonMissingToken
	case ErrExpiredToken:
		return ReasonExpiredToken
	case ErrUnknownUser:
		return ReasonUnknownUser
	default:
		return ReasonInvalidToken
	}
}

func errorForReason(reason string) error {
	switch reason {
	case ReasonMissingToken:
		return ErrMissingToken
	case ReasonExpiredToken:
		return ErrExpiredToken
	case ReasonUnknownUser:
		return ErrUnknownUser
	default:
		return ErrInvalidToken
	}
}
