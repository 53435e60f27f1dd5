package auditlog

// ReasonCode explains why a request was allowed or denied. Codes are grouped
// by hundreds: 1xx means access was granted, 2xx means it was denied. The
// numeric values are part of the persisted record and must not be renumbered.
type ReasonCode int

const (
	// Access granted.
	ReasonAllowedByRule    ReasonCode = 100
	ReasonAllowedNoAuth    ReasonCode = 101
	ReasonValidAccessToken ReasonCode = 102
	ReasonValidHeaderAuth  ReasonCode = 103
	ReasonValidPincode     ReasonCode = 104
	ReasonValidPassword    ReasonCode = 105
	ReasonValidEmailOTP    ReasonCode = 106
	ReasonValidSSO         ReasonCode = 107

	// Access denied.
	ReasonResourceNotFound  ReasonCode = 201
	ReasonResourceBlocked   ReasonCode = 202
	ReasonDroppedByRule     ReasonCode = 203
	ReasonNoSessions        ReasonCode = 204
	ReasonTemporaryToken    ReasonCode = 205
	ReasonNoMoreAuthMethods ReasonCode = 299
)

var reasonLabels = map[ReasonCode]string{
	ReasonAllowedByRule:     "allowed_by_rule",
	ReasonAllowedNoAuth:     "allowed_no_auth",
	ReasonValidAccessToken:  "valid_access_token",
	ReasonValidHeaderAuth:   "valid_header_auth",
	ReasonValidPincode:      "valid_pincode",
	ReasonValidPassword:     "valid_password",
	ReasonValidEmailOTP:     "valid_email_otp",
	ReasonValidSSO:          "valid_sso",
	ReasonResourceNotFound:  "resource_not_found",
	ReasonResourceBlocked:   "resource_blocked",
	ReasonDroppedByRule:     "dropped_by_rule",
	ReasonNoSessions:        "no_sessions",
	ReasonTemporaryToken:    "temporary_request_token",
	ReasonNoMoreAuthMethods: "no_more_auth_methods",
}

// Valid reports whether the code is part of the enumeration.
func (r ReasonCode) Valid() bool {
	_, ok := reasonLabels[r]
	return ok
}

// Allowed reports whether the code is in the access-granted range.
func (r ReasonCode) Allowed() bool { return r >= 100 && r < 200 }

// Matches reports whether the code's range agrees with the decision outcome:
// allowed decisions carry 1xx codes, denied decisions carry 2xx codes.
func (r ReasonCode) Matches(allowed bool) bool {
	if !r.Valid() {
		return false
	}
	return r.Allowed() == allowed
}

// String returns a stable machine-readable label for logging.
func (r ReasonCode) String() string {
	if label, ok := reasonLabels[r]; ok {
		return label
	}
	return "unknown"
}

// Auth method subtypes surfaced as the "type" filter facet. Only decisions
// that went through one of the resource auth flows carry one.
const (
	AuthMethodPassword         = "password"
	AuthMethodPincode          = "pincode"
	AuthMethodLogin            = "login"
	AuthMethodWhitelistedEmail = "whitelistedEmail"
)

// AuthMethod derives the auth-method subtype from the reason code. Codes
// outside the resource auth flows yield "".
func (r ReasonCode) AuthMethod() string {
	switch r {
	case ReasonValidPincode:
		return AuthMethodPincode
	case ReasonValidPassword:
		return AuthMethodPassword
	case ReasonValidEmailOTP:
		return AuthMethodWhitelistedEmail
	case ReasonValidSSO:
		return AuthMethodLogin
	default:
		return ""
	}
}

// KnownAuthMethod reports whether method is one of the filterable auth-method
// subtypes.
func KnownAuthMethod(method string) bool {
	switch method {
	case AuthMethodPassword, AuthMethodPincode, AuthMethodLogin, AuthMethodWhitelistedEmail:
		return true
	default:
		return false
	}
}
