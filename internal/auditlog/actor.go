package auditlog

import "strings"

// ResolveActor derives at most one canonical actor identity from the
// decision context. The user is evaluated first and an API key overwrites
// it: an API-key-authenticated request's key identity is authoritative even
// when a user session is also present. Returns false when neither identity
// was supplied (anonymous or system decision).
func ResolveActor(user *User, apiKey *APIKey) (ActorIdentity, bool) {
	var identity ActorIdentity
	var ok bool

	if user != nil {
		identity = ActorIdentity{
			Type: ActorTypeUser,
			Name: user.Username,
			ID:   user.UserID,
		}
		ok = true
	}
	if apiKey != nil {
		name := apiKey.Name
		if name == "" {
			name = apiKey.APIKeyID
		}
		identity = ActorIdentity{
			Type: ActorTypeAPIKey,
			Name: name,
			ID:   apiKey.APIKeyID,
		}
		ok = true
	}

	return identity, ok
}

// NormalizeClientIP strips port and bracket notation from a raw client
// address. Bracketed literals are handled first because IPv6 addresses
// contain colons internally; splitting at the last colon alone would
// truncate them.
//
//	"[2001:db8::1]:443"  -> "2001:db8::1"
//	"[2001:db8::1]"      -> "2001:db8::1"
//	"203.0.113.5:51820"  -> "203.0.113.5"
//	"no-colon-here"      -> "no-colon-here"
//
// An empty input yields an empty result; a missing client address is not an
// error.
func NormalizeClientIP(raw string) string {
	if raw == "" {
		return ""
	}

	if strings.HasPrefix(raw, "[") {
		if end := strings.Index(raw, "]"); end >= 0 {
			return raw[1:end]
		}
	}

	if idx := strings.LastIndex(raw, ":"); idx >= 0 {
		return raw[:idx]
	}
	return raw
}
