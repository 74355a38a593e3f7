package models

// Authorization rejection codes, reported in the challenge header and body.
const (
	AuthCodeRequired          = "auth_required"
	AuthCodeTokenMissing      = "token_missing"
	AuthCodeTokenInvalid      = "token_invalid"
	AuthCodeTokenExpired      = "token_expired"
	AuthCodeInsufficientScope = "insufficient_scope"
)

var authDescriptions = map[string]string{
	AuthCodeRequired:          "Write access is disabled: no credentials are configured on the server",
	AuthCodeTokenMissing:      "Authentication required. Provide a bearer token",
	AuthCodeTokenInvalid:      "The bearer token is invalid",
	AuthCodeTokenExpired:      "The bearer token has expired",
	AuthCodeInsufficientScope: "The token lacks the admin scope required for this action",
}

// AuthDescription returns the human readable text for an auth code.
func AuthDescription(code string) string {
	return authDescriptions[code]
}

// AuthErrorResponse is the body of a rejected write request.
type AuthErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}
