package auth

// Identity describes the client as established by a successful ingress
// authentication attempt.
type Identity struct {
	ClientID string
	AuthType string
	Claims   map[string]interface{}
}
