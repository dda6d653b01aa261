// Package auth provides TI API authentication.
package auth

import "net/http"

// Credentials holds the account login and the API key generated in the TI
// portal. The API uses HTTP basic auth with the key in the password slot.
type Credentials struct {
	Username string
	APIKey   string
}

// Apply adds authentication to an HTTP request.
func (c *Credentials) Apply(req *http.Request) {
	if c == nil {
		return
	}
	req.SetBasicAuth(c.Username, c.APIKey)
}

// Valid reports whether credentials are configured.
func (c *Credentials) Valid() bool {
	return c != nil && c.Username != "" && c.APIKey != ""
}
