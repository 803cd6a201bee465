// internal/config/database.go
package config

import (
	"fmt"
	"strings"
)

// DSN prefers the full DB_DSN override; otherwise it is composed from the
// discrete parts.
func (d *DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Database, d.SSLMode,
	)
}

// IssuerURL is the OIDC issuer for the configured realm, used for provider
// discovery and token verification.
func (a *AuthConfig) IssuerURL() string {
	return strings.TrimRight(a.URL, "/") + "/realms/" + a.Realm
}
