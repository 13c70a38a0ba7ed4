package docstore

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// DefaultEndpointDomain is the public-cloud DNS suffix for SQL API accounts.
const DefaultEndpointDomain = "documents.azure.com"

var accountPattern = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]{1,42})[a-z0-9]$`)

var errAccountName = errors.New("account name must be 3-44 lowercase letters, digits or hyphens, starting and ending with a letter or digit")

// ValidateAccount checks account against the store's naming rule. Only a
// bare account name is accepted so callers cannot steer the client at an
// arbitrary host.
func ValidateAccount(account string) error {
	if strings.TrimSpace(account) == "" {
		return MissingParameter("account")
	}
	if !accountPattern.MatchString(account) {
		return InvalidParameter("account", errAccountName)
	}
	return nil
}

// Endpoint returns the service URL for account under domain
// (DefaultEndpointDomain when empty).
func Endpoint(account, domain string) (string, error) {
	if err := ValidateAccount(account); err != nil {
		return "", err
	}
	if domain == "" {
		domain = DefaultEndpointDomain
	}
	return fmt.Sprintf("https://%s.%s:443/", account, domain), nil
}
