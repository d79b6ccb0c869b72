// Package token substitutes ${NAME} placeholders in connection parameters.
package token

import (
	"regexp"
	"time"

	"gatebroker/backend/services/broker-service/internal/models"
)

// Standard token names.
const (
	Username       = "BROKER_USERNAME"
	Password       = "BROKER_PASSWORD"
	ClientAddress  = "BROKER_CLIENT_ADDRESS"
	ClientHostname = "BROKER_CLIENT_HOSTNAME"
	Date           = "BROKER_DATE"
	Time           = "BROKER_TIME"
)

// $${NAME} is an escape for the literal text ${NAME}.
var tokenPattern = regexp.MustCompile(`(\$?)\$\{([A-Za-z0-9_]*)\}`)

// Filter holds token values and applies them to strings.
type Filter struct {
	tokens map[string]string
}

// NewFilter returns a filter without tokens.
func NewFilter() *Filter {
	return &Filter{tokens: make(map[string]string)}
}

// SetToken defines or replaces a token.
func (f *Filter) SetToken(name, value string) {
	f.tokens[name] = value
}

// Filter replaces known tokens in input. Unknown tokens are left as written.
func (f *Filter) Filter(input string) string {
	return tokenPattern.ReplaceAllStringFunc(input, func(match string) string {
		parts := tokenPattern.FindStringSubmatch(match)
		if parts[1] == "$" {
			return match[1:]
		}
		if value, ok := f.tokens[parts[2]]; ok {
			return value
		}
		return match
	})
}

// FilterValues filters every value of values in place.
func (f *Filter) FilterValues(values map[string]string) {
	for name, value := range values {
		values[name] = f.Filter(value)
	}
}

// AddStandardTokens seeds f with tokens derived from the user's credentials
// and the given instant. Empty credential fields add no token.
func AddStandardTokens(f *Filter, creds models.Credentials, now time.Time) {
	setIfPresent(f, Username, creds.Username)
	setIfPresent(f, Password, creds.Password)
	setIfPresent(f, ClientAddress, creds.RemoteAddress)
	setIfPresent(f, ClientHostname, creds.RemoteHostname)

	f.SetToken(Date, now.Format("20060102"))
	f.SetToken(Time, now.Format("150405"))
}

func setIfPresent(f *Filter, name, value string) {
	if value != "" {
		f.SetToken(name, value)
	}
}
