package log

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeField(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		value    string
		expected string
	}{
		{"plain field", "dependency", "cards", "cards"},
		{"empty value", "password", "", ""},
		{"email", "email", "alice@example.com", "ali***@example.com"},
		{"short email", "customer_email", "al@example.com", "a*@example.com"},
		{"malformed email", "email", "not-an-email", "************"},
		{"mobile", "mobile_number", "9876543210", "******3210"},
		{"short phone", "phone", "123", "***"},
		{"long secret", "redis_password", "supersecretvalue", "supe********alue"},
		{"short secret", "token", "abcdef", "a****f"},
		{"tiny secret", "api_key", "ab", "**"},
		{"dsn", "dsn", "user:pass@tcp(db:3306)/accounts", "user***********************unts"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SanitizeField(tt.key, tt.value))
		})
	}
}
