package storage

import "strings"

// sensitiveHeaders are matched case-insensitively on save with redaction on.
var sensitiveHeaders = headerSet(
	"authorization", "proxy-authorization", "www-authenticate",
	"cookie", "set-cookie",
	"api-key", "x-api-key", "x-auth-token", "x-access-token", "x-refresh-token", "x-session-token",
	"x-csrf-token", "x-xsrf-token",
	"x-secret-key", "x-private-key",
	"x-amz-security-token", "x-amz-credential", "x-amz-signature",
	"x-goog-authenticated-user-email", "x-goog-authenticated-user-id", "x-goog-iap-jwt-assertion",
	"x-ms-client-principal", "x-ms-client-principal-id", "x-ms-token-aad-id-token",
)

func headerSet(names ...string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return set
}

const redacted = "[REDACTED]"

// redactHeaders returns a copy of a header object with sensitive values
// replaced. Anything that is not a JSON object is returned unchanged.
func redactHeaders(headers any) any {
	m, ok := headers.(map[string]any)
	if !ok {
		return headers
	}

	filtered := make(map[string]any, len(m))
	for k, v := range m {
		if sensitiveHeaders[strings.ToLower(k)] {
			filtered[k] = redacted
		} else {
			filtered[k] = v
		}
	}
	return filtered
}
