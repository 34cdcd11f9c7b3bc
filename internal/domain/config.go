package domain

import "strings"

// KeyPrefix namespaces every key the service writes to shared stores.
const KeyPrefix = "phc:"

// Cache key namespaces. Dedup state and computed results share fingerprints
// but never keys.
const (
	SeenNamespace   = "seen:"
	ResultNamespace = "result:"
)

// DefaultLanguage is used when a request carries no language tag.
const DefaultLanguage = "english"

// supportedLanguages lists the response languages offered to health workers.
var supportedLanguages = map[string]struct{}{
	"english": {},
	"pidgin":  {},
	"hausa":   {},
	"yoruba":  {},
	"igbo":    {},
}

// NormalizeLanguage lower-cases and trims lang, falling back to DefaultLanguage.
// Returns false for unsupported languages.
func NormalizeLanguage(lang string) (string, bool) {
	l := strings.ToLower(strings.TrimSpace(lang))
	if l == "" {
		return DefaultLanguage, true
	}
	_, ok := supportedLanguages[l]
	return l, ok
}
