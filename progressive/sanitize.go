package progressive

import (
	"regexp"

	"github.com/microcosm-cc/bluemonday"
)

var paddingValue = regexp.MustCompile(`^[0-9]+(\.[0-9]+)?%$`)

// SanitizePolicy returns the policy applied to submitted HTML when
// sanitising is on: user-generated content rules plus what placeholder
// markup needs (class, data-* attributes and a percentage padding-bottom).
func SanitizePolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowAttrs("class").Globally()
	p.AllowDataAttributes()
	p.AllowStyles("padding-bottom").Matching(paddingValue).Globally()
	return p
}

var defaultPolicy = SanitizePolicy()

// Sanitize strips scripts, handlers and anything else outside the policy.
func Sanitize(src []byte) []byte {
	return defaultPolicy.SanitizeBytes(src)
}
