package security

import "strings"

// ContentSecurityPolicy is served on every response.
var ContentSecurityPolicy = strings.Join([]string{
	"default-src 'self'",
	"script-src 'self'",
	"style-src 'self' 'unsafe-inline'",
	"img-src 'self' data: blob: https:",
	"font-src 'self' data:",
	"connect-src 'self'",
	"media-src 'self' blob:",
	"object-src 'none'",
	"base-uri 'self'",
	"form-action 'self'",
}, "; ")

const (
	ReferrerPolicy = "strict-origin-when-cross-origin"
	FrameOptions   = "DENY"
	XSSProtection  = "1; mode=block"
)
