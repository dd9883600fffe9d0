package config

const (
	HCType        = "Content-Type"
	HETag         = "ETag"
	HCacheControl = "Cache-Control"
	HHxRequest    = "Hx-Request"
	HHxTrigger    = "Hx-Trigger"

	CTypeHTML = "text/html"
	CTypeText = "text/plain"
)

const (
	HTTPErrMethodNotAllowed = "Method not allowed"
)

const (
	CookieComposerID = "composer-id"
	CookieSession    = "__session"
)

const (
	FormPostInput = "postInput"
	FormImage     = "image"
)
