// Package routes defines HTTP route constants for the application.
package routes

// API Routes
const (
	// Static and assets
	RobotsPath = "/robots.txt"

	// SSE
	SSEPath = "GET /sse"

	// Root
	RootPath = "GET /{$}"

	// Composer routes
	ComposeImage       = "POST /compose/image"
	ComposeImageRemove = "POST /compose/image/remove"
	ComposeSubmit      = "POST /compose/submit"
	ComposeRestore     = "POST /compose/restore"
	Preview            = "GET /previews/{id}"

	// Webhooks
	WebhookUser = "/webhook/user"
)
