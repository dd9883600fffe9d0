package config

const (
	// Database errors
	ErrInitializeDatabaseFmt = "Failed to initialize database: %v"

	// Auth errors
	ErrUnauthorized        = "Unauthorized"
	ErrInternalServerError = "Internal server error"

	// Config errors
	ErrUnknownOptionFmt      = "unknown %s %q"
	ErrWriteConfigContentFmt = "Failed to write config content: %v"

	// Composer errors
	ErrSessionRequired   = "Composer session required"
	ErrTooManySubmits    = "Too many submissions, slow down"
	ErrPreviewNotFound   = "Preview not found"
	ErrImageFieldInvalid = "Invalid image upload"
)
