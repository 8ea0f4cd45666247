package constants

// File upload constants
const (
	// MaxUploadSize is the maximum file upload size in bytes (32MB)
	MaxUploadSize = 32 << 20

	// UploadFormField is the multipart field carrying the uploaded image
	UploadFormField = "file"
)

// Client constants
const (
	// DefaultServerURL is where the upload command looks for a running server
	DefaultServerURL = "http://localhost:8080"

	// DefaultUploadConcurrency is the default number of parallel uploads
	DefaultUploadConcurrency = 4
)
