package omnifile

// WriterOption configures a writer created by Backend.NewWriter.
type WriterOption func(*WriterConfig)

// WriterConfig holds per-writer hints for a backend.
type WriterConfig struct {
	// ContentType is a MIME type hint for the content.
	// Object stores use it for Content-Type; the file backend ignores it.
	ContentType string

	// Metadata is backend-specific metadata.
	// For S3, these become object metadata.
	Metadata map[string]string
}

// WithContentType sets the content type hint.
func WithContentType(contentType string) WriterOption {
	return func(c *WriterConfig) {
		c.ContentType = contentType
	}
}

// WithMetadata sets backend-specific metadata.
func WithMetadata(metadata map[string]string) WriterOption {
	return func(c *WriterConfig) {
		c.Metadata = metadata
	}
}

// ApplyWriterOptions applies options to a WriterConfig.
func ApplyWriterOptions(opts ...WriterOption) *WriterConfig {
	config := &WriterConfig{}
	for _, opt := range opts {
		opt(config)
	}
	return config
}
