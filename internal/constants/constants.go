// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

import "math"

// Matching constants
const (
	// DefaultFaceTolerance is the maximum euclidean distance accepted as a face match.
	// Lower values = stricter matching
	DefaultFaceTolerance = 0.6

	// DefaultAppearanceThreshold is the minimum histogram correlation accepted as an appearance match
	DefaultAppearanceThreshold = 0.3

	// DefaultResolveAttempts bounds how often a resolution is retried after a registry conflict
	DefaultResolveAttempts = 3

	// MinFaceConfidence is stored for a face compared against an empty registry, where the
	// distance is infinite. It stays finite so the value survives JSON and SQL.
	MinFaceConfidence = -math.MaxFloat64
)

// Ingestion constants
const (
	// NormalizedWidth and NormalizedHeight are the dimensions every upload is resized to
	NormalizedWidth  = 512
	NormalizedHeight = 512

	// DefaultMaxTags is the maximum number of tags extracted from a caption
	DefaultMaxTags = 5

	// DefaultHistogramBins is the number of bins per HSV channel
	DefaultHistogramBins = 32

	// CaptionImageSize is the maximum dimension of images sent to caption providers
	CaptionImageSize = 800

	// JPEGQuality is used whenever an image is re-encoded as JPEG
	JPEGQuality = 90
)

// Metadata constants
const (
	// MetadataKeyword is the PNG tEXt keyword carrying picscreenr metadata
	MetadataKeyword = "picscreenr"

	// DefaultMetadataIndex is the default path of the JSON metadata index
	DefaultMetadataIndex = "metadata.json"
)

// ResolutionLockKey is the advisory lock key serializing identity resolutions in PostgreSQL
const ResolutionLockKey int64 = 0x70696373 // "pics"
