// Package upload validates screenshot files before anything touches the
// network. Type checks use magic-byte sniffing, not the filename, so a
// renamed .txt still gets rejected with the right message.
package upload

import (
	"github.com/h2non/filetype"

	"github.com/hagglekit/hagglekit/pkg/errdefs"
)

// DefaultMaxBytes is the size ceiling when config does not override it.
const DefaultMaxBytes int64 = 10 << 20

// FileInfo describes an accepted upload.
type FileInfo struct {
	Name string
	MIME string
	Size int64
}

// ValidateImage accepts image uploads under the size ceiling and rejects
// everything else with a violation-specific, human-readable reason. No
// network call happens here or before this runs.
func ValidateImage(name string, data []byte, maxBytes int64) (FileInfo, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}

	if len(data) == 0 {
		return FileInfo{}, errdefs.Validation("the uploaded file %q is empty", name)
	}

	if size := int64(len(data)); size > maxBytes {
		return FileInfo{}, errdefs.Validation(
			"the image is %.1f MB, which is over the %d MB limit, please upload a smaller screenshot",
			float64(size)/(1<<20), maxBytes>>20)
	}

	kind, err := filetype.Match(data)
	if err != nil || kind == filetype.Unknown || kind.MIME.Type != "image" {
		return FileInfo{}, errdefs.Validation(
			"%q is not an image, please upload a PNG, JPEG, or WebP screenshot", name)
	}

	return FileInfo{
		Name: name,
		MIME: kind.MIME.Value,
		Size: int64(len(data)),
	}, nil
}
