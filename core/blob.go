package core

import (
	"io"
	"strings"
)

// BlobRefScheme prefixes references to blobs held in the local blob store
// (video modules, webinar recordings).
const BlobRefScheme = "blob://"

// BlobStore is any store that can hold large binaries outside the structured
// collection store (which has a tight quota).
type BlobStore interface {
	SaveBlob(id string, r io.Reader) error
	OpenBlob(id string) (io.ReadCloser, error)
	DeleteBlob(id string) error
}

// ParseBlobRef extracts the blob id from a blob:// reference.
func ParseBlobRef(ref string) (string, bool) {
	if !strings.HasPrefix(ref, BlobRefScheme) {
		return "", false
	}
	return strings.TrimPrefix(ref, BlobRefScheme), true
}
