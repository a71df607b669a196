package models

import "time"

// ContentKind is the declared media category of an asset.
type ContentKind string

const (
	ContentKindImage ContentKind = "image"
	ContentKindVideo ContentKind = "video"
)

// Valid reports whether k is a known kind.
func (k ContentKind) Valid() bool {
	return k == ContentKindImage || k == ContentKindVideo
}

// MediaAsset is the metadata of one stored blob. The bytes at StoragePath are
// always ciphertext under the owner's key.
type MediaAsset struct {
	ID          string
	OwnerID     string
	StoragePath string
	ContentKind ContentKind
	ContentType string
	// Size is the plaintext length in bytes.
	Size      int64
	CreatedAt time.Time
}
