package blob

import (
	"context"
	"errors"

	"golang.org/x/crypto/nacl/secretbox"

	"github.com/opd-ai/devsync/wire"
)

// Scope selects the blob server scope a blob lives in.
type Scope uint8

const (
	// ScopePublic addresses blobs shared with remote parties (e.g.
	// profile pictures).
	ScopePublic Scope = iota
	// ScopeLocal addresses blobs only mirrored within the device group.
	ScopeLocal
)

// Service is the blob server boundary.
type Service interface {
	// Download fetches the sealed bytes of a blob.
	Download(ctx context.Context, scope Scope, id wire.BlobID) ([]byte, error)

	// Upload stores sealed bytes and returns the assigned blob id.
	Upload(ctx context.Context, scope Scope, data []byte) (wire.BlobID, error)
}

// ErrBoxOpen indicates that a sealed blob failed to authenticate.
var ErrBoxOpen = errors.New("blob box open failed")

// fileNonce is the fixed nonce used for file blobs. Reusing a fixed nonce
// is safe here because every blob is sealed under a fresh random key.
var fileNonce = [24]byte{
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x01,
}

// SealBox seals blob bytes under the given key with the protocol's fixed
// file nonce.
func SealBox(data []byte, key wire.BlobKey) []byte {
	k := [32]byte(key)
	return secretbox.Seal(nil, data, &fileNonce, &k)
}

// OpenBox opens sealed blob bytes with the given key.
func OpenBox(sealed []byte, key wire.BlobKey) ([]byte, error) {
	k := [32]byte(key)
	opened, ok := secretbox.Open(nil, sealed, &fileNonce, &k)
	if !ok {
		return nil, ErrBoxOpen
	}
	return opened, nil
}
