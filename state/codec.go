package state

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/opd-ai/devsync/wire"
)

// Persistent protocol state values are encoded with a compact, field-tagged
// binary schema (CBOR with integer keys). New fields must be optional and
// unknown fields are ignored on decode, so that records written by a newer
// version remain readable.

var ErrCodec = errors.New("protocol state codec failure")

// userProfileDistributionRecord is the serialized form of a user profile
// distribution decision. An absent blob id encodes a removal mark.
type userProfileDistributionRecord struct {
	ReceiverIdentity string `cbor:"1,keyasint"`
	BlobID           []byte `cbor:"2,keyasint,omitempty"`
}

var (
	codecEncMode cbor.EncMode
	codecDecMode cbor.DecMode
)

func init() {
	var err error
	codecEncMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	codecDecMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic(err)
	}
}

func encodeUserProfileDistribution(receiver wire.Identity, decision UserProfileDecision) ([]byte, error) {
	record := userProfileDistributionRecord{ReceiverIdentity: string(receiver)}
	if !decision.Removed {
		record.BlobID = append([]byte(nil), decision.BlobID[:]...)
	}
	encoded, err := codecEncMode.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCodec, err)
	}
	return encoded, nil
}

func decodeUserProfileDistribution(encoded []byte) (wire.Identity, UserProfileDecision, error) {
	var record userProfileDistributionRecord
	if err := codecDecMode.Unmarshal(encoded, &record); err != nil {
		return "", UserProfileDecision{}, fmt.Errorf("%w: %v", ErrCodec, err)
	}
	receiver := wire.Identity(record.ReceiverIdentity)
	if !receiver.Valid() {
		return "", UserProfileDecision{}, fmt.Errorf("%w: invalid receiver identity %q", ErrCodec, record.ReceiverIdentity)
	}
	if record.BlobID == nil {
		return receiver, UserProfileDecision{Removed: true}, nil
	}
	if len(record.BlobID) != wire.BlobIDLength {
		return "", UserProfileDecision{}, fmt.Errorf("%w: invalid blob id length %d", ErrCodec, len(record.BlobID))
	}
	var decision UserProfileDecision
	copy(decision.BlobID[:], record.BlobID)
	return receiver, decision, nil
}
