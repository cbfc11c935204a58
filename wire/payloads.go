package wire

import "encoding/binary"

// DeliveryReceiptStatus is the status carried by a delivery receipt.
type DeliveryReceiptStatus uint8

const (
	DeliveryReceiptReceived     DeliveryReceiptStatus = 0x01
	DeliveryReceiptRead         DeliveryReceiptStatus = 0x02
	DeliveryReceiptAcknowledged DeliveryReceiptStatus = 0x03
	DeliveryReceiptDeclined     DeliveryReceiptStatus = 0x04
)

// Text encodes a plain text message payload.
type Text struct {
	Text string
}

func (t Text) ByteLength() int { return len(t.Text) }

func (t Text) Encode(buf []byte) []byte {
	return buf[:copy(buf, t.Text)]
}

// DeliveryReceipt encodes a delivery receipt payload: a 1-byte status
// followed by one or more 8-byte little-endian message ids.
type DeliveryReceipt struct {
	Status     DeliveryReceiptStatus
	MessageIDs []MessageID
}

func (d DeliveryReceipt) ByteLength() int { return 1 + 8*len(d.MessageIDs) }

func (d DeliveryReceipt) Encode(buf []byte) []byte {
	buf[0] = uint8(d.Status)
	for i, id := range d.MessageIDs {
		binary.LittleEndian.PutUint64(buf[1+8*i:], uint64(id))
	}
	return buf[:d.ByteLength()]
}

// GroupCreatorContainer wraps a group control payload sent by the group
// creator: an 8-byte little-endian group id followed by the inner payload.
type GroupCreatorContainer struct {
	GroupID GroupID
	Inner   PayloadEncoder
}

func (c GroupCreatorContainer) ByteLength() int { return 8 + c.Inner.ByteLength() }

func (c GroupCreatorContainer) Encode(buf []byte) []byte {
	binary.LittleEndian.PutUint64(buf, uint64(c.GroupID))
	c.Inner.Encode(buf[8:])
	return buf[:c.ByteLength()]
}

// GroupMemberContainer wraps a group payload sent by a member: the 8-byte
// creator identity, the 8-byte little-endian group id, then the inner
// payload.
type GroupMemberContainer struct {
	Creator Identity
	GroupID GroupID
	Inner   PayloadEncoder
}

func (c GroupMemberContainer) ByteLength() int { return IdentityLength + 8 + c.Inner.ByteLength() }

func (c GroupMemberContainer) Encode(buf []byte) []byte {
	copy(buf[:IdentityLength], c.Creator)
	binary.LittleEndian.PutUint64(buf[IdentityLength:], uint64(c.GroupID))
	c.Inner.Encode(buf[IdentityLength+8:])
	return buf[:c.ByteLength()]
}

// GroupName encodes a group rename payload: the new name in UTF-8.
type GroupName struct {
	Name string
}

func (g GroupName) ByteLength() int { return len(g.Name) }

func (g GroupName) Encode(buf []byte) []byte {
	return buf[:copy(buf, g.Name)]
}

// GroupSetup encodes a group membership payload: the member identities
// concatenated as fixed 8-byte strings. An empty member list dissolves the
// group for the receiver.
type GroupSetup struct {
	Members []Identity
}

func (g GroupSetup) ByteLength() int { return IdentityLength * len(g.Members) }

func (g GroupSetup) Encode(buf []byte) []byte {
	for i, member := range g.Members {
		copy(buf[IdentityLength*i:], member)
	}
	return buf[:g.ByteLength()]
}

// GroupSyncRequest encodes an (empty) group sync request payload.
type GroupSyncRequest struct{}

func (GroupSyncRequest) ByteLength() int { return 0 }

func (GroupSyncRequest) Encode(buf []byte) []byte { return buf[:0] }

// GroupLeave encodes an (empty) group leave payload.
type GroupLeave struct{}

func (GroupLeave) ByteLength() int { return 0 }

func (GroupLeave) Encode(buf []byte) []byte { return buf[:0] }

// SetProfilePicture encodes a profile picture update payload: the 16-byte
// blob id, the 4-byte little-endian blob size and the 32-byte blob key.
type SetProfilePicture struct {
	PictureBlobID BlobID
	PictureSize   uint32
	Key           BlobKey
}

func (p SetProfilePicture) ByteLength() int { return BlobIDLength + 4 + BlobKeyLength }

func (p SetProfilePicture) Encode(buf []byte) []byte {
	copy(buf[:BlobIDLength], p.PictureBlobID[:])
	binary.LittleEndian.PutUint32(buf[BlobIDLength:], p.PictureSize)
	copy(buf[BlobIDLength+4:], p.Key[:])
	return buf[:p.ByteLength()]
}

// DeleteProfilePicture encodes an (empty) profile picture removal payload.
type DeleteProfilePicture struct{}

func (DeleteProfilePicture) ByteLength() int { return 0 }

func (DeleteProfilePicture) Encode(buf []byte) []byte { return buf[:0] }

// RequestProfilePicture encodes an (empty) profile picture request payload.
type RequestProfilePicture struct{}

func (RequestProfilePicture) ByteLength() int { return 0 }

func (RequestProfilePicture) Encode(buf []byte) []byte { return buf[:0] }

// GroupCallStart encodes a group call announcement: the 4-byte little-endian
// protocol version, the 32-byte group call key and the SFU base URL.
type GroupCallStart struct {
	ProtocolVersion uint32
	GroupCallKey    [32]byte
	SFUBaseURL      string
}

func (g GroupCallStart) ByteLength() int { return 4 + 32 + len(g.SFUBaseURL) }

func (g GroupCallStart) Encode(buf []byte) []byte {
	binary.LittleEndian.PutUint32(buf, g.ProtocolVersion)
	copy(buf[4:], g.GroupCallKey[:])
	copy(buf[36:], g.SFUBaseURL)
	return buf[:g.ByteLength()]
}

// EditMessage encodes a message edit payload: the 8-byte little-endian id
// of the referenced message followed by the new text in UTF-8.
type EditMessage struct {
	MessageID MessageID
	NewText   string
}

func (e EditMessage) ByteLength() int { return 8 + len(e.NewText) }

func (e EditMessage) Encode(buf []byte) []byte {
	binary.LittleEndian.PutUint64(buf, uint64(e.MessageID))
	copy(buf[8:], e.NewText)
	return buf[:e.ByteLength()]
}

// DeleteMessage encodes a message removal payload: the 8-byte little-endian
// id of the referenced message.
type DeleteMessage struct {
	MessageID MessageID
}

func (d DeleteMessage) ByteLength() int { return 8 }

func (d DeleteMessage) Encode(buf []byte) []byte {
	binary.LittleEndian.PutUint64(buf, uint64(d.MessageID))
	return buf[:8]
}
