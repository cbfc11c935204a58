// Package wire defines the identifiers, message flags and binary payload
// encoders used by the multi-device message protocol.
//
// The payload layouts are fixed little-endian byte formats. They must be
// encoded bit-exact: every device in a device group, and every remote
// client, decodes the same bytes.
package wire
