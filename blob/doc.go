// Package blob defines the boundary to the blob server and the symmetric
// blob box used to seal blob contents.
//
// Download and upload failures are ordinary network errors, never protocol
// errors: incoming tasks treat them as soft failures and rely on
// redelivery of the referencing message.
package blob
