// Package state implements the protocol state store.
//
// The store has two independent halves. The volatile half is a pure
// in-memory cache that deduplicates recently seen administrative requests;
// it lives for the process lifetime and is implicitly empty after a
// restart. The persistent half durably records outbound distribution
// decisions so that they survive a restart; entries carry a creation
// timestamp and expire after a fixed window, enforced at read time.
package state
