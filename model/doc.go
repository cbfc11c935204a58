// Package model defines the boundary to the reactive model layer.
//
// The model layer itself (storage, caching, view projection) is an
// external collaborator. Tasks borrow the controller references declared
// here for the duration of a single run; they are the sole write path into
// durable model storage.
package model
