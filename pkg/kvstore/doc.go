// Package kvstore defines the byte-oriented key-value store contract and the
// codec contract that the observable layer is built on.
//
// A Store persists opaque bytes under flat string keys. A Codec converts
// between typed values and those bytes. The generic helpers in this package
// (SetValue, Value, RemoveValue) combine the two and classify failures into
// encode, decode and store I/O errors.
//
// Absence is a first-class state: Get reports found=false for a missing key,
// which the typed helpers surface as a nil *V. That is distinct from a key
// holding the encoded zero value of V.
package kvstore
