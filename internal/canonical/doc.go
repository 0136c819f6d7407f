// Package canonical defines the versioned canonical schema: the fixed set of
// entity kinds every source record is normalized into, the CanonicalEvent
// envelope that carries them, and the CUE-backed registry that validates
// payloads against the declared shapes.
//
// No other package branches on entity kind except through this package's
// dispatch. Adding an entity kind means adding one CUE definition and one
// entry to the kind catalog.
package canonical
