// Package core defines the shared data model and contracts of the agentwire
// communication layer: the Message and Route types exchanged through the
// broker, the Agent contract implemented by units of work, the routing
// strategy and failure taxonomy, and the narrow collaborator interfaces
// (MemoryStore, Recorder) consumed elsewhere in the module.
//
// The package intentionally contains no goroutines and no I/O so every other
// package can depend on it without cycles.
package core
