// Package domain contains the core entities of the recording pipeline: the
// Recording and its status machine, the metadata document, the value types
// exchanged with remote collaborators, and the typed errors those collaborators
// return. It has no dependency on storage or transport.
package domain
