// Package sharedvalue implements the hierarchical shared-value stores.
//
// A Store maps absolute dotted names to values. Callers write under their
// own name and read by absolute or relative name. Synchronized primitives
// (cells and arrays) stay writable for the node that set them and are
// handed to every other caller behind a read-only wrapper.
//
// LocalStore backs both scopes inside one OS process. The process-scope
// store of a run is additionally served over a unix socket by Server and
// reached from child processes through Client.
package sharedvalue
