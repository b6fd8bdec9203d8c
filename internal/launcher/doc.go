// Package launcher drives a whole app tree: it wraps the user apps under
// the MAIN root, serves the process-scope store to child processes,
// starts the tree on a supervising goroutine and shuts it down through the
// shutdown flag.
//
// Process nodes run in a re-executed copy of the current binary. The
// binary's main must call IsChild and RunChild before doing anything else:
//
//	if launcher.IsChild() {
//		if err := launcher.RunChild(); err != nil {
//			os.Exit(1)
//		}
//		return
//	}
package launcher
