// Package app builds and runs the app tree.
//
// Every node type embeds Base and overrides the lifecycle hooks it needs.
// Types are registered under a dotted path with Register and materialized
// from config records by New. The orchestrator walks the tree itself for
// both registration hooks, so overrides never call into their children.
//
// Launch order per node:
//
//	launch -> Awake -> thread-scope bootstrap (process heads only)
//	-> launch children -> Start -> Update loop -> End
//	-> join children -> Terminate -> terminate
package app
