// Package settings resolves the editor configuration into an immutable
// Snapshot and detects deprecated setting names that are still in use.
//
// Resolution is a pure read of a host.ConfigStore. Deprecated names are only
// reported; nothing is migrated or rewritten.
//
//	resolver := settings.NewResolver(store)
//	snapshot, legacy := resolver.Resolve()
//	if len(legacy) > 0 {
//	    // show one aggregated warning
//	}
package settings
