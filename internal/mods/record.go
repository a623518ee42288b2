// Package mods holds the canonical mod-portal record shared by the feed
// client, the snapshot store and the change detector.
package mods

// Record is the last-observed state of one mod on the portal.
//
// ReleasedAt is the portal's released_at marker of the latest release.
// It is treated as an opaque comparable string; a mod with no release
// never makes it into a Record.
type Record struct {
	Name       string
	ReleasedAt string
	Title      string
	Owner      string
	Version    string
}
