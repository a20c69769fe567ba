// Package registry tracks the iframes reported by each browsing session and
// rebuilds their nesting from reported depths.
//
// Frames register asynchronously and in any order as (session, url, depth)
// triples. The registry keeps one record per url per session, last write
// wins, and derives the tree on every query:
//
//	reg := registry.New()
//	_ = reg.Register("tab-1", "https://a.example/", 0)
//	_ = reg.Register("tab-1", "https://b.example/embed", 1)
//	tree := reg.BuildTree("tab-1") // a.example -> b.example/embed
//
// When the browsing context goes away the session is purged with
// CloseSession.
package registry
