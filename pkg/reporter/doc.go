// Package reporter runs on behalf of one embedded browsing context: it
// measures how deeply the context is nested and registers it with the tree
// registry.
package reporter
