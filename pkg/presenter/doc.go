// Package presenter turns registry trees into a human-readable view: every
// frame url becomes a host and path, and the result is printed as an
// indented listing and optionally as JSON.
package presenter
