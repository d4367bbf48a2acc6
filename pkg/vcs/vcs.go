// Package vcs carries the build commit, stamped with
// -ldflags "-X github.com/stumble/whittle/pkg/vcs.Commit=<sha>".
package vcs

// Commit -
var Commit = "unknown"
