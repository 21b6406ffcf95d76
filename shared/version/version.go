// Package version exposes the build version of confine.
package version

// Version is the released version number, set at build time via -ldflags.
var Version = "0.1"
