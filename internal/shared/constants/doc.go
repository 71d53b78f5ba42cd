// Package constants centralizes defaults shared across the CLI and the engine.
//
// Poll intervals, probe timeouts, and default file names live here so that
// cmd/ and internal/ packages agree on them without introducing import cycles.
package constants
