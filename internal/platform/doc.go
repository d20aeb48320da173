// Package platform holds the few facts about the target operating system the
// loader needs: the file suffixes of shared libraries and their detached
// debug info, and whether diagnostic output may be colored.
//
// Only Linux and macOS are supported. On any other target the first call to
// Extensions panics; this is a build configuration error, not something a
// caller can recover from.
package platform
