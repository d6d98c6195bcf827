// Package release models a published release and its per-platform artifacts.
//
// A Table maps each PlatformKey to exactly one Entry (download URL plus
// SHA-256 digest). Tables are validated once in NewTable and are read-only
// afterwards. The package also defines the typed errors reported by every
// stage of an installation.
package release
