// Package table loads and saves release tables on disk.
//
// A table is a declarative list of platform → (url, sha256) entries plus
// release metadata. YAML is the default encoding; files ending in .toml are
// decoded as TOML. Documents are shape-checked with struct validation tags
// before release.NewTable enforces the domain invariants.
package table
