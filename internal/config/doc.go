// Package config defines the installer settings and loads them from an
// optional YAML file, BINSTALL_* environment variables and command-line
// flags, in increasing order of precedence.
//
// Settings describe where and how to install; what to install comes from
// the release table referenced by Config.TablePath.
package config
