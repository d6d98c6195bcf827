// Package platform detects the host operating system and CPU architecture
// and maps them onto release platform keys.
//
// The key itself comes from the Go runtime, which reflects the userland the
// installer runs in. gopsutil supplies kernel architecture and distribution
// details that are only used for diagnostics.
package platform
