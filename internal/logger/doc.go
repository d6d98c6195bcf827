// Package logger wraps zap for the installer:
//   - a global sugared logger writing a console encoding to stderr,
//   - context helpers (ToContext/FromContext/WithName/WithKV),
//   - level parsing and adjustment,
//   - leveled helpers (Info, DebugKV, InfoKV, WarnKV, ErrorKV).
//
// Every stage receives a context and logs through it, so fields attached
// early (release, platform) follow the whole installation.
package logger
