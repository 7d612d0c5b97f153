// Package logger provides structured logging for kvobserve on top of
// log/slog, with a process-wide level and redaction of passphrases,
// secrets and DSN passwords.
//
// Core packages accept a plain *slog.Logger; Logger.Slog bridges the two.
package logger
