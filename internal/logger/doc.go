// Package logger wraps zap to give every stage of an installation run a
// consistent, scoped console logger.
//
// A global sugared logger is created at init time and carried through
// context.Context: callers attach a name or key-value pairs with WithName and
// WithKV, and log with Info/InfoKV/Warnf and friends using the context logger.
package logger
