// Package logger wraps zap with a console encoder and context helpers.
//
// Services take a context and pull the logger from it, so a command can name
// its logger once (WithName) and attach step fields (WithKV) that every later
// message carries.
package logger
