// Package logx is tickd's structured logging, a thin layer over zerolog.
//
// A Service owns the process sinks (stdout in console or JSON form, and an
// optional size-rotated JSON file) and swaps them when the config file is
// reloaded; every Logger derived from it follows. Standalone loggers
// (Nop, NewConsole, NewWriter) serve code that runs without a Service.
package logx
