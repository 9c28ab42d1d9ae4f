/*
Package log provides structured logging for holdfast using zerolog.

It wraps zerolog to give JSON-structured logging with component-specific
child loggers, a configurable level, and helper functions for the
handful of logging patterns the store package needs: a decode error on a
load, a storage error surfaced as Failed, a key deleted during cleanup.

# Usage

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true, Output: os.Stdout})

	log.Info("store opened")
	log.WithComponent("cleanup").Warn().Str("key_base", base).Msg("deleted garbage manifest key")
*/
package log
