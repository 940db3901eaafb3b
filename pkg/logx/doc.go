// Package logx configures argbot's structured logging.
//
// Both bot processes log through a small wrapper (logx.Logger) on top of
// zerolog to keep:
//   - Console output readable (short timestamp + short caller)
//   - Optional file output JSON-structured
package logx
