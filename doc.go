// Package boreal implements a synchronous client driver for the Boreal cloud
// data warehouse, speaking JSON over HTTPS.
//
// An Environment created by Init carries the process-wide transport and
// logging configuration. A Connection authenticates against the session
// endpoint and hands out Statements; a Statement prepares SQL text, binds
// native inputs and outputs, executes against the session tokens, and fetches
// buffered result rows through the bound outputs.
//
// A Connection and its Statements are not safe for concurrent use; use one
// Connection per goroutine.
package boreal
