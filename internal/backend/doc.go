// Package backend resolves, owns and drives the engine that makes memory
// swapping decisions. The configured path selects how the engine is obtained:
// "int://" uses the engine compiled into the binary, "dylib://<file>" loads a
// Go plugin that exports BackendEntry. Either way the engine is wrapped in a
// Handle with a single ordered lifecycle, and the engine is always destroyed
// before the module that produced it is closed.
package backend
