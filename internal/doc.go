// Package internal contains the implementation packages behind pkg/fwif and
// the fwif command.
//
// # Package Organization
//
//   - view: Component tree and its JSON encoding for the renderer
//   - keys: Key sequence notation, binding table, debounced sequence engine and keymap files
//   - transport: Conduits to the renderer, over named pipes or a WebSocket
//   - supervisor: Renderer child process, its diagnostic output and termination
//   - dispatch: Message decoding and the receive, dispatch, emit loop
//   - session: Startup and teardown ordering around one dispatch loop
//   - config: Viper configuration loading and validation
//   - watcher: Debounced fsnotify watcher used for keymap hot reload
//   - errors: Typed errors shared by every package
//   - logging: Structured slog logging with terminal, file and journal sinks
//   - version: Build information
//
// # Inter-Package Communication
//
//   - Session builds a transport, a dispatch loop and a supervised renderer
//   - The dispatch loop owns the key engine; expiries are queued back onto it
//   - Watcher events re-apply keymap files to the loop's binding table
//
// # Testing Strategy
//
//   - Unit tests for individual functions and methods, using testify
//   - Session tests that drive a scripted shell renderer over real pipes
//   - Property tests with gopter, behind the "property" build tag
package internal
