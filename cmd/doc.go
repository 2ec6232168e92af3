// Package cmd provides the command-line interface for fwif.
//
// Configuration System:
//
//	The CLI reads configuration from several sources with clear precedence:
//	1. Command-line flags (--config, --log-level) - highest priority
//	2. FWIF_CONFIG_FILE environment variable - custom config file path
//	3. Individual environment variables (FWIF_KEYS_DEBOUNCE, etc.)
//	4. Configuration files (.fwif.yml) - lowest priority
//
// Environment Variables:
//
//	FWIF_CONFIG_FILE: Path to custom configuration file
//	FWIF_READ_PIPE: Pipe the renderer reads (the application writes)
//	FWIF_WRITE_PIPE: Pipe the renderer writes (the application reads)
//	And the rest following the FWIF_<SECTION>_<OPTION> pattern
//
// # Available Commands
//
//   - demo: Run the dynamic list demo against the renderer
//   - keys: Show the demo's effective key bindings, or print them as a keymap
//   - version: Show version information
//
// # Command Examples
//
//	// Run the demo with a custom renderer and a hot-reloaded keymap
//	fwif demo --renderer ./fwif-renderer --keymap keymap.yml --watch-keymap
//
//	// Start a keymap file from the current bindings
//	fwif keys --yaml > keymap.yml
//
//	// Machine-readable version information
//	fwif version --format json
//
// Every command returns its error to Execute; main is the only place the
// process exits.
package cmd
