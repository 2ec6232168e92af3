package config

import (
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/conneroisu/fwif/internal/logging"
	"github.com/conneroisu/fwif/internal/transport"
)

// ValidationError represents a configuration validation error with suggestions
type ValidationError struct {
	Field       string
	Value       interface{}
	Message     string
	Suggestions []string
}

func (ve *ValidationError) Error() string {
	return fmt.Sprintf("validation error in %s: %s", ve.Field, ve.Message)
}

// ValidationResult holds the result of configuration validation
type ValidationResult struct {
	Valid    bool
	Errors   []ValidationError
	Warnings []ValidationError
}

// HasErrors returns true if there are any validation errors
func (vr *ValidationResult) HasErrors() bool {
	return len(vr.Errors) > 0
}

// HasWarnings returns true if there are any validation warnings
func (vr *ValidationResult) HasWarnings() bool {
	return len(vr.Warnings) > 0
}

// String returns a formatted string of all validation issues
func (vr *ValidationResult) String() string {
	var builder strings.Builder

	write := func(title string, issues []ValidationError) {
		if len(issues) == 0 {
			return
		}
		builder.WriteString(title + ":\n")
		for _, issue := range issues {
			builder.WriteString(fmt.Sprintf("  - %s: %s\n", issue.Field, issue.Message))
			for _, suggestion := range issue.Suggestions {
				builder.WriteString(fmt.Sprintf("    hint: %s\n", suggestion))
			}
		}
	}

	write("Validation errors", vr.Errors)
	write("Validation warnings", vr.Warnings)

	return builder.String()
}

func (vr *ValidationResult) addError(field string, value interface{}, message string, suggestions ...string) {
	vr.Errors = append(vr.Errors, ValidationError{Field: field, Value: value, Message: message, Suggestions: suggestions})
}

func (vr *ValidationResult) addWarning(field string, value interface{}, message string, suggestions ...string) {
	vr.Warnings = append(vr.Warnings, ValidationError{Field: field, Value: value, Message: message, Suggestions: suggestions})
}

// ValidateConfigWithDetails checks every section and collects errors, which
// make the configuration unusable, and warnings, which do not.
func ValidateConfigWithDetails(config *Config) *ValidationResult {
	result := &ValidationResult{
		Errors:   []ValidationError{},
		Warnings: []ValidationError{},
	}

	validateRendererConfigDetails(&config.Renderer, result)
	validateTransportConfigDetails(config, result)
	validateKeysConfigDetails(&config.Keys, result)
	validateLoggingConfigDetails(&config.Logging, result)

	result.Valid = !result.HasErrors()

	return result
}

func validateRendererConfigDetails(config *RendererConfig, result *ValidationResult) {
	if strings.TrimSpace(config.Path) == "" {
		result.addError("renderer.path", config.Path, "renderer path is empty",
			"Point renderer.path at the renderer executable")
		return
	}

	// The renderer may be built after the configuration is written, so a
	// missing executable is only a warning here; spawning reports it fatally.
	if _, err := exec.LookPath(config.Path); err != nil {
		result.addWarning("renderer.path", config.Path, "renderer executable not found",
			"Build the renderer or set FWIF_RENDERER_PATH")
	}

	for _, kv := range config.Env {
		if !strings.Contains(kv, "=") {
			result.addError("renderer.env", kv, "environment entry must be KEY=VALUE")
		}
	}

	if config.Dir != "" {
		if info, err := os.Stat(config.Dir); err != nil || !info.IsDir() {
			result.addError("renderer.dir", config.Dir, "working directory does not exist")
		}
	}
}

func validateTransportConfigDetails(config *Config, result *ValidationResult) {
	switch transport.Kind(config.Transport.Kind) {
	case transport.KindFIFO:
		validateConduitPaths(&config.Conduits, result)
	case transport.KindWebSocket:
		validateListenAddress(config.Transport.Listen, result)
	default:
		result.addError("transport.kind", config.Transport.Kind, "unknown transport kind",
			fmt.Sprintf("Use %q or %q", transport.KindFIFO, transport.KindWebSocket))
	}

	if config.Conduits.ChunkSize <= 0 {
		result.addError("conduits.chunk_size", config.Conduits.ChunkSize, "chunk size must be positive",
			fmt.Sprintf("The default is %d bytes", transport.DefaultChunkSize))
	} else if config.Conduits.ChunkSize < 64 {
		result.addWarning("conduits.chunk_size", config.Conduits.ChunkSize,
			"chunk size is smaller than a typical key message")
	}
}

func validateConduitPaths(config *ConduitsConfig, result *ValidationResult) {
	for _, conduit := range []struct{ field, path string }{
		{"conduits.read", config.Read},
		{"conduits.write", config.Write},
	} {
		field, path := conduit.field, conduit.path
		if strings.TrimSpace(path) == "" {
			result.addError(field, path, "conduit path is empty")
			continue
		}
		if dir := filepath.Dir(path); dir != "" {
			if info, err := os.Stat(dir); err != nil || !info.IsDir() {
				result.addError(field, path, "conduit directory does not exist")
			}
		}
	}

	if config.Read != "" && filepath.Clean(config.Read) == filepath.Clean(config.Write) {
		result.addError("conduits.write", config.Write, "read and write conduits must be distinct paths")
	}
}

func validateListenAddress(addr string, result *ValidationResult) {
	if addr == "" {
		return
	}

	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		result.addError("transport.listen", addr, err.Error(),
			"Use host:port, for example 127.0.0.1:0")
		return
	}

	if ip := net.ParseIP(host); host != "localhost" && (ip == nil || !ip.IsLoopback()) {
		result.addWarning("transport.listen", addr, "listening beyond loopback exposes the renderer channel",
			"Renderers run on the same host; prefer 127.0.0.1")
	}
}

func validateKeysConfigDetails(config *KeysConfig, result *ValidationResult) {
	if config.Debounce <= 0 || config.Debounce > MaxDebounce {
		result.addError("keys.debounce", config.Debounce.String(),
			fmt.Sprintf("debounce must be in (0, %s]", MaxDebounce),
			"The default is 1s")
	}

	if config.Keymap != "" {
		if _, err := os.Stat(config.Keymap); err != nil {
			result.addError("keys.keymap", config.Keymap, "keymap file is not readable")
		}
	} else if config.Watch {
		result.addWarning("keys.watch", config.Watch, "nothing to watch without keys.keymap")
	}
}

func validateLoggingConfigDetails(config *LoggingConfig, result *ValidationResult) {
	if config.Level != "" {
		if _, err := logging.ParseLevel(config.Level); err != nil {
			result.addError("logging.level", config.Level, err.Error(),
				"Use debug, info, warn or error")
		}
	}

	switch config.Format {
	case "", "text", "json":
	default:
		result.addError("logging.format", config.Format, "unknown log format", `Use "text" or "json"`)
	}
}
