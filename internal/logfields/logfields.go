package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyCompiler    = "compiler"
	KeyCompilation = "compilation_id"
	KeyStage       = "stage"
	KeyHook        = "hook"
	KeyAsset       = "asset"
	KeyPath        = "path"
	KeyPass        = "pass"
	KeyDurationMS  = "duration_ms"
	KeyError       = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func Compiler(name string) slog.Attr     { return slog.String(KeyCompiler, name) }
func Compilation(id string) slog.Attr    { return slog.String(KeyCompilation, id) }
func Stage(name string) slog.Attr        { return slog.String(KeyStage, name) }
func Hook(name string) slog.Attr         { return slog.String(KeyHook, name) }
func Asset(name string) slog.Attr        { return slog.String(KeyAsset, name) }
func Path(p string) slog.Attr            { return slog.String(KeyPath, p) }
func Pass(n int) slog.Attr               { return slog.Int(KeyPass, n) }
func DurationMS(ms float64) slog.Attr    { return slog.Float64(KeyDurationMS, ms) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
