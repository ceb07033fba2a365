package errors

// Convenience functions for common error patterns

// RecordsParseMarker is the fixed diagnostic tag carried by every records
// parse failure. Callers match on it to distinguish corrupt records from
// other read failures.
const RecordsParseMarker = "cannot parse records"

// Config errors

func ConfigNotFound(path string) *BuildError {
	return New(CategoryConfig, SeverityFatal, "configuration file not found").
		WithContext("path", path)
}

func ValidationFailed(field, reason string) *BuildError {
	return New(CategoryValidation, SeverityFatal, "validation failed").
		WithContext("field", field).
		WithContext("reason", reason)
}

// Orchestrator errors

// ConcurrentRun reports a run or watch attempt on a compiler that already
// has a build in flight. No compiler state is mutated before this is raised.
func ConcurrentRun(compiler string) *BuildError {
	return New(CategoryConcurrency, SeverityError, "concurrent build attempt rejected: compiler is already running").
		WithContext("compiler", compiler)
}

func HookFailed(stage string, cause error) *BuildError {
	return Wrap(cause, CategoryHook, SeverityFatal, "build stage failed").
		WithContext("stage", stage)
}

func CompileFailed(compiler string, cause error) *BuildError {
	return Wrap(cause, CategoryCompile, SeverityFatal, "compilation failed").
		WithContext("compiler", compiler)
}

func AdditionalPassLimit(limit int) *BuildError {
	return New(CategoryCompile, SeverityFatal, "additional-pass limit exceeded").
		WithContext("limit", limit)
}

// Records errors

func RecordsParse(path string, cause error) *BuildError {
	return Wrap(cause, CategoryRecords, SeverityFatal, RecordsParseMarker).
		WithContext("path", path)
}

func RecordsWrite(path string, cause error) *BuildError {
	return Wrap(cause, CategoryRecords, SeverityFatal, "failed to write records").
		WithContext("path", path)
}

// Emission errors

func EmitFailed(asset string, cause error) *BuildError {
	return Wrap(cause, CategoryEmit, SeverityFatal, "asset emission failed").
		WithContext("asset", asset)
}

// Watch errors

func WatchClosed() *BuildError {
	return New(CategoryWatch, SeverityError, "watch session is closed")
}
