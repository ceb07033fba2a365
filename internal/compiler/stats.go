package compiler

import "time"

// Stats is the summary handed to the done hook and report sinks after every
// completed build attempt, including vetoed-emit and additional-pass paths.
type Stats struct {
	Compilation *Compilation
	StartTime   time.Time
	EndTime     time.Time
}

func newStats(comp *Compilation, start, end time.Time) *Stats {
	return &Stats{Compilation: comp, StartTime: start, EndTime: end}
}

// Duration returns the wall time of the build attempt.
func (s *Stats) Duration() time.Duration {
	return s.EndTime.Sub(s.StartTime)
}

// HasErrors reports whether the session accumulated any errors.
func (s *Stats) HasErrors() bool {
	return s.Compilation.HasErrors()
}

// Summary is the serializable shape of a Stats, for report sinks.
type Summary struct {
	Compiler           string    `json:"compiler"`
	CompilationID      string    `json:"compilation_id"`
	StartTime          time.Time `json:"start_time"`
	EndTime            time.Time `json:"end_time"`
	DurationMS         int64     `json:"duration_ms"`
	Assets             []string  `json:"assets"`
	EmittedAssets      int       `json:"emitted_assets"`
	Errors             []string  `json:"errors,omitempty"`
	NeedAdditionalPass bool      `json:"need_additional_pass,omitempty"`
	Children           int       `json:"children,omitempty"`
}

// Summarize flattens the stats for serialization.
func (s *Stats) Summarize() Summary {
	comp := s.Compilation
	names := comp.AssetNames()
	emitted := 0
	for _, name := range names {
		if a, ok := comp.Asset(name); ok && a.Emitted {
			emitted++
		}
	}
	var errs []string
	for _, err := range comp.Errors() {
		errs = append(errs, err.Error())
	}
	return Summary{
		Compiler:           comp.Name,
		CompilationID:      comp.ID,
		StartTime:          s.StartTime,
		EndTime:            s.EndTime,
		DurationMS:         s.Duration().Milliseconds(),
		Assets:             names,
		EmittedAssets:      emitted,
		Errors:             errs,
		NeedAdditionalPass: comp.NeedAdditionalPass,
		Children:           len(comp.Children()),
	}
}
