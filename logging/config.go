package logging

import "time"

// Sink names understood by the application wiring.
const (
	SinkConsole    = "console"
	SinkJSON       = "json"
	SinkEvaluation = "evaluation"
	SinkSQLite     = "sqlite"
)

type Config struct {
	EnabledSinks     []string
	BufferSize       int
	MinimumSeverity  Severity
	Fields           map[string]any
	JSON             JSONConfig
	Console          ConsoleConfig
	Evaluation       EvaluationConfig
	SQLite           SQLiteConfig
	DropWarnInterval time.Duration
}

type JSONConfig struct {
	FilePath      string
	FlushInterval time.Duration
}

type ConsoleConfig struct {
	// Verbose prints the payload of every event instead of only its type.
	Verbose bool
}

// EvaluationConfig controls the per-team response record files.
type EvaluationConfig struct {
	Dir string
}

type SQLiteConfig struct {
	Path string
}

func DefaultConfig() Config {
	return Config{
		EnabledSinks:     []string{SinkConsole, SinkEvaluation},
		BufferSize:       512,
		MinimumSeverity:  SeverityInfo,
		DropWarnInterval: 5 * time.Second,
		JSON: JSONConfig{
			FlushInterval: 2 * time.Second,
		},
		Console: ConsoleConfig{
			Verbose: true,
		},
		Evaluation: EvaluationConfig{
			Dir: "evaluation_logs",
		},
	}
}

func (c Config) HasSink(name string) bool {
	for _, s := range c.EnabledSinks {
		if s == name {
			return true
		}
	}
	return false
}

func (c Config) CloneFields() map[string]any {
	if len(c.Fields) == 0 {
		return nil
	}
	cloned := make(map[string]any, len(c.Fields))
	for k, v := range c.Fields {
		cloned[k] = v
	}
	return cloned
}
