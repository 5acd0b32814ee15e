package observability

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// DefaultProfilerPrefix is where pprof routes are mounted when enabled.
const DefaultProfilerPrefix = "/debug"

// Config captures opt-in diagnostics exposed on the relay's HTTP router.
type Config struct {
	EnablePprofTrace bool
	ProfilerPrefix   string
}

// Mount attaches the pprof handlers to r when profiling is enabled and
// reports whether it did.
func (c Config) Mount(r chi.Router) bool {
	if !c.EnablePprofTrace {
		return false
	}
	prefix := c.ProfilerPrefix
	if prefix == "" {
		prefix = DefaultProfilerPrefix
	}
	r.Mount(prefix, middleware.Profiler())
	return true
}
