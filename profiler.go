package fractal

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// profileSmoothing weights the newest sample in a scope's running average.
const profileSmoothing = 0.1

type scopeTiming struct {
	last  time.Duration
	avg   time.Duration
	start time.Time
	seen  bool
}

// Profiler keeps the last and a smoothed duration per named scope, plus
// integer counters. Scopes print in first-seen order, counters by name.
type Profiler struct {
	scopes map[string]*scopeTiming
	order  []string
	counts map[string]int
}

func NewProfiler() *Profiler {
	return &Profiler{
		scopes: make(map[string]*scopeTiming),
		counts: make(map[string]int),
	}
}

func (p *Profiler) scope(name string) *scopeTiming {
	s, ok := p.scopes[name]
	if !ok {
		s = &scopeTiming{}
		p.scopes[name] = s
		p.order = append(p.order, name)
	}
	return s
}

func (p *Profiler) BeginScope(name string) {
	p.scope(name).start = time.Now()
}

func (p *Profiler) EndScope(name string) {
	s, ok := p.scopes[name]
	if !ok || s.start.IsZero() {
		return
	}
	p.record(s, time.Since(s.start))
	s.start = time.Time{}
}

// SetScope records a duration measured elsewhere, e.g. by a level job.
func (p *Profiler) SetScope(name string, d time.Duration) {
	p.record(p.scope(name), d)
}

func (p *Profiler) record(s *scopeTiming, d time.Duration) {
	s.last = d
	if !s.seen {
		s.avg = d
		s.seen = true
		return
	}
	s.avg += time.Duration(profileSmoothing * float64(d-s.avg))
}

// Last and Average return zero for unknown scopes.
func (p *Profiler) Last(name string) time.Duration {
	if s, ok := p.scopes[name]; ok {
		return s.last
	}
	return 0
}

func (p *Profiler) Average(name string) time.Duration {
	if s, ok := p.scopes[name]; ok {
		return s.avg
	}
	return 0
}

func (p *Profiler) SetCount(name string, count int) {
	p.counts[name] = count
}

func (p *Profiler) Count(name string) int {
	return p.counts[name]
}

// Reset forgets every timing and counter.
func (p *Profiler) Reset() {
	clear(p.scopes)
	clear(p.counts)
	p.order = p.order[:0]
}

func (p *Profiler) StatsString() string {
	var sb strings.Builder

	sb.WriteString("Timings (CPU, last / avg):\n")
	for _, name := range p.order {
		s := p.scopes[name]
		fmt.Fprintf(&sb, "  %-16s: %7.3f / %7.3f ms\n", name, ms(s.last), ms(s.avg))
	}

	sb.WriteString("Counters:\n")
	keys := make([]string, 0, len(p.counts))
	for k := range p.counts {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		fmt.Fprintf(&sb, "  %-16s: %d\n", k, p.counts[k])
	}
	return sb.String()
}

func ms(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}
