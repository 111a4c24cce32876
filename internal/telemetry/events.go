// Package telemetry turns the diagnostic text printed by ffmpeg filters
// into typed events and sample series.
package telemetry

import (
	"bufio"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/bdougie/videoprobe/internal/models"
)

// ffmpeg prints event timestamps with six significant digits, so the
// rounding error of end-start-duration grows with the timestamps themselves.
// An accepted event satisfies
// |duration - (end - start)| <= durationSlack*max(|start|, |end|) + durationTolerance.
const (
	durationTolerance = 1e-3
	durationSlack     = 2e-5
)

// EventKind describes one interval detector. Marker doubles as the filter
// name; Audio selects an audio filter graph.
type EventKind struct {
	Name   string
	Marker string
	Audio  bool
	tokens *regexp.Regexp
}

func newEventKind(name, marker string, audio bool) EventKind {
	return EventKind{
		Name:   name,
		Marker: marker,
		Audio:  audio,
		tokens: regexp.MustCompile(name + `_(start|end|duration)\s*:\s*(-?\d+(?:\.\d+)?(?:[eE][-+]?\d+)?)`),
	}
}

var (
	Black   = newEventKind("black", "blackdetect", false)
	Freeze  = newEventKind("freeze", "freezedetect", false)
	Silence = newEventKind("silence", "silencedetect", true)
)

type field int

const (
	fieldStart field = 1 << iota
	fieldEnd
	fieldDuration

	allFields = fieldStart | fieldEnd | fieldDuration
)

type parseState int

const (
	stateScanning parseState = iota
	stateInCandidate
)

// eventParser groups start/end/duration tokens into events. A candidate is
// emitted once all three fields are seen, in any order. A repeated field
// closes the current candidate as broken and opens a new one.
type eventParser struct {
	state     parseState
	seen      field
	candidate models.TemporalEvent
	events    []models.TemporalEvent
	broken    int
}

func (p *eventParser) token(f field, v float64) {
	if p.state == stateInCandidate && p.seen&f != 0 {
		p.broken++
		p.reset()
	}
	p.state = stateInCandidate
	p.seen |= f
	switch f {
	case fieldStart:
		p.candidate.Start = v
	case fieldEnd:
		p.candidate.End = v
	case fieldDuration:
		p.candidate.Duration = v
	}
	if p.seen == allFields {
		p.emit()
	}
}

func (p *eventParser) emit() {
	ev := p.candidate
	if ev.End < ev.Start || !durationConsistent(ev) {
		p.broken++
	} else {
		p.events = append(p.events, ev)
	}
	p.reset()
}

func durationConsistent(ev models.TemporalEvent) bool {
	scale := math.Max(math.Abs(ev.Start), math.Abs(ev.End))
	return math.Abs(ev.Duration-(ev.End-ev.Start)) <= durationSlack*scale+durationTolerance
}

func (p *eventParser) reset() {
	p.state = stateScanning
	p.seen = 0
	p.candidate = models.TemporalEvent{}
}

// ParseEvents extracts the intervals reported by an interval detector.
//
// The outcome is clean when at least one complete event was found, degraded
// when the detector's marker appears but no complete event could be built
// (Raw then holds the marker lines), and empty when the marker is absent.
func ParseEvents(raw string, kind EventKind) models.EventResult {
	var (
		p           eventParser
		markerLines []string
	)

	sc := newScanner(raw)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if strings.Contains(line, kind.Marker) {
			markerLines = append(markerLines, line)
		}
		for _, m := range kind.tokens.FindAllStringSubmatch(line, -1) {
			v, err := strconv.ParseFloat(m[2], 64)
			if err != nil {
				continue
			}
			p.token(fieldOf(m[1]), v)
		}
	}

	switch {
	case len(p.events) > 0:
		return models.EventResult{Outcome: models.OutcomeClean, Events: p.events}
	case len(markerLines) > 0:
		return models.EventResult{Outcome: models.OutcomeDegraded, Events: []models.TemporalEvent{}, Raw: markerLines}
	default:
		return models.EventResult{Outcome: models.OutcomeEmpty, Events: []models.TemporalEvent{}}
	}
}

func fieldOf(name string) field {
	switch name {
	case "start":
		return fieldStart
	case "end":
		return fieldEnd
	default:
		return fieldDuration
	}
}

func newScanner(raw string) *bufio.Scanner {
	sc := bufio.NewScanner(strings.NewReader(raw))
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	return sc
}

func (k EventKind) String() string {
	return fmt.Sprintf("%s(%s)", k.Name, k.Marker)
}
