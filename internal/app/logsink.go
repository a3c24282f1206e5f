package app

import (
	"strings"
	"sync"
	"time"

	"fyne.io/fyne/v2/data/binding"
)

const logDebounceInterval = 150 * time.Millisecond

// logSink collects log output for the log pane. Updates of the bound string
// are debounced so bursts of lines cause a single refresh.
type logSink struct {
	mu       sync.Mutex
	lines    []string
	limit    int
	bind     binding.String
	updateCh chan struct{}
}

func newLogSink(limit int) *logSink {
	return &logSink{limit: limit, bind: binding.NewString()}
}

// start begins pushing lines to the binding. Lines written before start are
// shown on the first flush.
func (s *logSink) start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateCh != nil {
		return
	}
	s.updateCh = make(chan struct{}, 1)
	go s.updateLoop()
	s.updateCh <- struct{}{}
}

// Write implements io.Writer so the sink can back a *log.Logger.
func (s *logSink) Write(p []byte) (int, error) {
	text := strings.ReplaceAll(string(p), "\r\n", "\n")
	for _, part := range strings.Split(text, "\n") {
		if part != "" {
			s.append(part)
		}
	}
	return len(p), nil
}

func (s *logSink) append(line string) {
	s.mu.Lock()
	s.lines = append(s.lines, line)
	if len(s.lines) > s.limit {
		s.lines = s.lines[len(s.lines)-s.limit:]
	}
	ch := s.updateCh
	s.mu.Unlock()
	if ch == nil {
		return
	}
	select {
	case ch <- struct{}{}:
	default:
	}
}

func (s *logSink) updateLoop() {
	s.mu.Lock()
	ch := s.updateCh
	s.mu.Unlock()
	timer := time.NewTimer(logDebounceInterval)
	if !timer.Stop() {
		<-timer.C
	}
	for {
		select {
		case <-ch:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(logDebounceInterval)
		case <-timer.C:
			s.flush()
		}
	}
}

func (s *logSink) flush() {
	s.mu.Lock()
	text := strings.Join(s.lines, "\n")
	s.mu.Unlock()
	_ = s.bind.Set(text)
}

func (s *logSink) text() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return strings.Join(s.lines, "\n")
}
