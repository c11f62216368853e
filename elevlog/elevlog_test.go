package elevlog

import (
	"bytes"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
)

func TestGetLoggerConfiguredShared(t *testing.T) {
	first := GetLoggerConfigured(zerolog.InfoLevel)
	if first == nil {
		t.Fatal("GetLoggerConfigured() = nil, expected a non-nil logger")
	}
	var wg sync.WaitGroup
	for g := 0; g < 2; g++ {
		wg.Add(1)
		go func(routineNum int) {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				if got := GetLoggerConfigured(zerolog.DebugLevel); got != first {
					t.Errorf("goroutine %d got a different logger", routineNum)
					return
				}
			}
		}(g)
	}
	wg.Wait()
}

func TestParseLevel(t *testing.T) {
	if ParseLevel("DEBUG") != zerolog.DebugLevel {
		t.Errorf("ParseLevel(DEBUG) = %v", ParseLevel("DEBUG"))
	}
	if ParseLevel("") != zerolog.InfoLevel || ParseLevel("loud") != zerolog.InfoLevel {
		t.Errorf("unknown levels should fall back to info")
	}
}

func TestEmitLogsAndFansOut(t *testing.T) {
	var buf bytes.Buffer
	s := NewStream(New(&buf, zerolog.DebugLevel), 8)

	ch, cancel := s.Subscribe(4)
	defer cancel()

	s.Emit(EventDropped, NoCar, "req-1", "no car accepted call")

	select {
	case ev := <-ch:
		if ev.Kind != EventDropped || ev.Request != "req-1" || ev.Car != NoCar {
			t.Errorf("got event %+v", ev)
		}
	default:
		t.Fatal("subscriber did not receive event")
	}

	line := buf.String()
	if !strings.Contains(line, `"level":"warn"`) || !strings.Contains(line, `"event":"dropped"`) {
		t.Errorf("log line = %s", line)
	}
	if strings.Contains(line, `"car"`) {
		t.Errorf("NoCar should not be logged as a car field: %s", line)
	}
}

func TestSlowSubscriberDoesNotBlock(t *testing.T) {
	s := NewStream(zerolog.Nop(), 4)
	ch, cancel := s.Subscribe(1)
	defer cancel()

	for i := 0; i < 10; i++ {
		s.Emit(EventMoved, 0, "", "step")
	}
	if len(ch) != 1 {
		t.Errorf("buffered events = %d, expected 1", len(ch))
	}
}

func TestCancelClosesChannel(t *testing.T) {
	s := NewStream(zerolog.Nop(), 4)
	ch, cancel := s.Subscribe(1)
	cancel()
	cancel()
	if _, ok := <-ch; ok {
		t.Error("channel still open after cancel")
	}
	s.Emit(EventStarted, NoCar, "", "after cancel")
}

func TestRecentWrapsHistory(t *testing.T) {
	s := NewStream(zerolog.Nop(), 3)
	if got := s.Recent(5); len(got) != 0 {
		t.Fatalf("Recent on empty stream = %v", got)
	}
	for _, text := range []string{"a", "b", "c", "d"} {
		s.Emit(EventMoved, 1, "", text)
	}
	got := s.Recent(5)
	if len(got) != 3 {
		t.Fatalf("Recent(5) returned %d events, expected 3", len(got))
	}
	for i, want := range []string{"b", "c", "d"} {
		if got[i].Text != want {
			t.Errorf("Recent[%d] = %q, expected %q", i, got[i].Text, want)
		}
	}
	if last := s.Recent(1); len(last) != 1 || last[0].Text != "d" {
		t.Errorf("Recent(1) = %v", last)
	}
	for _, n := range []int{0, -1} {
		if got := s.Recent(n); got != nil {
			t.Errorf("Recent(%d) = %v, expected nil", n, got)
		}
	}
}
