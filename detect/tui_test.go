package detect

import "testing"

func TestTUIStateProgress(t *testing.T) {
	t.Parallel()

	s := NewTUIState(4, 3)

	s.ChannelStarted()
	s.ChannelStarted()
	s.ChannelFinished()

	total, done, workers, _ := s.snapshot()
	if total != 4 {
		t.Errorf("total = %d, want 4", total)
	}

	if done != 1 {
		t.Errorf("done = %d, want 1", done)
	}

	if workers != 1 {
		t.Errorf("workers = %d, want 1", workers)
	}
}

func TestTUIStateRecordKeepsTopNByPeakValue(t *testing.T) {
	t.Parallel()

	s := NewTUIState(1, 2)

	s.Record(Event{Template: "a", PeakValue: 0.3})
	s.Record(Event{Template: "b", PeakValue: 0.9})
	s.Record(Event{Template: "c", PeakValue: 0.6})

	_, _, _, top := s.snapshot()

	if len(top) != 2 {
		t.Fatalf("len(top) = %d, want 2", len(top))
	}

	if top[0].Template != "b" || top[1].Template != "c" {
		t.Errorf("top = %+v, want [b, c] in descending PeakValue order", top)
	}
}
