package logging

import "testing"

func TestNewProgressSamplerDefaults(t *testing.T) {
	for _, size := range []float64{0, -1, 2} {
		s := NewProgressSampler(size)
		if s.bucketSize != 0.1 {
			t.Fatalf("NewProgressSampler(%v) bucketSize = %v, want 0.1", size, s.bucketSize)
		}
		if s.lastBucket != -1 {
			t.Fatalf("lastBucket = %d, want -1", s.lastBucket)
		}
	}
}

func TestProgressSamplerNil(t *testing.T) {
	var s *ProgressSampler
	if !s.ShouldLog(0.5, "separating") {
		t.Fatal("ShouldLog on nil sampler should always return true")
	}
	s.Reset()
}

func TestProgressSamplerBuckets(t *testing.T) {
	s := NewProgressSampler(0.25)

	if !s.ShouldLog(0, "separating") {
		t.Fatal("first update should log")
	}
	if s.ShouldLog(0.1, "separating") {
		t.Fatal("same bucket should not log")
	}
	if !s.ShouldLog(0.3, "separating") {
		t.Fatal("new bucket should log")
	}
	if s.ShouldLog(0.2, "separating") {
		t.Fatal("lower bucket should not log")
	}
	if !s.ShouldLog(1.5, "separating") {
		t.Fatal("completion should log")
	}
	if !s.ShouldLog(0, "writing stems") {
		t.Fatal("phase change should log")
	}
	if s.ShouldLog(-1, "writing stems") {
		t.Fatal("unknown progress in same phase should not log")
	}
}

func TestProgressSamplerReset(t *testing.T) {
	s := NewProgressSampler(0.5)
	s.ShouldLog(0.9, "transcribing")
	s.Reset()
	if s.lastPhase != "" || s.lastBucket != -1 {
		t.Fatalf("unexpected state after reset: %+v", s)
	}
	if !s.ShouldLog(0.1, "transcribing") {
		t.Fatal("first update after reset should log")
	}
}
