package bloom

import (
	"fmt"
	"sync"
	"testing"
)

func TestSizer(t *testing.T) {
	s := NewSizer()
	tests := []struct {
		n     uint64
		p     float64
		wantM uint64
		wantK uint8
	}{
		{1000, 0.01, 9586, 7},
		{0, 0.01, 10, 7},
		{1000, 0, 9586, 7},   // invalid p falls back to 1%
		{1000, 1.5, 9586, 7}, // invalid p falls back to 1%
		{100, 1e-30, 14378, 24},
	}
	for _, tt := range tests {
		m, k := s.Size(tt.n, tt.p)
		if m != tt.wantM || k != tt.wantK {
			t.Errorf("Size(%d, %g) = (%d, %d); want (%d, %d)", tt.n, tt.p, m, k, tt.wantM, tt.wantK)
		}
	}
}

func TestFactory_AddAndTest(t *testing.T) {
	bf := NewFactory().New(128, 0.01)
	key := []byte("example.com")
	if bf.MightContain(key) {
		t.Fatal("unexpected positive before add")
	}
	bf.Add(key)
	if !bf.MightContain(key) {
		t.Fatal("expected maybe after add")
	}
}

func TestFactory_FalsePositiveRate(t *testing.T) {
	const n = 1000
	bf := NewFactory().New(n, 0.01)
	for i := 0; i < n; i++ {
		bf.Add([]byte(fmt.Sprintf("present-%d.test", i)))
	}
	fp := 0
	const trials = 20000
	for i := 0; i < trials; i++ {
		if bf.MightContain([]byte(fmt.Sprintf("absent-%d.test", i))) {
			fp++
		}
	}
	if rate := float64(fp) / trials; rate > 0.03 {
		t.Fatalf("false positive rate %.4f too high", rate)
	}
}

func TestFilter_ConcurrentReadsDuringWrites(t *testing.T) {
	f := NewFactory().New(256, 0.01)
	var wg sync.WaitGroup
	done := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 10_000; i++ {
			f.Add([]byte(fmt.Sprintf("k%d", i%3)))
		}
		close(done)
	}()
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
					_ = f.MightContain([]byte("probe"))
				}
			}
		}()
	}
	wg.Wait()
}
