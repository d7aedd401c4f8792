package ncc

import (
	"fmt"
	"math"
	"runtime"
	"sync"
)

// MultiOptions configures FFTMulti's worker pool and progress reporting.
type MultiOptions struct {
	// Parallelism caps the number of worker goroutines. Zero or negative
	// means runtime.GOMAXPROCS(0). Never more workers than channels are
	// started.
	Parallelism int

	// OnChannelStart, if set, is called once per channel immediately
	// before that channel's transform begins (phase A), and
	// OnChannelDone once it finishes. Both may be called concurrently
	// from multiple workers and must be safe for that.
	OnChannelStart func()
	OnChannelDone  func()
}

// FailedSample names one (channel, template) pair whose sanitized output
// exceeded the clip tolerance.
type FailedSample struct {
	Channel  int
	Template int
}

// MultiResult carries the outcome of an FFTMulti call beyond the status
// code: which samples, if any, tripped normalization failure.
type MultiResult struct {
	Status        Status
	FailedSamples []FailedSample
}

// FFTMulti runs FFT across c channels in parallel, one shared Plan and
// one scratch arena per worker, then applies channel gating, NaN/clip
// sanitization, per-channel lag padding, and cross-channel stacking.
//
// templates is one batch of nt*lt samples, shared by every channel; there
// is no separate template batch per channel. image is c*li samples,
// channel-major. out is c*nt*s samples (s = li-lt+1), channel-major then
// template-minor (out[ch*nt*s+t*s+k]): on
// success, out[0:nt*s] holds the stacked result and the remaining
// c-1 channel slots are zeroed, since their contribution has already
// been folded into slot 0.
//
// usedChans and padArray are both length c*nt, channel-major then
// template-minor, matching out's addressing: usedChans[ch*nt+t]
// gates whether channel ch's row for template t contributes at all;
// padArray[ch*nt+t] left-rotates that channel's row by that many samples
// before stacking, zero-filling the vacated tail, to align channels
// whose sensors are offset in time relative to one another.
//
// If any sanitized sample's magnitude exceeds the package's clip
// tolerance, stacking is suppressed entirely: out holds every channel's
// raw (sanitized, unpadded) row in its own slot, unstacked, for the
// caller to inspect; the returned Status is StatusNormalizationFailure,
// and MultiResult.FailedSamples names every offending (channel,
// template) pair.
func FFTMulti(templates []float32, nt, lt, c int, image []float32, li int, out []float64, lf int, usedChans []bool, padArray []int, opts MultiOptions) (MultiResult, error) {
	if status, err := validateFFTArgs(lt, nt, li, lf); err != nil {
		return MultiResult{Status: status}, err
	}

	if c <= 0 {
		return MultiResult{Status: StatusInvalidArgs}, fmt.Errorf("%w: channel count %d must be positive", ErrInvalidArgs, c)
	}

	s := li - lt + 1

	if len(templates) < nt*lt {
		return MultiResult{Status: StatusInvalidArgs}, fmt.Errorf("%w: templates has %d samples, need %d", ErrInvalidArgs, len(templates), nt*lt)
	}

	if len(image) < c*li {
		return MultiResult{Status: StatusInvalidArgs}, fmt.Errorf("%w: image has %d samples, need %d for %d channels", ErrInvalidArgs, len(image), c*li, c)
	}

	if len(out) < c*nt*s {
		return MultiResult{Status: StatusInvalidArgs}, fmt.Errorf("%w: out has %d entries, need %d", ErrInvalidArgs, len(out), c*nt*s)
	}

	if len(usedChans) < c*nt {
		return MultiResult{Status: StatusInvalidArgs}, fmt.Errorf("%w: usedChans has %d entries, need %d", ErrInvalidArgs, len(usedChans), c*nt)
	}

	if len(padArray) < c*nt {
		return MultiResult{Status: StatusInvalidArgs}, fmt.Errorf("%w: padArray has %d entries, need %d", ErrInvalidArgs, len(padArray), c*nt)
	}

	plan, err := NewPlan(lf)
	if err != nil {
		return MultiResult{Status: StatusAllocation}, err
	}

	workers := opts.Parallelism
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	if workers > c {
		workers = c
	}

	scratches := make([]*scratch, workers)
	for i := range scratches {
		scratches[i] = newScratch(lf, nt)
	}

	// channelRows[ch] is that channel's sanitized, unpadded ncc output,
	// nt rows of s samples each. Allocated once and reused by both
	// phases so padding mutates in place.
	channelRows := make([][][]float64, c)
	for ch := range channelRows {
		rows := make([][]float64, nt)
		for t := range rows {
			rows[t] = make([]float64, s)
		}

		channelRows[ch] = rows
	}

	var failMu sync.Mutex

	var failures []FailedSample

	// Phase A: transform and sanitize every channel. The failure set must
	// be complete before any padding happens, since padding is globally
	// suppressed if any channel failed, so this phase is a hard barrier
	// ahead of phase B rather than something each worker can decide on
	// its own mid-flight.
	err = forEachChannel(workers, c, scratches, func(sc *scratch, ch int) error {
		if opts.OnChannelStart != nil {
			opts.OnChannelStart()
		}

		chFailures, err := transformAndSanitizeChannel(plan, sc, templates, lt, nt, image, li, ch, usedChans, channelRows[ch])

		if opts.OnChannelDone != nil {
			opts.OnChannelDone()
		}

		if err != nil {
			return err
		}

		if len(chFailures) > 0 {
			failMu.Lock()
			failures = append(failures, chFailures...)
			failMu.Unlock()
		}

		return nil
	})
	if err != nil {
		return MultiResult{Status: StatusAllocation}, err
	}

	if len(failures) > 0 {
		for ch := 0; ch < c; ch++ {
			base := ch * nt * s
			for t := 0; t < nt; t++ {
				copy(out[base+t*s:base+(t+1)*s], channelRows[ch][t])
			}
		}

		return MultiResult{Status: StatusNormalizationFailure, FailedSamples: failures}, nil
	}

	// Phase B: pad every channel's rows in place.
	err = forEachChannel(workers, c, scratches, func(_ *scratch, ch int) error {
		padChannel(channelRows[ch], nt, padArray, ch)
		return nil
	})
	if err != nil {
		return MultiResult{Status: StatusAllocation}, err
	}

	// Deterministic ascending-channel-index reduction into channel 0,
	// then explicit zeroing of the now-consumed channels, so no sanitized
	// but unstacked value is ever mistaken for part of the combined
	// result.
	for ch := 1; ch < c; ch++ {
		for t := 0; t < nt; t++ {
			dst, src := channelRows[0][t], channelRows[ch][t]
			for k := range dst {
				dst[k] += src[k]
			}

			clear(src)
		}
	}

	for t := 0; t < nt; t++ {
		copy(out[t*s:(t+1)*s], channelRows[0][t])
	}

	clear(out[nt*s : c*nt*s])

	return MultiResult{Status: StatusOK}, nil
}

// forEachChannel fans channel indices [0,c) out across workers workers,
// each backed by its own scratch arena, and waits for all of them to
// finish. The first error from any worker is returned; workers already
// in flight are allowed to finish rather than being cancelled, since
// scratch arenas aren't safe to abandon mid-transform.
func forEachChannel(workers, c int, scratches []*scratch, fn func(sc *scratch, ch int) error) error {
	jobs := make(chan int, c)
	for ch := 0; ch < c; ch++ {
		jobs <- ch
	}
	close(jobs)

	errs := make(chan error, workers)

	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)

		go func(sc *scratch) {
			defer wg.Done()

			for ch := range jobs {
				if err := fn(sc, ch); err != nil {
					errs <- err
					return
				}
			}
		}(scratches[w])
	}

	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			return err
		}
	}

	return nil
}

// transformAndSanitizeChannel runs runFFT for one channel's slice of the
// image against the shared template batch, then gates and sanitizes
// every template row into dst. It returns the set of (channel, template)
// pairs whose sanitized magnitude exceeded the clip tolerance.
func transformAndSanitizeChannel(plan *Plan, sc *scratch, templates []float32, lt, nt int, image []float32, li, ch int, usedChans []bool, dst [][]float64) ([]FailedSample, error) {
	chImage := image[ch*li : (ch+1)*li]
	s := li - lt + 1

	raw := make([]float64, nt*s)

	if _, err := runFFT(plan, sc, templates, lt, nt, chImage, raw); err != nil {
		return nil, err
	}

	var failures []FailedSample

	for t := 0; t < nt; t++ {
		row := dst[t]

		if !usedChans[ch*nt+t] {
			clear(row)
			continue
		}

		copy(row, raw[t*s:(t+1)*s])

		if sanitizeRow(row) {
			failures = append(failures, FailedSample{Channel: ch, Template: t})
		}
	}

	return failures, nil
}

// sanitizeRow replaces NaN with 0, clamps magnitudes in (1.0, clipTolerance]
// to +/-1.0, and reports whether any sample's magnitude exceeded
// clipTolerance (in which case that sample is left unclamped, as a
// flagged, inspectable value rather than a silently lossy one).
func sanitizeRow(row []float64) bool {
	failed := false

	for i, v := range row {
		if math.IsNaN(v) {
			row[i] = 0
			continue
		}

		mag := math.Abs(v)

		switch {
		case mag > clipTolerance:
			failed = true
		case mag > 1.0:
			if v > 0 {
				row[i] = 1.0
			} else {
				row[i] = -1.0
			}
		}
	}

	return failed
}

// padChannel left-rotates each of a channel's nt rows by its configured
// pad amount, zero-filling the vacated tail, aligning a channel whose
// sensor lags or leads the reference in time.
func padChannel(rows [][]float64, nt int, padArray []int, ch int) {
	for t := 0; t < nt; t++ {
		n := padArray[ch*nt+t]
		if n == 0 {
			continue
		}

		rotateLeftZeroFill(rows[t], n)
	}
}

// rotateLeftZeroFill shifts row left by n samples (n may be negative,
// meaning shift right), zero-filling the vacated positions rather than
// wrapping, so padding never reintroduces samples from the other end of
// the window.
func rotateLeftZeroFill(row []float64, n int) {
	l := len(row)
	if l == 0 {
		return
	}

	if n > 0 {
		if n >= l {
			clear(row)
			return
		}

		copy(row, row[n:])
		clear(row[l-n:])

		return
	}

	n = -n
	if n >= l {
		clear(row)
		return
	}

	copy(row[n:], row[:l-n])
	clear(row[:n])
}
