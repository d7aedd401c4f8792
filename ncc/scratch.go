package ncc

// scratch is one worker's FFT arena for a single call: the zero-padded
// time-reversed template rows, the zero-padded image, the batched
// spectra, and the inverse-transform output. One scratch set is created
// per worker in FFTMulti and reused, cleared, across every channel that
// worker is assigned. Arenas are cleared at the top of each channel's
// work and never rely on carrying state from the previous one.
//
// specT doubles as the spectral product buffer: the image spectrum is
// multiplied into each template row's spectrum in place rather than into
// a separate prod array, the same buffer-reuse trick
// ConvolutionStage.PerformConvolution uses when a stage has a single IR
// partition.
type scratch struct {
	templateExt [][]float64    // [nt][lf], zero-padded time-reversed templates
	imageExt    []float64      // [lf], zero-padded image
	ccc         [][]float64    // [nt][lf], inverse-transform output
	specT       [][]complex128 // [nt][lf/2+1], template spectrum then spectral product
	specI       []complex128   // [lf/2+1], image spectrum
}

func newScratch(lf, nt int) *scratch {
	half := lf/2 + 1

	s := &scratch{
		templateExt: make([][]float64, nt),
		ccc:         make([][]float64, nt),
		specT:       make([][]complex128, nt),
		imageExt:    make([]float64, lf),
		specI:       make([]complex128, half),
	}

	for t := range nt {
		s.templateExt[t] = make([]float64, lf)
		s.ccc[t] = make([]float64, lf)
		s.specT[t] = make([]complex128, half)
	}

	return s
}

// clear zero-fills every buffer group. Called at the top of each channel's
// work so no worker ever reads a stale value left by a previous channel.
func (s *scratch) clear() {
	for t := range s.templateExt {
		clear(s.templateExt[t])
		clear(s.ccc[t])
		clear(s.specT[t])
	}

	clear(s.imageExt)
	clear(s.specI)
}
