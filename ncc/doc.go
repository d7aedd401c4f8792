// Package ncc implements the normalized cross-correlation engine used to
// scan a continuous seismic "image" signal against short "template"
// signals, producing the Pearson correlation coefficient at every valid
// lag.
//
// The package is layered leaf-first, matching the three components of the
// reference design:
//
//   - Time is the direct O(template_len*steps) time-domain correlator,
//     used as the arithmetic reference and for very short templates.
//   - FFT batches a single image against many templates sharing one
//     length via a real FFT convolution fused with a streaming
//     mean/variance normalization pass.
//   - FFTMulti runs FFT across channels in parallel over pre-allocated
//     per-worker scratch, then applies channel gating, NaN sanitization,
//     clipping, per-channel lag padding, and cross-channel stacking.
//
// The package treats waveform I/O, filtering, resampling, association
// bookkeeping, and peak detection as someone else's problem: it consumes
// raw float32 arrays and produces float64 correlograms.
package ncc
