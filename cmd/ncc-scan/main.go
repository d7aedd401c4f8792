// Command ncc-scan is a demo CLI that loads a template library and a
// continuous AIFF recording, runs [ncc.FFTMulti] across every channel of
// the recording against every template, and reports detections over a
// detection server (WebSocket + JSON), or over a console dashboard instead
// when -tui is set.
//
// Usage:
//
//	ncc-scan [options] <templates.tlib> <image.aif>
//
// Options:
//
//	-workers   Worker goroutines (default: runtime.GOMAXPROCS(0))
//	-port      Detection server port (default: 8787)
//	-tui       Show the live console dashboard instead of serving HTTP
//	-resample  Resample the image to the template library's rate if they differ
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"math"
	"os"
	"runtime"
	"time"

	"github.com/quakecore/ncc-engine/detect"
	"github.com/quakecore/ncc-engine/ncc"
	"github.com/quakecore/ncc-engine/waveform/aiff"
	"github.com/quakecore/ncc-engine/waveform/resample"
	"github.com/quakecore/ncc-engine/templatelib"
)

// Config collects ncc-scan's CLI flags, mirroring the flag block shape
// ir-convert uses: package-level flag vars parsed once in main,
// carried into run as a plain struct.
type Config struct {
	Workers    int
	Port       int
	TUI        bool
	Resample   bool
	TopN       int
}

var (
	workers  = flag.Int("workers", runtime.GOMAXPROCS(0), "worker goroutines for the scan")
	port     = flag.Int("port", 8787, "detection server port")
	tui      = flag.Bool("tui", false, "show the live console dashboard instead of serving HTTP")
	doResamp = flag.Bool("resample", true, "resample the image to the template library's rate if they differ")
	topN     = flag.Int("top", 10, "number of top detections to keep in the dashboard")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] <templates.tlib> <image.aif>\n\n", os.Args[0])
		flag.PrintDefaults()
	}

	flag.Parse()

	if flag.NArg() != 2 {
		flag.Usage()
		os.Exit(1)
	}

	cfg := Config{
		Workers:  *workers,
		Port:     *port,
		TUI:      *tui,
		Resample: *doResamp,
		TopN:     *topN,
	}

	if err := run(cfg, flag.Arg(0), flag.Arg(1)); err != nil {
		slog.Error("ncc-scan failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg Config, templatesPath, imagePath string) error {
	lib, err := loadLibrary(templatesPath)
	if err != nil {
		return fmt.Errorf("loading template library: %w", err)
	}

	if len(lib.Templates) == 0 {
		return fmt.Errorf("template library %s has no templates", templatesPath)
	}

	wave, err := loadImage(imagePath)
	if err != nil {
		return fmt.Errorf("loading image: %w", err)
	}

	slog.Info("loaded inputs",
		"templates", len(lib.Templates), "channels", wave.NumChannels,
		"imageSampleRate", wave.SampleRate, "imageSamples", wave.NumSamples)

	templateRate := lib.Templates[0].Metadata.SampleRate
	if cfg.Resample && wave.SampleRate != templateRate && templateRate > 0 {
		slog.Info("resampling image", "from", wave.SampleRate, "to", templateRate)

		wave.Trace = resample.New().Trace(wave.Trace, wave.SampleRate, templateRate)
		wave.NumSamples = len(wave.Trace[0])
		wave.SampleRate = templateRate
	}

	templates, lt, err := flattenTemplates(lib.Templates)
	if err != nil {
		return err
	}

	var tuiState *detect.TUIState
	if cfg.TUI {
		tuiState = detect.NewTUIState(wave.NumChannels, cfg.TopN)
	}

	result, corr, err := scan(cfg, templates, lt, len(lib.Templates), wave, tuiState)
	if err != nil {
		return err
	}

	s := wave.NumSamples - lt + 1

	return report(cfg, lib.Templates, wave, s, corr, result, tuiState)
}

func loadLibrary(path string) (*templatelib.Library, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return templatelib.ReadLibrary(f)
}

func loadImage(path string) (*aiff.Waveform, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return aiff.Parse(f)
}

// flattenTemplates packs every template into the row-major []float32
// FFTMulti expects, requiring them to share a common length the way a
// single call's template batch must.
func flattenTemplates(templates []*templatelib.Template) ([]float32, int, error) {
	lt := len(templates[0].Samples)

	flat := make([]float32, 0, len(templates)*lt)

	for _, t := range templates {
		if len(t.Samples) != lt {
			return nil, 0, fmt.Errorf("template %q has length %d, want %d to match the batch", t.Metadata.Name, len(t.Samples), lt)
		}

		flat = append(flat, ncc.Normalize(t.Samples)...)
	}

	return flat, lt, nil
}

func scan(cfg Config, templates []float32, lt, nt int, wave *aiff.Waveform, tuiState *detect.TUIState) (ncc.MultiResult, []float64, error) {
	li := wave.NumSamples
	c := wave.NumChannels
	s := li - lt + 1

	if s < 1 {
		return ncc.MultiResult{}, nil, fmt.Errorf("image has %d samples, shorter than template length %d", li, lt)
	}

	lf := nextPow2(lt + li - 1)

	usedChans := make([]bool, c*nt)
	for i := range usedChans {
		usedChans[i] = true
	}

	padArray := make([]int, c*nt)

	out := make([]float64, c*nt*s)

	opts := ncc.MultiOptions{Parallelism: cfg.Workers}
	if tuiState != nil {
		opts.OnChannelStart = tuiState.ChannelStarted
		opts.OnChannelDone = tuiState.ChannelFinished
	}

	result, err := ncc.FFTMulti(templates, nt, lt, c, wave.Flatten(), li, out, lf, usedChans, padArray, opts)
	if err != nil {
		return result, nil, err
	}

	return result, out, nil
}

// report publishes one event per template from corr's channel-0 slot (the
// stacked result). On StatusNormalizationFailure, corr holds every
// channel's raw unstacked row instead (see ncc.FFTMulti), which this demo
// only logs the size of rather than publishing per channel.
func report(cfg Config, templates []*templatelib.Template, wave *aiff.Waveform, s int, corr []float64, result ncc.MultiResult, tuiState *detect.TUIState) error {
	if result.Status == ncc.StatusNormalizationFailure {
		slog.Warn("normalization failure flagged, output left unstacked per channel",
			"failedSamples", len(result.FailedSamples), "channels", wave.NumChannels)
	}

	nt := len(templates)

	srv := detect.NewServer(cfg.Port)
	occurredAt := time.Now().UTC().Format(time.RFC3339)

	for t, tpl := range templates {
		row := corr[t*s : (t+1)*s]

		peakLag, peakValue := peakOf(row)

		ev := detect.Event{
			Template:   tpl.Metadata.Name,
			Station:    tpl.Metadata.Station,
			Channel:    tpl.Metadata.Channel,
			PeakLag:    peakLag,
			PeakValue:  peakValue,
			ScanLength: s,
			FlaggedBad: result.Status == ncc.StatusNormalizationFailure,
			OccurredAt: occurredAt,
		}

		srv.Publish(ev)

		if tuiState != nil {
			tuiState.Record(ev)
		}

		slog.Info("scan complete", "template", ev.Template, "peakLag", ev.PeakLag, "peakValue", ev.PeakValue)
	}

	if cfg.TUI {
		return detect.RunTUI(tuiState)
	}

	return srv.Start()
}

func peakOf(row []float64) (lag int, value float64) {
	best := math.Inf(-1)
	bestLag := 0

	for k, v := range row {
		if v > best {
			best = v
			bestLag = k
		}
	}

	return bestLag, best
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}

	return p
}
