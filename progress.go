package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"dskimg/imaging"

	"github.com/gosuri/uilive"
	"github.com/rs/zerolog"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"
)

// progressRenderer is an imaging.Progress that also knows how to tear down
// whatever it left on screen.
type progressRenderer interface {
	imaging.Progress
	Finish()
}

// newProgress draws bars on a terminal and falls back to log lines otherwise.
func newProgress(out *os.File, logger zerolog.Logger) progressRenderer {
	if term.IsTerminal(int(out.Fd())) {
		return &terminalProgress{out: out}
	}
	return &logProgress{log: logger}
}

// terminalProgress shows a byte bar for stages with a known total and a live
// counter for decompression, whose size is only known at the end.
type terminalProgress struct {
	out io.Writer

	bar *progressbar.ProgressBar

	live       *uilive.Writer
	lastLive   time.Time
	liveStart  time.Time
	liveLatest uint64
}

func (p *terminalProgress) Start(stage imaging.Stage, total uint64) {
	p.Finish()

	if stage == imaging.StageDecompress {
		p.live = uilive.New()
		p.live.Out = p.out
		p.live.Start()
		p.liveStart = time.Now()
		p.liveLatest = 0
		return
	}

	p.bar = progressbar.NewOptions64(int64(total),
		progressbar.OptionSetWriter(p.out),
		progressbar.OptionSetDescription(fmt.Sprintf("%-8s", stage)),
		progressbar.OptionShowBytes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(30),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(p.out)
		}),
	)
}

func (p *terminalProgress) Update(stage imaging.Stage, done uint64) {
	if stage == imaging.StageDecompress {
		if p.live == nil {
			return
		}
		p.liveLatest = done
		// uilive redraws on its own ticker; one line per tick is enough.
		if time.Since(p.lastLive) < 200*time.Millisecond {
			return
		}
		p.lastLive = time.Now()
		p.writeLive()
		return
	}
	if p.bar != nil {
		_ = p.bar.Set64(int64(done))
	}
}

func (p *terminalProgress) writeLive() {
	elapsed := time.Since(p.liveStart)
	_, _ = fmt.Fprintf(p.live, "Decompressing: %s (%s)\n",
		formatBytes(p.liveLatest), formatSpeed(float64(p.liveLatest)/elapsed.Seconds()))
}

func (p *terminalProgress) Finish() {
	if p.live != nil {
		if p.liveLatest > 0 {
			p.writeLive()
			_ = p.live.Flush()
		}
		p.live.Stop()
		p.live = nil
	}
	if p.bar != nil {
		if !p.bar.IsFinished() {
			_ = p.bar.Exit()
		}
		p.bar = nil
	}
}

// logProgress reports stage boundaries through the logger when stderr is not
// a terminal (pipes, CI, journald).
type logProgress struct {
	log   zerolog.Logger
	stage imaging.Stage
	total uint64
	start time.Time
	done  uint64
}

func (p *logProgress) Start(stage imaging.Stage, total uint64) {
	p.Finish()
	p.stage, p.total, p.done, p.start = stage, total, 0, time.Now()
	p.log.Info().Str("stage", stage.String()).Uint64("total", total).Msg("stage started")
}

func (p *logProgress) Update(_ imaging.Stage, done uint64) {
	p.done = done
}

func (p *logProgress) Finish() {
	if p.start.IsZero() {
		return
	}
	elapsed := time.Since(p.start)
	p.log.Info().
		Str("stage", p.stage.String()).
		Uint64("bytes", p.done).
		Str("speed", formatSpeed(float64(p.done)/elapsed.Seconds())).
		Msg("stage finished")
	p.start = time.Time{}
}
