package imaging

// Stage identifies the part of an operation a progress event belongs to.
type Stage int

const (
	StageRead Stage = iota
	StageDecompress
	StageWrite
	StageVerify
)

func (s Stage) String() string {
	switch s {
	case StageRead:
		return "Read"
	case StageDecompress:
		return "Decompress"
	case StageWrite:
		return "Write"
	case StageVerify:
		return "Verify"
	default:
		return "Unknown"
	}
}

// Progress receives lifecycle events from the pipelines. Calls are made
// synchronously on the I/O goroutine, so implementations must return quickly.
//
// Start is called once per stage; total is 0 for StageDecompress because the
// decoded length is unknown until the stream ends. Update receives the
// cumulative number of bytes processed in the stage.
type Progress interface {
	Start(stage Stage, total uint64)
	Update(stage Stage, done uint64)
}

// ProgressFuncs adapts per-stage callbacks to Progress. Nil funcs are skipped.
type ProgressFuncs struct {
	OnReadStart          func(total uint64)
	OnReadProgress       func(done uint64)
	OnDecompressStart    func()
	OnDecompressProgress func(done uint64)
	OnWriteStart         func(total uint64)
	OnWriteProgress      func(done uint64)
	OnVerifyStart        func(total uint64)
	OnVerifyProgress     func(done uint64)
}

func (p ProgressFuncs) Start(stage Stage, total uint64) {
	switch stage {
	case StageRead:
		if p.OnReadStart != nil {
			p.OnReadStart(total)
		}
	case StageDecompress:
		if p.OnDecompressStart != nil {
			p.OnDecompressStart()
		}
	case StageWrite:
		if p.OnWriteStart != nil {
			p.OnWriteStart(total)
		}
	case StageVerify:
		if p.OnVerifyStart != nil {
			p.OnVerifyStart(total)
		}
	}
}

func (p ProgressFuncs) Update(stage Stage, done uint64) {
	switch stage {
	case StageRead:
		if p.OnReadProgress != nil {
			p.OnReadProgress(done)
		}
	case StageDecompress:
		if p.OnDecompressProgress != nil {
			p.OnDecompressProgress(done)
		}
	case StageWrite:
		if p.OnWriteProgress != nil {
			p.OnWriteProgress(done)
		}
	case StageVerify:
		if p.OnVerifyProgress != nil {
			p.OnVerifyProgress(done)
		}
	}
}

// NopProgress discards all events.
type NopProgress struct{}

func (NopProgress) Start(Stage, uint64)  {}
func (NopProgress) Update(Stage, uint64) {}

func orNop(p Progress) Progress {
	if p == nil {
		return NopProgress{}
	}
	return p
}
