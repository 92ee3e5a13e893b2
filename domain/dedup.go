package domain

// BackendMode selects which Index Backend a dedup run targets.
type BackendMode string

const (
	// BackendLSH selects the Redis-backed banded inverted index.
	BackendLSH BackendMode = "lsh"
	// BackendBloom selects the Bloom-filter-per-band index.
	BackendBloom BackendMode = "bloom"
)

// Document is one JSON record read from a corpus source file.
type Document struct {
	SourceFile string
	LineNo     int
	Text       string
}

// Key returns the document's corpus-scoped identity, `<file>-<lineNo>`.
func (d Document) Key() string {
	return d.SourceFile + "-" + itoa(d.LineNo)
}

// itoa formats n in base 10 without importing strconv into this package;
// kept trivial on purpose.
func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// DuplicateRecord is an edge asserting similarity, emitted to the output
// sink. DuplicateKey is empty for LSHBloom results, where only the
// observer side is known.
type DuplicateRecord struct {
	Corpus       string
	Key          string
	DuplicateKey string
}

// DedupRequest parameterizes one dedup run: one or more named corpora, each
// resolved to an input path and a minhash-signature directory, run against
// one Index Backend configuration.
type DedupRequest struct {
	Corpora []CorpusInput

	SimThreshold float64
	NumPerm      int

	Mode BackendMode

	// Bloom-only.
	ExpectedDocs int
	FalsePositive float64
	SaveDir       string

	// LSH-only. RedisAddr may be a bare host (combined with RedisPort) or a
	// full host:port address (RedisPort ignored).
	RedisAddr string
	RedisPort int

	OutputFile      string
	SkipMinhashing  bool
	Clear           bool
	DryRun          bool
}

// CorpusInput names one corpus's input location and where its signature
// files live or should be written.
type CorpusInput struct {
	Name       string
	InputPath  string
	MinhashDir string
}

// Validate checks ConfigInvalid conditions that must abort before any I/O,
// per the error-handling policy.
func (r DedupRequest) Validate() error {
	if len(r.Corpora) == 0 {
		return NewConfigInvalidError("at least one corpus input is required")
	}
	if r.SimThreshold <= 0 || r.SimThreshold > 1 {
		return NewConfigInvalidError("sim-threshold must be in (0,1]")
	}
	if r.NumPerm < 1 {
		return NewConfigInvalidError("num-perm must be >= 1")
	}
	switch r.Mode {
	case BackendLSH:
		// redis-port/addr carries its own default; nothing further required.
	case BackendBloom:
		if r.ExpectedDocs < 1 {
			return NewConfigInvalidError("num (expected docs) is required and must be >= 1 for bloom mode")
		}
		if r.FalsePositive <= 0 || r.FalsePositive >= 1 {
			return NewConfigInvalidError("fp must be in (0,1) for bloom mode")
		}
		if r.SaveDir == "" {
			return NewConfigInvalidError("save-dir is required for bloom mode")
		}
	default:
		return NewConfigInvalidError("mode must be one of lsh, bloom")
	}
	if r.OutputFile == "" {
		return NewConfigInvalidError("output-file is required")
	}
	return nil
}
