package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/nearsift/nearsift/app"
	"github.com/nearsift/nearsift/domain"
	"github.com/nearsift/nearsift/internal/config"
	"github.com/nearsift/nearsift/internal/constants"
	"github.com/nearsift/nearsift/internal/metrics"
)

// DedupCommand handles the near-duplicate document detection CLI command.
type DedupCommand struct {
	single bool
	multi  bool
	file   bool

	names       []string
	inputs      []string
	minhashDirs []string

	outputFile string

	simThreshold float64
	numPerm      int

	mode string

	num     int
	fp      float64
	saveDir string

	clear          bool
	redisPort      int
	skipMinhashing bool
	dryRun         bool

	metricsAddr string
	configFile  string
}

// NewDedupCommand creates a new dedup command with spec-default flag values.
func NewDedupCommand() *DedupCommand {
	return &DedupCommand{
		simThreshold: constants.DefaultSimThreshold,
		numPerm:      constants.DefaultNumPerm,
		mode:         string(domain.BackendBloom),
		fp:           constants.DefaultFalsePositive,
		redisPort:    constants.DefaultRedisPort,
	}
}

// CreateCobraCommand creates the Cobra command for near-duplicate detection.
func (c *DedupCommand) CreateCobraCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dedup",
		Short: "Detect near-duplicate documents across one or more corpora",
		Long: `Detect near-duplicate documents using MinHash signatures and
locality-sensitive hashing (LSH).

Exactly one of --single, --multi, or --file selects how the --input/--name/
--minhash-dir flags are interpreted:

  --single  one corpus, --input is a directory of .jsonl files
  --multi   several corpora, repeat --name/--input/--minhash-dir per corpus
  --file    one corpus, --input names a single .jsonl file

Examples:
  # Deduplicate one corpus against a Bloom-backed index
  nearsift dedup --single --name news --input ./news --minhash-dir ./mh/news \
    --output-file dups.csv --mode bloom --num 1000000 --save-dir ./bloom

  # Deduplicate two corpora against a Redis-backed index
  nearsift dedup --multi \
    --name a --input ./a --minhash-dir ./mh/a \
    --name b --input ./b --minhash-dir ./mh/b \
    --output-file dups.csv --mode lsh`,
		RunE: c.runDedup,
	}

	cmd.Flags().BoolVar(&c.single, "single", false, "Deduplicate one corpus against the index")
	cmd.Flags().BoolVar(&c.multi, "multi", false, "Deduplicate several named corpora sequentially against one index")
	cmd.Flags().BoolVar(&c.file, "file", false, "Deduplicate a single input file against the index")

	cmd.Flags().StringSliceVar(&c.names, "name", nil, "Corpus label(s) for output rows")
	cmd.Flags().StringSliceVar(&c.inputs, "input", nil, "Directory of .jsonl files, or one file, per corpus")
	cmd.Flags().StringSliceVar(&c.minhashDirs, "minhash-dir", nil, "Directory where signature files live, per corpus")

	cmd.Flags().StringVar(&c.outputFile, "output-file", "", "Duplicate CSV output path")

	cmd.Flags().Float64Var(&c.simThreshold, "sim-threshold", c.simThreshold, "Jaccard similarity cutoff in (0,1]")
	cmd.Flags().IntVar(&c.numPerm, "num-perm", c.numPerm, "MinHash signature length")

	cmd.Flags().StringVar(&c.mode, "mode", c.mode, "Index backend: lsh or bloom")

	cmd.Flags().IntVar(&c.num, "num", 0, "Expected total documents (bloom only, required)")
	cmd.Flags().Float64Var(&c.fp, "fp", c.fp, "Target false-positive rate (bloom only)")
	cmd.Flags().StringVar(&c.saveDir, "save-dir", "", "Bloom backing directory (bloom only, required)")

	cmd.Flags().BoolVar(&c.clear, "clear", false, "Purge bloom backing and CSV output before running")
	cmd.Flags().IntVar(&c.redisPort, "redis-port", c.redisPort, "Redis port (lsh only)")
	cmd.Flags().BoolVar(&c.skipMinhashing, "skip-minhashing", false, "Reuse existing signature files instead of recomputing")
	cmd.Flags().BoolVar(&c.dryRun, "dry-run", false, "Query the index without inserting new documents")

	cmd.Flags().StringVar(&c.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics at this address (e.g. :9090); disabled if empty")
	cmd.Flags().StringVarP(&c.configFile, "config", "c", "", "Path to configuration file")

	return cmd
}

// runDedup executes the dedup command.
func (c *DedupCommand) runDedup(cmd *cobra.Command, args []string) error {
	modeFlags := 0
	for _, set := range []bool{c.single, c.multi, c.file} {
		if set {
			modeFlags++
		}
	}
	if modeFlags != 1 {
		return fmt.Errorf("exactly one of --single, --multi, --file must be set")
	}
	if len(c.names) != len(c.inputs) || len(c.names) != len(c.minhashDirs) {
		return fmt.Errorf("--name, --input, and --minhash-dir must be given the same number of times")
	}

	targetPath := ""
	if len(c.inputs) > 0 {
		targetPath = c.inputs[0]
	}
	cfg, err := config.Load(targetPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	corpora := make([]domain.CorpusInput, len(c.names))
	for i := range c.names {
		corpora[i] = domain.CorpusInput{
			Name:       c.names[i],
			InputPath:  c.inputs[i],
			MinhashDir: c.minhashDirs[i],
		}
	}

	// Config values fill in gaps the operator left unset; explicit flags
	// always win.
	explicitFlags := GetExplicitFlags(cmd)

	redisAddr := cfg.Redis.Addr
	if redisAddr == "" {
		redisAddr = "localhost"
	}
	redisPort := c.redisPort
	if !explicitFlags["redis-port"] && cfg.Redis.Port != 0 {
		redisPort = cfg.Redis.Port
	}

	saveDir := c.saveDir
	if !explicitFlags["save-dir"] && cfg.Bloom.SaveDir != "" {
		saveDir = cfg.Bloom.SaveDir
	}

	req := domain.DedupRequest{
		Corpora:        corpora,
		SimThreshold:   c.simThreshold,
		NumPerm:        c.numPerm,
		Mode:           domain.BackendMode(c.mode),
		ExpectedDocs:   c.num,
		FalsePositive:  c.fp,
		SaveDir:        saveDir,
		RedisAddr:      redisAddr,
		RedisPort:      redisPort,
		OutputFile:     c.outputFile,
		SkipMinhashing: c.skipMinhashing,
		Clear:          c.clear,
		DryRun:         c.dryRun,
	}

	useCase := app.NewDedupUseCase(cfg.Performance.Workers)
	if c.metricsAddr != "" {
		collector := metrics.NewCollector()
		useCase.WithMetrics(collector)

		server := &http.Server{Addr: c.metricsAddr, Handler: collector.Handler()}
		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("Warning: metrics server stopped: %v", err)
			}
		}()
	}

	ctx := context.Background()

	switch {
	case c.single:
		return useCase.RunSingle(ctx, req)
	case c.multi:
		return useCase.RunMulti(ctx, req)
	case c.file:
		return useCase.RunFile(ctx, req)
	default:
		return fmt.Errorf("unreachable: no mode selected")
	}
}

// addDedupCommand adds the dedup command to the root command.
func addDedupCommand(rootCmd *cobra.Command) {
	dedupCmd := NewDedupCommand()
	rootCmd.AddCommand(dedupCmd.CreateCobraCommand())
}
