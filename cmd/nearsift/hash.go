package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nearsift/nearsift/app"
	"github.com/nearsift/nearsift/domain"
	"github.com/nearsift/nearsift/internal/config"
	"github.com/nearsift/nearsift/internal/constants"
)

// HashCommand computes and persists MinHash signature files for one corpus,
// without running the Dedup Coordinator — the precompute-only split from
// the original tooling's precompute_minhash.py.
type HashCommand struct {
	name       string
	input      string
	minhashDir string
	numPerm    int
}

// NewHashCommand creates a new hash command with spec-default flag values.
func NewHashCommand() *HashCommand {
	return &HashCommand{
		numPerm: constants.DefaultNumPerm,
	}
}

// CreateCobraCommand creates the Cobra command for signature precomputation.
func (c *HashCommand) CreateCobraCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hash",
		Short: "Precompute MinHash signature files for a corpus",
		Long: `Compute MinHash signatures for every document in a corpus and
persist them to the signature store, without deduplicating.

Signature files produced this way can later be reused by
"nearsift dedup --skip-minhashing" to avoid recomputation.

Example:
  nearsift hash --name news --input ./news --minhash-dir ./mh/news`,
		RunE: c.runHash,
	}

	cmd.Flags().StringVar(&c.name, "name", "", "Corpus label")
	cmd.Flags().StringVar(&c.input, "input", "", "Directory of .jsonl files, or one file")
	cmd.Flags().StringVar(&c.minhashDir, "minhash-dir", "", "Directory to write signature files to")
	cmd.Flags().IntVar(&c.numPerm, "num-perm", c.numPerm, "MinHash signature length")

	return cmd
}

func (c *HashCommand) runHash(cmd *cobra.Command, args []string) error {
	if c.input == "" {
		return fmt.Errorf("--input is required")
	}
	if c.minhashDir == "" {
		return fmt.Errorf("--minhash-dir is required")
	}
	if c.numPerm < 1 {
		return domain.NewConfigInvalidError("num-perm must be >= 1")
	}

	cfg, err := config.Load(c.input)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	useCase := app.NewDedupUseCase(cfg.Performance.Workers)
	return useCase.HashCorpus(domain.CorpusInput{
		Name:       c.name,
		InputPath:  c.input,
		MinhashDir: c.minhashDir,
	}, c.numPerm)
}

// addHashCommand adds the hash command to the root command.
func addHashCommand(rootCmd *cobra.Command) {
	hashCmd := NewHashCommand()
	rootCmd.AddCommand(hashCmd.CreateCobraCommand())
}
