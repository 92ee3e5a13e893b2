package main

import (
	"os"

	"github.com/nearsift/nearsift/internal/version"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "nearsift",
	Short: "Near-duplicate document detection over large text corpora",
	Long: `nearsift finds near-duplicate documents across large text corpora
using MinHash signatures and locality-sensitive hashing (LSH).

Features:
  • Streaming MinHash signature computation
  • Redis-backed LSH index for full duplicate-pair reporting
  • Bloom-filter-per-band index for memory-bounded one-sided dedup
  • Single, multi-corpus, and single-file dedup workflows`,
	Version: version.Short(),
}

func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output")

	rootCmd.AddCommand(NewVersionCmd())
	addHashCommand(rootCmd)
	addDedupCommand(rootCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
