// Package constants centralizes default values for the dedup pipeline so
// CLI flags, config loading, and tests agree on one source of truth.
package constants

const (
	// DefaultNumPerm is the default MinHash signature length.
	DefaultNumPerm = 128

	// DefaultSimThreshold is the default Jaccard similarity cutoff.
	DefaultSimThreshold = 0.8

	// DefaultFalsePositive is the default LSHBloom target false-positive rate.
	DefaultFalsePositive = 0.001

	// DefaultRedisPort is the default port for the LSH-Redis backend.
	DefaultRedisPort = 6379

	// DefaultWorkerCount is the default per-file hashing worker pool size.
	DefaultWorkerCount = 32

	// DefaultBackendRetries bounds BackendTransient retry attempts before
	// the error is escalated to fatal.
	DefaultBackendRetries = 3

	// DefaultBackendTimeoutSeconds is the default network timeout for
	// backend I/O (Redis dial/read/write).
	DefaultBackendTimeoutSeconds = 10

	// DefaultOutputDir is the default value of the [output] directory
	// config setting. Dedup runs still require an explicit output-file path.
	DefaultOutputDir = ".nearsift/reports"

	// SignatureFileSuffix is the conventional signature-file extension.
	SignatureFileSuffix = ".pkl"

	// BloomFilePrefix and BloomFileSuffix name one backing file per band:
	// <save_dir>/band-<i>.bf
	BloomFilePrefix = "band-"
	BloomFileSuffix = ".bf"
)
