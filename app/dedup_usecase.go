// Package app wires the core components (Hasher, Signature Store, Banding,
// Index Backend, Dedup Coordinator) into the workflows the CLI exposes.
package app

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nearsift/nearsift/domain"
	"github.com/nearsift/nearsift/internal/banding"
	"github.com/nearsift/nearsift/internal/constants"
	"github.com/nearsift/nearsift/internal/corpus"
	"github.com/nearsift/nearsift/internal/dedup"
	"github.com/nearsift/nearsift/internal/indexbloom"
	"github.com/nearsift/nearsift/internal/indexredis"
	"github.com/nearsift/nearsift/internal/metrics"
	"github.com/nearsift/nearsift/internal/minhash"
	"github.com/nearsift/nearsift/internal/report"
	"github.com/nearsift/nearsift/internal/scheduler"
	"github.com/nearsift/nearsift/internal/sigstore"
)

// DedupUseCase orchestrates one dedup run: hashing each corpus's documents,
// persisting their signatures, and streaming them through the Dedup
// Coordinator against a shared Index Backend.
type DedupUseCase struct {
	reader  *corpus.Reader
	workers int

	// Metrics is optional; nil disables instrumentation. Set via
	// WithMetrics before RunSingle/RunMulti/RunFile.
	Metrics *metrics.Collector
}

// NewDedupUseCase creates a DedupUseCase with the given hashing worker-pool
// size (per file); a value below 1 falls back to the default.
func NewDedupUseCase(workers int) *DedupUseCase {
	if workers < 1 {
		workers = constants.DefaultWorkerCount
	}
	return &DedupUseCase{
		reader:  corpus.NewReader(),
		workers: workers,
	}
}

// WithMetrics attaches a Collector the Dedup Coordinator instruments as it
// runs, returning the same DedupUseCase for chaining.
func (uc *DedupUseCase) WithMetrics(collector *metrics.Collector) *DedupUseCase {
	uc.Metrics = collector
	return uc
}

// RunSingle deduplicates one corpus's documents against an index: the
// `single` CLI mode.
func (uc *DedupUseCase) RunSingle(ctx context.Context, req domain.DedupRequest) error {
	if len(req.Corpora) != 1 {
		return domain.NewConfigInvalidError("single mode requires exactly one corpus")
	}
	return uc.execute(ctx, req)
}

// RunMulti deduplicates several named corpora, sequentially, against one
// shared index: the `multi` CLI mode.
func (uc *DedupUseCase) RunMulti(ctx context.Context, req domain.DedupRequest) error {
	if len(req.Corpora) < 2 {
		return domain.NewConfigInvalidError("multi mode requires at least two corpora")
	}
	return uc.execute(ctx, req)
}

// RunFile deduplicates a single input file against an index: the `file`
// CLI mode, distinguished from RunSingle only by requiring its one corpus's
// input path to name a file rather than a directory.
func (uc *DedupUseCase) RunFile(ctx context.Context, req domain.DedupRequest) error {
	if len(req.Corpora) != 1 {
		return domain.NewConfigInvalidError("file mode requires exactly one corpus")
	}
	info, err := os.Stat(req.Corpora[0].InputPath)
	if err != nil {
		return domain.NewFileNotFoundError(req.Corpora[0].InputPath, err)
	}
	if info.IsDir() {
		return domain.NewConfigInvalidError("file mode requires a single file input, got a directory")
	}
	return uc.execute(ctx, req)
}

// HashCorpus computes and persists signature files for one corpus without
// running the Dedup Coordinator, backing the `nearsift hash` subcommand
// (the precompute-only split from the original tooling's
// precompute_minhash.py).
func (uc *DedupUseCase) HashCorpus(input domain.CorpusInput, numPerm int) error {
	hasher := minhash.New(numPerm)

	files, err := uc.reader.CollectFiles([]string{input.InputPath}, nil, nil)
	if err != nil {
		return fmt.Errorf("failed to collect corpus %q input files: %w", input.Name, err)
	}

	progress := corpus.NewProgress()
	progress.Start(input.Name, len(files))
	defer progress.Finish()

	for _, file := range files {
		sigPath := sigPathFor(input.MinhashDir, file)
		if _, err := uc.hashFile(hasher, file, sigPath, false); err != nil {
			return fmt.Errorf("failed to hash %s: %w", file, err)
		}
		progress.Add(1)
	}
	return nil
}

// execute is the shared pipeline RunSingle/RunMulti/RunFile converge on:
// validate, open the report sink and index backend, then process each
// corpus's documents through the Dedup Coordinator in the order given.
func (uc *DedupUseCase) execute(ctx context.Context, req domain.DedupRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}

	if req.Clear {
		if err := report.Clear(req.OutputFile); err != nil {
			return fmt.Errorf("failed to clear output file: %w", err)
		}
		if req.Mode == domain.BackendBloom {
			if err := clearBloomDir(req.SaveDir); err != nil {
				return fmt.Errorf("failed to clear bloom backing directory: %w", err)
			}
		}
	}

	params := banding.OptimalParams(req.NumPerm, req.SimThreshold)
	hasher := minhash.New(req.NumPerm)

	columns := columnsFor(req.Mode, len(req.Corpora) > 1)
	reportWriter, err := report.Open(req.OutputFile, columns)
	if err != nil {
		return fmt.Errorf("failed to open output file: %w", err)
	}
	defer reportWriter.Close()

	var lshCoordinator *dedup.LSHCoordinator
	var bloomCoordinator *dedup.BloomCoordinator

	switch req.Mode {
	case domain.BackendLSH:
		lshIdx := indexredis.New(basenameFor(req.OutputFile), params, indexredis.Options{
			Addr:           req.RedisAddr,
			Port:           req.RedisPort,
			DialTimeout:    constants.DefaultBackendTimeoutSeconds * time.Second,
			ReadTimeout:    constants.DefaultBackendTimeoutSeconds * time.Second,
			BackendRetries: constants.DefaultBackendRetries,
		})
		defer lshIdx.Close()
		lshCoordinator = &dedup.LSHCoordinator{Backend: lshIdx, Sink: reportWriter, DryRun: req.DryRun, Metrics: uc.Metrics}
	case domain.BackendBloom:
		bloomIdx, err := indexbloom.Open(req.SaveDir, params, req.ExpectedDocs, req.FalsePositive)
		if err != nil {
			return fmt.Errorf("failed to open bloom index: %w", err)
		}
		defer bloomIdx.Close()
		bloomCoordinator = &dedup.BloomCoordinator{Backend: bloomIdx, Sink: reportWriter, DryRun: req.DryRun, Metrics: uc.Metrics}
	}

	progress := corpus.NewProgress()

	for _, c := range req.Corpora {
		files, err := uc.reader.CollectFiles([]string{c.InputPath}, nil, nil)
		if err != nil {
			return fmt.Errorf("failed to collect corpus %q input files: %w", c.Name, err)
		}

		var records []sigstore.Record
		for _, file := range files {
			sigPath := sigPathFor(c.MinhashDir, file)
			fileRecords, err := uc.hashFile(hasher, file, sigPath, req.SkipMinhashing)
			if err != nil {
				log.Printf("Warning: failed to hash %s: %v", file, err)
				continue
			}
			records = append(records, fileRecords...)
		}

		progress.Start(c.Name, len(records))
		for _, rec := range records {
			switch req.Mode {
			case domain.BackendLSH:
				if err := lshCoordinator.ProcessOne(ctx, c.Name, rec.Key, rec.Signature); err != nil {
					log.Printf("Warning: dedup failed for %s: %v", rec.Key, err)
				}
			case domain.BackendBloom:
				if err := bloomCoordinator.ProcessOne(c.Name, rec.Key, rec.Signature); err != nil {
					log.Printf("Warning: dedup failed for %s: %v", rec.Key, err)
				}
			}
			progress.Add(1)
		}
		progress.Finish()
	}

	return nil
}

// hashFile produces the (key, signature) records for one source file,
// reusing an existing signature file when skipMinhashing is set and one is
// already present, per the Signature Store skip policy.
func (uc *DedupUseCase) hashFile(hasher *minhash.Hasher, sourceFile, sigPath string, skipMinhashing bool) ([]sigstore.Record, error) {
	if skipMinhashing && sigstore.Exists(sigPath) {
		return sigstore.ReadAll(sigPath)
	}

	type document struct {
		key  string
		text string
	}

	var docs []document
	err := uc.reader.ReadLines(sourceFile, func(lineNo int, text string) {
		key := domain.Document{SourceFile: sourceFile, LineNo: lineNo, Text: text}.Key()
		docs = append(docs, document{key: key, text: text})
	}, func(lineNo int, err error) {
		log.Printf("Warning: malformed line %d in %s: %v", lineNo, sourceFile, err)
	})
	if err != nil {
		return nil, err
	}

	sched := scheduler.NewWithConcurrency(uc.workers)
	signatures, err := scheduler.Map(sched, docs, func(d document) (*minhash.Signature, error) {
		return hasher.ComputeSignature(d.text), nil
	})
	sched.Shutdown()
	if err != nil {
		return nil, err
	}

	writer, err := sigstore.Create(sigPath)
	if err != nil {
		return nil, err
	}
	defer writer.Close()

	records := make([]sigstore.Record, 0, len(docs))
	for i, d := range docs {
		sig := signatures[i]
		if sig == nil {
			// Empty token set: skip document, no signature, no record.
			continue
		}
		if err := writer.Write(d.key, sig); err != nil {
			return nil, err
		}
		records = append(records, sigstore.Record{Key: d.key, Signature: sig})
	}
	return records, nil
}

func columnsFor(mode domain.BackendMode, multiCorpus bool) report.Columns {
	if mode == domain.BackendBloom {
		return report.ColumnsBloom
	}
	if multiCorpus {
		return report.ColumnsLSHMulti
	}
	return report.ColumnsLSHSingle
}

func sigPathFor(minhashDir, sourceFile string) string {
	base := filepath.Base(sourceFile)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(minhashDir, stem+constants.SignatureFileSuffix)
}

func basenameFor(outputFile string) string {
	base := filepath.Base(outputFile)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func clearBloomDir(saveDir string) error {
	entries, err := os.ReadDir(saveDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, constants.BloomFilePrefix) && strings.HasSuffix(name, constants.BloomFileSuffix) {
			if err := os.Remove(filepath.Join(saveDir, name)); err != nil {
				return err
			}
		}
	}
	return nil
}
