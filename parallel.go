package cryptic

import (
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/absfs/absfs"
)

// ParallelConfig controls batch file processing
type ParallelConfig struct {
	// Enabled enables parallel processing
	Enabled bool

	// MaxWorkers is the maximum number of worker goroutines
	// If 0, defaults to runtime.NumCPU()
	MaxWorkers int

	// MinFilesForParallel is the minimum batch size to use workers
	// Below this threshold, files are processed sequentially
	MinFilesForParallel int
}

// Validate checks if the parallel configuration is valid
func (p *ParallelConfig) Validate() error {
	if !p.Enabled {
		return nil // Nothing to validate if disabled
	}

	if p.MaxWorkers < 0 {
		return errors.New("parallel max workers cannot be negative")
	}
	if p.MaxWorkers > 1024 {
		return errors.New("parallel max workers must not exceed 1024")
	}
	if p.MinFilesForParallel < 1 {
		return errors.New("parallel min files threshold must be at least 1")
	}

	return nil
}

// DefaultParallelConfig returns the default parallel processing configuration
func DefaultParallelConfig() ParallelConfig {
	return ParallelConfig{
		Enabled:             true,
		MaxWorkers:          runtime.NumCPU(),
		MinFilesForParallel: 2,
	}
}

// BatchResult is the outcome for one input of a batch
type BatchResult struct {
	Source string
	Result *FileResult
	Err    error
}

// BatchErrors joins the errors of a batch, or returns nil if every file
// succeeded
func BatchErrors(results []BatchResult) error {
	var errs []error
	for _, r := range results {
		if r.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", r.Source, r.Err))
		}
	}
	return errors.Join(errs...)
}

// EncryptFiles encrypts each source into dstDir. Results are returned in
// input order; a failure affects only its own entry.
func (f *FileCrypter) EncryptFiles(fs absfs.FileSystem, srcs []string, dstDir, password string) []BatchResult {
	results := make([]BatchResult, len(srcs))

	// Two images with the same base name would race for one container name
	claimed := make(map[string]string, len(srcs))
	var pending []int
	for i, src := range srcs {
		results[i].Source = src
		name := ContainerName(src)
		if prev, ok := claimed[name]; ok {
			results[i].Err = NewValidationError("path", src,
				fmt.Sprintf("output %s already produced by %s", name, prev))
			continue
		}
		claimed[name] = src
		pending = append(pending, i)
	}

	f.runBatch(results, pending, func(src string) (*FileResult, error) {
		return f.EncryptFile(fs, src, dstDir, password)
	})
	return results
}

// DecryptFiles decrypts each source container into dstDir. Results are
// returned in input order. Recovered names are only known after
// decryption, so when two containers hold the same filename the first to
// finish is written and the other fails.
func (f *FileCrypter) DecryptFiles(fs absfs.FileSystem, srcs []string, dstDir, password string) []BatchResult {
	results := make([]BatchResult, len(srcs))
	pending := make([]int, len(srcs))
	for i, src := range srcs {
		results[i].Source = src
		pending[i] = i
	}

	outputs := newOutputSet(len(srcs))
	f.runBatch(results, pending, func(src string) (*FileResult, error) {
		return f.decryptFile(fs, src, dstDir, password, outputs)
	})
	return results
}

// outputSet records the destinations claimed during a batch. A nil set
// claims nothing.
type outputSet struct {
	mu    sync.Mutex
	names map[string]string
}

func newOutputSet(n int) *outputSet {
	return &outputSet{names: make(map[string]string, n)}
}

// claim reserves dst for src, failing if another source already holds it
func (s *outputSet) claim(dst, src string) error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.names[dst]; ok {
		return NewValidationError("output", dst, fmt.Sprintf("already produced by %s", prev))
	}
	s.names[dst] = src
	return nil
}

// runBatch runs op for each pending index, on a worker pool when the batch
// is large enough
func (f *FileCrypter) runBatch(results []BatchResult, pending []int, op func(string) (*FileResult, error)) {
	if len(pending) == 0 {
		return
	}

	run := func(idx int) {
		defer func() {
			if r := recover(); r != nil {
				// Convert panic to error
				results[idx].Err = fmt.Errorf("panic in file worker: %v", r)
			}
		}()
		results[idx].Result, results[idx].Err = op(results[idx].Source)
	}

	if !f.parallel.Enabled || len(pending) < f.parallel.MinFilesForParallel {
		// Sequential processing
		for _, idx := range pending {
			run(idx)
		}
		return
	}

	// Determine number of workers
	numWorkers := f.parallel.MaxWorkers
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}

	// Limit workers to number of files
	if numWorkers > len(pending) {
		numWorkers = len(pending)
	}

	var wg sync.WaitGroup
	jobChan := make(chan int, len(pending))

	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobChan {
				run(idx)
			}
		}()
	}

	for _, idx := range pending {
		jobChan <- idx
	}
	close(jobChan)

	wg.Wait()

	f.log.WithField("files", len(pending)).Debugf("batch finished with %d workers", numWorkers)
}
