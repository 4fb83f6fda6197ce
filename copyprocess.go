package xrootdfs

import (
	"golang.org/x/sync/errgroup"
)

const defaultCopyParallelism = 4

// CopyProcess batches third-party copy jobs and runs them with bounded
// parallelism. Paths must already be resolved against the base path.
type CopyProcess struct {
	client      Client
	parallelism int
	jobs        []copyJob
}

type copyJob struct {
	src   string
	dst   string
	force bool
}

// CopyProcessOption configures a CopyProcess.
type CopyProcessOption func(*CopyProcess)

// WithParallelism bounds the number of concurrent copy jobs.
func WithParallelism(n int) CopyProcessOption {
	return func(p *CopyProcess) { p.parallelism = n }
}

func NewCopyProcess(client Client, opts ...CopyProcessOption) *CopyProcess {
	p := &CopyProcess{
		client:      client,
		parallelism: defaultCopyParallelism,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Add queues a copy from src to dst. With force set an existing
// destination is overwritten.
func (p *CopyProcess) Add(src, dst string, force bool) {
	p.jobs = append(p.jobs, copyJob{src: src, dst: dst, force: force})
}

// Len returns the number of queued jobs.
func (p *CopyProcess) Len() int { return len(p.jobs) }

// Run executes the queued jobs and blocks until all have finished. The
// first failure cancels nothing on the server side, but its error is
// returned once the remaining jobs complete. The queue is consumed.
func (p *CopyProcess) Run() error {
	var g errgroup.Group
	g.SetLimit(p.parallelism)

	for _, job := range p.jobs {
		g.Go(func() error {
			if st := p.client.Copy(job.src, job.dst, job.force); !st.IsOK() {
				return statusError(job.dst, st)
			}
			return nil
		})
	}
	p.jobs = nil
	return g.Wait()
}
