package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"marketplace-watcher/models"
	"marketplace-watcher/utils"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var errNoImage = errors.New("listing has no image url")

type ProbeResult struct {
	Key    string
	Record models.ListingRecord
	Err    error
}

func (r ProbeResult) Alive() bool { return r.Err == nil }

type probeJob struct {
	key    string
	record models.ListingRecord
}

// Prober checks listing liveness by fetching each record's image URL through
// a fixed pool of workers.
type Prober struct {
	client  *http.Client
	workers int
	timeout time.Duration
	log     zerolog.Logger

	mu      sync.Mutex
	jobs    chan probeJob
	results chan ProbeResult
	wg      sync.WaitGroup
}

// NewProber returns a prober. workers <= 0 means one worker per record.
func NewProber(client *http.Client, workers int, timeout time.Duration, log zerolog.Logger) *Prober {
	if client == nil {
		client = &http.Client{}
	}
	return &Prober{
		client:  client,
		workers: workers,
		timeout: timeout,
		log:     log.With().Str("component", "Prober").Logger(),
	}
}

// ProbeAll probes every record and returns once all probes have finished.
func (p *Prober) ProbeAll(ctx context.Context, records map[string]models.ListingRecord) []ProbeResult {
	if len(records) == 0 {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.jobs = make(chan probeJob, len(records))
	p.results = make(chan ProbeResult, len(records))

	workerCount := p.workers
	if workerCount <= 0 || len(records) < workerCount {
		workerCount = len(records)
	}

	p.wg.Add(workerCount)
	for i := 1; i <= workerCount; i++ {
		go p.worker(ctx)
	}

	for key, rec := range records {
		p.jobs <- probeJob{key: key, record: rec}
	}
	close(p.jobs)

	go func() {
		p.wg.Wait()
		close(p.results)
	}()

	return p.collect()
}

func (p *Prober) worker(ctx context.Context) {
	defer p.wg.Done()

	for job := range p.jobs {
		p.results <- ProbeResult{
			Key:    job.key,
			Record: job.record,
			Err:    p.probe(ctx, job.record.ImageURL),
		}
	}
}

func (p *Prober) collect() []ProbeResult {
	var all []ProbeResult
	failed := 0

	for result := range p.results {
		if result.Err != nil {
			p.log.Debug().Err(result.Err).Str("url", result.Record.URL).Msg("Probe failed")
			failed++
		}
		all = append(all, result)
	}

	p.log.Info().Int("probed", len(all)).Int("failed", failed).Msg("Probes finished")
	return all
}

func (p *Prober) probe(ctx context.Context, imageURL string) error {
	if imageURL == "" {
		return errNoImage
	}

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return fmt.Errorf("bad image url: %w", err)
	}
	req.Header.Set("User-Agent", utils.RandomUserAgent())

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("image returned status %d", resp.StatusCode)
	}
	return nil
}
