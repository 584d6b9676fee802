// Package availability keeps episode reachability current. A periodic
// sweep probes episodes in uncertain states, and a watch pass rechecks
// parked jobs whose source had disappeared, re-queuing them once the
// URL answers again.
package availability

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/mujarchiv/rozhlasd/internal/catalog"
	"github.com/mujarchiv/rozhlasd/internal/discovery"
	"github.com/mujarchiv/rozhlasd/internal/models"
	"github.com/mujarchiv/rozhlasd/internal/polite"
)

// Config tunes the prober.
type Config struct {
	BatchSize int // episodes per sweep. Default: 50
}

// Prober walks episode URLs and advances the availability state
// machine. State only moves when a probe actually ran: every verdict
// leaves a log row behind.
type Prober struct {
	repo   catalog.Repository
	client *polite.Client
	batch  int
}

// NewProber creates a prober, applying defaults for zero values.
func NewProber(repo catalog.Repository, client *polite.Client, cfg Config) *Prober {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	return &Prober{repo: repo, client: client, batch: cfg.BatchSize}
}

// Verdict is the answer one probe got.
type Verdict struct {
	Status     models.AvailabilityStatus `json:"status"`
	HTTPStatus int                       `json:"http_status,omitempty"`
	EpisodeID  uint                      `json:"episode_id,omitempty"`
}

// Result summarizes one availability pass.
type Result struct {
	Probed      int `json:"probed"`
	Available   int `json:"available"`
	Unavailable int `json:"unavailable"`
	Gone        int `json:"gone"`
	Watched     int `json:"watched"`
	Requeued    int `json:"requeued"`
}

func (r *Result) tally(status models.AvailabilityStatus) {
	switch status {
	case models.AvailabilityAvailable:
		r.Available++
	case models.AvailabilityGone:
		r.Gone++
	default:
		r.Unavailable++
	}
}

// Run executes one availability pass: the uncertainty sweep, then the
// watch recheck.
func (p *Prober) Run(ctx context.Context) (*Result, error) {
	result := &Result{}
	if err := p.sweep(ctx, result); err != nil {
		return result, err
	}
	if err := p.checkWatched(ctx, result); err != nil {
		return result, err
	}
	log.Printf("[INFO] availability: probed=%d available=%d unavailable=%d gone=%d watched=%d requeued=%d",
		result.Probed, result.Available, result.Unavailable, result.Gone, result.Watched, result.Requeued)
	return result, nil
}

// sweep probes episodes in unknown or unavailable state, least recently
// checked first. A failure on one episode is logged and the rest of the
// batch still runs.
func (p *Prober) sweep(ctx context.Context, result *Result) error {
	episodes, err := p.repo.ListEpisodesForProbe(ctx, p.batch)
	if err != nil {
		return fmt.Errorf("listing sweep batch: %w", err)
	}

	for i := range episodes {
		if err := ctx.Err(); err != nil {
			return err
		}
		verdict, err := p.ProbeEpisode(ctx, &episodes[i])
		if err != nil {
			log.Printf("[ERROR] availability: %v", err)
			continue
		}
		result.Probed++
		result.tally(verdict.Status)
	}
	return nil
}

// checkWatched probes every episode that has parked watch jobs and
// flips those jobs back to pending when the URL answers again. One
// probe per episode, however many jobs watch it.
func (p *Prober) checkWatched(ctx context.Context, result *Result) error {
	jobs, err := p.repo.ListJobsByStatus(ctx, models.JobStatusWatch, 0)
	if err != nil {
		return fmt.Errorf("listing watch jobs: %w", err)
	}
	if len(jobs) == 0 {
		return nil
	}

	byEpisode := make(map[uint][]*models.DownloadJob, len(jobs))
	order := make([]uint, 0, len(jobs))
	for _, job := range jobs {
		if _, seen := byEpisode[job.EpisodeID]; !seen {
			order = append(order, job.EpisodeID)
		}
		byEpisode[job.EpisodeID] = append(byEpisode[job.EpisodeID], job)
	}

	for _, episodeID := range order {
		if err := ctx.Err(); err != nil {
			return err
		}

		episode, err := p.repo.GetEpisode(ctx, episodeID)
		if err != nil {
			log.Printf("[WARN] availability: watch check: %v", err)
			continue
		}

		verdict, err := p.ProbeEpisode(ctx, episode)
		if err != nil {
			log.Printf("[ERROR] availability: %v", err)
			continue
		}
		result.Watched++

		if verdict.Status != models.AvailabilityAvailable {
			continue
		}
		for _, job := range byEpisode[episodeID] {
			if err := p.repo.RequeueWatchJob(ctx, job.ID, "re-queued after probe"); err != nil {
				log.Printf("[WARN] availability: re-queue job %d: %v", job.ID, err)
				continue
			}
			result.Requeued++
			log.Printf("[INFO] availability: episode %d answers again, job %d re-queued", episodeID, job.ID)
		}
	}
	return nil
}

// ProbeEpisode probes one episode's current URL and records the
// verdict: a log row is appended and last_checked_at stamped on every
// probe, last_seen_at on success. The passed episode's status field is
// updated in place.
func (p *Prober) ProbeEpisode(ctx context.Context, episode *models.Episode) (Verdict, error) {
	verdict := p.probe(ctx, episode.URL)
	verdict.Status = nextStatus(episode.AvailabilityStatus, verdict.Status)
	verdict.EpisodeID = episode.ID

	if err := p.repo.RecordProbe(ctx, episode.ID, verdict.Status, verdict.HTTPStatus, time.Now().UTC()); err != nil {
		return verdict, fmt.Errorf("recording probe of episode %d: %w", episode.ID, err)
	}
	episode.AvailabilityStatus = verdict.Status
	return verdict, nil
}

// ProbeURL answers an on-demand probe request. When the URL belongs to
// a known episode, that episode's current URL is probed and the verdict
// recorded against it; otherwise the URL is probed as given and nothing
// is written.
func (p *Prober) ProbeURL(ctx context.Context, rawURL string) (Verdict, error) {
	episode, err := p.repo.FindEpisodeByAnyURL(ctx, discovery.MergeURL(rawURL))
	if err != nil && !catalog.IsNotFound(err) {
		return Verdict{}, fmt.Errorf("resolving %s: %w", rawURL, err)
	}
	if episode != nil {
		return p.ProbeEpisode(ctx, episode)
	}
	return p.probe(ctx, rawURL), nil
}

// probe checks one URL. HEAD first with redirects followed; hosts that
// reject HEAD (405, 501) get a GET whose body is closed unread.
func (p *Prober) probe(ctx context.Context, rawURL string) Verdict {
	resp, err := p.client.Head(ctx, rawURL)
	if err != nil {
		return Verdict{Status: models.AvailabilityUnavailable}
	}
	resp.Body.Close()

	code := resp.StatusCode
	if code == http.StatusMethodNotAllowed || code == http.StatusNotImplemented {
		getResp, err := p.client.Get(ctx, rawURL)
		if err != nil {
			return Verdict{Status: models.AvailabilityUnavailable}
		}
		getResp.Body.Close()
		code = getResp.StatusCode
	}

	return Verdict{Status: classify(code), HTTPStatus: code}
}

// classify maps a final HTTP status to a verdict. Redirects were
// already followed, so anything under 400 means the URL answers.
func classify(code int) models.AvailabilityStatus {
	switch {
	case code >= 200 && code < 400:
		return models.AvailabilityAvailable
	case code == http.StatusNotFound || code == http.StatusGone:
		return models.AvailabilityGone
	default:
		return models.AvailabilityUnavailable
	}
}

// nextStatus applies a verdict to the current state. Gone is sticky:
// transient errors never move an episode out of gone, only a probe that
// actually succeeds.
func nextStatus(current, verdict models.AvailabilityStatus) models.AvailabilityStatus {
	if current == models.AvailabilityGone && verdict == models.AvailabilityUnavailable {
		return models.AvailabilityGone
	}
	return verdict
}
