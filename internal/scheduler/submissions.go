package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/mujarchiv/rozhlasd/internal/events"
	"github.com/mujarchiv/rozhlasd/internal/metrics"
)

// ErrQueueFull rejects a submission when the pool cannot keep up.
var ErrQueueFull = errors.New("submission queue is full")

// SubmissionKind names an on-demand request.
type SubmissionKind string

const (
	SubmitProbeURL     SubmissionKind = "probe-url"
	SubmitProbeEpisode SubmissionKind = "probe-episode"
	SubmitCrawlTarget  SubmissionKind = "crawl-target"
	SubmitRunJobs      SubmissionKind = "run-jobs"
)

// Submission is one user request executed off the tick path. Only the
// field matching the kind is read.
type Submission struct {
	ID        string         `json:"id"`
	Kind      SubmissionKind `json:"kind"`
	URL       string         `json:"url,omitempty"`
	EpisodeID uint           `json:"episode_id,omitempty"`
	TargetID  uint           `json:"target_id,omitempty"`
	Limit     int            `json:"limit,omitempty"`
}

func (s Submission) entity() string {
	switch s.Kind {
	case SubmitProbeEpisode:
		return fmt.Sprintf("episode:%d", s.EpisodeID)
	case SubmitCrawlTarget:
		return fmt.Sprintf("target:%d", s.TargetID)
	case SubmitProbeURL:
		return s.URL
	default:
		return ""
	}
}

// Submit queues an on-demand request and returns its id. The call
// never blocks; a full queue surfaces as ErrQueueFull.
func (s *Scheduler) Submit(sub Submission) (string, error) {
	sub.ID = uuid.NewString()
	select {
	case s.queue <- sub:
	default:
		return "", ErrQueueFull
	}
	s.publishSubmission(sub, "queued", nil, nil)
	return sub.ID, nil
}

func (s *Scheduler) submissionWorker(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stop:
			return
		case sub := <-s.queue:
			s.runSubmission(ctx, sub)
		}
	}
}

func (s *Scheduler) runSubmission(ctx context.Context, sub Submission) {
	log.Printf("[INFO] scheduler: submission %s started kind=%s", sub.ID, sub.Kind)
	s.publishSubmission(sub, "running", nil, nil)

	var payload interface{}
	var err error
	switch sub.Kind {
	case SubmitProbeURL:
		payload, err = s.prober.ProbeURL(ctx, sub.URL)
	case SubmitProbeEpisode:
		episode, loadErr := s.repo.GetEpisode(ctx, sub.EpisodeID)
		if loadErr != nil {
			err = loadErr
			break
		}
		payload, err = s.prober.ProbeEpisode(ctx, episode)
	case SubmitCrawlTarget:
		target, loadErr := s.repo.GetTarget(ctx, sub.TargetID)
		if loadErr != nil {
			err = loadErr
			break
		}
		if s.crawlTarget(ctx, target) {
			payload = map[string]string{"url": target.URL}
		} else {
			err = fmt.Errorf("crawling target %d failed", target.ID)
		}
	case SubmitRunJobs:
		batch, runErr := s.runner.RunBatch(ctx, sub.Limit)
		if runErr != nil {
			err = runErr
			break
		}
		metrics.RecordJobBatch(batch.Succeeded, batch.Failed, batch.Watching, batch.Handed, batch.Skipped)
		payload = batch
	default:
		err = fmt.Errorf("unknown submission kind %q", sub.Kind)
	}

	if err != nil {
		log.Printf("[WARN] scheduler: submission %s failed: %v", sub.ID, err)
		s.publishSubmission(sub, "failed", nil, err)
		return
	}
	s.publishSubmission(sub, "done", payload, nil)
}

func (s *Scheduler) publishSubmission(sub Submission, status string, payload interface{}, err error) {
	message := fmt.Sprintf("%s %s", sub.Kind, status)
	if err != nil {
		message = fmt.Sprintf("%s failed: %v", sub.Kind, err)
	}
	body := map[string]interface{}{
		"submission": sub,
		"status":     status,
	}
	if payload != nil {
		body["result"] = payload
	}
	s.bus.Publish(events.Event{
		Type:    events.TypeSubmission,
		Entity:  sub.entity(),
		Message: message,
		Payload: body,
	})
}
