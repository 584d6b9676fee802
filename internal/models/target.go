package models

import (
	"time"

	"gorm.io/gorm"
)

// TargetKind says what a crawl target URL points at.
type TargetKind string

const (
	TargetStation TargetKind = "station"
	TargetProgram TargetKind = "program"
	TargetSeries  TargetKind = "series"
)

// CrawlTarget is a user-supplied URL the scheduler sweeps periodically.
type CrawlTarget struct {
	gorm.Model
	URL           string     `json:"url" gorm:"uniqueIndex;not null"`
	Kind          TargetKind `json:"kind" gorm:"default:'program'"`
	Active        bool       `json:"active" gorm:"default:true"`
	IntervalHours int        `json:"interval_hours" gorm:"default:24"`
	LastCrawledAt *time.Time `json:"last_crawled_at"`
	NextCrawlAt   *time.Time `json:"next_crawl_at" gorm:"index"`
}

// Due reports whether the target should be crawled now. Targets that
// were never crawled are always due.
func (t *CrawlTarget) Due(now time.Time) bool {
	if !t.Active {
		return false
	}
	return t.NextCrawlAt == nil || !t.NextCrawlAt.After(now)
}

// StampCrawled records a finished crawl and schedules the next one.
func (t *CrawlTarget) StampCrawled(now time.Time) {
	t.LastCrawledAt = &now
	next := now.Add(time.Duration(t.IntervalHours) * time.Hour)
	t.NextCrawlAt = &next
}
