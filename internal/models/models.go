package models

import (
	"time"

	"gorm.io/gorm"
)

// Station represents a broadcast channel (e.g. Vltava, Plus).
// Stations are created by idempotent seeding and are never deleted
// while a Program still references them.
type Station struct {
	gorm.Model
	Code     string    `json:"code" gorm:"uniqueIndex;not null"`
	Name     string    `json:"name" gorm:"not null"`
	Website  string    `json:"website"`
	Programs []Program `json:"programs,omitempty" gorm:"foreignKey:StationID"`
}

// Program represents a named show on a Station.
type Program struct {
	gorm.Model
	StationID     uint       `json:"station_id" gorm:"not null;uniqueIndex:idx_programs_station_name"`
	Name          string     `json:"name" gorm:"not null;uniqueIndex:idx_programs_station_name"`
	URL           string     `json:"url"`
	Genre         string     `json:"genre"`
	ChannelLabel  string     `json:"channel_label"`
	LastCrawledAt *time.Time `json:"last_crawled_at"`
	Series        []Series   `json:"series,omitempty" gorm:"foreignKey:ProgramID"`
}

// Series is a sub-grouping under a Program. Single-part shows carry a
// Series that mirrors the Program.
type Series struct {
	gorm.Model
	ProgramID uint   `json:"program_id" gorm:"not null;uniqueIndex:idx_series_program_name"`
	Name      string `json:"name" gorm:"not null;uniqueIndex:idx_series_program_name"`
	URL       string `json:"url"`
	Works     []Work `json:"works,omitempty" gorm:"foreignKey:SeriesID"`
}

// Work is one concrete title (book/album) within a Series.
type Work struct {
	gorm.Model
	SeriesID uint      `json:"series_id" gorm:"not null;uniqueIndex:idx_works_series_title"`
	Title    string    `json:"title" gorm:"not null;uniqueIndex:idx_works_series_title"`
	Author   string    `json:"author"`
	Year     int       `json:"year"`
	Episodes []Episode `json:"episodes,omitempty" gorm:"foreignKey:WorkID"`
}

// All returns every catalog model in migration order. Parents come
// before children so foreign keys resolve.
func All() []any {
	return []any{
		&Station{},
		&Program{},
		&Series{},
		&Work{},
		&Episode{},
		&EpisodeAlias{},
		&AvailabilityLog{},
		&Asset{},
		&DownloadJob{},
		&CrawlTarget{},
	}
}
