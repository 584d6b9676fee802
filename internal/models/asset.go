package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"

	"gorm.io/gorm"
)

// AssetType identifies one artifact an Episode needs.
type AssetType string

const (
	AssetAudio      AssetType = "audio"
	AssetMetaJSON   AssetType = "meta-json"
	AssetWebpage    AssetType = "webpage"
	AssetCover      AssetType = "cover"
	AssetTranscript AssetType = "transcript"
	AssetSubtitle   AssetType = "subtitle"
	AssetOther      AssetType = "other"
)

// RequiredAssetTypes is the set every Episode must have rows for.
// Asset rows for these are created lazily the first time an episode
// is planned.
var RequiredAssetTypes = []AssetType{AssetAudio, AssetMetaJSON, AssetWebpage}

// Required reports whether the type belongs to the mandatory set.
func (t AssetType) Required() bool {
	for _, r := range RequiredAssetTypes {
		if t == r {
			return true
		}
	}
	return false
}

// AssetStatus is the lifecycle state of one Asset.
type AssetStatus string

const (
	AssetStatusMissing     AssetStatus = "missing"
	AssetStatusQueued      AssetStatus = "queued"
	AssetStatusDownloading AssetStatus = "downloading"
	AssetStatusComplete    AssetStatus = "complete"
	AssetStatusFailed      AssetStatus = "failed"
	AssetStatusStale       AssetStatus = "stale"
	AssetStatusSkipped     AssetStatus = "skipped"
)

// NeedsDownload reports whether planning should enqueue a job for an
// asset in this state. Complete and already-queued assets are left alone.
func (s AssetStatus) NeedsDownload() bool {
	return s == AssetStatusMissing || s == AssetStatusStale || s == AssetStatusFailed
}

// Asset is one required artifact for an Episode; exactly one row exists
// per (episode_id, type).
type Asset struct {
	gorm.Model
	EpisodeID uint        `json:"episode_id" gorm:"not null;uniqueIndex:idx_assets_episode_type"`
	Type      AssetType   `json:"type" gorm:"not null;uniqueIndex:idx_assets_episode_type"`
	Status    AssetStatus `json:"status" gorm:"default:'missing';index"`

	FilePath  string `json:"file_path"`
	SizeBytes int64  `json:"size_bytes"`
	Checksum  string `json:"checksum"`

	// Audio technicals, filled by the extractor sidecar when known.
	Codec        string `json:"codec"`
	Container    string `json:"container"`
	BitrateKbps  int    `json:"bitrate_kbps"`
	Channels     int    `json:"channels"`
	SampleRateHz int    `json:"sample_rate_hz"`

	Extra ExtraFields `json:"extra,omitempty" gorm:"type:json"`
}

// ExtraFields carries source-specific leftovers that have no column.
type ExtraFields map[string]interface{}

// Value implements driver.Valuer for ExtraFields.
func (f ExtraFields) Value() (driver.Value, error) {
	if f == nil {
		return nil, nil
	}
	return json.Marshal(f)
}

// Scan implements sql.Scanner for ExtraFields.
func (f *ExtraFields) Scan(value interface{}) error {
	if value == nil {
		*f = make(ExtraFields)
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}

	return json.Unmarshal(bytes, f)
}
