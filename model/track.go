package model

import "time"

// Track represents one stored audio file in the catalog.
type Track struct {
	ID           string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Filename     string    `json:"filename" gorm:"type:varchar(255);not null;uniqueIndex"` // storage key
	OriginalName string    `json:"originalName" gorm:"type:varchar(512);not null"`
	FileSize     int64     `json:"fileSize" gorm:"not null"`
	Duration     *float64  `json:"duration"` // seconds, nil when unknown
	MimeType     string    `json:"mimeType" gorm:"type:varchar(64);not null"`
	FilePath     string    `json:"-" gorm:"type:varchar(767);not null"` // opaque store handle, not exposed in API
	CreatedAt    time.Time `json:"createdAt" gorm:"index"`
}

// TableName keeps the table name stable regardless of GORM naming strategy.
func (Track) TableName() string {
	return "audio_tracks"
}

// HasDuration reports whether a duration was recorded at upload time.
func (t *Track) HasDuration() bool {
	return t.Duration != nil
}
