package domain

import "time"

// Video is a catalogue entry. Rows are written by the upload pipeline; this
// service only reads them.
type Video struct {
	ID           string    `json:"_id"`
	OwnerID      string    `json:"-"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	VideoURL     string    `json:"videoFile"`
	ThumbnailURL string    `json:"thumbnail"`
	Duration     float64   `json:"duration"`
	Views        int64     `json:"views"`
	IsPublished  bool      `json:"isPublished"`
	CreatedAt    time.Time `json:"createdAt"`
}

// VideoOwner is the summary of a video's owner embedded in history entries.
type VideoOwner struct {
	Username  string `json:"username"`
	FullName  string `json:"fullName"`
	AvatarURL string `json:"avatar"`
}

// WatchHistoryEntry is one view of a video by an account, newest first in
// listings. Repeated views produce repeated entries.
type WatchHistoryEntry struct {
	Video
	Owner    VideoOwner `json:"owner"`
	ViewedAt time.Time  `json:"viewedAt"`
}
