package models

import (
	"fmt"
	"time"

	"github.com/lib/pq"
)

type Platform string

const (
	PlatformInstagram Platform = "instagram"
	PlatformFacebook  Platform = "facebook"
	PlatformLinkedIn  Platform = "linkedin"
	PlatformX         Platform = "x"
)

// Platforms lists every platform the scheduler can publish to.
var Platforms = []Platform{PlatformInstagram, PlatformFacebook, PlatformLinkedIn, PlatformX}

func ParsePlatform(s string) (Platform, error) {
	for _, p := range Platforms {
		if string(p) == s {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown platform %q", s)
}

type Post struct {
	ID              int64         `db:"id" json:"id"`
	OrganizationID  int64         `db:"organization_id" json:"organization_id"`
	SocialAccountID int64         `db:"social_account_id" json:"social_account_id"`
	Platform        Platform      `db:"platform" json:"platform"`
	Content         string        `db:"content" json:"content"`
	MediaFileIDs    pq.Int64Array `db:"media_file_ids" json:"media_file_ids"`
	Status          PostStatus    `db:"status" json:"status"`
	ScheduledAt     *time.Time    `db:"scheduled_at" json:"scheduled_at,omitempty"`
	JobID           *string       `db:"job_id" json:"job_id,omitempty"`
	PlatformPostID  *string       `db:"platform_post_id" json:"platform_post_id,omitempty"`
	FailureReason   *string       `db:"failure_reason" json:"failure_reason,omitempty"`
	PublishedAt     *time.Time    `db:"published_at" json:"published_at,omitempty"`
	CreatedAt       time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time     `db:"updated_at" json:"updated_at"`
}

type MediaAsset struct {
	ID             int64     `db:"id"`
	OrganizationID int64     `db:"organization_id"`
	FileName       string    `db:"file_name"`
	FileType       string    `db:"file_type"`
	FileSize       int64     `db:"file_size"`
	FileURL        string    `db:"file_url"`
	StorageKey     string    `db:"storage_key"`
	Private        bool      `db:"private"`
	CreatedAt      time.Time `db:"created_at"`
}

// MediaFile is a resolved media reference ready to be downloaded.
type MediaFile struct {
	ID       int64  `json:"id"`
	URL      string `json:"url"`
	Filename string `json:"filename"`
	MimeType string `json:"mime_type"`
	Size     int64  `json:"size"`
	AltText  string `json:"alt_text,omitempty"`
}
