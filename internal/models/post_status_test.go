package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to PostStatus
		want     bool
	}{
		{PostStatusDraft, PostStatusPendingApproval, true},
		{PostStatusPendingApproval, PostStatusApproved, true},
		{PostStatusApproved, PostStatusScheduled, true},
		{PostStatusScheduled, PostStatusPublishing, true},
		{PostStatusPublishing, PostStatusPublished, true},
		{PostStatusPublishing, PostStatusFailed, true},
		{PostStatusScheduled, PostStatusDraft, true},
		{PostStatusDraft, PostStatusPublishing, true},
		{PostStatusFailed, PostStatusScheduled, true},

		{PostStatusDraft, PostStatusScheduled, false},
		{PostStatusApproved, PostStatusPublishing, false},
		{PostStatusPublished, PostStatusFailed, false},
		{PostStatusPublished, PostStatusScheduled, false},
		{PostStatusFailed, PostStatusPublishing, false},
		{PostStatusScheduled, PostStatusPublished, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestSourcesFor(t *testing.T) {
	assert.ElementsMatch(t, []PostStatus{PostStatusApproved, PostStatusFailed}, SourcesFor(PostStatusScheduled))
	assert.ElementsMatch(t, []PostStatus{PostStatusScheduled, PostStatusDraft}, SourcesFor(PostStatusPublishing))
	assert.Equal(t, []PostStatus{PostStatusScheduled}, SourcesFor(PostStatusDraft))
}

func TestJobID(t *testing.T) {
	assert.Equal(t, "post_42_instagram", JobID(42, PlatformInstagram))
	assert.Equal(t, "post_7_x", JobID(7, PlatformX))
}

func TestParsePlatform(t *testing.T) {
	p, err := ParsePlatform("linkedin")
	assert.NoError(t, err)
	assert.Equal(t, PlatformLinkedIn, p)

	_, err = ParsePlatform("tiktok")
	assert.Error(t, err)
}
