package ratelimit

import (
	"time"

	"github.com/maheshrc27/postflow/internal/models"
)

type Action string

const (
	ActionPublish     Action = "publish"
	ActionMediaUpload Action = "media_upload"
	ActionRead        Action = "read"
)

// Rule caps an action at Limit requests per Window, counted per account.
type Rule struct {
	Limit  int64
	Window time.Duration
}

type Rules map[models.Platform]map[Action]Rule

// DefaultRules is the static limit table. Publishing is capped tighter than reads.
var DefaultRules = Rules{
	models.PlatformInstagram: {
		ActionPublish:     {Limit: 25, Window: 24 * time.Hour},
		ActionMediaUpload: {Limit: 50, Window: time.Hour},
		ActionRead:        {Limit: 200, Window: time.Hour},
	},
	models.PlatformFacebook: {
		ActionPublish:     {Limit: 50, Window: time.Hour},
		ActionMediaUpload: {Limit: 100, Window: time.Hour},
		ActionRead:        {Limit: 200, Window: time.Hour},
	},
	models.PlatformLinkedIn: {
		ActionPublish:     {Limit: 100, Window: 24 * time.Hour},
		ActionMediaUpload: {Limit: 100, Window: 24 * time.Hour},
		ActionRead:        {Limit: 500, Window: 24 * time.Hour},
	},
	models.PlatformX: {
		ActionPublish:     {Limit: 50, Window: 15 * time.Minute},
		ActionMediaUpload: {Limit: 50, Window: 15 * time.Minute},
		ActionRead:        {Limit: 75, Window: 15 * time.Minute},
	},
}

func (r Rules) Lookup(platform models.Platform, action Action) (Rule, bool) {
	actions, ok := r[platform]
	if !ok {
		return Rule{}, false
	}
	rule, ok := actions[action]
	return rule, ok && rule.Limit > 0 && rule.Window > 0
}
