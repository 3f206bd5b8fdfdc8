package models

type PostStatus string

const (
	PostStatusDraft           PostStatus = "draft"
	PostStatusPendingApproval PostStatus = "pending_approval"
	PostStatusApproved        PostStatus = "approved"
	PostStatusScheduled       PostStatus = "scheduled"
	PostStatusPublishing      PostStatus = "publishing"
	PostStatusPublished       PostStatus = "published"
	PostStatusFailed          PostStatus = "failed"
)

var postTransitions = map[PostStatus][]PostStatus{
	PostStatusDraft:           {PostStatusPendingApproval, PostStatusPublishing},
	PostStatusPendingApproval: {PostStatusApproved},
	PostStatusApproved:        {PostStatusScheduled},
	PostStatusScheduled:       {PostStatusPublishing, PostStatusDraft},
	PostStatusPublishing:      {PostStatusPublished, PostStatusFailed},
	// a failed post only comes back through a manual reschedule
	PostStatusFailed: {PostStatusScheduled},
}

// CanTransition reports whether a post may move from one status to another.
func CanTransition(from, to PostStatus) bool {
	for _, next := range postTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// SourcesFor returns every status that may transition into to.
func SourcesFor(to PostStatus) []PostStatus {
	var sources []PostStatus
	for from, nexts := range postTransitions {
		for _, next := range nexts {
			if next == to {
				sources = append(sources, from)
			}
		}
	}
	return sources
}

func (s PostStatus) Terminal() bool {
	return s == PostStatusPublished || s == PostStatusFailed
}
