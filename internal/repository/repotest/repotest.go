// Package repotest holds in-memory repository implementations that keep the
// compare-and-set semantics of the Postgres ones.
package repotest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/maheshrc27/postflow/internal/models"
	"github.com/maheshrc27/postflow/internal/repository"
)

func contains(statuses []models.PostStatus, s models.PostStatus) bool {
	for _, st := range statuses {
		if st == s {
			return true
		}
	}
	return false
}

func clonePost(p *models.Post) *models.Post {
	c := *p
	c.MediaFileIDs = append([]int64(nil), p.MediaFileIDs...)
	return &c
}

type Posts struct {
	mu     sync.Mutex
	nextID int64
	posts  map[int64]*models.Post
	// Err fails every call when set.
	Err error
}

func NewPosts() *Posts {
	return &Posts{posts: make(map[int64]*models.Post)}
}

func (r *Posts) Create(_ context.Context, post *models.Post) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return 0, r.Err
	}

	r.nextID++
	p := clonePost(post)
	p.ID = r.nextID
	if p.Status == "" {
		p.Status = models.PostStatusDraft
	}
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	r.posts[p.ID] = p
	return p.ID, nil
}

// Put stores post as is, keeping its id.
func (r *Posts) Put(post *models.Post) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.posts[post.ID] = clonePost(post)
	if post.ID > r.nextID {
		r.nextID = post.ID
	}
}

func (r *Posts) GetByID(_ context.Context, id int64) (*models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	p, ok := r.posts[id]
	if !ok {
		return nil, nil
	}
	return clonePost(p), nil
}

func (r *Posts) ListQueued(_ context.Context, organizationID int64) ([]*models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}

	var out []*models.Post
	for _, p := range r.posts {
		if p.OrganizationID != organizationID || p.JobID == nil {
			continue
		}
		if p.Status == models.PostStatusScheduled || p.Status == models.PostStatusPublishing {
			out = append(out, clonePost(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *Posts) ListStalePublishing(_ context.Context, updatedBefore time.Time) ([]*models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}

	var out []*models.Post
	for _, p := range r.posts {
		if p.Status == models.PostStatusPublishing && p.UpdatedAt.Before(updatedBefore) {
			out = append(out, clonePost(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *Posts) update(id int64, from []models.PostStatus, fn func(p *models.Post)) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return false, r.Err
	}
	p, ok := r.posts[id]
	if !ok || !contains(from, p.Status) {
		return false, nil
	}
	fn(p)
	p.UpdatedAt = time.Now()
	return true, nil
}

func (r *Posts) Transition(_ context.Context, id int64, from []models.PostStatus, to models.PostStatus) (bool, error) {
	return r.update(id, from, func(p *models.Post) { p.Status = to })
}

func (r *Posts) MarkQueued(_ context.Context, id int64, from []models.PostStatus, to models.PostStatus, jobID string, scheduledAt time.Time) (bool, error) {
	return r.update(id, from, func(p *models.Post) {
		p.Status = to
		p.JobID = &jobID
		p.ScheduledAt = &scheduledAt
		p.FailureReason = nil
	})
}

func (r *Posts) ResetToDraft(_ context.Context, id int64) (bool, error) {
	return r.update(id, []models.PostStatus{models.PostStatusScheduled}, func(p *models.Post) {
		p.Status = models.PostStatusDraft
		p.JobID = nil
		p.ScheduledAt = nil
	})
}

func (r *Posts) MarkPublished(_ context.Context, id int64, platformPostID string, publishedAt time.Time) (bool, error) {
	return r.update(id, models.SourcesFor(models.PostStatusPublished), func(p *models.Post) {
		p.Status = models.PostStatusPublished
		p.PlatformPostID = &platformPostID
		p.PublishedAt = &publishedAt
		p.FailureReason = nil
	})
}

func (r *Posts) MarkFailed(_ context.Context, id int64, reason string) (bool, error) {
	return r.update(id, models.SourcesFor(models.PostStatusFailed), func(p *models.Post) {
		p.Status = models.PostStatusFailed
		p.FailureReason = &reason
	})
}

// Backdate moves a post's updated_at into the past.
func (r *Posts) Backdate(id int64, by time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.posts[id]; ok {
		p.UpdatedAt = p.UpdatedAt.Add(-by)
	}
}

type ScheduleJobs struct {
	mu   sync.Mutex
	jobs map[string]*models.ScheduleJob
}

func NewScheduleJobs() *ScheduleJobs {
	return &ScheduleJobs{jobs: make(map[string]*models.ScheduleJob)}
}

func (r *ScheduleJobs) Upsert(_ context.Context, job *models.ScheduleJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.jobs[job.JobID]; ok {
		if existing.Status != models.ScheduleJobPending {
			existing.Status = models.ScheduleJobPending
			existing.UpdatedAt = time.Now()
		}
		return nil
	}
	now := time.Now()
	r.jobs[job.JobID] = &models.ScheduleJob{
		JobID: job.JobID, PostID: job.PostID, Platform: job.Platform,
		Status: models.ScheduleJobPending, CreatedAt: now, UpdatedAt: now,
	}
	return nil
}

func (r *ScheduleJobs) GetByJobID(_ context.Context, jobID string) (*models.ScheduleJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[jobID]
	if !ok {
		return nil, nil
	}
	c := *j
	return &c, nil
}

func (r *ScheduleJobs) Finish(_ context.Context, jobID string, status models.ScheduleJobStatus) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[jobID]
	if !ok || j.Status != models.ScheduleJobPending {
		return false, nil
	}
	j.Status = status
	j.UpdatedAt = time.Now()
	return true, nil
}

// Pending counts PENDING jobs for a (post, platform) pair.
func (r *ScheduleJobs) Pending(postID int64, platform models.Platform) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, j := range r.jobs {
		if j.PostID == postID && j.Platform == platform && j.Status == models.ScheduleJobPending {
			n++
		}
	}
	return n
}

type PublishAttempts struct {
	mu       sync.Mutex
	attempts []*models.PublishAttempt
}

func NewPublishAttempts() *PublishAttempts { return &PublishAttempts{} }

func (r *PublishAttempts) Create(_ context.Context, pa *models.PublishAttempt) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *pa
	c.ID = int64(len(r.attempts) + 1)
	c.CreatedAt = time.Now()
	r.attempts = append(r.attempts, &c)
	return c.ID, nil
}

func (r *PublishAttempts) ListByPostID(_ context.Context, postID int64) ([]*models.PublishAttempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.PublishAttempt
	for _, a := range r.attempts {
		if a.PostID == postID {
			c := *a
			out = append(out, &c)
		}
	}
	return out, nil
}

type SocialAccounts struct {
	mu       sync.Mutex
	accounts map[int64]*models.SocialAccount
}

func NewSocialAccounts() *SocialAccounts {
	return &SocialAccounts{accounts: make(map[int64]*models.SocialAccount)}
}

func (r *SocialAccounts) Create(_ context.Context, sa *models.SocialAccount) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *sa
	if c.ID == 0 {
		c.ID = int64(len(r.accounts) + 1)
	}
	r.accounts[c.ID] = &c
	return c.ID, nil
}

func (r *SocialAccounts) GetByID(_ context.Context, id int64) (*models.SocialAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sa, ok := r.accounts[id]
	if !ok {
		return nil, nil
	}
	c := *sa
	return &c, nil
}

type MediaAssets struct {
	mu     sync.Mutex
	assets map[int64]*models.MediaAsset
}

func NewMediaAssets() *MediaAssets {
	return &MediaAssets{assets: make(map[int64]*models.MediaAsset)}
}

func (r *MediaAssets) Create(_ context.Context, ma *models.MediaAsset) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *ma
	if c.ID == 0 {
		c.ID = int64(len(r.assets) + 1)
	}
	r.assets[c.ID] = &c
	return c.ID, nil
}

func (r *MediaAssets) GetByID(_ context.Context, id, organizationID int64) (*models.MediaAsset, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ma, ok := r.assets[id]
	if !ok || ma.OrganizationID != organizationID {
		return nil, nil
	}
	c := *ma
	return &c, nil
}

type Audit struct {
	mu      sync.Mutex
	Entries []*models.AuditEntry
}

func (r *Audit) Create(_ context.Context, entry *models.AuditEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *entry
	r.Entries = append(r.Entries, &c)
	return nil
}

func (r *Audit) ListByPostID(_ context.Context, postID int64) ([]*models.AuditEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.AuditEntry
	for _, e := range r.Entries {
		if e.PostID == postID {
			out = append(out, e)
		}
	}
	return out, nil
}

type Analytics struct {
	mu      sync.Mutex
	Tracked map[int64]*models.PostTracking
}

func (r *Analytics) StartTracking(_ context.Context, t *models.PostTracking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Tracked == nil {
		r.Tracked = make(map[int64]*models.PostTracking)
	}
	if _, ok := r.Tracked[t.PostID]; !ok {
		c := *t
		r.Tracked[t.PostID] = &c
	}
	return nil
}

var (
	_ repository.PostRepository           = (*Posts)(nil)
	_ repository.ScheduleJobRepository    = (*ScheduleJobs)(nil)
	_ repository.PublishAttemptRepository = (*PublishAttempts)(nil)
	_ repository.SocialAccountRepository  = (*SocialAccounts)(nil)
	_ repository.MediaAssetRepository     = (*MediaAssets)(nil)
	_ repository.AuditRepository          = (*Audit)(nil)
	_ repository.AnalyticsRepository      = (*Analytics)(nil)
)
