// Package media turns a post's media file references into platform media ids.
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/h2non/filetype"
	"github.com/h2non/filetype/types"
	"go.uber.org/zap"

	"github.com/maheshrc27/postflow/internal/apperr"
	"github.com/maheshrc27/postflow/internal/models"
	"github.com/maheshrc27/postflow/internal/platform"
	"github.com/maheshrc27/postflow/internal/ratelimit"
)

const (
	DefaultDownloadTimeout = 30 * time.Second
	DefaultUploadTimeout   = 60 * time.Second
	DefaultMaxBytes        = 50 << 20
)

type FileResolver interface {
	GetFileByID(ctx context.Context, id, organizationID int64) (*models.MediaFile, error)
}

type RateLimiter interface {
	CheckLimit(ctx context.Context, p models.Platform, accountID int64, action ratelimit.Action) error
}

type Preparer struct {
	files           FileResolver
	limiter         RateLimiter
	http            *http.Client
	logger          *zap.Logger
	downloadTimeout time.Duration
	uploadTimeout   time.Duration
	maxBytes        int64
	concurrency     int
}

type Option func(*Preparer)

func WithDownloadTimeout(d time.Duration) Option { return func(p *Preparer) { p.downloadTimeout = d } }
func WithUploadTimeout(d time.Duration) Option   { return func(p *Preparer) { p.uploadTimeout = d } }
func WithMaxBytes(n int64) Option                { return func(p *Preparer) { p.maxBytes = n } }
func WithHTTPClient(c *http.Client) Option       { return func(p *Preparer) { p.http = c } }

func NewPreparer(files FileResolver, limiter RateLimiter, logger *zap.Logger, opts ...Option) *Preparer {
	p := &Preparer{
		files:           files,
		limiter:         limiter,
		http:            &http.Client{},
		logger:          logger.Named("media"),
		downloadTimeout: DefaultDownloadTimeout,
		uploadTimeout:   DefaultUploadTimeout,
		maxBytes:        DefaultMaxBytes,
		concurrency:     4,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type uploadResult struct {
	media platform.Media
	err   error
}

// Prepare uploads every resolvable media file of post through client. The
// result keeps the post's media order. Some failed files are tolerated; when
// every file fails the whole batch fails.
func (p *Preparer) Prepare(ctx context.Context, client platform.Client, account platform.Account, post *models.Post) ([]platform.Media, error) {
	if len(post.MediaFileIDs) == 0 {
		return nil, nil
	}

	files, err := p.resolve(ctx, post)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, nil
	}

	if err := p.limiter.CheckLimit(ctx, client.Platform(), account.ID, ratelimit.ActionMediaUpload); err != nil {
		return nil, err
	}

	results := make([]uploadResult, len(files))
	var wg sync.WaitGroup
	semaphore := make(chan struct{}, p.concurrency)

	for i, file := range files {
		wg.Add(1)
		semaphore <- struct{}{}

		go func(i int, file *models.MediaFile) {
			defer wg.Done()
			defer func() { <-semaphore }()

			results[i] = p.prepareOne(ctx, client, account, file)
		}(i, file)
	}
	wg.Wait()

	var (
		prepared []platform.Media
		reasons  []string
		failures []error
	)
	for i, res := range results {
		if res.err != nil {
			reasons = append(reasons, fmt.Sprintf("%s: %v", files[i].Filename, res.err))
			failures = append(failures, res.err)
			continue
		}
		prepared = append(prepared, res.media)
	}

	if len(prepared) == 0 {
		// platform signals that apply to the whole account win over per-file reasons
		for _, kind := range []platform.ErrorKind{platform.ErrorAuthExpired, platform.ErrorRateLimited} {
			for _, ferr := range failures {
				if perr, ok := platform.AsError(ferr); ok && perr.Kind == kind {
					return nil, perr
				}
			}
		}
		return nil, apperr.BadRequest("media.Prepare", "all %d media files failed: %s", len(files), strings.Join(reasons, "; "))
	}

	for _, reason := range reasons {
		p.logger.Warn("media file skipped",
			zap.Int64("post_id", post.ID),
			zap.String("platform", string(client.Platform())),
			zap.String("reason", reason))
	}
	return prepared, nil
}

func (p *Preparer) resolve(ctx context.Context, post *models.Post) ([]*models.MediaFile, error) {
	files := make([]*models.MediaFile, 0, len(post.MediaFileIDs))
	for _, id := range post.MediaFileIDs {
		file, err := p.files.GetFileByID(ctx, id, post.OrganizationID)
		if errors.Is(err, apperr.ErrNotFound) || (err == nil && file == nil) {
			p.logger.Debug("media file not found, dropping",
				zap.Int64("post_id", post.ID), zap.Int64("media_file_id", id))
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("resolve media file %d: %w", id, err)
		}
		files = append(files, file)
	}
	return files, nil
}

func (p *Preparer) prepareOne(ctx context.Context, client platform.Client, account platform.Account, file *models.MediaFile) uploadResult {
	limits := client.Limits()
	maxBytes := p.maxBytes
	if limits.MaxMediaBytes > 0 && limits.MaxMediaBytes < maxBytes {
		maxBytes = limits.MaxMediaBytes
	}

	if file.Size > maxBytes {
		return uploadResult{err: fmt.Errorf("file is %d bytes, limit is %d", file.Size, maxBytes)}
	}

	data, err := p.download(ctx, file.URL, maxBytes)
	if err != nil {
		return uploadResult{err: err}
	}

	mime := file.MimeType
	if kind, err := filetype.Match(data); err == nil && kind != types.Unknown {
		mime = kind.MIME.Value
	}
	if !limits.Accepts(mime) {
		return uploadResult{err: fmt.Errorf("media type %s is not accepted by %s", mime, client.Platform())}
	}

	uploadCtx, cancel := context.WithTimeout(ctx, p.uploadTimeout)
	defer cancel()

	id, err := client.UploadMedia(uploadCtx, account, platform.MediaUpload{
		Data:      data,
		Filename:  file.Filename,
		MimeType:  mime,
		AltText:   file.AltText,
		SourceURL: file.URL,
	})
	if err != nil {
		return uploadResult{err: err}
	}
	return uploadResult{media: platform.Media{ID: id, SourceURL: file.URL, MimeType: mime}}
}

func (p *Preparer) download(ctx context.Context, url string, maxBytes int64) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, p.downloadTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid url: %w", err)
	}
	resp, err := p.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("download timed out after %s", p.downloadTimeout)
		}
		return nil, fmt.Errorf("download failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download returned status %d", resp.StatusCode)
	}
	if resp.ContentLength > maxBytes {
		return nil, fmt.Errorf("file is %d bytes, limit is %d", resp.ContentLength, maxBytes)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBytes+1))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("download timed out after %s", p.downloadTimeout)
		}
		return nil, fmt.Errorf("download failed: %w", err)
	}
	if int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("file exceeds %d bytes", maxBytes)
	}
	return data, nil
}
