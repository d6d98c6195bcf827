package installer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/oshokin/binstall/internal/domain/release"
	"github.com/oshokin/binstall/internal/logger"
)

var errArtifactTooLarge = errors.New("artifact exceeds the maximum allowed size")

// Download fetches the artifact content. Transport failures and temporary
// HTTP statuses are retried with exponential backoff.
func (i *Installer) Download(ctx context.Context, entry release.Entry) ([]byte, error) {
	return i.fetch(ctx, entry.URL)
}

// fetch downloads url with retries and returns the body.
func (i *Installer) fetch(ctx context.Context, url string) ([]byte, error) {
	var attempt int

	operation := func() ([]byte, error) {
		attempt++

		data, err := i.fetchOnce(ctx, url)
		if err == nil {
			return data, nil
		}

		var statusErr *release.HTTPStatusError

		switch {
		case errors.As(err, &statusErr):
			if statusErr.Temporary() {
				return nil, statusErr
			}

			return nil, backoff.Permanent(statusErr)
		case errors.Is(err, errArtifactTooLarge):
			return nil, backoff.Permanent(err)
		case ctx.Err() != nil:
			return nil, backoff.Permanent(ctx.Err())
		default:
			return nil, &release.NetworkError{URL: url, Attempts: attempt, Err: err}
		}
	}

	notify := func(err error, next time.Duration) {
		logger.WarnKV(ctx, "Download attempt failed, retrying",
			"url", url,
			"attempt", attempt,
			"retry_in", next.String(),
			"error", err)
	}

	data, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(i.newBackOff()),
		backoff.WithMaxTries(i.attempts),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(notify),
	)
	if err != nil {
		var permanent *backoff.PermanentError
		if errors.As(err, &permanent) {
			err = permanent.Unwrap()
		}

		return nil, err
	}

	logger.DebugKV(ctx, "Downloaded", "url", url, "bytes", len(data), "attempts", attempt)

	return data, nil
}

// fetchOnce performs a single GET.
func (i *Installer) fetchOnce(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", i.userAgent)

	response, err := i.client.Do(req)
	if err != nil {
		return nil, err
	}

	defer func() {
		_ = response.Body.Close()
	}()

	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		return nil, &release.HTTPStatusError{
			URL:        url,
			StatusCode: response.StatusCode,
			Status:     response.Status,
		}
	}

	if response.ContentLength > i.maxArtifactSize {
		return nil, fmt.Errorf("%s: %d bytes: %w", url, response.ContentLength, errArtifactTooLarge)
	}

	data, err := io.ReadAll(io.LimitReader(response.Body, i.maxArtifactSize+1))
	if err != nil {
		return nil, err
	}

	if int64(len(data)) > i.maxArtifactSize {
		return nil, fmt.Errorf("%s: %w", url, errArtifactTooLarge)
	}

	return data, nil
}

func (i *Installer) newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = i.initialInterval
	b.MaxInterval = i.maxInterval
	b.Multiplier = 2

	return b
}
