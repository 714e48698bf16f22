package zwiftpower

import (
	"context"
	"net/http"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-resty/resty/v2"
)

// fetch is the single place retry logic lives: a 429 from the upstream
// is retried with exponential backoff (base delay doubled per attempt)
// up to the client's attempt budget, every other failure propagates
// immediately. All roster/analysis/scrape calls go through here.
func (c *Client) fetch(ctx context.Context, link string) (*resty.Response, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.retryBaseDelay
	bo.RandomizationFactor = 0
	bo.Multiplier = 2
	bo.MaxInterval = c.retryBaseDelay << uint(c.maxAttempts)
	bo.MaxElapsedTime = 0

	return backoff.RetryWithData(
		func() (*resty.Response, error) {
			res, err := c.http.R().
				SetContext(ctx).
				Get(link)
			if err != nil {
				return nil, backoff.Permanent(&FetchError{
					Kind:  FetchTransport,
					URL:   link,
					Cause: err,
				})
			}
			if res.StatusCode() == http.StatusTooManyRequests {
				return nil, &FetchError{
					Kind:   FetchRateLimited,
					URL:    link,
					Status: res.StatusCode(),
				}
			}
			return res, nil
		},
		backoff.WithContext(
			backoff.WithMaxRetries(bo, uint64(c.maxAttempts-1)),
			ctx,
		),
	)
}
