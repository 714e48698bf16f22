package zwiftpower

import (
	"context"
	"net/url"
	"time"

	"racepower-backend/lib/cookiestore"
	"racepower-backend/lib/telemetry"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("zwiftpower")

const (
	DefaultBaseUrl         = "https://zwiftpower.com"
	DefaultAuthBaseUrl     = "https://secure.zwift.com"
	DefaultActivityBaseUrl = "https://www.zwift.com"

	DefaultMaxAttempts    = 3
	DefaultRetryBaseDelay = time.Second
	DefaultWorkers        = 4
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"

// Client talks to ZwiftPower and the Zwift SSO on behalf of one
// logical session. Roster/analysis calls work anonymously for public
// races; authenticated calls need a Login first or a replayed Session.
type Client struct {
	baseUrl         *url.URL
	authBaseUrl     *url.URL
	activityBaseUrl *url.URL
	http            *resty.Client
	store           *cookiestore.Store
	maxAttempts     int
	retryBaseDelay  time.Duration
	workers         int
}

type ClientOptions struct {
	// defaults to DefaultBaseUrl
	BaseUrl string
	// defaults to DefaultAuthBaseUrl
	AuthBaseUrl string
	// defaults to DefaultActivityBaseUrl
	ActivityBaseUrl string
	// serialized session cookies from a previous Login, replayed
	// before any request is made
	Session []string
	// per-request timeout, defaults to 30s
	Timeout time.Duration
	// rate-limit retry budget, defaults to DefaultMaxAttempts
	MaxAttempts int
	// rate-limit backoff base delay, defaults to DefaultRetryBaseDelay
	RetryBaseDelay time.Duration
	// pipeline fan-out, defaults to DefaultWorkers
	Workers int
	// zwiftpower.com sits behind cloudflare; tests against fake
	// upstreams turn the bypass transport off
	DisableCloudflareBypass bool
}

func NewClient(ctx context.Context, opts ClientOptions) (*Client, error) {
	if opts.BaseUrl == "" {
		opts.BaseUrl = DefaultBaseUrl
	}
	if opts.AuthBaseUrl == "" {
		opts.AuthBaseUrl = DefaultAuthBaseUrl
	}
	if opts.ActivityBaseUrl == "" {
		opts.ActivityBaseUrl = DefaultActivityBaseUrl
	}
	if opts.Timeout == 0 {
		opts.Timeout = time.Second * 30
	}
	if opts.MaxAttempts == 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.RetryBaseDelay == 0 {
		opts.RetryBaseDelay = DefaultRetryBaseDelay
	}
	if opts.Workers == 0 {
		opts.Workers = DefaultWorkers
	}

	baseUrl, err := url.Parse(opts.BaseUrl)
	if err != nil {
		return nil, err
	}
	authBaseUrl, err := url.Parse(opts.AuthBaseUrl)
	if err != nil {
		return nil, err
	}
	activityBaseUrl, err := url.Parse(opts.ActivityBaseUrl)
	if err != nil {
		return nil, err
	}

	store, err := cookiestore.New(opts.BaseUrl, opts.AuthBaseUrl)
	if err != nil {
		return nil, err
	}
	if len(opts.Session) > 0 {
		store.Import(ctx, opts.Session)
	}

	client := resty.New()
	client.SetBaseURL(opts.BaseUrl)
	client.SetCookieJar(store)
	client.SetHeader("user-agent", userAgent)
	client.SetRedirectPolicy(
		resty.FlexibleRedirectPolicy(10),
		resty.DomainCheckRedirectPolicy(
			baseUrl.Hostname(),
			authBaseUrl.Hostname(),
			activityBaseUrl.Hostname(),
		),
	)
	client.SetTimeout(opts.Timeout)
	if !opts.DisableCloudflareBypass {
		client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)
	}

	telemetry.InstrumentResty(client, "zwiftpower/http")

	return &Client{
		baseUrl:         baseUrl,
		authBaseUrl:     authBaseUrl,
		activityBaseUrl: activityBaseUrl,
		http:            client,
		store:           store,
		maxAttempts:     opts.MaxAttempts,
		retryBaseDelay:  opts.RetryBaseDelay,
		workers:         opts.Workers,
	}, nil
}

// Session serializes the current cookie state so it can cross a
// process boundary and be replayed through ClientOptions.Session.
func (c *Client) Session() []string {
	return c.store.Export()
}

func (c *Client) resultsUrl(raceID string) string {
	return c.baseUrl.String() + "/api3.php?do=event_results&zid=" + url.QueryEscape(raceID)
}

func (c *Client) viewUrl(raceID string) string {
	return c.baseUrl.String() + "/cache3/results/" + url.PathEscape(raceID) + "_view.json"
}

func (c *Client) analysisUrl(raceID, riderID string) string {
	return c.baseUrl.String() + "/api3.php?do=analysis&zwift_id=" +
		url.QueryEscape(riderID) + "&zwift_event_id=" + url.QueryEscape(raceID)
}

func (c *Client) eventUrl(raceID string) string {
	return c.baseUrl.String() + "/events.php?zid=" + url.QueryEscape(raceID)
}

func (c *Client) profileUrl(riderID string) string {
	return c.baseUrl.String() + "/profile.php?z=" + url.QueryEscape(riderID)
}

func (c *Client) activityFitUrl(activityID string) string {
	return c.activityBaseUrl.String() + "/activity/" + url.PathEscape(activityID) + "/files/activity.fit"
}
