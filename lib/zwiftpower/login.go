package zwiftpower

import (
	"bytes"
	"context"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel/codes"
)

// finalUrl is the url the redirect chain settled on.
func finalUrl(res *resty.Response) *url.URL {
	if res.RawResponse != nil && res.RawResponse.Request != nil {
		return res.RawResponse.Request.URL
	}
	u, err := url.Parse(res.Request.URL)
	if err != nil {
		return &url.URL{}
	}
	return u
}

// ZwiftPower delegates authentication to the Zwift SSO (a Keycloak
// behind secure.zwift.com), so logging in means following the OAuth
// redirect chain to the identity provider's form, posting the
// credentials to the form's declared action and riding the redirects
// back. All steps share one cookie store.
const loginPath = "/ucp.php?mode=login&login=external&oauth_service=oauthzpsso"

type loginForm struct {
	// absolute submission target declared by the identity provider
	Action string
	// page the form was fetched from, sent back as the Referer
	Referer string
}

// step 1: follow the login entry point to the identity provider and
// locate its form.
func (c *Client) fetchLoginForm(ctx context.Context) (loginForm, error) {
	ctx, span := tracer.Start(ctx, "client:fetchLoginForm")
	defer span.End()

	res, err := c.http.R().
		SetContext(ctx).
		Get(c.baseUrl.String() + loginPath)
	if err != nil {
		span.SetStatus(codes.Error, "failed to fetch login entry point")
		return loginForm{}, &AuthError{Kind: AuthTransport, Cause: err}
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
	if err != nil {
		span.SetStatus(codes.Error, "failed to parse login page html")
		return loginForm{}, &AuthError{Kind: AuthTransport, Cause: err}
	}

	action := strings.TrimSpace(doc.Find("form[action]").First().AttrOr("action", ""))
	if action == "" {
		span.SetStatus(codes.Error, "no login form on page")
		return loginForm{}, &AuthError{
			Kind:    AuthNoLoginForm,
			Message: "could not locate the identity provider login form",
		}
	}

	// the form may declare a relative action, resolve it against the
	// page the redirect chain settled on
	final := finalUrl(res)
	actionUrl, err := final.Parse(action)
	if err != nil {
		span.SetStatus(codes.Error, "login form action is not a valid url")
		return loginForm{}, &AuthError{
			Kind:    AuthNoLoginForm,
			Message: "login form declares an unusable submission target",
		}
	}

	return loginForm{
		Action:  actionUrl.String(),
		Referer: final.String(),
	}, nil
}

// steps 2 and 3: submit the credentials to the form target and check
// the settled page for explicit rejection markers. The credentials are
// used inline exactly once and never stored anywhere that outlives
// this call; error messages carry upstream text only.
func (c *Client) submitCredentials(ctx context.Context, form loginForm, username, password string) error {
	ctx, span := tracer.Start(ctx, "client:submitCredentials")
	defer span.End()

	res, err := c.http.R().
		SetContext(ctx).
		SetHeader("Referer", form.Referer).
		SetFormData(map[string]string{
			"username":     username,
			"password":     password,
			"credentialId": "",
		}).
		Post(form.Action)
	if err != nil {
		span.SetStatus(codes.Error, "failed to submit login form")
		return &AuthError{Kind: AuthTransport, Cause: err}
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
	if err != nil {
		span.SetStatus(codes.Error, "failed to parse post-login html")
		return &AuthError{Kind: AuthTransport, Cause: err}
	}

	if msg, rejected := credentialError(doc); rejected {
		span.SetStatus(codes.Error, "upstream rejected credentials")
		return &AuthError{Kind: AuthInvalidCredentials, Message: msg}
	}
	return nil
}

func credentialError(doc *goquery.Document) (string, bool) {
	marker := doc.Find(".form-group.has-error, #error-message").First()
	if marker.Length() > 0 {
		return strings.TrimSpace(marker.Text()), true
	}
	if strings.Contains(strings.ToLower(doc.Text()), "invalid username or password") {
		return "invalid username or password", true
	}
	return "", false
}

var authCookieMarkers = []string{"session", "auth", "phpbb", "keycloak"}

func isAuthCookie(name string) bool {
	lower := strings.ToLower(name)
	for _, marker := range authCookieMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return strings.HasSuffix(lower, "sid")
}

// step 4: the upstream may silently no-op on bad input, so the real
// success criterion is an auth-looking cookie on a trusted domain.
func (c *Client) sessionEstablished() bool {
	for _, domain := range c.store.Domains() {
		for _, cookie := range c.store.Cookies(domain) {
			if isAuthCookie(cookie.Name) {
				return true
			}
		}
	}
	return false
}

// Login drives the redirect login handshake and, on success, returns
// the serialized session so a caller can replay it later without
// re-authenticating.
func (c *Client) Login(ctx context.Context, username, password string) ([]string, error) {
	ctx, span := tracer.Start(ctx, "client:Login")
	defer span.End()

	form, err := c.fetchLoginForm(ctx)
	if err != nil {
		span.SetStatus(codes.Error, "failed to reach login form")
		return nil, err
	}
	if err := c.submitCredentials(ctx, form, username, password); err != nil {
		span.SetStatus(codes.Error, "failed to authenticate")
		return nil, err
	}
	if !c.sessionEstablished() {
		span.SetStatus(codes.Error, "no session cookie after login")
		return nil, &AuthError{
			Kind:    AuthInvalidCredentials,
			Message: "upstream did not establish a session",
		}
	}

	return c.store.Export(), nil
}
