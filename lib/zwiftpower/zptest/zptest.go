// Package zptest runs a fake ZwiftPower and Zwift SSO pair on
// httptest servers so the scrape pipeline can be exercised hermetically.
package zptest

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"racepower-backend/lib/zwiftpower"

	"github.com/mazen160/go-random"
)

const (
	Username = "rider@example.com"
	Password = "correct-horse"
	// SilentUsername gets a clean page back but never a cookie,
	// mirroring an upstream that silently no-ops on bad input.
	SilentUsername = "silent@example.com"
)

type Upstream struct {
	ZwiftPower *httptest.Server
	Auth       *httptest.Server

	sessionValue string

	mu           sync.Mutex
	results      map[string]string
	views        map[string]string
	analysis     map[string]string
	eventPages   map[string]string
	profilePages map[string]string
	fits         map[string][]byte

	rateLimit       int32
	dataRequests    int32
	brokenLoginForm bool
}

func New(t testing.TB) *Upstream {
	sessionValue, err := random.String(24)
	if err != nil {
		t.Fatal(err)
	}

	u := &Upstream{
		sessionValue: sessionValue,
		results:      map[string]string{},
		views:        map[string]string{},
		analysis:     map[string]string{},
		eventPages:   map[string]string{},
		profilePages: map[string]string{},
		fits:         map[string][]byte{},
	}

	zpMux := http.NewServeMux()
	authMux := http.NewServeMux()
	u.ZwiftPower = httptest.NewServer(zpMux)
	u.Auth = httptest.NewServer(authMux)
	t.Cleanup(u.ZwiftPower.Close)
	t.Cleanup(u.Auth.Close)

	zpMux.HandleFunc("/ucp.php", u.handleLoginEntry)
	zpMux.HandleFunc("/api3.php", u.handleApi)
	zpMux.HandleFunc("/cache3/results/", u.handleViewFeed)
	zpMux.HandleFunc("/events.php", u.handleEventPage)
	zpMux.HandleFunc("/profile.php", u.handleProfilePage)
	zpMux.HandleFunc("/activity/", u.handleActivityFit)

	authMux.HandleFunc("/auth/realms/zwift/protocol/openid-connect/auth", u.handleLoginForm)
	authMux.HandleFunc("/auth/realms/zwift/login-actions/authenticate", u.handleAuthenticate)

	return u
}

// ClientOptions points a client at the fake pair with a retry delay
// small enough for tests.
func (u *Upstream) ClientOptions() zwiftpower.ClientOptions {
	return zwiftpower.ClientOptions{
		BaseUrl:                 u.ZwiftPower.URL,
		AuthBaseUrl:             u.Auth.URL,
		ActivityBaseUrl:         u.ZwiftPower.URL,
		Timeout:                 time.Second * 5,
		RetryBaseDelay:          time.Millisecond * 5,
		DisableCloudflareBypass: true,
	}
}

func (u *Upstream) SetResults(raceID, body string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.results[raceID] = body
}

func (u *Upstream) SetView(raceID, body string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.views[raceID] = body
}

func (u *Upstream) SetAnalysis(raceID, riderID, body string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.analysis[raceID+"/"+riderID] = body
}

func (u *Upstream) SetEventPage(raceID, html string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.eventPages[raceID] = html
}

func (u *Upstream) SetProfilePage(riderID, html string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.profilePages[riderID] = html
}

func (u *Upstream) SetFit(activityID string, data []byte) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.fits[activityID] = data
}

// RateLimitNext makes the next n data requests answer 429.
func (u *Upstream) RateLimitNext(n int32) {
	atomic.StoreInt32(&u.rateLimit, n)
}

// BreakLoginForm makes the identity provider serve a page without a
// login form, simulating an upstream flow change.
func (u *Upstream) BreakLoginForm() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.brokenLoginForm = true
}

// DataRequests counts requests served by the data endpoints, including
// rate-limited ones.
func (u *Upstream) DataRequests() int32 {
	return atomic.LoadInt32(&u.dataRequests)
}

func (u *Upstream) rateLimited(w http.ResponseWriter) bool {
	if atomic.AddInt32(&u.rateLimit, -1) >= 0 {
		w.WriteHeader(http.StatusTooManyRequests)
		return true
	}
	return false
}

func (u *Upstream) handleLoginEntry(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("code") != "" {
		// oauth callback leg: establish the site session
		http.SetCookie(w, &http.Cookie{
			Name:  "phpbb3_zprace_sid",
			Value: u.sessionValue,
			Path:  "/",
		})
		fmt.Fprint(w, "<html><body>logged in</body></html>")
		return
	}
	http.Redirect(w, r,
		u.Auth.URL+"/auth/realms/zwift/protocol/openid-connect/auth",
		http.StatusFound,
	)
}

func (u *Upstream) handleLoginForm(w http.ResponseWriter, r *http.Request) {
	u.mu.Lock()
	broken := u.brokenLoginForm
	u.mu.Unlock()

	if broken {
		fmt.Fprint(w, "<html><body><p>maintenance</p></body></html>")
		return
	}
	// relative action on purpose, the real keycloak does this too
	fmt.Fprint(w, `<html><body>
<form id="form" action="/auth/realms/zwift/login-actions/authenticate" method="post">
<input name="username"/><input name="password" type="password"/>
</form>
</body></html>`)
}

func (u *Upstream) handleAuthenticate(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if r.PostForm.Get("username") == SilentUsername {
		fmt.Fprint(w, "<html><body>please wait...</body></html>")
		return
	}
	if r.PostForm.Get("username") != Username || r.PostForm.Get("password") != Password {
		fmt.Fprint(w, `<html><body>
<div class="form-group has-error"><span id="error-message">Invalid username or password.</span></div>
</body></html>`)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:  "KEYCLOAK_SESSION",
		Value: u.sessionValue,
		Path:  "/",
	})
	http.Redirect(w, r,
		u.ZwiftPower.URL+"/ucp.php?mode=login&code=ok",
		http.StatusFound,
	)
}

func (u *Upstream) handleApi(w http.ResponseWriter, r *http.Request) {
	atomic.AddInt32(&u.dataRequests, 1)
	if u.rateLimited(w) {
		return
	}

	q := r.URL.Query()
	u.mu.Lock()
	defer u.mu.Unlock()

	switch q.Get("do") {
	case "event_results":
		body, ok := u.results[q.Get("zid")]
		if !ok {
			// unknown races still answer 200, just without the
			// data collection
			fmt.Fprint(w, `{"message":"unknown event"}`)
			return
		}
		fmt.Fprint(w, body)
	case "analysis":
		body, ok := u.analysis[q.Get("zwift_event_id")+"/"+q.Get("zwift_id")]
		if !ok {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, body)
	default:
		http.NotFound(w, r)
	}
}

func (u *Upstream) handleViewFeed(w http.ResponseWriter, r *http.Request) {
	atomic.AddInt32(&u.dataRequests, 1)
	if u.rateLimited(w) {
		return
	}

	raceID := strings.TrimSuffix(
		strings.TrimPrefix(r.URL.Path, "/cache3/results/"),
		"_view.json",
	)
	u.mu.Lock()
	defer u.mu.Unlock()
	body, ok := u.views[raceID]
	if !ok {
		http.NotFound(w, r)
		return
	}
	fmt.Fprint(w, body)
}

func (u *Upstream) handleEventPage(w http.ResponseWriter, r *http.Request) {
	atomic.AddInt32(&u.dataRequests, 1)
	u.mu.Lock()
	defer u.mu.Unlock()
	page, ok := u.eventPages[r.URL.Query().Get("zid")]
	if !ok {
		http.NotFound(w, r)
		return
	}
	fmt.Fprint(w, page)
}

func (u *Upstream) handleProfilePage(w http.ResponseWriter, r *http.Request) {
	atomic.AddInt32(&u.dataRequests, 1)
	u.mu.Lock()
	defer u.mu.Unlock()
	page, ok := u.profilePages[r.URL.Query().Get("z")]
	if !ok {
		http.NotFound(w, r)
		return
	}
	fmt.Fprint(w, page)
}

func (u *Upstream) handleActivityFit(w http.ResponseWriter, r *http.Request) {
	atomic.AddInt32(&u.dataRequests, 1)
	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/activity/"), "/")
	u.mu.Lock()
	defer u.mu.Unlock()
	data, ok := u.fits[parts[0]]
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("content-type", "application/octet-stream")
	w.Write(data)
}
