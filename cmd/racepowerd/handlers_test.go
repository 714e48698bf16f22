package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"racepower-backend/lib/zwiftpower"
	"racepower-backend/lib/zwiftpower/zptest"
	"racepower-backend/services/racedata"

	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, upstream *zptest.Upstream) *httptest.Server {
	svc := racedata.NewService(racedata.ServiceOptions{
		Client: upstream.ClientOptions(),
	})
	mux := http.NewServeMux()
	RegisterRoutes(mux, svc)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func postLogin(t *testing.T, server *httptest.Server, username, password string) *http.Response {
	body, err := json.Marshal(loginRequest{Username: username, Password: password})
	require.NoError(t, err)
	res, err := http.Post(server.URL+"/api/login", "application/json", strings.NewReader(string(body)))
	require.NoError(t, err)
	t.Cleanup(func() { res.Body.Close() })
	return res
}

func TestHealthRoute(t *testing.T) {
	server := newTestServer(t, zptest.New(t))

	res, err := http.Get(server.URL + "/api/health")
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)
}

func TestLoginRoute(t *testing.T) {
	upstream := zptest.New(t)
	upstream.SetResults("42", `{"data":[{"zwid":"1","name":"Solo"}]}`)
	server := newTestServer(t, upstream)

	res := postLogin(t, server, zptest.Username, zptest.Password)
	require.Equal(t, http.StatusOK, res.StatusCode)

	var login loginResponse
	require.NoError(t, json.NewDecoder(res.Body).Decode(&login))
	require.NotEmpty(t, login.Session)

	// replay the returned session against a data route
	sessionJSON, err := json.Marshal(login.Session)
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodGet, server.URL+"/api/race/42/riders", nil)
	require.NoError(t, err)
	req.Header.Set(sessionHeader, string(sessionJSON))

	dataRes, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer dataRes.Body.Close()
	require.Equal(t, http.StatusOK, dataRes.StatusCode)

	var roster []zwiftpower.Rider
	require.NoError(t, json.NewDecoder(dataRes.Body).Decode(&roster))
	require.Len(t, roster, 1)
	require.Equal(t, "Solo", roster[0].Name)
}

func TestLoginRouteRejectsBadCredentials(t *testing.T) {
	server := newTestServer(t, zptest.New(t))

	const badPassword = "wrong-password"
	res := postLogin(t, server, zptest.Username, badPassword)
	require.Equal(t, http.StatusUnauthorized, res.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	require.NotContains(t, body["error"], badPassword)
	require.NotContains(t, body["error"], zptest.Username)
}

func TestLoginRouteValidation(t *testing.T) {
	server := newTestServer(t, zptest.New(t))

	res := postLogin(t, server, "", "")
	require.Equal(t, http.StatusBadRequest, res.StatusCode)

	res = postLogin(t, server, zptest.Username, strings.Repeat("x", maxCredentialLength+1))
	require.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func TestAnalysisRoute(t *testing.T) {
	upstream := zptest.New(t)
	upstream.SetResults("9", `{"data":[{"zwid":"1","name":"A"}]}`)
	upstream.SetView("9", `{"data":[]}`)
	upstream.SetAnalysis("9", "1", `{"datasets":[]}`)
	server := newTestServer(t, upstream)

	res, err := http.Get(server.URL + "/api/race/9/analysis")
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)

	var out []map[string]any
	require.NoError(t, json.NewDecoder(res.Body).Decode(&out))
	require.Len(t, out, 1)
	require.Equal(t, "A", out[0]["name"])
}

func TestMalformedSessionHeader(t *testing.T) {
	server := newTestServer(t, zptest.New(t))

	req, err := http.NewRequest(http.MethodGet, server.URL+"/api/race/9/riders", nil)
	require.NoError(t, err)
	req.Header.Set(sessionHeader, "not-json")

	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusBadRequest, res.StatusCode)
}
