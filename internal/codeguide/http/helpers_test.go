package http_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	cghttp "github.com/aussiebroadwan/codeguide/internal/codeguide/http"
	"github.com/aussiebroadwan/codeguide/internal/codeguide/service"
	"github.com/aussiebroadwan/codeguide/internal/codeguide/store"
	"github.com/aussiebroadwan/codeguide/internal/codeguide/store/drivers/memory"
	"github.com/aussiebroadwan/codeguide/pkg/codeguidesdk"
	"github.com/aussiebroadwan/codeguide/pkg/cryptox"
	"github.com/aussiebroadwan/codeguide/pkg/jwtx"
	"github.com/aussiebroadwan/codeguide/pkg/slogx"
	"github.com/stretchr/testify/require"
)

const (
	testIssuer = "codeguide-test"
	testKey    = "sk-or-v1-test"
)

type gatewayOpts struct {
	requireSession bool
	debugRoutes    bool
	serverKey      string

	// upstreamTimeout, when set, uses the production upstream client.
	upstreamTimeout time.Duration
}

type testGateway struct {
	router *cghttp.Router
	srv    *httptest.Server
	client *codeguidesdk.Client
	store  store.Store

	// upstream is the last request seen by the fake OpenRouter.
	upstream *upstreamCall
}

type upstreamCall struct {
	method string
	path   string
	header http.Header
	body   []byte
}

// upstreamFunc answers fake OpenRouter calls.
type upstreamFunc func(w http.ResponseWriter, r *http.Request)

func jsonReply(status int, body string) upstreamFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}
}

// newTestGateway serves a Router backed by a memory store and a fake upstream.
func newTestGateway(t *testing.T, opts gatewayOpts, reply upstreamFunc) *testGateway {
	t.Helper()

	tg := &testGateway{store: memory.NewStore(), upstream: &upstreamCall{}}

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tg.upstream.method = r.Method
		tg.upstream.path = r.URL.RequestURI()
		tg.upstream.header = r.Header.Clone()
		tg.upstream.body, _ = io.ReadAll(r.Body)
		reply(w, r)
	}))
	t.Cleanup(upstream.Close)

	pemKey, err := cryptox.GenerateEd25519Key()
	require.NoError(t, err)
	signer, err := jwtx.NewSignerEdDSA("session", pemKey)
	require.NoError(t, err)

	router := cghttp.NewRouter("test", tg.store, signer, slogx.Discard())
	router.CredentialService = &service.CredentialService{
		Store:    tg.store,
		Signer:   signer,
		Verifier: jwtx.NewVerifierEdDSA(signer.KID(), signer.PublicKey(), testIssuer),
		Issuer:   testIssuer,
	}
	client := upstream.Client()
	if opts.upstreamTimeout > 0 {
		client = service.NewUpstreamClient(opts.upstreamTimeout)
	}
	router.GatewayService = &service.GatewayService{
		BaseURL:    upstream.URL + "/api/v1",
		HTTPClient: client,
		ServerKey:  opts.serverKey,
	}
	router.AppURL = "http://app.example"
	router.RequireSession = opts.requireSession
	router.DebugRoutes = opts.debugRoutes
	router.ApplyRoutes()

	tg.router = router
	tg.srv = httptest.NewServer(router)
	t.Cleanup(tg.srv.Close)
	tg.client = codeguidesdk.NewClient(tg.srv.URL)
	return tg
}

func (tg *testGateway) registerAndLogin(t *testing.T, username, email, password string) *codeguidesdk.SessionResponse {
	t.Helper()
	_, err := tg.client.Register(t.Context(), codeguidesdk.RegisterRequest{
		Username:        username,
		Email:           email,
		Password:        password,
		ConfirmPassword: password,
	})
	require.NoError(t, err)

	sess, err := tg.client.Login(t.Context(), email, password)
	require.NoError(t, err)
	return sess
}

// requireAPIError asserts err is an *APIError with status and returns it.
func requireAPIError(t *testing.T, err error, status int) *codeguidesdk.APIError {
	t.Helper()
	require.Error(t, err)
	var apiErr *codeguidesdk.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, status, apiErr.StatusCode, "message: %s", apiErr.Message)
	return apiErr
}
