package http_test

import (
	"net/http"
	"testing"

	"github.com/aussiebroadwan/codeguide/internal/codeguide/store/drivers/memory"
	"github.com/stretchr/testify/require"
)

func TestDebugRoutesDisabled(t *testing.T) {
	tg := newTestGateway(t, gatewayOpts{}, jsonReply(http.StatusOK, `{}`))

	_, err := tg.client.ListUsers(t.Context())
	requireAPIError(t, err, http.StatusNotFound)

	err = tg.client.ClearAllData(t.Context())
	requireAPIError(t, err, http.StatusNotFound)
}

func TestListUsersAndClearAllData(t *testing.T) {
	tg := newTestGateway(t, gatewayOpts{debugRoutes: true}, jsonReply(http.StatusOK, `{}`))
	tg.registerAndLogin(t, "alice", "alice@example.com", "hunter22")
	tg.registerAndLogin(t, "bob", "bob@example.com", "swordfish")

	users, err := tg.client.ListUsers(t.Context())
	require.NoError(t, err)
	require.Len(t, users, 2)
	require.ElementsMatch(t, []string{"alice", "bob"}, []string{users[0].Username, users[1].Username})

	require.NoError(t, tg.client.ClearAllData(t.Context()))

	users, err = tg.client.ListUsers(t.Context())
	require.NoError(t, err)
	require.Empty(t, users)

	_, err = tg.client.Session(t.Context())
	requireAPIError(t, err, http.StatusUnauthorized)

	keys, err := tg.store.(*memory.Store).KV().Keys(t.Context())
	require.NoError(t, err)
	require.Empty(t, keys)
}
