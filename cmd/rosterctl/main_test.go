package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"example.com/roster/internal/api"
	"example.com/roster/internal/domain"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	seed, err := domain.DefaultSeed()
	require.NoError(t, err)
	roster, err := domain.NewRoster(seed)
	require.NoError(t, err)

	mux := http.NewServeMux()
	api.NewHandler(domain.NewService(roster, nil)).RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestRunSignupListWithdraw(t *testing.T) {
	srv := newServer(t)
	var out, errOut bytes.Buffer

	err := run(context.Background(), []string{"--server", srv.URL, "signup", "--activity", "Chess Club", "--email", "cli@mergington.edu"}, &out, &errOut)
	require.NoError(t, err)
	require.Equal(t, "Signed up cli@mergington.edu for Chess Club\n", out.String())

	out.Reset()
	require.NoError(t, run(context.Background(), []string{"--server", srv.URL, "list"}, &out, &errOut))
	require.Contains(t, out.String(), "Chess Club (3/12)")
	require.Contains(t, out.String(), "  cli@mergington.edu\n")

	out.Reset()
	err = run(context.Background(), []string{"--server", srv.URL, "withdraw", "-a", "Chess Club", "-e", "cli@mergington.edu"}, &out, &errOut)
	require.NoError(t, err)
	require.Equal(t, "Unregistered cli@mergington.edu from Chess Club\n", out.String())
}

func TestRunReportsServerDetail(t *testing.T) {
	srv := newServer(t)
	var out, errOut bytes.Buffer

	err := run(context.Background(), []string{"--server", srv.URL, "signup", "--activity", "Soccer Team", "--email", "alex@mergington.edu"}, &out, &errOut)
	require.ErrorContains(t, err, "Student already signed up for this activity")
}

func TestRunValidatesArguments(t *testing.T) {
	var out, errOut bytes.Buffer

	require.ErrorContains(t, run(context.Background(), nil, &out, &errOut), "missing command")
	require.ErrorContains(t, run(context.Background(), []string{"dance"}, &out, &errOut), `unknown command "dance"`)
	require.ErrorContains(t, run(context.Background(), []string{"signup", "--activity", "Chess Club"}, &out, &errOut), "requires --activity and --email")
}
