package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestListActivitiesKeepsServerOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/activities", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"Soccer Team":{"description":"d1","schedule":"s1","max_participants":25,"participants":["alex@mergington.edu"]},` +
			`"Art Studio":{"description":"d2","schedule":"s2","max_participants":18,"participants":[]}}`))
	}))
	defer srv.Close()

	activities, err := New(srv.URL+"/", nil).ListActivities(context.Background())
	require.NoError(t, err)
	require.Len(t, activities, 2)
	require.Equal(t, "Soccer Team", activities[0].Name)
	require.Equal(t, []string{"alex@mergington.edu"}, activities[0].Participants)
	require.Equal(t, "Art Studio", activities[1].Name)
	require.Equal(t, 18, activities[1].MaxParticipants)
}

func TestSignUpEscapesPathAndQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/activities/Programming%20Class/signup", r.URL.EscapedPath())
		require.Equal(t, "test+user@mergington.edu", r.URL.Query().Get("email"))
		_, _ = w.Write([]byte(`{"message":"Signed up test+user@mergington.edu for Programming Class"}`))
	}))
	defer srv.Close()

	msg, err := New(srv.URL, nil).SignUp(context.Background(), "Programming Class", "test+user@mergington.edu")
	require.NoError(t, err)
	require.Equal(t, "Signed up test+user@mergington.edu for Programming Class", msg)
}

func TestUnregisterSurfacesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodDelete, r.Method)
		require.Equal(t, "/activities/Soccer Team/participants/ghost@mergington.edu", r.URL.Path)
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"type":"not_found","detail":"Participant not found in this activity"}`))
	}))
	defer srv.Close()

	_, err := New(srv.URL, nil).Unregister(context.Background(), "Soccer Team", "ghost@mergington.edu")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	require.Equal(t, "Participant not found in this activity", apiErr.Detail)
	require.ErrorContains(t, err, "Participant not found in this activity")
}

func TestAPIErrorWithoutBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := New(srv.URL, nil).ListActivities(context.Background())
	require.EqualError(t, err, "roster api: status 502")
}
