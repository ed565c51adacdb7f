package dispatcharr

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"testing"
	"time"

	"ChannelSync/internal/config"
	"ChannelSync/internal/interfaces"

	"github.com/jarcoal/httpmock"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const baseURL = "http://dispatcharr.test"

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newMockedAdapter(t *testing.T, cfg config.DispatcharrConfig) *Adapter {
	t.Helper()
	cfg.BaseURL = baseURL
	cfg.Timeout = time.Second
	a, err := NewAdapter(&cfg, quietLogger())
	require.NoError(t, err)
	httpmock.ActivateNonDefault(a.HTTPClient())
	t.Cleanup(httpmock.DeactivateAndReset)
	return a
}

func TestFetchStreamsPaginates(t *testing.T) {
	a := newMockedAdapter(t, config.DispatcharrConfig{Token: "tok"})
	next := baseURL + "/api/channels/streams/?page=2"

	httpmock.RegisterResponderWithQuery(http.MethodGet, baseURL+"/api/channels/streams/",
		"page=1&page_size=500&channel_group_name=NFL",
		func(req *http.Request) (*http.Response, error) {
			assert.Equal(t, "Bearer tok", req.Header.Get("Authorization"))
			return httpmock.NewJsonResponse(http.StatusOK, map[string]interface{}{
				"count": 3, "next": next,
				"results": []map[string]interface{}{{"id": 1, "name": "NFL: Bears @ Packers"}, {"id": 2, "name": "NFL: Jets @ Bills"}},
			})
		})
	httpmock.RegisterResponderWithQuery(http.MethodGet, baseURL+"/api/channels/streams/",
		"page=2&page_size=500&channel_group_name=NFL",
		httpmock.NewJsonResponderOrPanic(http.StatusOK, map[string]interface{}{
			"count": 3, "next": nil,
			"results": []map[string]interface{}{{"id": 3, "name": "NFL RedZone"}},
		}))

	streams, err := a.FetchStreams(context.Background(), "NFL")
	require.NoError(t, err)
	require.Len(t, streams, 3)
	assert.Equal(t, uint64(3), streams[2].ID)
	assert.Equal(t, "NFL: Bears @ Packers", streams[0].Name)
}

func TestUpsertChannelCreatesWhenUnknown(t *testing.T) {
	a := newMockedAdapter(t, config.DispatcharrConfig{Token: "tok"})

	httpmock.RegisterResponderWithQuery(http.MethodGet, baseURL+"/api/channels/channels/", "tvg_id=c-1",
		httpmock.NewJsonResponderOrPanic(http.StatusOK, map[string]interface{}{"count": 0, "results": []interface{}{}}))
	httpmock.RegisterResponder(http.MethodPost, baseURL+"/api/channels/channels/",
		func(req *http.Request) (*http.Response, error) {
			var body map[string]interface{}
			require.NoError(t, json.NewDecoder(req.Body).Decode(&body))
			assert.Equal(t, "c-1", body["tvg_id"])
			assert.Equal(t, float64(1001), body["channel_number"])
			assert.Len(t, body["streams"], 2)
			return httpmock.NewJsonResponse(http.StatusCreated, map[string]interface{}{"id": 77})
		})

	id, err := a.UpsertChannel(context.Background(), interfaces.ProviderChannel{
		ChannelID: "c-1", Number: 1001, Name: "Bears @ Packers", StreamIDs: []uint64{1, 2},
	})
	require.NoError(t, err)
	assert.Equal(t, "77", id)
	info := httpmock.GetCallCountInfo()
	assert.Equal(t, 1, info["POST "+baseURL+"/api/channels/channels/"])
}

func TestUpsertChannelPatchesExisting(t *testing.T) {
	a := newMockedAdapter(t, config.DispatcharrConfig{Token: "tok"})
	httpmock.RegisterResponder(http.MethodPatch, baseURL+"/api/channels/channels/77/",
		httpmock.NewJsonResponderOrPanic(http.StatusOK, map[string]interface{}{"id": 77}))

	pid := "77"
	id, err := a.UpsertChannel(context.Background(), interfaces.ProviderChannel{ChannelID: "c-1", ProviderID: &pid, Number: 1002})
	require.NoError(t, err)
	assert.Equal(t, "77", id)
	assert.Equal(t, 1, httpmock.GetTotalCallCount())
}

func TestUpsertChannelRecreatesAfterRemoteDelete(t *testing.T) {
	a := newMockedAdapter(t, config.DispatcharrConfig{Token: "tok"})
	httpmock.RegisterResponder(http.MethodPatch, baseURL+"/api/channels/channels/77/",
		httpmock.NewStringResponder(http.StatusNotFound, `{"detail":"Not found."}`))
	httpmock.RegisterResponder(http.MethodPost, baseURL+"/api/channels/channels/",
		httpmock.NewJsonResponderOrPanic(http.StatusCreated, map[string]interface{}{"id": 80}))

	pid := "77"
	id, err := a.UpsertChannel(context.Background(), interfaces.ProviderChannel{ChannelID: "c-1", ProviderID: &pid})
	require.NoError(t, err)
	assert.Equal(t, "80", id)
}

func TestDeleteChannel(t *testing.T) {
	a := newMockedAdapter(t, config.DispatcharrConfig{Token: "tok"})
	httpmock.RegisterResponder(http.MethodDelete, baseURL+"/api/channels/channels/5/", httpmock.NewStringResponder(http.StatusNoContent, ""))
	httpmock.RegisterResponder(http.MethodDelete, baseURL+"/api/channels/channels/6/", httpmock.NewStringResponder(http.StatusNotFound, ""))
	httpmock.RegisterResponder(http.MethodDelete, baseURL+"/api/channels/channels/7/", httpmock.NewStringResponder(http.StatusInternalServerError, "boom"))

	assert.NoError(t, a.DeleteChannel(context.Background(), "5"))
	assert.NoError(t, a.DeleteChannel(context.Background(), "6"))
	err := a.DeleteChannel(context.Background(), "7")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusInternalServerError, apiErr.Status)
}

func TestLoginAndRetryOnUnauthorized(t *testing.T) {
	a := newMockedAdapter(t, config.DispatcharrConfig{Username: "admin", Password: "pw", Token: "stale"})
	logins := 0
	httpmock.RegisterResponder(http.MethodPost, baseURL+"/api/accounts/token/",
		func(req *http.Request) (*http.Response, error) {
			logins++
			return httpmock.NewJsonResponse(http.StatusOK, map[string]string{"access": "fresh"})
		})
	httpmock.RegisterResponder(http.MethodDelete, baseURL+"/api/channels/channels/5/",
		func(req *http.Request) (*http.Response, error) {
			if req.Header.Get("Authorization") != "Bearer fresh" {
				return httpmock.NewStringResponse(http.StatusUnauthorized, ""), nil
			}
			return httpmock.NewStringResponse(http.StatusNoContent, ""), nil
		})

	require.NoError(t, a.DeleteChannel(context.Background(), "5"))
	assert.Equal(t, 1, logins)
}

func TestNewAdapterRequiresBaseURL(t *testing.T) {
	_, err := NewAdapter(&config.DispatcharrConfig{}, quietLogger())
	assert.Error(t, err)
}
