package server

import (
	"context"
	"encoding/json"
	"fmt"
	"github.com/jayjOnly/VA-Validator/database"
	"github.com/jayjOnly/VA-Validator/models"
	"github.com/jayjOnly/VA-Validator/plugin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func newManager(t *testing.T) *plugin.Manager {
	t.Helper()
	pm := plugin.NewManager()
	require.NoError(t, pm.Register(&plugin.Func{
		PluginID:   "11213",
		PluginName: "HTTP TRACE / TRACK Methods Allowed",
		ProbeFunc: func(ctx context.Context, host string, port int) (plugin.Verdict, error) {
			return plugin.Confirmed("TRACE 200 on %s:%d", host, port), nil
		},
	}))
	return pm
}

func newStore(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.New(filepath.Join(t.TempDir(), "va.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func request(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, v), string(data))
}

func TestValidateHandler(t *testing.T) {
	db := newStore(t)
	app := New(newManager(t), db, Config{})

	resp, err := app.Test(request(http.MethodPost, "/validate",
		`{"findings":[{"plugin_id":"11213","host":"10.0.0.1","port":80},{"plugin_id":"99999","host":"10.0.0.2","port":22}],"workers":2}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got ValidateResponse
	decode(t, resp, &got)
	assert.NotEmpty(t, got.RunID)
	assert.Equal(t, 2, got.Summary.Total)
	require.Len(t, got.Records, 2)
	assert.Equal(t, models.StatusConfirmed, got.Records[0].Status)
	assert.Equal(t, "TRACE 200 on 10.0.0.1:80", got.Records[0].Detail)
	assert.Equal(t, models.StatusNotRegistered, got.Records[1].Status)

	run, err := db.FetchRun(got.RunID)
	require.NoError(t, err)
	assert.Len(t, run.Records, 2)
	assert.Equal(t, 2, run.Workers)
}

func findingsBody(id string, n, workers int) string {
	parts := make([]string, 0, n)
	for i := 0; i < n; i++ {
		parts = append(parts, fmt.Sprintf(`{"plugin_id":%q,"host":"10.0.0.%d","port":443}`, id, i+1))
	}
	return fmt.Sprintf(`{"findings":[%s],"workers":%d}`, strings.Join(parts, ","), workers)
}

func TestValidateHandler_WorkersCapped(t *testing.T) {
	var (
		mu        sync.Mutex
		active    int
		maxActive int
	)

	pm := plugin.NewManager()
	require.NoError(t, pm.Register(&plugin.Func{
		PluginID: "slow",
		ProbeFunc: func(ctx context.Context, host string, port int) (plugin.Verdict, error) {
			mu.Lock()
			active++
			if active > maxActive {
				maxActive = active
			}
			mu.Unlock()

			time.Sleep(10 * time.Millisecond)

			mu.Lock()
			active--
			mu.Unlock()
			return plugin.NotReproducible("ok"), nil
		},
	}))
	db := newStore(t)
	app := New(pm, db, Config{Options: plugin.Options{Workers: 2}})

	resp, err := app.Test(request(http.MethodPost, "/validate", findingsBody("slow", 20, 200)))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got ValidateResponse
	decode(t, resp, &got)
	assert.Equal(t, 20, got.Summary.Total)

	mu.Lock()
	assert.LessOrEqual(t, maxActive, 2)
	assert.Greater(t, maxActive, 0)
	mu.Unlock()

	run, err := db.FetchRun(got.RunID)
	require.NoError(t, err)
	assert.Equal(t, 2, run.Workers)
}

func TestValidateHandler_ServerStopped(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	app := newApp(ctx, newManager(t), nil, Config{})

	resp, err := app.Test(request(http.MethodPost, "/validate", findingsBody("11213", 3, 0)))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got ValidateResponse
	decode(t, resp, &got)
	require.Len(t, got.Records, 3)
	for _, r := range got.Records {
		assert.Equal(t, models.StatusIndeterminate, r.Status)
		assert.Equal(t, "batch cancelled before probe started", r.Detail)
	}
}

func TestValidateHandler_Invalid(t *testing.T) {
	app := New(newManager(t), nil, Config{})

	for name, body := range map[string]string{
		"not json":     `{"findings":`,
		"empty":        `{"findings":[]}`,
		"missing host": `{"findings":[{"plugin_id":"11213","port":80}]}`,
		"bad port":     `{"findings":[{"plugin_id":"11213","host":"10.0.0.1","port":70000}]}`,
	} {
		t.Run(name, func(t *testing.T) {
			resp, err := app.Test(request(http.MethodPost, "/validate", body))
			require.NoError(t, err)
			assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

			var got response
			decode(t, resp, &got)
			assert.True(t, got.Error)
		})
	}
}

func TestPluginsHandler(t *testing.T) {
	app := New(newManager(t), nil, Config{})

	resp, err := app.Test(request(http.MethodGet, "/plugins", ""))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got PluginsResponse
	decode(t, resp, &got)
	assert.Equal(t, 1, got.Count)
	assert.Equal(t, "11213", got.Plugins[0].ID)
}

func TestRunsHandlers(t *testing.T) {
	db := newStore(t)
	app := New(newManager(t), db, Config{})

	resp, err := app.Test(request(http.MethodPost, "/validate", `{"findings":[{"plugin_id":"11213","host":"10.0.0.1","port":80}]}`))
	require.NoError(t, err)
	var created ValidateResponse
	decode(t, resp, &created)

	resp, err = app.Test(request(http.MethodGet, "/runs?limit=5", ""))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var runs RunsResponse
	decode(t, resp, &runs)
	require.Len(t, runs.Runs, 1)
	assert.Equal(t, created.RunID, runs.Runs[0].RunID)

	resp, err = app.Test(request(http.MethodGet, "/runs/"+created.RunID, ""))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var run database.Run
	decode(t, resp, &run)
	assert.Len(t, run.Records, 1)

	resp, err = app.Test(request(http.MethodGet, "/runs/unknown", ""))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = app.Test(request(http.MethodGet, "/runs?limit=-1", ""))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestRunsHandlers_Disabled(t *testing.T) {
	app := New(newManager(t), nil, Config{})

	resp, err := app.Test(request(http.MethodGet, "/runs", ""))
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
