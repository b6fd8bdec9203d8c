package launcher

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/danmuck/apptree/internal/sharedvalue"
	"github.com/stretchr/testify/require"
)

func serveStatus(t *testing.T, h http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestStatusRoutes(t *testing.T) {
	l, _ := newTestLauncher(t, counterTree(), true)
	status := NewStatusServer(l, nil)
	h := status.Handler()

	require.Equal(t, StateNew, l.State())
	w := serveStatus(t, h, http.MethodGet, "/values")
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	w = serveStatus(t, h, http.MethodGet, "/ready")
	require.Equal(t, http.StatusServiceUnavailable, w.Code)

	store, err := l.PrepareForLaunching()
	require.NoError(t, err)
	require.Equal(t, StatePrepared, l.State())
	l.Launch(store)
	require.Equal(t, StateRunning, l.State())

	w = serveStatus(t, h, http.MethodGet, "/health")
	require.Equal(t, http.StatusOK, w.Code)
	w = serveStatus(t, h, http.MethodGet, "/ready")
	require.Equal(t, http.StatusOK, w.Code)

	w = serveStatus(t, h, http.MethodGet, "/apps")
	require.Equal(t, http.StatusOK, w.Code)
	var apps struct {
		Root struct {
			Name     string `json:"name"`
			Children []struct {
				Name string `json:"name"`
				Mode string `json:"mode"`
			} `json:"children"`
		} `json:"root"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &apps))
	require.Equal(t, "MAIN", apps.Root.Name)
	require.Len(t, apps.Root.Children, 1)
	require.Equal(t, "MAIN.C", apps.Root.Children[0].Name)
	require.Equal(t, "process", apps.Root.Children[0].Mode)

	w = serveStatus(t, h, http.MethodGet, "/values")
	require.Equal(t, http.StatusOK, w.Code)
	var values struct {
		Values []ValueStatus `json:"values"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &values))
	names := map[string]string{}
	for _, v := range values.Values {
		names[v.Name] = v.Owner
	}
	require.Equal(t, "", names[sharedvalue.ShutdownName])
	require.Equal(t, "MAIN.C", names["MAIN.C.hits"])

	w = serveStatus(t, h, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, w.Code)

	w = serveStatus(t, h, http.MethodPost, "/shutdown")
	require.Equal(t, http.StatusAccepted, w.Code)

	joined := make(chan error, 1)
	go func() { joined <- l.Join() }()
	select {
	case err := <-joined:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		require.FailNow(t, "tree did not end after POST /shutdown")
	}
	require.Equal(t, StateEnded, l.State())
}
