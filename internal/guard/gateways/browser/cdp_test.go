package browser

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mafredri/cdp/protocol/fetch"
	"github.com/mafredri/cdp/protocol/network"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentPattern(t *testing.T) {
	p := documentPattern()

	require.NotNil(t, p.URLPattern)
	assert.Equal(t, "*", *p.URLPattern)
	require.NotNil(t, p.ResourceType)
	assert.Equal(t, network.ResourceTypeDocument, *p.ResourceType)
	assert.Equal(t, fetch.RequestStageRequest, p.RequestStage)
}

func TestDevToolsLister_PagesOnly(t *testing.T) {
	targets := `[
		{"id":"tab-1","type":"page","url":"https://a.example/","webSocketDebuggerUrl":"ws://127.0.0.1:9222/devtools/page/tab-1"},
		{"id":"sw-1","type":"service_worker","url":"https://a.example/sw.js","webSocketDebuggerUrl":"ws://127.0.0.1:9222/devtools/page/sw-1"},
		{"id":"tab-2","type":"page","url":"https://b.example/"}
	]`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(targets))
	}))
	defer srv.Close()

	got, err := DevToolsLister(srv.URL)(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []Target{{
		ID:           "tab-1",
		URL:          "https://a.example/",
		WebSocketURL: "ws://127.0.0.1:9222/devtools/page/tab-1",
	}}, got)
}

func TestDevToolsLister_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	_, err := DevToolsLister(srv.URL)(context.Background())
	assert.Error(t, err)
}
