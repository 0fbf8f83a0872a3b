package browser

import (
	"context"
	"fmt"

	"github.com/mafredri/cdp"
	"github.com/mafredri/cdp/devtool"
	"github.com/mafredri/cdp/protocol/fetch"
	"github.com/mafredri/cdp/protocol/network"
	"github.com/mafredri/cdp/protocol/page"
	"github.com/mafredri/cdp/rpcc"
)

// DevToolsLister lists page targets from a Chrome remote debugging
// endpoint such as http://127.0.0.1:9222.
func DevToolsLister(endpoint string) Lister {
	dt := devtool.New(endpoint)
	return func(ctx context.Context) ([]Target, error) {
		list, err := dt.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("list devtools targets: %w", err)
		}
		out := make([]Target, 0, len(list))
		for _, t := range list {
			if t.Type != devtool.Page || t.WebSocketDebuggerURL == "" {
				continue
			}
			out = append(out, Target{ID: t.ID, URL: t.URL, WebSocketURL: t.WebSocketDebuggerURL})
		}
		return out, nil
	}
}

// DialCDP opens a DevTools connection to target.
func DialCDP(ctx context.Context, target Target) (TabClient, error) {
	conn, err := rpcc.DialContext(ctx, target.WebSocketURL)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", target.ID, err)
	}
	return &cdpTab{conn: conn, client: cdp.NewClient(conn)}, nil
}

type cdpTab struct {
	conn   *rpcc.Conn
	client *cdp.Client
}

func (t *cdpTab) TopFrame(ctx context.Context) (string, error) {
	tree, err := t.client.Page.GetFrameTree(ctx)
	if err != nil {
		return "", err
	}
	return string(tree.FrameTree.Frame.ID), nil
}

func (t *cdpTab) Intercept(ctx context.Context) (PausedStream, error) {
	paused, err := t.client.Fetch.RequestPaused(ctx)
	if err != nil {
		return nil, err
	}
	args := fetch.NewEnableArgs().SetPatterns([]fetch.RequestPattern{documentPattern()})
	if err := t.client.Fetch.Enable(ctx, args); err != nil {
		_ = paused.Close()
		return nil, err
	}
	return cdpStream{paused}, nil
}

// documentPattern pauses every document request before it is sent.
func documentPattern() fetch.RequestPattern {
	pattern := "*"
	rt := network.ResourceTypeDocument
	return fetch.RequestPattern{
		URLPattern:   &pattern,
		ResourceType: &rt,
		RequestStage: fetch.RequestStageRequest,
	}
}

func (t *cdpTab) Continue(ctx context.Context, requestID string) error {
	return t.client.Fetch.ContinueRequest(ctx, fetch.NewContinueRequestArgs(fetch.RequestID(requestID)))
}

func (t *cdpTab) Fail(ctx context.Context, requestID string) error {
	return t.client.Fetch.FailRequest(ctx, fetch.NewFailRequestArgs(fetch.RequestID(requestID), network.ErrorReasonBlockedByClient))
}

func (t *cdpTab) Navigate(ctx context.Context, url string) error {
	reply, err := t.client.Page.Navigate(ctx, page.NewNavigateArgs(url))
	if err != nil {
		return err
	}
	if reply.ErrorText != nil && *reply.ErrorText != "" {
		return fmt.Errorf("navigate: %s", *reply.ErrorText)
	}
	return nil
}

func (t *cdpTab) Close() error { return t.conn.Close() }

type cdpStream struct {
	fetch.RequestPausedClient
}

func (s cdpStream) Next() (Paused, error) {
	ev, err := s.Recv()
	if err != nil {
		return Paused{}, err
	}
	return Paused{
		RequestID: string(ev.RequestID),
		URL:       ev.Request.URL,
		FrameID:   string(ev.FrameID),
	}, nil
}
