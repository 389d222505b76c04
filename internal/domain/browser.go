package domain

import (
	"context"
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/amoylab/janus/internal/protocol"
)

// Version is the result of Browser.getVersion.
type Version struct {
	ProtocolVersion string `json:"protocolVersion"`
	Product         string `json:"product"`
	Revision        string `json:"revision"`
	UserAgent       string `json:"userAgent"`
	JSVersion       string `json:"jsVersion"`
}

// Browser wraps browser-level methods.
type Browser struct {
	base
}

func NewBrowser(conn Conn) *Browser {
	return &Browser{base{conn: conn, name: "Browser"}}
}

func (b *Browser) GetVersion(ctx context.Context) (Version, error) {
	return call[Version](ctx, b.base, "getVersion", nil)
}

// Close asks the browser to exit.
func (b *Browser) Close(ctx context.Context) error {
	return b.exec(ctx, "close", nil)
}

// TargetInfo describes a debuggable target.
type TargetInfo struct {
	TargetID         string `json:"targetId"`
	Type             string `json:"type"`
	Title            string `json:"title"`
	URL              string `json:"url"`
	Attached         bool   `json:"attached"`
	OpenerID         string `json:"openerId,omitempty"`
	BrowserContextID string `json:"browserContextId,omitempty"`
}

// Target wraps target discovery and lifecycle methods. Attaching goes through
// the client so the session is registered for routing.
type Target struct {
	base
}

func NewTarget(conn Conn) *Target {
	return &Target{base{conn: conn, name: "Target"}}
}

func (t *Target) GetTargets(ctx context.Context) ([]TargetInfo, error) {
	res, err := call[struct {
		TargetInfos []TargetInfo `json:"targetInfos"`
	}](ctx, t.base, "getTargets", nil)
	if err != nil {
		return nil, err
	}
	return res.TargetInfos, nil
}

// CreateTarget opens url in a new page and returns its target ID. An empty
// url opens about:blank.
func (t *Target) CreateTarget(ctx context.Context, url string) (string, error) {
	if url == "" {
		url = "about:blank"
	}
	raw, err := t.raw(ctx, "createTarget", map[string]string{"url": url})
	if err != nil {
		return "", err
	}
	id := gjson.GetBytes(raw, "targetId")
	if id.Type != gjson.String {
		return "", fmt.Errorf("%s: %w: no targetId", t.method("createTarget"), protocol.ErrMalformed)
	}
	return id.Str, nil
}

func (t *Target) CloseTarget(ctx context.Context, targetID string) error {
	return t.exec(ctx, "closeTarget", map[string]string{"targetId": targetID})
}

// SetDiscoverTargets toggles Target.targetCreated/Destroyed/InfoChanged events.
func (t *Target) SetDiscoverTargets(ctx context.Context, discover bool) error {
	return t.exec(ctx, "setDiscoverTargets", map[string]bool{"discover": discover})
}

// SetAutoAttach makes the browser attach to new related targets in flattened
// mode. The client registers those sessions from Target.attachedToTarget.
func (t *Target) SetAutoAttach(ctx context.Context, autoAttach, waitForDebugger bool) error {
	return t.exec(ctx, "setAutoAttach", map[string]bool{
		"autoAttach":             autoAttach,
		"waitForDebuggerOnStart": waitForDebugger,
		"flatten":                true,
	})
}
