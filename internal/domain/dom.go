package domain

import (
	"context"
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/amoylab/janus/internal/protocol"
)

// Node is a DOM node as returned by DOM.getDocument.
type Node struct {
	NodeID         int64    `json:"nodeId"`
	BackendNodeID  int64    `json:"backendNodeId"`
	NodeType       int      `json:"nodeType"`
	NodeName       string   `json:"nodeName"`
	LocalName      string   `json:"localName"`
	NodeValue      string   `json:"nodeValue"`
	ChildNodeCount int      `json:"childNodeCount,omitempty"`
	Children       []Node   `json:"children,omitempty"`
	Attributes     []string `json:"attributes,omitempty"`
	DocumentURL    string   `json:"documentURL,omitempty"`
	FrameID        string   `json:"frameId,omitempty"`
}

// DOM wraps document inspection in one session.
type DOM struct {
	base
}

func NewDOM(conn Conn, sessionID string) *DOM {
	return &DOM{base{conn: conn, session: sessionID, name: "DOM"}}
}

func (d *DOM) Enable(ctx context.Context) error {
	return d.exec(ctx, "enable", nil)
}

// GetDocument returns the root node. depth -1 returns the whole tree.
func (d *DOM) GetDocument(ctx context.Context, depth int) (Node, error) {
	res, err := call[struct {
		Root Node `json:"root"`
	}](ctx, d.base, "getDocument", map[string]int{"depth": depth})
	return res.Root, err
}

// QuerySelector returns the first node under nodeID matching selector, or 0
// when there is none.
func (d *DOM) QuerySelector(ctx context.Context, nodeID int64, selector string) (int64, error) {
	raw, err := d.raw(ctx, "querySelector", map[string]any{"nodeId": nodeID, "selector": selector})
	if err != nil {
		return 0, err
	}
	id := gjson.GetBytes(raw, "nodeId")
	if id.Type != gjson.Number {
		return 0, fmt.Errorf("%s: %w: no nodeId", d.method("querySelector"), protocol.ErrMalformed)
	}
	return id.Int(), nil
}

func (d *DOM) GetOuterHTML(ctx context.Context, nodeID int64) (string, error) {
	raw, err := d.raw(ctx, "getOuterHTML", map[string]int64{"nodeId": nodeID})
	if err != nil {
		return "", err
	}
	return gjson.GetBytes(raw, "outerHTML").Str, nil
}

// StyleProperty is one computed CSS property.
type StyleProperty struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// CSS wraps style inspection in one session. DOM must be enabled first.
type CSS struct {
	base
}

func NewCSS(conn Conn, sessionID string) *CSS {
	return &CSS{base{conn: conn, session: sessionID, name: "CSS"}}
}

func (c *CSS) Enable(ctx context.Context) error {
	return c.exec(ctx, "enable", nil)
}

func (c *CSS) GetComputedStyleForNode(ctx context.Context, nodeID int64) ([]StyleProperty, error) {
	res, err := call[struct {
		ComputedStyle []StyleProperty `json:"computedStyle"`
	}](ctx, c.base, "getComputedStyleForNode", map[string]int64{"nodeId": nodeID})
	return res.ComputedStyle, err
}
