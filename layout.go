package notifierhost

import (
	"fmt"

	"github.com/godbus/dbus/v5"
)

// LayoutNode is one entry of a dbusmenu layout: a menu item together
// with its properties and submenu entries.
type LayoutNode struct {
	ID         int32
	Properties map[string]any
	Children   []*LayoutNode
}

// NewLayoutNode decodes a layout node from the (ia{sv}av) structure
// returned by com.canonical.dbusmenu.GetLayout. Children that fail to
// decode are skipped.
func NewLayoutNode(data any) (*LayoutNode, error) {
	arr, ok := data.([]any)
	if !ok || len(arr) != 3 {
		return nil, fmt.Errorf("menu node: invalid format")
	}

	id, ok := arr[0].(int32)
	if !ok {
		return nil, fmt.Errorf("menu node: invalid id")
	}

	props, ok := arr[1].(map[string]dbus.Variant)
	if !ok {
		return nil, fmt.Errorf("menu node: invalid props")
	}

	children, ok := arr[2].([]dbus.Variant)
	if !ok {
		return nil, fmt.Errorf("menu node: invalid children")
	}

	node := &LayoutNode{
		ID:         id,
		Properties: make(map[string]any, len(props)),
		Children:   make([]*LayoutNode, 0, len(children)),
	}

	for key, value := range props {
		node.Properties[key] = value.Value()
	}

	for _, child := range children {
		childNode, err := NewLayoutNode(child.Value())
		if err != nil {
			continue
		}

		node.Children = append(node.Children, childNode)
	}

	return node, nil
}

// stringProperty returns a string-valued node property, or fallback if
// it is absent or of another type.
func (n *LayoutNode) stringProperty(key, fallback string) string {
	value, ok := n.Properties[key].(string)
	if !ok {
		return fallback
	}

	return value
}

// boolProperty returns a bool-valued node property, or fallback if it
// is absent or of another type.
func (n *LayoutNode) boolProperty(key string, fallback bool) bool {
	value, ok := n.Properties[key].(bool)
	if !ok {
		return fallback
	}

	return value
}

// Label returns the display label of the node. Underscores prefix
// access-key characters and are left as is.
func (n *LayoutNode) Label() string {
	return n.stringProperty("label", "")
}

// Enabled reports whether the node can be activated. Absent property
// defaults to true per the dbusmenu specification.
func (n *LayoutNode) Enabled() bool {
	return n.boolProperty("enabled", true)
}

// Visible reports whether the node should be shown. Absent property
// defaults to true per the dbusmenu specification.
func (n *LayoutNode) Visible() bool {
	return n.boolProperty("visible", true)
}

// IsSeparator reports whether the node is a separator rather than a
// regular menu item.
func (n *LayoutNode) IsSeparator() bool {
	return n.stringProperty("type", "standard") == "separator"
}

// HasSubmenu reports whether the node's children form a submenu.
func (n *LayoutNode) HasSubmenu() bool {
	return n.stringProperty("children-display", "") == "submenu"
}

// Find returns the node with the given ID in the subtree rooted at n,
// or nil if there is none.
func (n *LayoutNode) Find(id int32) *LayoutNode {
	if n.ID == id {
		return n
	}

	for _, child := range n.Children {
		if found := child.Find(id); found != nil {
			return found
		}
	}

	return nil
}
