package store

import (
	"fmt"
	"strings"

	"github.com/measuredat/nexo/errs"
)

// Node is the common interface of everything that can live inside a Group:
// nested groups, datasets, scalar leaves, soft links and virtual datasets.
type Node interface {
	// Name returns the node's name within its parent.
	Name() string
}

// Group is one interior node of the hierarchy. Children keep insertion
// order; names are unique across all child kinds. Groups own their children
// exclusively.
type Group struct {
	name     string
	parent   *Group
	attrs    *attrSet
	children map[string]Node
	order    []string
}

func newGroup(name string, parent *Group) *Group {
	return &Group{
		name:     name,
		parent:   parent,
		attrs:    newAttrSet(),
		children: make(map[string]Node),
	}
}

// Name returns the group's name within its parent ("/" for the root).
func (g *Group) Name() string {
	return g.name
}

// Path returns the absolute slash-separated path of the group.
func (g *Group) Path() string {
	if g.parent == nil {
		return "/"
	}

	parent := g.parent.Path()
	if parent == "/" {
		return "/" + g.name
	}

	return parent + "/" + g.name
}

// SetAttr sets an attribute on the group, overwriting any previous value.
func (g *Group) SetAttr(key string, value any) {
	g.attrs.set(key, value)
}

// Attr returns the named attribute.
func (g *Group) Attr(key string) (any, bool) {
	return g.attrs.get(key)
}

// AttrKeys returns the attribute keys in insertion order.
func (g *Group) AttrKeys() []string {
	return g.attrs.keys()
}

// HasChild reports whether a child with the given name exists.
func (g *Group) HasChild(name string) bool {
	_, ok := g.children[name]
	return ok
}

// Child returns the named child node.
func (g *Group) Child(name string) (Node, bool) {
	n, ok := g.children[name]
	return n, ok
}

// Children returns the child names in insertion order.
func (g *Group) Children() []string {
	names := make([]string, len(g.order))
	copy(names, g.order)

	return names
}

func (g *Group) addChild(name string, n Node) error {
	if name == "" || strings.Contains(name, "/") {
		return fmt.Errorf("%w: invalid node name %q", errs.ErrNodeExists, name)
	}
	if _, ok := g.children[name]; ok {
		return fmt.Errorf("%w: %q in %s", errs.ErrNodeExists, name, g.Path())
	}

	g.children[name] = n
	g.order = append(g.order, name)

	return nil
}

// CreateGroup creates a new child group. It fails if the name is taken.
func (g *Group) CreateGroup(name string) (*Group, error) {
	child := newGroup(name, g)
	if err := g.addChild(name, child); err != nil {
		return nil, err
	}

	return child, nil
}

// RequireGroup returns the named child group, creating it if missing. It
// fails if the name exists and is not a group.
func (g *Group) RequireGroup(name string) (*Group, error) {
	if n, ok := g.children[name]; ok {
		child, ok := n.(*Group)
		if !ok {
			return nil, fmt.Errorf("%w: %q in %s", errs.ErrNotAGroup, name, g.Path())
		}

		return child, nil
	}

	return g.CreateGroup(name)
}

// Group returns the named child group.
func (g *Group) Group(name string) (*Group, bool) {
	child, ok := g.children[name].(*Group)
	return child, ok
}

// SetValue stores a scalar leaf under the given name. An existing leaf with
// the same name is overwritten; any other node kind under that name is an
// error. Values the store cannot hold natively are stored as their string
// representation.
func (g *Group) SetValue(name string, value any) error {
	if n, ok := g.children[name]; ok {
		leaf, ok := n.(*Leaf)
		if !ok {
			return fmt.Errorf("%w: %q in %s", errs.ErrNodeExists, name, g.Path())
		}
		leaf.value = coerceScalar(value)

		return nil
	}

	leaf := &Leaf{name: name, value: coerceScalar(value)}

	return g.addChild(name, leaf)
}

// Value returns the scalar leaf value stored under name.
func (g *Group) Value(name string) (any, bool) {
	leaf, ok := g.children[name].(*Leaf)
	if !ok {
		return nil, false
	}

	return leaf.value, true
}

// Leaf returns the named scalar leaf node.
func (g *Group) Leaf(name string) (*Leaf, bool) {
	leaf, ok := g.children[name].(*Leaf)
	return leaf, ok
}

// CreateDataset creates a growable typed dataset from the initial rows.
// The array's trailing shape and dtype are fixed by this first write; only
// the leading dimension grows afterwards. Arrays with a non-positive
// dimension are rejected with errs.ErrInvalidShape.
func (g *Group) CreateDataset(name string, initial Array, chunk int) (*Dataset, error) {
	if initial.hasNonPositiveDim() {
		return nil, fmt.Errorf("%w: %v for %q", errs.ErrInvalidShape, initial.Shape, name)
	}
	if chunk <= 0 {
		chunk = 1
	}

	ds := &Dataset{
		name:   name,
		parent: g,
		arr:    initial,
		chunk:  chunk,
		attrs:  newAttrSet(),
	}
	if err := g.addChild(name, ds); err != nil {
		return nil, err
	}

	return ds, nil
}

// Dataset returns the named child dataset.
func (g *Group) Dataset(name string) (*Dataset, bool) {
	ds, ok := g.children[name].(*Dataset)
	return ds, ok
}

// CreateSoftLink stores a path-valued reference to another node in the same
// file. Links are resolved lazily via File.Resolve; dangling targets are
// not an error until resolution.
func (g *Group) CreateSoftLink(name, target string) (*SoftLink, error) {
	link := &SoftLink{name: name, target: target}
	if err := g.addChild(name, link); err != nil {
		return nil, err
	}

	return link, nil
}

// SoftLink returns the named child soft link.
func (g *Group) SoftLink(name string) (*SoftLink, bool) {
	link, ok := g.children[name].(*SoftLink)
	return link, ok
}

// CreateVirtualDataset attaches a non-copying view assembled from the given
// layout. The layout must be fully mapped: every slot of the declared
// length must be covered by a mapped segment.
func (g *Group) CreateVirtualDataset(name string, layout *VirtualLayout) (*VirtualDataset, error) {
	if err := layout.validate(); err != nil {
		return nil, err
	}

	vds := &VirtualDataset{
		name:   name,
		layout: layout,
		attrs:  newAttrSet(),
	}
	if err := g.addChild(name, vds); err != nil {
		return nil, err
	}

	return vds, nil
}

// VirtualDataset returns the named child virtual dataset.
func (g *Group) VirtualDataset(name string) (*VirtualDataset, bool) {
	vds, ok := g.children[name].(*VirtualDataset)
	return vds, ok
}

// resolve walks a slash-separated path relative to g. Soft links along the
// way are resolved against root.
func (g *Group) resolve(root *Group, path string) (Node, error) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	var current Node = g
	for i, part := range parts {
		if part == "" {
			continue
		}

		group, ok := current.(*Group)
		if !ok {
			return nil, fmt.Errorf("%w: %q", errs.ErrNotAGroup, strings.Join(parts[:i], "/"))
		}
		child, ok := group.children[part]
		if !ok {
			return nil, fmt.Errorf("%w: %q", errs.ErrNodeNotFound, path)
		}
		if link, ok := child.(*SoftLink); ok {
			resolved, err := root.resolve(root, link.target)
			if err != nil {
				return nil, err
			}
			child = resolved
		}
		current = child
	}

	return current, nil
}

// Leaf is a scalar value stored under a group: a string, number, boolean or
// small array. This is how free-form metadata lands in the hierarchy.
type Leaf struct {
	name  string
	value any
}

// Name returns the leaf's name within its parent.
func (l *Leaf) Name() string { return l.name }

// Value returns the stored value.
func (l *Leaf) Value() any { return l.value }

// SoftLink is a path-valued reference to another node in the same file.
type SoftLink struct {
	name   string
	target string
}

// Name returns the link's name within its parent.
func (l *SoftLink) Name() string { return l.name }

// Target returns the absolute path the link points at.
func (l *SoftLink) Target() string { return l.target }

// coerceScalar maps a value onto the closed set of leaf-storable shapes,
// falling back to the string representation for anything else.
func coerceScalar(v any) any {
	switch v.(type) {
	case nil:
		return nil
	case string, bool, float64, float32, int, int32, int64, uint, uint32, uint64:
		return v
	case []string, []float64, []int64, []int, []bool, []any:
		return v
	default:
		return fmt.Sprint(v)
	}
}
