// Package docgraph is an in-memory document graph: an arena of named nodes
// whose fields are child nodes or array-valued datasets. Nodes and
// datasets are referenced through opaque handles, so one object can be
// reachable from several parents.
package docgraph

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrUnknownNode    = errors.New("unknown node")
	ErrUnknownDataset = errors.New("unknown dataset")
	ErrDuplicateField = errors.New("field already exists")
	ErrInvalidName    = errors.New("invalid field name")
	ErrNotFound       = errors.New("path not found")
)

// DefaultNamespace is the namespace of nodes created without one.
const DefaultNamespace = "core"

// NodeID is an opaque handle to a node.
type NodeID int

// DatasetID is an opaque handle to an array-valued field.
type DatasetID int

// Node is a snapshot of a node's own properties.
type Node struct {
	ID            NodeID
	Name          string
	NeurodataType string
	Namespace     string
	ObjectID      string
	// TimeSeries marks nodes whose data and timestamps fields always
	// qualify for chunked storage.
	TimeSeries bool
	Attrs      map[string]any
}

// Field is one named entry of a node, either a child node or a dataset.
type Field struct {
	Name      string
	Child     NodeID
	Dataset   DatasetID
	IsDataset bool
}

type node struct {
	Node
	fields []Field
	index  map[string]int
}

// Graph is the document graph. It is not safe for concurrent mutation.
type Graph struct {
	nodes    []*node
	datasets []any
}

// New creates a graph holding only the root NWBFile node.
func New() *Graph {
	g := &Graph{}
	g.newNode("", "NWBFile")
	return g
}

// Root returns the root node handle.
func (g *Graph) Root() NodeID { return 0 }

func (g *Graph) newNode(name, neurodataType string) NodeID {
	id := NodeID(len(g.nodes))
	g.nodes = append(g.nodes, &node{
		Node: Node{
			ID:            id,
			Name:          name,
			NeurodataType: neurodataType,
			Namespace:     DefaultNamespace,
			ObjectID:      uuid.NewString(),
			Attrs:         map[string]any{},
		},
		index: map[string]int{},
	})
	return id
}

func (g *Graph) node(id NodeID) (*node, error) {
	if g == nil || id < 0 || int(id) >= len(g.nodes) {
		return nil, fmt.Errorf("%w: %d", ErrUnknownNode, id)
	}
	return g.nodes[id], nil
}

func (g *Graph) addField(parent NodeID, f Field) error {
	p, err := g.node(parent)
	if err != nil {
		return err
	}
	if f.Name == "" || strings.Contains(f.Name, "/") {
		return fmt.Errorf("%w: %q", ErrInvalidName, f.Name)
	}
	if _, ok := p.index[f.Name]; ok {
		return fmt.Errorf("%w: %q on %s", ErrDuplicateField, f.Name, p.NeurodataType)
	}
	p.index[f.Name] = len(p.fields)
	p.fields = append(p.fields, f)
	return nil
}

// AddNode creates a node as a new child of parent.
func (g *Graph) AddNode(parent NodeID, name, neurodataType string) (NodeID, error) {
	if _, err := g.node(parent); err != nil {
		return 0, err
	}
	id := g.newNode(name, neurodataType)
	if err := g.addField(parent, Field{Name: name, Child: id}); err != nil {
		g.nodes = g.nodes[:id]
		return 0, err
	}
	return id, nil
}

// Link makes an existing node reachable from parent under name.
func (g *Graph) Link(parent NodeID, name string, child NodeID) error {
	if _, err := g.node(child); err != nil {
		return err
	}
	return g.addField(parent, Field{Name: name, Child: child})
}

// SetAttr sets a scalar attribute on a node.
func (g *Graph) SetAttr(id NodeID, key string, value any) error {
	n, err := g.node(id)
	if err != nil {
		return err
	}
	n.Attrs[key] = value
	return nil
}

// SetNamespace sets the namespace a node's type is defined in.
func (g *Graph) SetNamespace(id NodeID, namespace string) error {
	n, err := g.node(id)
	if err != nil {
		return err
	}
	n.Namespace = namespace
	return nil
}

// SetDataset stores an array-valued field on a node. value is either an
// array.Source or a nested Go slice.
func (g *Graph) SetDataset(id NodeID, field string, value any) (DatasetID, error) {
	ds := DatasetID(len(g.datasets))
	if err := g.addField(id, Field{Name: field, Dataset: ds, IsDataset: true}); err != nil {
		return 0, err
	}
	g.datasets = append(g.datasets, value)
	return ds, nil
}

// LinkDataset exposes an existing dataset under another field.
func (g *Graph) LinkDataset(id NodeID, field string, ds DatasetID) error {
	if _, err := g.Dataset(ds); err != nil {
		return err
	}
	return g.addField(id, Field{Name: field, Dataset: ds, IsDataset: true})
}

// AddTimeSeries adds a time-series node holding data and, when non-nil,
// timestamps.
func (g *Graph) AddTimeSeries(parent NodeID, name, neurodataType string, data, timestamps any) (NodeID, error) {
	id, err := g.AddNode(parent, name, neurodataType)
	if err != nil {
		return 0, err
	}
	g.nodes[id].TimeSeries = true
	if _, err := g.SetDataset(id, "data", data); err != nil {
		return 0, err
	}
	if timestamps != nil {
		if _, err := g.SetDataset(id, "timestamps", timestamps); err != nil {
			return 0, err
		}
	}
	return id, nil
}

// Node returns a snapshot of a node.
func (g *Graph) Node(id NodeID) (Node, error) {
	n, err := g.node(id)
	if err != nil {
		return Node{}, err
	}
	out := n.Node
	out.Attrs = maps.Clone(n.Attrs)
	return out, nil
}

// Fields lists all fields of a node in insertion order.
func (g *Graph) Fields(id NodeID) ([]Field, error) {
	n, err := g.node(id)
	if err != nil {
		return nil, err
	}
	return slices.Clone(n.fields), nil
}

// Children lists the child-node fields of a node in insertion order.
func (g *Graph) Children(id NodeID) ([]Field, error) {
	fields, err := g.Fields(id)
	if err != nil {
		return nil, err
	}
	return slices.DeleteFunc(fields, func(f Field) bool { return f.IsDataset }), nil
}

// Dataset returns the current value of a dataset.
func (g *Graph) Dataset(id DatasetID) (any, error) {
	if g == nil || id < 0 || int(id) >= len(g.datasets) {
		return nil, fmt.Errorf("%w: %d", ErrUnknownDataset, id)
	}
	return g.datasets[id], nil
}

// ReplaceDataset swaps the value of a dataset. Every field linking to it
// sees the new value.
func (g *Graph) ReplaceDataset(id DatasetID, value any) error {
	if _, err := g.Dataset(id); err != nil {
		return err
	}
	g.datasets[id] = value
	return nil
}

// Resolve follows a slash-delimited path from the root.
func (g *Graph) Resolve(path string) (Field, error) {
	if g == nil || len(g.nodes) == 0 {
		return Field{}, fmt.Errorf("%w: empty graph", ErrUnknownNode)
	}
	cur := Field{Child: g.Root()}
	if path == "" {
		return cur, nil
	}
	for _, name := range strings.Split(path, "/") {
		if cur.IsDataset {
			return Field{}, fmt.Errorf("%w: %q", ErrNotFound, path)
		}
		n := g.nodes[cur.Child]
		i, ok := n.index[name]
		if !ok {
			return Field{}, fmt.Errorf("%w: %q", ErrNotFound, path)
		}
		cur = n.fields[i]
	}
	return cur, nil
}

// ResolveDataset returns the dataset handle at path.
func (g *Graph) ResolveDataset(path string) (DatasetID, error) {
	f, err := g.Resolve(path)
	if err != nil {
		return 0, err
	}
	if !f.IsDataset {
		return 0, fmt.Errorf("%w: %q is a node", ErrNotFound, path)
	}
	return f.Dataset, nil
}

// NumNodes returns the number of nodes in the arena.
func (g *Graph) NumNodes() int { return len(g.nodes) }
