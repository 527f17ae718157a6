package docgraph_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TuSKan/nwbchunk/docgraph"
)

func TestBuildAndResolve(t *testing.T) {
	g := docgraph.New()
	root, err := g.Node(g.Root())
	require.NoError(t, err)
	assert.Equal(t, "NWBFile", root.NeurodataType)
	assert.Equal(t, docgraph.DefaultNamespace, root.Namespace)
	_, err = uuid.Parse(root.ObjectID)
	require.NoError(t, err)

	acq, err := g.AddNode(g.Root(), "acquisition", "")
	require.NoError(t, err)
	ts, err := g.AddTimeSeries(acq, "ElectricalSeries", "ElectricalSeries", [][]int16{{1, 2}}, []float64{0.5})
	require.NoError(t, err)
	require.NoError(t, g.SetAttr(ts, "rate", 30000.0))

	id, err := g.ResolveDataset("acquisition/ElectricalSeries/data")
	require.NoError(t, err)
	v, err := g.Dataset(id)
	require.NoError(t, err)
	assert.Equal(t, [][]int16{{1, 2}}, v)

	_, err = g.ResolveDataset("acquisition/ElectricalSeries")
	require.ErrorIs(t, err, docgraph.ErrNotFound)
	_, err = g.ResolveDataset("acquisition/missing/data")
	require.ErrorIs(t, err, docgraph.ErrNotFound)
	_, err = g.ResolveDataset("acquisition/ElectricalSeries/data/x")
	require.ErrorIs(t, err, docgraph.ErrNotFound)

	n, err := g.Node(ts)
	require.NoError(t, err)
	assert.True(t, n.TimeSeries)
	assert.Equal(t, 30000.0, n.Attrs["rate"])

	fields, err := g.Fields(ts)
	require.NoError(t, err)
	require.Len(t, fields, 2)
	assert.Equal(t, "data", fields[0].Name)
	assert.Equal(t, "timestamps", fields[1].Name)

	children, err := g.Children(g.Root())
	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.Equal(t, acq, children[0].Child)
}

func TestFieldNames(t *testing.T) {
	g := docgraph.New()
	_, err := g.AddNode(g.Root(), "a/b", "Group")
	require.ErrorIs(t, err, docgraph.ErrInvalidName)
	_, err = g.AddNode(g.Root(), "", "Group")
	require.ErrorIs(t, err, docgraph.ErrInvalidName)

	_, err = g.AddNode(g.Root(), "a", "Group")
	require.NoError(t, err)
	_, err = g.AddNode(g.Root(), "a", "Group")
	require.ErrorIs(t, err, docgraph.ErrDuplicateField)
	_, err = g.SetDataset(g.Root(), "a", []int{1})
	require.ErrorIs(t, err, docgraph.ErrDuplicateField)

	// A rejected node does not stay in the arena.
	assert.Equal(t, 2, g.NumNodes())

	_, err = g.AddNode(docgraph.NodeID(42), "x", "Group")
	require.ErrorIs(t, err, docgraph.ErrUnknownNode)
}

func TestSharedReferences(t *testing.T) {
	g := docgraph.New()
	devices, err := g.AddNode(g.Root(), "devices", "")
	require.NoError(t, err)
	probe, err := g.AddNode(devices, "probe", "Device")
	require.NoError(t, err)
	acq, err := g.AddNode(g.Root(), "acquisition", "")
	require.NoError(t, err)
	require.NoError(t, g.Link(acq, "probe", probe))

	f1, err := g.Resolve("devices/probe")
	require.NoError(t, err)
	f2, err := g.Resolve("acquisition/probe")
	require.NoError(t, err)
	assert.Equal(t, f1.Child, f2.Child)

	ds, err := g.SetDataset(probe, "positions", [][]float64{{0, 0}, {0, 20}})
	require.NoError(t, err)
	require.NoError(t, g.LinkDataset(acq, "positions", ds))

	require.NoError(t, g.ReplaceDataset(ds, "replaced"))
	id, err := g.ResolveDataset("acquisition/positions")
	require.NoError(t, err)
	v, err := g.Dataset(id)
	require.NoError(t, err)
	assert.Equal(t, "replaced", v)

	require.ErrorIs(t, g.LinkDataset(acq, "bad", docgraph.DatasetID(99)), docgraph.ErrUnknownDataset)
	require.ErrorIs(t, g.ReplaceDataset(docgraph.DatasetID(-1), nil), docgraph.ErrUnknownDataset)
}

func TestNodeSnapshotIsolated(t *testing.T) {
	g := docgraph.New()
	require.NoError(t, g.SetAttr(g.Root(), "identifier", "s1"))
	n, err := g.Node(g.Root())
	require.NoError(t, err)
	n.Attrs["identifier"] = "changed"

	again, err := g.Node(g.Root())
	require.NoError(t, err)
	assert.Equal(t, "s1", again.Attrs["identifier"])
}
