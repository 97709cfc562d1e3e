package pedigree

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"milk-herd-backend/internal/model"
)

func TestBuilder_ShareHalving(t *testing.T) {
	gs := bull(3, "GS")
	s := bull(2, "S")
	s.SireID = id(3)
	x := cow(1, "X")
	x.SireID = id(2)
	reg := newMemRegistry(x, s, gs)

	node, err := NewBuilder(reg).Build(context.Background(), &x, 3)
	require.NoError(t, err)
	require.NotNil(t, node)

	assert.Equal(t, 100.0, node.Share)
	assert.Nil(t, node.Dam)
	require.NotNil(t, node.Sire)
	assert.Equal(t, 50.0, node.Sire.Share)
	assert.Nil(t, node.Sire.Dam)
	require.NotNil(t, node.Sire.Sire)
	assert.Equal(t, 25.0, node.Sire.Sire.Share)
	assert.Equal(t, "GS", node.Sire.Sire.EarTag)
}

func TestBuilder_BaseCases(t *testing.T) {
	x := cow(1, "X")
	b := NewBuilder(newMemRegistry(x))
	ctx := context.Background()

	node, err := b.Build(ctx, &x, 0)
	require.NoError(t, err)
	assert.Nil(t, node)

	node, err = b.Build(ctx, &x, -2)
	require.NoError(t, err)
	assert.Nil(t, node)

	node, err = b.Build(ctx, nil, 3)
	require.NoError(t, err)
	assert.Nil(t, node)
}

func TestBuilder_DepthOneNeverRecurses(t *testing.T) {
	s, d := bull(2, "S"), cow(3, "D")
	x := cow(1, "X")
	x.SireID, x.DamID = id(2), id(3)
	reg := newMemRegistry(x, s, d)

	node, err := NewBuilder(reg).Build(context.Background(), &x, 1)
	require.NoError(t, err)
	require.NotNil(t, node)
	assert.Nil(t, node.Sire)
	assert.Nil(t, node.Dam)
	assert.Zero(t, reg.lookups, "no parent lookups at depth 1")
}

func TestBuilder_NodeCountBound(t *testing.T) {
	// Every animal's sire and dam point back at the pair {1, 2}; the tree
	// still ends after depth levels.
	a, b := bull(1, "A"), cow(2, "B")
	a.SireID, a.DamID = id(1), id(2)
	b.SireID, b.DamID = id(1), id(2)
	reg := newMemRegistry(a, b)

	for depth := 1; depth <= 6; depth++ {
		node, err := NewBuilder(reg).Build(context.Background(), &a, depth)
		require.NoError(t, err)
		assert.Equal(t, 1<<depth-1, countNodes(node))
	}
}

func TestBuilder_DeepShares(t *testing.T) {
	reg := newMemRegistry(bull(1, "G0"))
	for i := int64(2); i <= 6; i++ {
		b := bull(i, "G")
		b.SireID = id(i - 1)
		reg.put(b)
	}
	leaf := reg.animals[6]

	node, err := NewBuilder(reg).Build(context.Background(), &leaf, 6)
	require.NoError(t, err)

	var shares []float64
	for n := node; n != nil; n = n.Sire {
		shares = append(shares, n.Share)
	}
	assert.Equal(t, []float64{100, 50, 25, 12.5, 6.2, 3.1}, shares)
}

func TestBuilder_DanglingParentIsNullBranch(t *testing.T) {
	x := cow(1, "X")
	x.SireID = id(404)
	node, err := NewBuilder(newMemRegistry(x)).Build(context.Background(), &x, 3)
	require.NoError(t, err)
	require.NotNil(t, node)
	assert.Nil(t, node.Sire)
}

func TestBuilder_RegistryFailurePropagates(t *testing.T) {
	boom := errors.New("storage unavailable")
	x := cow(1, "X")
	x.DamID = id(2)
	reg := newMemRegistry(x, cow(2, "D"))
	reg.failID, reg.failErr = 2, boom

	_, err := NewBuilder(reg).Build(context.Background(), &x, 3)
	assert.ErrorIs(t, err, boom)
}

func TestNode_JSONShape(t *testing.T) {
	x := model.Animal{ID: 7, EarTag: "IE-7", Name: "Maisie", Breed: "Jersey", Sex: model.SexFemale}
	node, err := NewBuilder(newMemRegistry(x)).Build(context.Background(), &x, 2)
	require.NoError(t, err)

	b, err := json.Marshal(node)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":7,"ear_tag":"IE-7","name":"Maisie","breed":"Jersey","share":100,"sire":null,"dam":null}`, string(b))
}

func TestClampDepth(t *testing.T) {
	testCases := []struct {
		in, limit, want int
	}{
		{3, 6, 3}, {0, 6, 1}, {-4, 6, 1}, {9, 6, 6}, {6, 6, 6}, {5, 4, 4}, {2, 0, 1}, {20, 20, 6}, {8, 12, 6},
	}
	for _, tc := range testCases {
		assert.Equal(t, tc.want, ClampDepth(tc.in, tc.limit), "ClampDepth(%d, %d)", tc.in, tc.limit)
	}
}

func countNodes(n *Node) int {
	if n == nil {
		return 0
	}
	return 1 + countNodes(n.Sire) + countNodes(n.Dam)
}
