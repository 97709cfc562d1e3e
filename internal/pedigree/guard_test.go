package pedigree

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"milk-herd-backend/internal/model"
)

func requireRejection(t *testing.T, err error, reason Reason, role Role) {
	t.Helper()
	rej, ok := AsRejection(err)
	require.True(t, ok, "expected a rejection, got %v", err)
	assert.Equal(t, reason, rej.Reason)
	assert.Equal(t, role, rej.Role)
}

func TestGuard_SelfParent(t *testing.T) {
	reg := newMemRegistry(bull(1, "A"), cow(2, "B"))
	g := NewGuard(reg, DefaultCycleCheckDepth)
	ctx := context.Background()

	err := g.Validate(ctx, 1, id(1), nil)
	requireRejection(t, err, ReasonSelfParent, RoleSire)
	assert.ErrorIs(t, err, ErrSelfParent)

	err = g.Validate(ctx, 2, nil, id(2))
	requireRejection(t, err, ReasonSelfParent, RoleDam)
}

func TestGuard_SelfParentWinsOverOtherFailures(t *testing.T) {
	// Animal 2 is female, so as its own sire it would also be WrongSex.
	reg := newMemRegistry(cow(2, "B"))
	err := NewGuard(reg, 6).Validate(context.Background(), 2, id(2), id(99))
	requireRejection(t, err, ReasonSelfParent, RoleSire)
}

func TestGuard_UnknownParent(t *testing.T) {
	reg := newMemRegistry(bull(1, "A"))
	g := NewGuard(reg, 6)

	err := g.Validate(context.Background(), 1, id(42), nil)
	requireRejection(t, err, ReasonUnknownParent, RoleSire)
	assert.ErrorIs(t, err, ErrUnknownParent)

	err = g.Validate(context.Background(), 0, nil, id(43))
	requireRejection(t, err, ReasonUnknownParent, RoleDam)
}

func TestGuard_UnknownParentBeforeSex(t *testing.T) {
	// The sire has the wrong sex but the dam is missing; existence is checked first.
	reg := newMemRegistry(cow(1, "A"), bull(3, "C"))
	err := NewGuard(reg, 6).Validate(context.Background(), 3, id(1), id(77))
	requireRejection(t, err, ReasonUnknownParent, RoleDam)
}

func TestGuard_WrongSex(t *testing.T) {
	unknown := model.Animal{ID: 4, EarTag: "D", Sex: model.SexUnknown}
	reg := newMemRegistry(bull(1, "A"), cow(2, "B"), bull(3, "C"), unknown)
	g := NewGuard(reg, 6)
	ctx := context.Background()

	testCases := []struct {
		name   string
		sire   *int64
		dam    *int64
		role   Role
		errMsg string
	}{
		{"female as sire", id(2), nil, RoleSire, "sire must be male"},
		{"male as dam", nil, id(1), RoleDam, "dam must be female"},
		{"unknown sex as sire", id(4), nil, RoleSire, "sire must be male"},
		{"unknown sex as dam", nil, id(4), RoleDam, "dam must be female"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := g.Validate(ctx, 3, tc.sire, tc.dam)
			requireRejection(t, err, ReasonWrongSex, tc.role)
			assert.ErrorIs(t, err, ErrWrongSex)
			assert.EqualError(t, err, tc.errMsg)
		})
	}
}

func TestGuard_AncestryCycle(t *testing.T) {
	// A sires B, B sires C; making C the sire of A closes the loop.
	a, b, c := bull(1, "A"), bull(2, "B"), bull(3, "C")
	b.SireID = id(1)
	c.SireID = id(2)
	reg := newMemRegistry(a, b, c)

	err := NewGuard(reg, 6).Validate(context.Background(), 1, id(3), nil)
	requireRejection(t, err, ReasonAncestryCycle, RoleSire)
	assert.ErrorIs(t, err, ErrAncestryCycle)
}

func TestGuard_AncestryCycleThroughDam(t *testing.T) {
	// Cow X is dam of Y, Y (female) is dam of Z; Z as dam of X is a cycle.
	x, y, z := cow(1, "X"), cow(2, "Y"), cow(3, "Z")
	y.DamID = id(1)
	z.DamID = id(2)
	reg := newMemRegistry(x, y, z)

	err := NewGuard(reg, 6).Validate(context.Background(), 1, nil, id(3))
	requireRejection(t, err, ReasonAncestryCycle, RoleDam)
}

func TestGuard_ReValidatingCommittedEdgesIsOk(t *testing.T) {
	sire, dam := bull(1, "S"), cow(2, "D")
	gs, gd := bull(5, "GS"), cow(6, "GD")
	sire.SireID, sire.DamID = id(5), id(6)
	child := cow(3, "C")
	child.SireID, child.DamID = id(1), id(2)
	reg := newMemRegistry(sire, dam, gs, gd, child)

	assert.NoError(t, NewGuard(reg, 6).Validate(context.Background(), 3, child.SireID, child.DamID))
}

func TestGuard_NewAnimalSkipsCycleWalk(t *testing.T) {
	reg := newMemRegistry(bull(1, "S"), cow(2, "D"))
	g := NewGuard(reg, 6)

	require.NoError(t, g.Validate(context.Background(), 0, id(1), id(2)))
	assert.Equal(t, 2, reg.lookups, "only the two parents are resolved")
}

func TestGuard_DepthBound(t *testing.T) {
	// Chain 1 <- 2 <- ... <- 9: animal n's sire is n-1.
	reg := newMemRegistry(bull(1, "G1"))
	for i := int64(2); i <= 9; i++ {
		b := bull(i, "G")
		b.SireID = id(i - 1)
		reg.put(b)
	}
	ctx := context.Background()

	// Setting 9 as sire of 1: animal 1 sits 8 generations above 9.
	assert.NoError(t, NewGuard(reg, 6).Validate(ctx, 1, id(9), nil),
		"cycles beyond the traversal bound are not detected")
	requireRejection(t, NewGuard(reg, 9).Validate(ctx, 1, id(9), nil), ReasonAncestryCycle, RoleSire)

	// Within the default bound: 6 as sire of 1 (five generations up).
	requireRejection(t, NewGuard(reg, 6).Validate(ctx, 1, id(6), nil), ReasonAncestryCycle, RoleSire)
}

func TestGuard_TerminatesOnMalformedData(t *testing.T) {
	// 2 and 3 already form a loop that does not involve 1.
	b, c := bull(2, "B"), bull(3, "C")
	b.SireID = id(3)
	c.SireID = id(2)
	reg := newMemRegistry(bull(1, "A"), b, c)

	assert.NoError(t, NewGuard(reg, 100).Validate(context.Background(), 1, id(2), nil))
	assert.LessOrEqual(t, reg.lookups, 4)
}

func TestGuard_DanglingAncestorIsSkipped(t *testing.T) {
	s := bull(2, "S")
	s.SireID = id(404)
	reg := newMemRegistry(bull(1, "A"), s)

	assert.NoError(t, NewGuard(reg, 6).Validate(context.Background(), 1, id(2), nil))
}

func TestGuard_RegistryFailurePropagates(t *testing.T) {
	boom := errors.New("storage unavailable")
	s := bull(2, "S")
	s.SireID = id(5)
	reg := newMemRegistry(bull(1, "A"), s, bull(5, "GS"))
	reg.failID, reg.failErr = 5, boom

	err := NewGuard(reg, 6).Validate(context.Background(), 1, id(2), nil)
	assert.ErrorIs(t, err, boom)
	_, isRejection := AsRejection(err)
	assert.False(t, isRejection)
}

func TestGuard_AcceptedWritesStayAcyclic(t *testing.T) {
	// Apply a sequence of writes, committing only accepted ones, and check
	// that no animal ever reaches itself.
	reg := newMemRegistry(bull(1, "A"), bull(2, "B"), bull(3, "C"), bull(4, "D"), cow(5, "E"), cow(6, "F"))
	g := NewGuard(reg, 6)
	ctx := context.Background()

	writes := []struct{ animal, sire, dam int64 }{
		{2, 1, 5}, {3, 2, 6}, {4, 3, 0}, {1, 4, 0}, {1, 3, 0}, {5, 0, 6}, {6, 0, 5}, {6, 4, 0}, {1, 0, 6},
	}
	for _, w := range writes {
		var sire, dam *int64
		if w.sire != 0 {
			sire = id(w.sire)
		}
		if w.dam != 0 {
			dam = id(w.dam)
		}
		if err := g.Validate(ctx, w.animal, sire, dam); err != nil {
			continue
		}
		a := reg.animals[w.animal]
		a.SireID, a.DamID = sire, dam
		reg.put(a)
	}

	for start := range reg.animals {
		a := reg.animals[start]
		for _, p := range []*int64{a.SireID, a.DamID} {
			if p == nil {
				continue
			}
			cycle, err := g.reachesAncestor(ctx, *p, start)
			require.NoError(t, err)
			assert.False(t, cycle, "animal %d is its own ancestor", start)
		}
	}
}
