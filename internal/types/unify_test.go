package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnify_FreeVariableBindsToConstructor(t *testing.T) {
	clock := &Clock{}
	free := NewFree(clock)
	con := NewCon(clock, "Integer")

	require.NoError(t, Unify(free, con))
	assert.Equal(t, "Integer", free.Find().Name)
}

func TestUnify_MismatchedConstructorsError(t *testing.T) {
	clock := &Clock{}
	a := NewCon(clock, "Integer")
	b := NewCon(clock, "String")

	err := Unify(a, b)
	require.Error(t, err)
	var uerr *UnifyError
	require.ErrorAs(t, err, &uerr)
}

func TestUnify_RecursesIntoChildren(t *testing.T) {
	clock := &Clock{}
	elemA := NewFree(clock)
	listA := NewCon(clock, "List", elemA)
	listB := NewCon(clock, "List", NewCon(clock, "Integer"))

	require.NoError(t, Unify(listA, listB))
	assert.Equal(t, "Integer", elemA.Find().Name)
}

func TestUnify_OccursCheckRejectsInfiniteType(t *testing.T) {
	clock := &Clock{}
	free := NewFree(clock)
	wrapped := NewCon(clock, "List", free)

	err := Unify(free, wrapped)
	require.Error(t, err)
}

func TestGeneralizeAndInstantiate_FreshensOnlyQuantified(t *testing.T) {
	clock := &Clock{}
	since := clock.Tick()
	elem := NewFree(clock)
	listType := NewCon(clock, "List", elem)

	quantified := Generalize(listType, since)
	require.Len(t, quantified, 1)

	inst1 := Instantiate(clock, listType, quantified)
	inst2 := Instantiate(clock, listType, quantified)
	assert.NotSame(t, inst1.Children[0].Var, inst2.Children[0].Var,
		"each instantiation should get its own fresh copy of a quantified variable")
}

func TestDOBSurvivesAsOlderOnUnion(t *testing.T) {
	clock := &Clock{}
	older := NewFree(clock)
	oldDOB := older.DOB
	newer := NewFree(clock)

	require.NoError(t, Unify(older, newer))
	assert.Equal(t, oldDOB, older.Find().DOB)
}
