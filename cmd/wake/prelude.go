package main

import (
	"github.com/wake-build/wake/internal/types"
)

// buildPrelude hand-constructs the seven distinguished sums (Boolean,
// Order, List, Unit, Pair, Result, JValue) directly as types.Sum values.
//
// These seven are exactly fixed and primitives address them by field
// identity (listTV, pairA/pairB, ...), so the driver builds them once,
// here, by hand, rather than writing a prelude.wake and parsing it
// through the same `data` path user sums take (internal/syntax/parser.go's
// parseData, internal/resolve/resolve.go's registerData).
func buildPrelude(clock *types.Clock) (*types.Distinguished, map[string]*types.Sum) {
	boolean := &types.Sum{Name: "Boolean"}
	boolean.Members = []*types.Constructor{
		{Name: "True", Index: 0},
		{Name: "False", Index: 1},
	}

	order := &types.Sum{Name: "Order"}
	order.Members = []*types.Constructor{
		{Name: "LT", Index: 0},
		{Name: "EQ", Index: 1},
		{Name: "GT", Index: 2},
	}

	unit := &types.Sum{Name: "Unit"}
	unit.Members = []*types.Constructor{
		{Name: "Unit", Index: 0},
	}

	listElem := types.NewFree(clock)
	list := &types.Sum{Name: "List", Params: []*types.TypeVar{listElem}}
	listTV := types.NewCon(clock, "List", listElem)
	list.Members = []*types.Constructor{
		{Name: "Nil", Index: 0},
		{Name: "Cons", Index: 1, Args: []*types.TypeVar{listElem, listTV}},
	}

	pairA := types.NewFree(clock)
	pairB := types.NewFree(clock)
	pair := &types.Sum{Name: "Pair", Params: []*types.TypeVar{pairA, pairB}}
	pair.Members = []*types.Constructor{
		{Name: "Pair", Index: 0, Args: []*types.TypeVar{pairA, pairB}},
	}

	resultOK := types.NewFree(clock)
	resultErr := types.NewFree(clock)
	result := &types.Sum{Name: "Result", Params: []*types.TypeVar{resultOK, resultErr}}
	result.Members = []*types.Constructor{
		{Name: "Ok", Index: 0, Args: []*types.TypeVar{resultOK}},
		{Name: "Fail", Index: 1, Args: []*types.TypeVar{resultErr}},
	}

	// JValue's constructor count varies by JSON shape (types.Distinguished's
	// own Validate skips the count check for it); these cover the JSON
	// data model wake's `json` primitives produce and consume.
	jvalue := &types.Sum{Name: "JValue"}
	jvalueList := types.NewCon(clock, "List", types.NewCon(clock, "JValue"))
	jvalueFieldList := types.NewCon(clock, "List", types.NewCon(clock, "Pair", types.NewCon(clock, "String"), types.NewCon(clock, "JValue")))
	jvalue.Members = []*types.Constructor{
		{Name: "JString", Index: 0, Args: []*types.TypeVar{types.NewCon(clock, "String")}},
		{Name: "JInteger", Index: 1, Args: []*types.TypeVar{types.NewCon(clock, "Integer")}},
		{Name: "JDouble", Index: 2, Args: []*types.TypeVar{types.NewCon(clock, "Double")}},
		{Name: "JBoolean", Index: 3, Args: []*types.TypeVar{types.NewCon(clock, "Boolean")}},
		{Name: "JList", Index: 4, Args: []*types.TypeVar{jvalueList}},
		{Name: "JObject", Index: 5, Args: []*types.TypeVar{jvalueFieldList}},
		{Name: "JNull", Index: 6},
	}

	dist := &types.Distinguished{
		Boolean: boolean,
		Order:   order,
		List:    list,
		Unit:    unit,
		Pair:    pair,
		Result:  result,
		JValue:  jvalue,
	}

	byName := map[string]*types.Sum{}
	for _, sum := range []*types.Sum{boolean, order, list, unit, pair, result, jvalue} {
		for _, cons := range sum.Members {
			byName[cons.Name] = sum
		}
	}
	return dist, byName
}
