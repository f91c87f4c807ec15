package profile

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMergeScalarLastWins(t *testing.T) {
	got := Merge(Scalar("old"), Scalar("new"))
	assert.Equal(t, "new", got.ToAny())
}

func TestMergeListsConcatenate(t *testing.T) {
	a := FromAny([]any{"hiking", "jazz"})
	b := FromAny([]any{"cooking"})

	got := Merge(a, b).ToAny()
	assert.Equal(t, []any{"hiking", "jazz", "cooking"}, got)
}

func TestMergeMapsPerKey(t *testing.T) {
	a := FromAny(map[string]any{
		"name":      "Sam",
		"interests": []any{"hiking"},
		"location":  "Vienna",
	})
	b := FromAny(map[string]any{
		"interests": []any{"jazz"},
		"location":  "Berlin",
		"job":       "engineer",
	})

	got := Merge(a, b).ToAny()
	assert.Equal(t, map[string]any{
		"name":      "Sam",
		"interests": []any{"hiking", "jazz"},
		"location":  "Berlin",
		"job":       "engineer",
	}, got)
}

func TestMergeNestedMapsRecurse(t *testing.T) {
	a := FromAny(map[string]any{
		"preferences": map[string]any{"tone": "formal", "length": "short"},
	})
	b := FromAny(map[string]any{
		"preferences": map[string]any{"tone": "casual"},
	})

	got := Merge(a, b).ToAny()
	assert.Equal(t, map[string]any{
		"preferences": map[string]any{"tone": "casual", "length": "short"},
	}, got)
}

func TestMergeMixedKindsLaterWins(t *testing.T) {
	// list vs scalar: no sensible concatenation, later value replaces
	got := Merge(FromAny([]any{"a"}), Scalar("b"))
	assert.Equal(t, "b", got.ToAny())

	got = Merge(Scalar("b"), FromAny([]any{"a"}))
	assert.Equal(t, []any{"a"}, got.ToAny())
}

func TestMergeDoesNotMutateInputs(t *testing.T) {
	a := FromAny(map[string]any{"tags": []any{"x"}})
	b := FromAny(map[string]any{"tags": []any{"y"}})

	_ = Merge(a, b)

	assert.Equal(t, map[string]any{"tags": []any{"x"}}, a.ToAny())
	assert.Equal(t, map[string]any{"tags": []any{"y"}}, b.ToAny())
}

func TestMergeMapsFoldsInOrder(t *testing.T) {
	got := MergeMaps(
		map[string]any{"mood": "curious", "topics": []any{"go"}},
		map[string]any{"mood": "tired", "topics": []any{"music"}},
		map[string]any{"topics": []any{"travel"}},
	)

	assert.Equal(t, map[string]any{
		"mood":   "tired",
		"topics": []any{"go", "music", "travel"},
	}, got)
}

func TestMergeMapsEmpty(t *testing.T) {
	assert.Equal(t, map[string]any{}, MergeMaps())
	assert.Equal(t, map[string]any{"a": "b"}, MergeMaps(map[string]any{"a": "b"}))
}

func TestFromAnyRoundTrip(t *testing.T) {
	in := map[string]any{
		"scalar": 3.5,
		"nested": map[string]any{"list": []any{"a", true, nil}},
	}
	assert.Equal(t, in, FromAny(in).ToAny())
}
