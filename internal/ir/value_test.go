package ir

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueSealed(t *testing.T) {
	var _ Value = Null{}
	var _ Value = String("test")
	var _ Value = Int(42)
	var _ Value = Float(0.5)
	var _ Value = Bool(true)
	var _ Value = Array{String("a"), Int(1)}
	var _ Value = Object{"key": String("value")}
}

func TestObjectSortedKeys(t *testing.T) {
	obj := Object{
		"zebra":  String("z"),
		"apple":  String("a"),
		"banana": String("b"),
	}
	assert.Equal(t, []string{"apple", "banana", "zebra"}, obj.SortedKeys())
}

func TestObjectSortedKeysUTF16Order(t *testing.T) {
	// U+1F600 encodes as a surrogate pair (0xD83D...) which sorts before U+FF01
	// in UTF-16 but after it in UTF-8.
	obj := Object{
		"\uff01":     Int(1),
		"\U0001F600": Int(2),
		"A":          Int(3),
	}
	assert.Equal(t, []string{"A", "\U0001F600", "\uff01"}, obj.SortedKeys())
}

func TestObjectMarshalJSON(t *testing.T) {
	obj := Object{"b": Int(2), "a": String("x"), "c": Array{Bool(true), Null{}}}
	b, err := json.Marshal(obj)
	require.NoError(t, err)
	assert.Equal(t, `{"a":"x","b":2,"c":[true,null]}`, string(b))
}

func TestFromGo(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want Value
	}{
		{"nil", nil, Null{}},
		{"string", "hi", String("hi")},
		{"int", 3, Int(3)},
		{"int64", int64(-7), Int(-7)},
		{"float", 0.25, Float(0.25)},
		{"bool", true, Bool(true)},
		{"json int", json.Number("12"), Int(12)},
		{"json float", json.Number("1.5"), Float(1.5)},
		{"array", []any{"a", 1}, Array{String("a"), Int(1)}},
		{"object", map[string]any{"k": false}, Object{"k": Bool(false)}},
		{"already value", String("v"), String("v")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FromGo(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFromGo_Unsupported(t *testing.T) {
	_, err := FromGo(struct{}{})
	assert.Error(t, err)

	_, err = FromGo([]any{make(chan int)})
	assert.ErrorContains(t, err, "[0]")
}

func TestText(t *testing.T) {
	assert.Equal(t, "", Text(nil))
	assert.Equal(t, "", Text(Null{}))
	assert.Equal(t, "abc", Text(String("abc")))
	assert.Equal(t, "-4", Text(Int(-4)))
	assert.Equal(t, "0.5", Text(Float(0.5)))
	assert.Equal(t, "true", Text(Bool(true)))
	assert.Equal(t, `[1,"a"]`, Text(Array{Int(1), String("a")}))
}

func TestTruthy(t *testing.T) {
	assert.True(t, Truthy(Bool(true)))
	assert.False(t, Truthy(Bool(false)))
	assert.True(t, Truthy(String("yes")))
	assert.False(t, Truthy(String("false")))
	assert.False(t, Truthy(String("0")))
	assert.False(t, Truthy(String("")))
	assert.True(t, Truthy(Int(2)))
	assert.False(t, Truthy(Int(0)))
	assert.False(t, Truthy(Null{}))
	assert.False(t, Truthy(nil))
}
