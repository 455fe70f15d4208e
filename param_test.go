package sharrock_test

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/axilent/sharrock"
)

func TestParam_Process(t *testing.T) {
	t.Parallel()

	intItem := sharrock.IntegerParam("value")

	tests := map[string]struct {
		param   sharrock.Param
		raw     any
		want    any
		wantErr error
	}{
		"unicode keeps strings": {
			param: sharrock.UnicodeParam("s"),
			raw:   "abc",
			want:  "abc",
		},
		"unicode stringifies integers": {
			param: sharrock.UnicodeParam("s"),
			raw:   42,
			want:  "42",
		},
		"unicode stringifies floats without exponent": {
			param: sharrock.UnicodeParam("s"),
			raw:   1.5,
			want:  "1.5",
		},
		"integer from string": {
			param: sharrock.IntegerParam("n"),
			raw:   "42",
			want:  int64(42),
		},
		"integer from padded string": {
			param: sharrock.IntegerParam("n"),
			raw:   " 7 ",
			want:  int64(7),
		},
		"integer truncates floats": {
			param: sharrock.IntegerParam("n"),
			raw:   3.9,
			want:  int64(3),
		},
		"integer from json number": {
			param: sharrock.IntegerParam("n"),
			raw:   json.Number("12"),
			want:  int64(12),
		},
		"integer from int": {
			param: sharrock.IntegerParam("n"),
			raw:   5,
			want:  int64(5),
		},
		"integer rejects words": {
			param:   sharrock.IntegerParam("n"),
			raw:     "abc",
			wantErr: sharrock.ErrBadParamType,
		},
		"integer rejects floats past int64": {
			param:   sharrock.IntegerParam("n"),
			raw:     9223372036854775808.0,
			wantErr: sharrock.ErrBadParamType,
		},
		"integer rejects json numbers past int64": {
			param:   sharrock.IntegerParam("n"),
			raw:     json.Number("9223372036854775808"),
			wantErr: sharrock.ErrBadParamType,
		},
		"integer accepts the lowest int64": {
			param: sharrock.IntegerParam("n"),
			raw:   float64(math.MinInt64),
			want:  int64(math.MinInt64),
		},
		"integer rejects booleans": {
			param:   sharrock.IntegerParam("n"),
			raw:     true,
			wantErr: sharrock.ErrBadParamType,
		},
		"float from string": {
			param: sharrock.FloatParam("f"),
			raw:   "1.5",
			want:  1.5,
		},
		"float from int": {
			param: sharrock.FloatParam("f"),
			raw:   2,
			want:  2.0,
		},
		"float rejects words": {
			param:   sharrock.FloatParam("f"),
			raw:     "x",
			wantErr: sharrock.ErrBadParamType,
		},
		"wildcard list passes through": {
			param: sharrock.ListParam("l", nil),
			raw:   []any{1, "two"},
			want:  []any{1, "two"},
		},
		"list rejects strings": {
			param:   sharrock.ListParam("l", nil),
			raw:     "abc",
			wantErr: sharrock.ErrBadParamType,
		},
		"list coerces items": {
			param: sharrock.ListParam("l", &intItem),
			raw:   []string{"1", "2"},
			want:  []any{int64(1), int64(2)},
		},
		"list reports the bad item": {
			param:   sharrock.ListParam("l", &intItem),
			raw:     []any{1, "x"},
			wantErr: sharrock.ErrBadParamType,
		},
		"wildcard dict passes through": {
			param: sharrock.DictParam("d", nil),
			raw:   map[string]any{"a": 1},
			want:  map[string]any{"a": 1},
		},
		"dict rejects lists": {
			param:   sharrock.DictParam("d", nil),
			raw:     []any{1},
			wantErr: sharrock.ErrBadParamType,
		},
		"dict coerces declared fields": {
			param: sharrock.DictParam("d", []sharrock.Param{sharrock.IntegerParam("a", sharrock.Required())}),
			raw:   map[string]any{"a": "3", "b": "ignored"},
			want:  map[string]any{"a": int64(3)},
		},
		"dict requires declared fields": {
			param:   sharrock.DictParam("d", []sharrock.Param{sharrock.IntegerParam("a", sharrock.Required())}),
			raw:     map[string]any{},
			wantErr: sharrock.ErrMissingParam,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			got, err := tc.param.Process(tc.raw)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParam_ProcessNamesNestedFailures(t *testing.T) {
	t.Parallel()

	item := sharrock.IntegerParam("value")
	_, err := sharrock.ListParam("numbers", &item).Process([]any{1, "x"})

	var badType *sharrock.BadParamTypeError
	require.ErrorAs(t, err, &badType)
	assert.Equal(t, "numbers[1]", badType.Name)
	assert.Equal(t, "x", badType.Value)
	assert.Equal(t, sharrock.KindInteger, badType.Kind)

	_, err = sharrock.DictParam("point", []sharrock.Param{sharrock.FloatParam("x", sharrock.Required())}).
		Process(map[string]any{})

	var missing *sharrock.MissingParamError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "point.x", missing.Name)
}

func TestParam_Lookup(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		param   sharrock.Param
		raw     map[string]any
		want    any
		wantErr error
	}{
		"present value is processed": {
			param: sharrock.IntegerParam("n"),
			raw:   map[string]any{"n": "4"},
			want:  int64(4),
		},
		"absent value falls back to the default": {
			param: sharrock.UnicodeParam("name", sharrock.Default("world")),
			raw:   map[string]any{},
			want:  "world",
		},
		"empty string counts as absent": {
			param: sharrock.UnicodeParam("name", sharrock.Default("world")),
			raw:   map[string]any{"name": ""},
			want:  "world",
		},
		"default is coerced": {
			param: sharrock.IntegerParam("n", sharrock.Default("9")),
			raw:   map[string]any{},
			want:  int64(9),
		},
		"default satisfies required": {
			param: sharrock.IntegerParam("n", sharrock.Required(), sharrock.Default(1)),
			raw:   map[string]any{},
			want:  int64(1),
		},
		"absent required value is missing": {
			param:   sharrock.UnicodeParam("foo", sharrock.Required()),
			raw:     map[string]any{},
			wantErr: sharrock.ErrMissingParam,
		},
		"absent optional value is nil": {
			param: sharrock.IntegerParam("bar"),
			raw:   map[string]any{"other": 1},
			want:  nil,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			got, err := tc.param.Lookup(tc.raw)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParamDescription_Param(t *testing.T) {
	t.Parallel()

	item := sharrock.IntegerParam("value")
	declared := []sharrock.Param{
		sharrock.UnicodeParam("name", sharrock.Default("world"), sharrock.Describe("Who to greet.")),
		sharrock.ListParam("numbers", &item, sharrock.Required()),
		sharrock.DictParam("point", []sharrock.Param{sharrock.FloatParam("x", sharrock.Required())}),
	}

	inputs := []map[string]any{
		{},
		{"numbers": []any{"1", 2}},
		{"numbers": []any{"1", "x"}},
		{"numbers": []any{1}, "point": map[string]any{}},
		{"numbers": []any{1}, "point": map[string]any{"x": "2.5"}},
	}

	for _, p := range declared {
		rebuilt, err := p.Describe().Param()
		require.NoError(t, err)
		assert.Equal(t, p.Describe(), rebuilt.Describe())

		for _, in := range inputs {
			want, wantErr := p.Lookup(in)
			got, gotErr := rebuilt.Lookup(in)
			assert.Equal(t, want, got, "param %s input %v", p.Name(), in)
			assert.Equal(t, wantErr, gotErr, "param %s input %v", p.Name(), in)
		}
	}
}

func TestParamDescription_Param_unknownType(t *testing.T) {
	t.Parallel()

	_, err := sharrock.ParamDescription{Name: "x", Type: "Decimal"}.Param()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Decimal")

	_, err = sharrock.ParamDescription{
		Name: "l",
		Type: sharrock.KindList,
		Item: &sharrock.ParamDescription{Name: "value", Type: "Boolean"},
	}.Param()
	require.Error(t, err)
}

func TestParams_accessors(t *testing.T) {
	t.Parallel()

	p := sharrock.Params{
		"name":    "Loren",
		"count":   int64(3),
		"ratio":   0.5,
		"numbers": []any{int64(1), int64(2)},
		"point":   map[string]any{"x": 1.0},
		"absent":  nil,
	}

	assert.Equal(t, "Loren", p.String("name"))
	assert.Equal(t, int64(3), p.Int("count"))
	assert.InDelta(t, 0.5, p.Float("ratio"), 1e-9)
	assert.Equal(t, []any{int64(1), int64(2)}, p.List("numbers"))
	assert.Equal(t, map[string]any{"x": 1.0}, p.Dict("point"))
	assert.True(t, p.Has("name"))
	assert.False(t, p.Has("absent"))
	assert.Empty(t, p.String("absent"))
	assert.Zero(t, p.Int("name"))
}

func TestParams_Decode(t *testing.T) {
	t.Parallel()

	var target struct {
		Name    string  `param:"name"`
		Count   int     `param:"count"`
		Numbers []int64 `param:"numbers"`
		Ratio   float64
	}

	err := sharrock.Params{
		"name":    "Loren",
		"count":   int64(3),
		"numbers": []any{int64(1), int64(2)},
		"ratio":   0.25,
	}.Decode(&target)
	require.NoError(t, err)

	assert.Equal(t, "Loren", target.Name)
	assert.Equal(t, 3, target.Count)
	assert.Equal(t, []int64{1, 2}, target.Numbers)
	assert.InDelta(t, 0.25, target.Ratio, 1e-9)
}

func TestMissingParamError_message(t *testing.T) {
	t.Parallel()

	err := error(&sharrock.MissingParamError{Name: "foo"})
	assert.Equal(t, "foo is a required parameter and has not been specified", err.Error())
	assert.ErrorIs(t, err, sharrock.ErrMissingParam)
}
