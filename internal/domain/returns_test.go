package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(v float64) *float64 { return &v }

func TestReturns_MarshalJSON_OrderAndNull(t *testing.T) {
	r := Returns{
		{Label: "1M", Value: ptr(1.25)},
		{Label: "1Y", Value: ptr(-3.5)},
		{Label: "10Y", Value: nil},
	}

	data, err := json.Marshal(r)
	require.NoError(t, err)
	assert.Equal(t, `{"1M":1.25,"1Y":-3.5,"10Y":null}`, string(data))
}

func TestReturns_UnmarshalJSON_PreservesOrder(t *testing.T) {
	var r Returns
	err := json.Unmarshal([]byte(`{"3Y":12.5,"1M":null,"5Y":0}`), &r)
	require.NoError(t, err)

	require.Len(t, r, 3)
	assert.Equal(t, "3Y", r[0].Label)
	assert.InDelta(t, 12.5, *r[0].Value, 1e-9)
	assert.Nil(t, r[1].Value)
	require.NotNil(t, r[2].Value, "explicit zero stays a number")
	assert.Equal(t, 0.0, *r[2].Value)
}

func TestReturns_UnmarshalJSON_RejectsNonObject(t *testing.T) {
	var r Returns
	assert.Error(t, json.Unmarshal([]byte(`[1,2]`), &r))
}

func TestReturns_Get(t *testing.T) {
	r := Returns{{Label: "1M", Value: ptr(2)}}

	v, ok := r.Get("1M")
	require.True(t, ok)
	assert.Equal(t, 2.0, *v)

	_, ok = r.Get("3M")
	assert.False(t, ok)
}

func TestUndefinedProfile(t *testing.T) {
	p := UndefinedProfile(DefaultWindows(), MethodologyPeriodic, ReasonNoData)

	require.Len(t, p.Windows, 8)
	for _, w := range p.Windows {
		assert.False(t, w.Defined())
		assert.Equal(t, ReasonNoData, w.Reason)
	}

	data, err := json.Marshal(p)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"returns":{"1M":null,"3M":null`)
}

func TestReturnProfile_DetailsIsACopy(t *testing.T) {
	p := ReturnProfile{Windows: Returns{{Label: "1M", Method: MethodAbsolute}}}
	d := p.Details()
	d[0].Method = MethodXIRR
	assert.Equal(t, MethodAbsolute, p.Windows[0].Method)
}
