package reading

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFormatsTwoDecimals(t *testing.T) {
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, "0.00", New(0, ts).Value)
	assert.Equal(t, "42.10", New(42.1, ts).Value)
	assert.Equal(t, "99.99", New(99.994, ts).Value)
	assert.Equal(t, ts, New(1, ts).Timestamp)
}

func TestAppendDoesNotAlias(t *testing.T) {
	base := Log{{Value: "1.00"}}
	a := base.Append(Reading{Value: "2.00"})
	b := base.Append(Reading{Value: "3.00"})

	assert.Len(t, base, 1)
	assert.Equal(t, "2.00", a[1].Value)
	assert.Equal(t, "3.00", b[1].Value)
}

func TestLast(t *testing.T) {
	_, ok := Log{}.Last()
	assert.False(t, ok)

	r, ok := Log{{Value: "1.00"}, {Value: "2.00"}}.Last()
	require.True(t, ok)
	assert.Equal(t, "2.00", r.Value)
}

func TestEncodeUsesDataField(t *testing.T) {
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s, err := Log{{Value: "12.34", Timestamp: ts}}.Encode()
	require.NoError(t, err)
	assert.JSONEq(t, `[{"data":"12.34","timestamp":"2024-05-01T12:00:00Z"}]`, s)

	empty, err := Log(nil).Encode()
	require.NoError(t, err)
	assert.Equal(t, "[]", empty)
}

func TestDecode(t *testing.T) {
	l, err := Decode(`[{"data":"1.50","timestamp":"2024-05-01T12:00:00Z"}]`)
	require.NoError(t, err)
	require.Len(t, l, 1)
	assert.Equal(t, "1.50", l[0].Value)

	l, err = Decode("null")
	require.NoError(t, err)
	assert.Empty(t, l)

	_, err = Decode("{not json")
	assert.Error(t, err)
}
