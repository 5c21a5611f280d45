package dbtypes

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTextArrayRoundTrip(t *testing.T) {
	in := TextArray{"gs://evidence/a.jpg", "receipt, scanned.pdf"}
	value, err := in.Value()
	require.NoError(t, err)

	var out TextArray
	require.NoError(t, out.Scan(value))
	require.Equal(t, in, out)
}

func TestTextArrayNilScansEmpty(t *testing.T) {
	var out TextArray
	require.NoError(t, out.Scan(nil))
	require.NotNil(t, out)
	require.Len(t, out, 0)

	value, err := TextArray(nil).Value()
	require.NoError(t, err)
	require.Equal(t, "{}", value)
}

type address struct {
	Street string `json:"street"`
	City   string `json:"city"`
}

func TestJSONScanFromBytesAndString(t *testing.T) {
	var fromBytes JSON[address]
	require.NoError(t, fromBytes.Scan([]byte(`{"street":"Via Roma 1","city":"Milano"}`)))
	require.Equal(t, "Milano", fromBytes.Data.City)

	var fromString JSON[[]int]
	require.NoError(t, fromString.Scan(`[1,2,3]`))
	require.Equal(t, []int{1, 2, 3}, fromString.Data)

	require.Error(t, fromString.Scan(42))
}
