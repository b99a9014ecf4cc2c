package shopify

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrice_UnmarshalAcceptsStringsAndNumbers(t *testing.T) {
	want := decimal.RequireFromString("123.40")

	for name, raw := range map[string]string{
		"string": `{"price":"123.40"}`,
		"number": `{"price":123.4}`,
	} {
		t.Run(name, func(t *testing.T) {
			var v Variant
			require.NoError(t, json.Unmarshal([]byte(raw), &v))
			assert.True(t, v.Price.Equal(want), "got %s", v.Price)
		})
	}

	t.Run("null and empty are zero", func(t *testing.T) {
		var v Variant
		require.NoError(t, json.Unmarshal([]byte(`{"price":null,"compare_at_price":""}`), &v))
		assert.True(t, v.Price.IsZero())
	})

	t.Run("garbage fails", func(t *testing.T) {
		var v Variant
		assert.Error(t, json.Unmarshal([]byte(`{"price":"twelve"}`), &v))
	})
}

func TestPrice_MarshalFixedTwoDecimals(t *testing.T) {
	cases := map[string]string{
		"49.99":  `"49.99"`,
		"123.4":  `"123.40"`,
		"10":     `"10.00"`,
		"-1.239": `"-1.24"`,
	}
	for in, want := range cases {
		out, err := json.Marshal(NewPrice(decimal.RequireFromString(in)))
		require.NoError(t, err)
		assert.Equal(t, want, string(out), in)
	}
}
