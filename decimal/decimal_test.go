package decimal_test

import (
	"encoding/json"
	"testing"

	"github.com/RogueTeam/ilpgateway/decimal"
	"github.com/stretchr/testify/assert"
)

func Test_Minor(t *testing.T) {
	t.Run("Succeed", func(t *testing.T) {
		type Test struct {
			Reference string
			Scale     uint8
			Expect    uint64
		}
		tests := []Test{
			{Reference: `5.05`, Scale: 2, Expect: 505},
			{Reference: `0`, Scale: 2, Expect: 0},
			{Reference: `0.0`, Scale: 2, Expect: 0},
			{Reference: `1`, Scale: 2, Expect: 100},
			{Reference: `0.01`, Scale: 2, Expect: 1},
			{Reference: `0.1`, Scale: 2, Expect: 10},
			{Reference: `100000`, Scale: 2, Expect: 10_000_000},
			{Reference: `123.456`, Scale: 3, Expect: 123_456},
			{Reference: `500`, Scale: 0, Expect: 500},
			{Reference: `10.000000000001`, Scale: 12, Expect: 10_000_000_000_001},
			{Reference: `0.000000001`, Scale: 9, Expect: 1},
			{Reference: `12345.6789`, Scale: 9, Expect: 12_345_678_900_000},
		}
		for _, test := range tests {
			name, _ := json.Marshal(test)
			t.Run(string(name), func(t *testing.T) {
				assertions := assert.New(t)

				var value decimal.Decimal
				err := value.FromString(test.Reference)
				assertions.Nil(err, "failed to convert from string")
				assertions.Equal(test.Expect, value.ToMinor(test.Scale), "invalid minor units")

				var final decimal.Decimal
				final.FromMinor(value.ToMinor(test.Scale), test.Scale)
				assertions.Equal(test.Expect, final.ToMinor(test.Scale), "not equal after round trip")
			})
		}
	})
}

func Test_String(t *testing.T) {
	type Test struct {
		Value  string
		Scale  uint8
		Expect string
	}
	tests := []Test{
		{Value: "505", Scale: 2, Expect: "5.05"},
		{Value: "500", Scale: 2, Expect: "5.00"},
		{Value: "1", Scale: 9, Expect: "0.000000001"},
		{Value: "42", Scale: 0, Expect: "42"},
	}
	for _, test := range tests {
		t.Run(test.Value, func(t *testing.T) {
			assertions := assert.New(t)

			var d decimal.Decimal
			err := d.FromMinorString(test.Value, test.Scale)
			assertions.Nil(err, "failed to parse minor value")
			assertions.Equal(test.Expect, d.String())
		})
	}

	t.Run("Invalid", func(t *testing.T) {
		var d decimal.Decimal
		assert.NotNil(t, d.FromMinorString("5.05", 2))
		assert.NotNil(t, d.FromMinorString("-1", 2))
	})
}

func Test_ExactMinor(t *testing.T) {
	assertions := assert.New(t)

	var d decimal.Decimal
	assertions.Nil(d.FromString("5.05"))
	v, err := d.ExactMinor(2)
	assertions.Nil(err, "failed to convert")
	assertions.Equal(uint64(505), v)

	assertions.Nil(d.FromString("5.055"))
	_, err = d.ExactMinor(2)
	assertions.ErrorIs(err, decimal.ErrFractionalMinor)

	assertions.Nil(d.FromString("-1"))
	_, err = d.ExactMinor(2)
	assertions.NotNil(err, "negative amounts should fail")
}
