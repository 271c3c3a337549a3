package engine

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShare(t *testing.T) {
	tests := []struct {
		name    string
		price   int64
		fee     int64
		artists int
		want    string
	}{
		{"royalty two artists", 1000, 4, 2, "20"},
		{"primary three artists truncates", 999, 90, 3, "299"},
		{"single artist", 500, 90, 1, "450"},
		{"divides by artists before hundred", 101, 3, 2, "1"},
		{"zero artists", 1000, 4, 0, "0"},
		{"zero price", 0, 4, 2, "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Share(big.NewInt(tt.price), big.NewInt(tt.fee), tt.artists)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestShareOperationOrder(t *testing.T) {
	// 7 * 33 = 231; 231 / 2 = 115; 115 / 100 = 1.
	assert.Equal(t, "1", Share(big.NewInt(7), big.NewInt(33), 2).String())
}

func TestPrimaryFee(t *testing.T) {
	assert.Equal(t, "90", PrimaryFee(big.NewInt(10)).String())
	assert.Equal(t, "-50", PrimaryFee(big.NewInt(150)).String())
}

func TestShareHandlesLargePrices(t *testing.T) {
	price, ok := new(big.Int).SetString("1000000000000000000000", 10)
	assert.True(t, ok)
	assert.Equal(t, "20000000000000000000", Share(price, big.NewInt(4), 2).String())
}
