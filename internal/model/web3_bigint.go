package model

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// Web3BigInt is an integer amount in smallest units together with its decimal scale.
type Web3BigInt struct {
	Value   string `json:"value"`
	Decimal int    `json:"decimal"`
}

func NewWeb3BigInt(v *big.Int, decimals int) *Web3BigInt {
	if v == nil {
		v = new(big.Int)
	}
	return &Web3BigInt{Value: v.String(), Decimal: decimals}
}

func (w *Web3BigInt) BigInt() (*big.Int, bool) {
	return new(big.Int).SetString(w.Value, 10)
}

func (w *Web3BigInt) Int64() (int64, bool) {
	amt, ok := w.BigInt()
	if !ok || !amt.IsInt64() {
		return 0, false
	}

	return amt.Int64(), true
}

// ToDecimal scales the raw value down by its decimals without going through float64.
func (w *Web3BigInt) ToDecimal() decimal.Decimal {
	amt, ok := w.BigInt()
	if !ok {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(amt, int32(-w.Decimal))
}

func (w *Web3BigInt) ToFloat() float64 {
	f, _ := w.ToDecimal().Float64()
	return f
}

// String renders the human-readable amount, e.g. "0.7" for {7000000, 7}.
func (w *Web3BigInt) String() string {
	return w.ToDecimal().String()
}

func (w *Web3BigInt) Cmp(other *Web3BigInt) int {
	a, _ := w.BigInt()
	b, _ := other.BigInt()
	if a == nil {
		a = new(big.Int)
	}
	if b == nil {
		b = new(big.Int)
	}
	return a.Cmp(b)
}

func (w *Web3BigInt) Add(number *Web3BigInt) *Web3BigInt {
	a, _ := w.BigInt()
	b, _ := number.BigInt()
	if a == nil {
		a = new(big.Int)
	}
	if b == nil {
		b = new(big.Int)
	}
	return NewWeb3BigInt(new(big.Int).Add(a, b), w.Decimal)
}
