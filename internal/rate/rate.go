package rate

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/dwarvesf/faucet-swap-backend/internal/consts"
	"github.com/dwarvesf/faucet-swap-backend/internal/model"
)

var (
	ErrUnsupportedToken  = errors.New("unsupported target token")
	ErrNonPositiveAmount = errors.New("computed amount is not positive")
	ErrInvalidAmount     = errors.New("invalid amount")
)

// Rate is a fixed numerator/denominator price of one base unit in target units,
// together with the target token's decimal scale.
type Rate struct {
	Numerator   int64
	Denominator int64
	Decimals    int
}

var rates = map[model.TargetToken]Rate{
	model.TargetTokenUSDT: {Numerator: 7, Denominator: 10, Decimals: 7},
	model.TargetTokenWETH: {Numerator: 1, Denominator: 1, Decimals: 18},
}

func RateOf(token model.TargetToken) (Rate, error) {
	r, ok := rates[token]
	if !ok {
		return Rate{}, fmt.Errorf("%w: %q", ErrUnsupportedToken, token)
	}
	return r, nil
}

// ComputeTargetAmount returns floor(deposited * num * 10^t / (den * 10^b)).
// Both scale factors are applied before the single division.
func ComputeTargetAmount(token model.TargetToken, depositedAttos *big.Int) (*big.Int, error) {
	r, err := RateOf(token)
	if err != nil {
		return nil, err
	}
	if depositedAttos == nil {
		return nil, fmt.Errorf("%w: deposit is nil", ErrNonPositiveAmount)
	}

	num := new(big.Int).Mul(depositedAttos, big.NewInt(r.Numerator))
	num.Mul(num, pow10(r.Decimals))

	den := new(big.Int).Mul(big.NewInt(r.Denominator), pow10(consts.BaseAssetDecimals))

	// Quo truncates toward zero; negative inputs are rejected below anyway.
	out := new(big.Int).Quo(num, den)
	if out.Sign() <= 0 {
		return nil, fmt.Errorf("%w: %s attos of base asset yields %s %s units", ErrNonPositiveAmount, depositedAttos, out, token)
	}
	return out, nil
}

// ToAttos converts a declared human amount such as "1.5" into base smallest units.
func ToAttos(humanAmount string) (*big.Int, error) {
	s := strings.TrimSpace(humanAmount)
	if s == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidAmount)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, humanAmount)
	}
	if d.Sign() <= 0 {
		return nil, fmt.Errorf("%w: %q must be positive", ErrInvalidAmount, humanAmount)
	}

	scaled := d.Shift(consts.BaseAssetDecimals)
	if !scaled.Equal(scaled.Truncate(0)) {
		return nil, fmt.Errorf("%w: %q has more than %d fractional digits", ErrInvalidAmount, humanAmount, consts.BaseAssetDecimals)
	}
	return scaled.BigInt(), nil
}

// FormatUnits renders a smallest-unit amount with the given decimals.
func FormatUnits(amount *big.Int, decimals int) string {
	return model.NewWeb3BigInt(amount, decimals).String()
}

func pow10(n int) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}
