package faucet

import (
	"context"
	"math/big"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/dwarvesf/faucet-swap-backend/internal/chainrpc"
	"github.com/dwarvesf/faucet-swap-backend/internal/consts"
	"github.com/dwarvesf/faucet-swap-backend/internal/model"
	"github.com/dwarvesf/faucet-swap-backend/internal/utils/config"
	"github.com/dwarvesf/faucet-swap-backend/internal/utils/logger"
)

var ErrUnknownFaucet = errors.New("no faucet contract configured for token")

type IExecutor interface {
	// Withdraw sends amount of token to recipient from the token's faucet and returns the tx id.
	Withdraw(ctx context.Context, token model.TargetToken, amount *big.Int, recipient string) (string, error)
	FaucetAddress(token model.TargetToken) (string, error)
}

// Executor submits faucet withdrawals with the backend signer.
type Executor struct {
	rpc       chainrpc.IChainRPC
	addresses map[model.TargetToken]string
	timeout   time.Duration
	logger    *logger.Logger
}

func New(rpc chainrpc.IChainRPC, cfg config.FaucetConfig, logger *logger.Logger) *Executor {
	addresses := make(map[model.TargetToken]string, len(cfg.Addresses))
	for symbol, addr := range cfg.Addresses {
		token, ok := model.ParseTargetToken(symbol)
		if !ok || strings.TrimSpace(addr) == "" {
			continue
		}
		addresses[token] = strings.TrimSpace(addr)
	}

	timeout := cfg.WithdrawTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &Executor{
		rpc:       rpc,
		addresses: addresses,
		timeout:   timeout,
		logger:    logger,
	}
}

func (e *Executor) FaucetAddress(token model.TargetToken) (string, error) {
	addr, ok := e.addresses[token]
	if !ok {
		return "", errors.Wrapf(ErrUnknownFaucet, "%s", token)
	}
	return addr, nil
}

func (e *Executor) Withdraw(ctx context.Context, token model.TargetToken, amount *big.Int, recipient string) (string, error) {
	faucetAddr, err := e.FaucetAddress(token)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	e.logger.Info("[Withdraw] submitting", map[string]string{
		"token":     string(token),
		"faucet":    faucetAddr,
		"recipient": recipient,
		"amount":    amount.String(),
	})

	txID, err := e.rpc.Withdraw(ctx, faucetAddr, recipient, amount, consts.DustAttos)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", errors.Wrapf(err, "faucet withdrawal not confirmed within %s, transaction state unknown, manual reconciliation required", e.timeout)
		}
		return "", errors.Wrap(err, "faucet withdrawal failed")
	}

	e.logger.Info("[Withdraw] confirmed", map[string]string{
		"token":  string(token),
		"tx_id":  txID,
		"amount": amount.String(),
	})
	return txID, nil
}
