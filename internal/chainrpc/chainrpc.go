package chainrpc

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/pkg/errors"

	"github.com/dwarvesf/faucet-swap-backend/internal/model"
	"github.com/dwarvesf/faucet-swap-backend/internal/utils/config"
	"github.com/dwarvesf/faucet-swap-backend/internal/utils/logger"
)

// Most public RPC providers reject eth_getLogs over wider ranges.
const maxBlockRange = 10000

var (
	ErrNoSigner       = errors.New("no signing key configured")
	ErrTxReverted     = errors.New("transaction reverted")
	ErrInvalidAddress = errors.New("invalid address")
)

// Backend is the subset of ethclient.Client the chain client needs.
type Backend interface {
	bind.ContractBackend
	BlockNumber(ctx context.Context) (uint64, error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

type ChainRPC struct {
	backend         Backend
	logger          *logger.Logger
	depositAddress  common.Address
	depositABI      abi.ABI
	faucetABI       abi.ABI
	chainID         *big.Int
	signerKey       *ecdsa.PrivateKey
	signerAddress   common.Address
	confirmReceipts bool
}

func New(cfg config.ChainConfig, signerPrivateKey string, logger *logger.Logger) (IChainRPC, error) {
	client, err := ethclient.Dial(cfg.RPCEndpoint)
	if err != nil {
		return nil, errors.Wrap(err, "dial chain rpc")
	}
	return NewWithBackend(client, cfg.DepositContractAddress, signerPrivateKey, cfg.ChainID, logger)
}

// NewWithBackend builds a client over any backend. An empty key yields a read-only client.
func NewWithBackend(backend Backend, depositAddress, signerPrivateKey string, chainID int64, logger *logger.Logger) (*ChainRPC, error) {
	if !common.IsHexAddress(depositAddress) {
		return nil, errors.Wrapf(ErrInvalidAddress, "deposit contract %q", depositAddress)
	}

	depositABI, err := abi.JSON(strings.NewReader(DepositABI))
	if err != nil {
		return nil, errors.Wrap(err, "parse deposit abi")
	}
	faucetABI, err := abi.JSON(strings.NewReader(FaucetABI))
	if err != nil {
		return nil, errors.Wrap(err, "parse faucet abi")
	}

	c := &ChainRPC{
		backend:         backend,
		logger:          logger,
		depositAddress:  common.HexToAddress(depositAddress),
		depositABI:      depositABI,
		faucetABI:       faucetABI,
		chainID:         big.NewInt(chainID),
		confirmReceipts: true,
	}

	if signerPrivateKey != "" {
		key, err := crypto.HexToECDSA(strings.TrimPrefix(signerPrivateKey, "0x"))
		if err != nil {
			return nil, errors.Wrap(err, "parse signer private key")
		}
		c.signerKey = key
		c.signerAddress = crypto.PubkeyToAddress(key.PublicKey)
		logger.Info("[NewWithBackend] faucet signer loaded", map[string]string{
			"address": c.SignerAddress().Hex(),
		})
	} else {
		logger.Warn("[NewWithBackend] no signer key, withdrawals are disabled")
	}

	return c, nil
}

func (c *ChainRPC) SignerAddress() common.Address {
	return c.signerAddress
}

func (c *ChainRPC) LatestBlock(ctx context.Context) (uint64, error) {
	n, err := c.backend.BlockNumber(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "get latest block")
	}
	return n, nil
}

func (c *ChainRPC) FetchDeposits(ctx context.Context, fromBlock, toBlock uint64) ([]model.DepositEvent, error) {
	if toBlock < fromBlock {
		return nil, nil
	}

	depositID := c.depositABI.Events["Deposit"].ID
	var events []model.DepositEvent

	for start := fromBlock; start <= toBlock; start += maxBlockRange {
		end := start + maxBlockRange - 1
		if end > toBlock {
			end = toBlock
		}

		logs, err := c.backend.FilterLogs(ctx, ethereum.FilterQuery{
			FromBlock: new(big.Int).SetUint64(start),
			ToBlock:   new(big.Int).SetUint64(end),
			Addresses: []common.Address{c.depositAddress},
			Topics:    [][]common.Hash{{depositID}},
		})
		if err != nil {
			c.logger.Error("[FetchDeposits][FilterLogs]", map[string]string{
				"error":      err.Error(),
				"startBlock": fmt.Sprintf("%d", start),
				"endBlock":   fmt.Sprintf("%d", end),
			})
			return nil, errors.Wrapf(err, "filter deposit logs %d-%d", start, end)
		}

		for _, lg := range logs {
			if lg.Removed {
				continue
			}
			ev, err := c.decodeDeposit(lg)
			if err != nil {
				// a malformed log cannot be retried into shape; skip it
				c.logger.Error("[FetchDeposits][decodeDeposit]", map[string]string{
					"error":  err.Error(),
					"txHash": lg.TxHash.Hex(),
				})
				continue
			}
			events = append(events, ev)
		}
	}

	sort.SliceStable(events, func(i, j int) bool {
		if events[i].BlockNumber != events[j].BlockNumber {
			return events[i].BlockNumber < events[j].BlockNumber
		}
		return events[i].LogIndex < events[j].LogIndex
	})
	return events, nil
}

func (c *ChainRPC) decodeDeposit(lg types.Log) (model.DepositEvent, error) {
	if len(lg.Topics) < 2 {
		return model.DepositEvent{}, fmt.Errorf("deposit log has %d topics", len(lg.Topics))
	}

	values, err := c.depositABI.Unpack("Deposit", lg.Data)
	if err != nil {
		return model.DepositEvent{}, errors.Wrap(err, "unpack deposit data")
	}
	amount, ok := values[0].(*big.Int)
	if !ok || len(values) != 1 {
		return model.DepositEvent{}, fmt.Errorf("unexpected deposit payload %v", values)
	}

	return model.DepositEvent{
		From:        common.BytesToAddress(lg.Topics[1].Bytes()).Hex(),
		Amount:      amount,
		TxID:        lg.TxHash.Hex(),
		BlockNumber: lg.BlockNumber,
		LogIndex:    lg.Index,
	}, nil
}

func (c *ChainRPC) Withdraw(ctx context.Context, faucetAddress, recipient string, amount, dust *big.Int) (string, error) {
	if c.signerKey == nil {
		return "", ErrNoSigner
	}
	if !common.IsHexAddress(faucetAddress) {
		return "", errors.Wrapf(ErrInvalidAddress, "faucet %q", faucetAddress)
	}
	if !common.IsHexAddress(recipient) {
		return "", errors.Wrapf(ErrInvalidAddress, "recipient %q", recipient)
	}

	opts, err := bind.NewKeyedTransactorWithChainID(c.signerKey, c.chainID)
	if err != nil {
		return "", errors.Wrap(err, "create transactor")
	}
	opts.Context = ctx
	opts.Value = new(big.Int).Set(dust)

	faucet := bind.NewBoundContract(common.HexToAddress(faucetAddress), c.faucetABI, c.backend, c.backend, c.backend)
	tx, err := faucet.Transact(opts, "withdraw", common.HexToAddress(recipient), amount)
	if err != nil {
		c.logger.Error("[Withdraw][Transact]", map[string]string{
			"error":     err.Error(),
			"faucet":    faucetAddress,
			"recipient": recipient,
			"amount":    amount.String(),
		})
		return "", errors.Wrap(err, "submit faucet withdrawal")
	}

	txID := tx.Hash().Hex()
	c.logger.Info("[Withdraw][Submitted]", map[string]string{
		"txHash":    txID,
		"faucet":    faucetAddress,
		"recipient": recipient,
		"amount":    amount.String(),
	})

	if !c.confirmReceipts {
		return txID, nil
	}

	receipt, err := bind.WaitMined(ctx, c.backend, tx)
	if err != nil {
		return "", errors.Wrapf(err, "wait for faucet withdrawal %s", txID)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return "", errors.Wrapf(ErrTxReverted, "faucet withdrawal %s", txID)
	}
	return txID, nil
}

func (c *ChainRPC) FindWithdrawal(ctx context.Context, faucetAddress, recipient string, amount *big.Int, fromBlock uint64) (string, bool, error) {
	if !common.IsHexAddress(faucetAddress) || !common.IsHexAddress(recipient) {
		return "", false, ErrInvalidAddress
	}

	latest, err := c.LatestBlock(ctx)
	if err != nil {
		return "", false, err
	}

	withdrawalID := c.faucetABI.Events["Withdrawal"].ID
	recipientTopic := common.BytesToHash(common.HexToAddress(recipient).Bytes())

	for start := fromBlock; start <= latest; start += maxBlockRange {
		end := start + maxBlockRange - 1
		if end > latest {
			end = latest
		}

		logs, err := c.backend.FilterLogs(ctx, ethereum.FilterQuery{
			FromBlock: new(big.Int).SetUint64(start),
			ToBlock:   new(big.Int).SetUint64(end),
			Addresses: []common.Address{common.HexToAddress(faucetAddress)},
			Topics:    [][]common.Hash{{withdrawalID}, {recipientTopic}},
		})
		if err != nil {
			return "", false, errors.Wrapf(err, "filter withdrawal logs %d-%d", start, end)
		}

		for _, lg := range logs {
			if lg.Removed {
				continue
			}
			values, err := c.faucetABI.Unpack("Withdrawal", lg.Data)
			if err != nil || len(values) != 1 {
				continue
			}
			if got, ok := values[0].(*big.Int); ok && got.Cmp(amount) == 0 {
				return lg.TxHash.Hex(), true, nil
			}
		}
	}

	return "", false, nil
}
