package monitoring

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/dwarvesf/faucet-swap-backend/internal/chainrpc"
	"github.com/dwarvesf/faucet-swap-backend/internal/model"
	"github.com/dwarvesf/faucet-swap-backend/internal/utils/logger"
)

// CircuitBreakerChainRPC wraps chainrpc.IChainRPC with circuit breaker functionality
type CircuitBreakerChainRPC struct {
	wrapped        chainrpc.IChainRPC
	circuitBreaker *gobreaker.CircuitBreaker
	metrics        *ExternalAPIMetrics
	logger         *logger.Logger
	timeoutConfig  TimeoutConfig
}

var _ chainrpc.IChainRPC = (*CircuitBreakerChainRPC)(nil)

func NewCircuitBreakerChainRPC(wrapped chainrpc.IChainRPC, config CircuitBreakerConfig, metrics *ExternalAPIMetrics, logger *logger.Logger) *CircuitBreakerChainRPC {
	return NewCircuitBreakerChainRPCWithTimeout(wrapped, config, DefaultTimeoutConfig, metrics, logger)
}

func NewCircuitBreakerChainRPCWithTimeout(wrapped chainrpc.IChainRPC, config CircuitBreakerConfig, timeoutConfig TimeoutConfig, metrics *ExternalAPIMetrics, logger *logger.Logger) *CircuitBreakerChainRPC {
	if err := validateCircuitBreakerConfig(config); err != nil {
		logger.Error("Invalid circuit breaker config, using defaults", map[string]string{
			"service": ServiceChainRPC,
			"error":   err.Error(),
		})
		config = CircuitBreakerConfigs[ServiceChainRPC]
	}

	cb := &CircuitBreakerChainRPC{
		wrapped:       wrapped,
		metrics:       metrics,
		logger:        logger,
		timeoutConfig: timeoutConfig,
	}

	settings := gobreaker.Settings{
		Name:        ServiceChainRPC,
		MaxRequests: config.MaxRequests,
		Interval:    config.Interval,
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(config.ConsecutiveFailureThreshold)
		},
		// contract-level rejections say nothing about node health
		IsSuccessful: func(err error) bool {
			return err == nil ||
				errors.Is(err, chainrpc.ErrTxReverted) ||
				errors.Is(err, chainrpc.ErrInvalidAddress) ||
				errors.Is(err, chainrpc.ErrNoSigner)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Info("Circuit breaker state change", map[string]string{
				"service": name,
				"from":    from.String(),
				"to":      to.String(),
			})
			metrics.UpdateCircuitBreakerState(ServiceChainRPC, to)
		},
	}

	cb.circuitBreaker = gobreaker.NewCircuitBreaker(settings)
	metrics.UpdateCircuitBreakerState(ServiceChainRPC, gobreaker.StateClosed)
	return cb
}

// State exposes the breaker state to health checks.
func (cb *CircuitBreakerChainRPC) State() gobreaker.State {
	return cb.circuitBreaker.State()
}

// executeWithTimeout runs fn under the breaker with a per-operation deadline and records metrics.
func (cb *CircuitBreakerChainRPC) executeWithTimeout(ctx context.Context, operation string, fn func(ctx context.Context) (interface{}, error)) (interface{}, error) {
	var timeout time.Duration
	switch operation {
	case "health_check":
		timeout = cb.timeoutConfig.HealthCheckTimeout
	case "withdraw":
		timeout = cb.timeoutConfig.SubmitTimeout
	default:
		timeout = cb.timeoutConfig.RequestTimeout
	}

	return cb.circuitBreaker.Execute(func() (interface{}, error) {
		start := time.Now()
		callCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		result, err := fn(callCtx)
		duration := time.Since(start).Seconds()

		if err != nil && callCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
			cb.metrics.RecordTimeout(ServiceChainRPC, operation)
			err = fmt.Errorf("timeout after %s: %w", timeout, err)
		}

		status := "success"
		if err != nil {
			status = "error"
			cb.logError(operation, duration, err)
		}
		cb.metrics.RecordAPICall(ServiceChainRPC, operation, status, duration)
		return result, err
	})
}

func (cb *CircuitBreakerChainRPC) LatestBlock(ctx context.Context) (uint64, error) {
	result, err := cb.executeWithTimeout(ctx, "latest_block", func(ctx context.Context) (interface{}, error) {
		return cb.wrapped.LatestBlock(ctx)
	})
	if err != nil {
		return 0, err
	}
	return result.(uint64), nil
}

// HealthCheck is LatestBlock under the shorter health-check deadline.
func (cb *CircuitBreakerChainRPC) HealthCheck(ctx context.Context) (uint64, error) {
	result, err := cb.executeWithTimeout(ctx, "health_check", func(ctx context.Context) (interface{}, error) {
		return cb.wrapped.LatestBlock(ctx)
	})
	if err != nil {
		return 0, err
	}
	return result.(uint64), nil
}

func (cb *CircuitBreakerChainRPC) FetchDeposits(ctx context.Context, fromBlock, toBlock uint64) ([]model.DepositEvent, error) {
	result, err := cb.executeWithTimeout(ctx, "fetch_deposits", func(ctx context.Context) (interface{}, error) {
		return cb.wrapped.FetchDeposits(ctx, fromBlock, toBlock)
	})
	if err != nil {
		return nil, err
	}
	return result.([]model.DepositEvent), nil
}

func (cb *CircuitBreakerChainRPC) Withdraw(ctx context.Context, faucetAddress, recipient string, amount, dust *big.Int) (string, error) {
	result, err := cb.executeWithTimeout(ctx, "withdraw", func(ctx context.Context) (interface{}, error) {
		return cb.wrapped.Withdraw(ctx, faucetAddress, recipient, amount, dust)
	})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

type withdrawalLookup struct {
	txID  string
	found bool
}

func (cb *CircuitBreakerChainRPC) FindWithdrawal(ctx context.Context, faucetAddress, recipient string, amount *big.Int, fromBlock uint64) (string, bool, error) {
	result, err := cb.executeWithTimeout(ctx, "find_withdrawal", func(ctx context.Context) (interface{}, error) {
		txID, found, err := cb.wrapped.FindWithdrawal(ctx, faucetAddress, recipient, amount, fromBlock)
		if err != nil {
			return nil, err
		}
		return withdrawalLookup{txID: txID, found: found}, nil
	})
	if err != nil {
		return "", false, err
	}
	lookup := result.(withdrawalLookup)
	return lookup.txID, lookup.found, nil
}

func (cb *CircuitBreakerChainRPC) logError(operation string, duration float64, err error) {
	cb.logger.Error("External API call failed", map[string]string{
		"service":    ServiceChainRPC,
		"operation":  operation,
		"duration":   strconv.FormatFloat(duration, 'f', 3, 64),
		"error":      err.Error(),
		"error_type": string(classifyError(err)),
		"cb_state":   cb.circuitBreaker.State().String(),
	})
}

// classifyError classifies errors into different types for metrics and logging
func classifyError(err error) APIErrorType {
	if err == nil {
		return ""
	}

	errMsg := strings.ToLower(err.Error())
	containsAny := func(subs ...string) bool {
		for _, s := range subs {
			if strings.Contains(errMsg, s) {
				return true
			}
		}
		return false
	}

	switch {
	case containsAny("timeout", "deadline exceeded", "context canceled"):
		return ErrorTypeTimeout
	case containsAny("network", "connection", "unreachable", "dns"):
		return ErrorTypeNetworkError
	case containsAny("500", "502", "503", "504", "internal server error", "bad gateway", "service unavailable"):
		return ErrorTypeServerError
	case containsAny("400", "401", "403", "404", "429", "bad request", "unauthorized", "forbidden", "not found", "rate limit"):
		return ErrorTypeClientError
	default:
		return ErrorTypeUnknown
	}
}

func validateCircuitBreakerConfig(config CircuitBreakerConfig) error {
	if config.MaxRequests == 0 {
		return fmt.Errorf("max_requests must be greater than 0")
	}
	if config.ConsecutiveFailureThreshold <= 0 {
		return fmt.Errorf("consecutive_failure_threshold must be greater than 0")
	}
	if config.Timeout < 0 {
		return fmt.Errorf("timeout must be non-negative")
	}
	if config.Interval < 0 {
		return fmt.Errorf("interval must be non-negative")
	}
	return nil
}
