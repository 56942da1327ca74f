package reconciler

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"gorm.io/gorm"

	"github.com/dwarvesf/faucet-swap-backend/internal/chainrpc"
	"github.com/dwarvesf/faucet-swap-backend/internal/consts"
	"github.com/dwarvesf/faucet-swap-backend/internal/faucet"
	"github.com/dwarvesf/faucet-swap-backend/internal/listener"
	"github.com/dwarvesf/faucet-swap-backend/internal/model"
	"github.com/dwarvesf/faucet-swap-backend/internal/rate"
	"github.com/dwarvesf/faucet-swap-backend/internal/store"
	"github.com/dwarvesf/faucet-swap-backend/internal/store/swaprequest"
	"github.com/dwarvesf/faucet-swap-backend/internal/utils/logger"
)

// Deposit outcomes, used as the metrics label.
const (
	OutcomeDuplicate     = "duplicate"
	OutcomeUnmatched     = "unmatched"
	OutcomeUnderpaid     = "underpaid"
	OutcomeInvalidIntent = "invalid_intent"
	OutcomeStale         = "stale"
	OutcomeStorageError  = "storage_error"
	OutcomeRateFailed    = "rate_failed"
	OutcomePayoutFailed  = "payout_failed"
	OutcomeCompleted     = "completed"
	OutcomeRecovered     = "recovered"
)

// MetricsRecorder is satisfied by monitoring.SwapMetrics.
type MetricsRecorder interface {
	RecordOutcome(outcome string)
	SetListenerBlock(block uint64)
	ObservePayout(seconds float64)
}

type nopMetrics struct{}

func (nopMetrics) RecordOutcome(string)    {}
func (nopMetrics) SetListenerBlock(uint64) {}
func (nopMetrics) ObservePayout(float64)   {}

// Reconciler matches deposits to pending swap requests and pays them out.
// It must be the only writer that moves requests out of PROCESSING.
type Reconciler struct {
	db       *gorm.DB
	store    *store.Store
	rpc      chainrpc.IChainRPC
	executor faucet.IExecutor
	metrics  MetricsRecorder
	logger   *logger.Logger
}

func New(db *gorm.DB, s *store.Store, rpc chainrpc.IChainRPC, executor faucet.IExecutor, metrics MetricsRecorder, logger *logger.Logger) *Reconciler {
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return &Reconciler{
		db:       db,
		store:    s,
		rpc:      rpc,
		executor: executor,
		metrics:  metrics,
		logger:   logger,
	}
}

// Run consumes batches in order until the channel closes or ctx is cancelled.
// A started event always runs to completion; the cursor only advances past fully handled batches.
func (r *Reconciler) Run(ctx context.Context, batches <-chan listener.Batch) {
	handleCtx := context.WithoutCancel(ctx)

	for batch := range batches {
		for _, ev := range batch.Events {
			if ctx.Err() != nil {
				r.logger.Info("[Run] shutting down mid-batch", map[string]string{
					"to_block": strconv.FormatUint(batch.ToBlock, 10),
				})
				return
			}
			r.HandleDeposit(handleCtx, ev)
		}

		if err := r.store.ChainCursor.Upsert(r.db, consts.DepositListenerCursor, batch.ToBlock); err != nil {
			r.logger.Error("[Run][UpsertCursor]", map[string]string{
				"to_block": strconv.FormatUint(batch.ToBlock, 10),
				"error":    err.Error(),
			})
		} else {
			r.metrics.SetListenerBlock(batch.ToBlock)
		}

		if ctx.Err() != nil {
			return
		}
	}
}

// HandleDeposit runs one deposit through the swap state machine. Every failure is
// logged or recorded on the request; nothing is returned to the caller.
func (r *Reconciler) HandleDeposit(ctx context.Context, ev model.DepositEvent) {
	fields := map[string]string{
		"from":       ev.From,
		"deposit_tx": ev.TxID,
		"amount":     amountString(ev.Amount),
		"block":      strconv.FormatUint(ev.BlockNumber, 10),
	}

	existing, err := r.store.SwapRequest.GetByDepositTx(r.db, ev.TxID)
	switch {
	case err == nil:
		fields["request_id"] = existing.ID
		fields["status"] = string(existing.Status)
		r.logger.Info("[HandleDeposit] deposit already matched, dropping", fields)
		r.metrics.RecordOutcome(OutcomeDuplicate)
		return
	case !errors.Is(err, swaprequest.ErrNotFound):
		fields["error"] = err.Error()
		r.logger.Error("[HandleDeposit][GetByDepositTx]", fields)
		r.metrics.RecordOutcome(OutcomeStorageError)
		return
	}

	req, err := r.store.SwapRequest.FindOldestPendingForUser(r.db, ev.From)
	if err != nil {
		fields["error"] = err.Error()
		r.logger.Error("[HandleDeposit][FindOldestPendingForUser]", fields)
		r.metrics.RecordOutcome(OutcomeStorageError)
		return
	}
	if req == nil {
		r.logger.Warn("[HandleDeposit] no pending swap request for depositor", fields)
		r.metrics.RecordOutcome(OutcomeUnmatched)
		return
	}
	fields["request_id"] = req.ID

	declared, err := rate.ToAttos(req.AmountAlph)
	if err != nil {
		fields["error"] = err.Error()
		r.logger.Error("[HandleDeposit][ToAttos] stored amount is invalid", fields)
		r.metrics.RecordOutcome(OutcomeInvalidIntent)
		return
	}
	if ev.Amount == nil || ev.Amount.Cmp(declared) < 0 {
		fields["declared"] = declared.String()
		r.logger.Warn("[HandleDeposit] deposit below declared amount, dropping", fields)
		r.metrics.RecordOutcome(OutcomeUnderpaid)
		return
	}

	depositAttos := ev.Amount.String()
	err = r.store.SwapRequest.Transition(r.db, req.ID, model.SwapRequestStatusPendingDeposit, model.SwapRequestStatusProcessing, swaprequest.Fields{
		DepositTxID:        &ev.TxID,
		DepositAmountAttos: &depositAttos,
	})
	if err != nil {
		fields["error"] = err.Error()
		r.logger.Error("[HandleDeposit][Transition] could not claim request", fields)
		if errors.Is(err, swaprequest.ErrStaleStatus) {
			r.metrics.RecordOutcome(OutcomeStale)
		} else {
			r.metrics.RecordOutcome(OutcomeStorageError)
		}
		return
	}
	req.Status = model.SwapRequestStatusProcessing
	req.DepositTxID = &ev.TxID
	req.DepositAmountAttos = &depositAttos

	r.logger.Info("[HandleDeposit] request claimed", fields)
	r.metrics.RecordOutcome(r.payout(ctx, req, ev.Amount, ev.BlockNumber))
}

// payout converts the deposit and submits the withdrawal for a PROCESSING request.
// fromBlock is a height no later than any block the withdrawal can land in.
func (r *Reconciler) payout(ctx context.Context, req *model.SwapRequest, deposit *big.Int, fromBlock uint64) string {
	amount, err := rate.ComputeTargetAmount(req.TargetToken, deposit)
	if err != nil {
		r.fail(req, err.Error(), "[Payout][ComputeTargetAmount]")
		return OutcomeRateFailed
	}
	return r.submit(ctx, req, amount, fromBlock)
}

// submit records the payout marker, then calls the faucet.
// Without a durable marker the faucet is never called.
func (r *Reconciler) submit(ctx context.Context, req *model.SwapRequest, amount *big.Int, fromBlock uint64) string {
	amountStr := amount.String()
	now := time.Now().UTC()
	err := r.store.SwapRequest.Update(r.db, req.ID, swaprequest.Fields{
		AmountTargetToken: &amountStr,
		PayoutSubmittedAt: &now,
		PayoutFromBlock:   &fromBlock,
	})
	if err != nil {
		r.logger.Error("[Submit][UpdateMarker] left in PROCESSING for recovery", map[string]string{
			"request_id": req.ID,
			"error":      err.Error(),
		})
		return OutcomeStorageError
	}
	req.AmountTargetToken = &amountStr

	start := time.Now()
	txID, err := r.executor.Withdraw(ctx, req.TargetToken, amount, req.UserAddress)
	r.metrics.ObservePayout(time.Since(start).Seconds())
	if err != nil {
		r.fail(req, err.Error(), "[Submit][Withdraw]")
		return OutcomePayoutFailed
	}

	err = r.store.SwapRequest.Transition(r.db, req.ID, model.SwapRequestStatusProcessing, model.SwapRequestStatusComplete, swaprequest.Fields{
		FaucetTxID:        &txID,
		AmountTargetToken: &amountStr,
	})
	if err != nil {
		// the payout is on chain; recovery will find it through the marker
		r.logger.Error("[Submit][Transition] payout sent but completion not recorded", map[string]string{
			"request_id":   req.ID,
			"faucet_tx_id": txID,
			"error":        err.Error(),
		})
		return OutcomeStorageError
	}

	fields := map[string]string{
		"request_id":    req.ID,
		"user":          req.UserAddress,
		"target_token":  string(req.TargetToken),
		"target_amount": amountStr,
		"faucet_tx_id":  txID,
	}
	if tokenRate, err := rate.RateOf(req.TargetToken); err == nil {
		fields["target_amount_units"] = rate.FormatUnits(amount, tokenRate.Decimals)
	}
	r.logger.Info("[Submit] swap completed", fields)
	return OutcomeCompleted
}

func (r *Reconciler) fail(req *model.SwapRequest, reason, step string) {
	err := r.store.SwapRequest.Transition(r.db, req.ID, model.SwapRequestStatusProcessing, model.SwapRequestStatusFailed, swaprequest.Fields{
		FailureReason: &reason,
	})
	if err != nil {
		r.logger.Error(step+"[Transition] could not record failure", map[string]string{
			"request_id": req.ID,
			"reason":     reason,
			"error":      err.Error(),
		})
		return
	}
	r.logger.Warn(step+" swap failed", map[string]string{
		"request_id": req.ID,
		"reason":     reason,
	})
}

// RecoverProcessing settles requests left in PROCESSING by a previous run.
// It must finish before the listener starts, so it never races a live payout.
func (r *Reconciler) RecoverProcessing(ctx context.Context) error {
	reqs, err := r.store.SwapRequest.ListByStatus(r.db, model.SwapRequestStatusProcessing)
	if err != nil {
		return fmt.Errorf("list processing swap requests: %w", err)
	}
	if len(reqs) == 0 {
		return nil
	}

	r.logger.Info("[RecoverProcessing] found in-flight requests", map[string]string{
		"count": strconv.Itoa(len(reqs)),
	})

	var unresolved int
	for i := range reqs {
		if !r.recoverOne(ctx, &reqs[i]) {
			unresolved++
		}
	}
	if unresolved > 0 {
		return fmt.Errorf("%d processing swap requests need manual reconciliation", unresolved)
	}
	return nil
}

// recoverOne reports false when the request had to be left in PROCESSING.
func (r *Reconciler) recoverOne(ctx context.Context, req *model.SwapRequest) bool {
	deposit, ok := parseAmount(req.DepositAmountAttos)
	if !ok {
		r.fail(req, "deposit amount missing on processing request", "[RecoverProcessing]")
		r.metrics.RecordOutcome(OutcomeRateFailed)
		return true
	}

	if !req.HasPayoutMarker() {
		head, err := r.rpc.LatestBlock(ctx)
		if err != nil {
			r.logger.Error("[RecoverProcessing][LatestBlock]", map[string]string{
				"request_id": req.ID,
				"error":      err.Error(),
			})
			return false
		}
		outcome := r.payout(ctx, req, deposit, head)
		r.metrics.RecordOutcome(outcome)
		return outcome != OutcomeStorageError
	}

	amount, ok := parseAmount(req.AmountTargetToken)
	if !ok {
		var err error
		if amount, err = rate.ComputeTargetAmount(req.TargetToken, deposit); err != nil {
			r.fail(req, err.Error(), "[RecoverProcessing][ComputeTargetAmount]")
			r.metrics.RecordOutcome(OutcomeRateFailed)
			return true
		}
	}

	faucetAddr, err := r.executor.FaucetAddress(req.TargetToken)
	if err != nil {
		r.fail(req, err.Error(), "[RecoverProcessing][FaucetAddress]")
		r.metrics.RecordOutcome(OutcomePayoutFailed)
		return true
	}

	var fromBlock uint64
	if req.PayoutFromBlock != nil {
		fromBlock = *req.PayoutFromBlock
	}

	txID, found, err := r.rpc.FindWithdrawal(ctx, faucetAddr, req.UserAddress, amount, fromBlock)
	if err != nil {
		r.logger.Error("[RecoverProcessing][FindWithdrawal] manual reconciliation required", map[string]string{
			"request_id": req.ID,
			"error":      err.Error(),
		})
		return false
	}

	if !found {
		r.logger.Warn("[RecoverProcessing] no withdrawal on chain, resubmitting", map[string]string{
			"request_id": req.ID,
			"from_block": strconv.FormatUint(fromBlock, 10),
		})
		outcome := r.submit(ctx, req, amount, fromBlock)
		r.metrics.RecordOutcome(outcome)
		return outcome != OutcomeStorageError
	}

	amountStr := amount.String()
	err = r.store.SwapRequest.Transition(r.db, req.ID, model.SwapRequestStatusProcessing, model.SwapRequestStatusComplete, swaprequest.Fields{
		FaucetTxID:        &txID,
		AmountTargetToken: &amountStr,
	})
	if err != nil {
		r.logger.Error("[RecoverProcessing][Transition]", map[string]string{
			"request_id":   req.ID,
			"faucet_tx_id": txID,
			"error":        err.Error(),
		})
		return false
	}

	r.logger.Info("[RecoverProcessing] completed from on-chain withdrawal", map[string]string{
		"request_id":   req.ID,
		"faucet_tx_id": txID,
	})
	r.metrics.RecordOutcome(OutcomeRecovered)
	return true
}

func parseAmount(s *string) (*big.Int, bool) {
	if s == nil {
		return nil, false
	}
	v, ok := new(big.Int).SetString(*s, 10)
	if !ok || v.Sign() <= 0 {
		return nil, false
	}
	return v, true
}

func amountString(v *big.Int) string {
	if v == nil {
		return "<nil>"
	}
	return v.String()
}
