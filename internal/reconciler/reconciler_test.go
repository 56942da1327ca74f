package reconciler_test

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/gorm"

	"github.com/dwarvesf/faucet-swap-backend/internal/consts"
	"github.com/dwarvesf/faucet-swap-backend/internal/faucet"
	"github.com/dwarvesf/faucet-swap-backend/internal/listener"
	"github.com/dwarvesf/faucet-swap-backend/internal/model"
	"github.com/dwarvesf/faucet-swap-backend/internal/reconciler"
	"github.com/dwarvesf/faucet-swap-backend/internal/store"
	"github.com/dwarvesf/faucet-swap-backend/internal/store/storetest"
	"github.com/dwarvesf/faucet-swap-backend/internal/store/swaprequest"
	"github.com/dwarvesf/faucet-swap-backend/internal/utils/logger"
)

const (
	user      = "0xAbCdEf0000000000000000000000000000000001"
	otherUser = "0x2222222222222222222222222222222222222222"
	usdtAddr  = "0x00000000000000000000000000000000000fa001"
)

var oneUnit = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

func units(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), oneUnit)
}

type withdrawal struct {
	token     model.TargetToken
	amount    string
	recipient string
}

type fakeExecutor struct {
	mu    sync.Mutex
	calls []withdrawal
	txID  string
	err   error
}

var _ faucet.IExecutor = (*fakeExecutor)(nil)

func (f *fakeExecutor) Withdraw(ctx context.Context, token model.TargetToken, amount *big.Int, recipient string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, withdrawal{token: token, amount: amount.String(), recipient: recipient})
	return f.txID, f.err
}

func (f *fakeExecutor) FaucetAddress(token model.TargetToken) (string, error) {
	if token == model.TargetTokenUSDT {
		return usdtAddr, nil
	}
	return "", faucet.ErrUnknownFaucet
}

type lookup struct {
	faucet    string
	recipient string
	amount    string
	fromBlock uint64
}

type fakeChain struct {
	head      uint64
	headErr   error
	foundTx   string
	found     bool
	lookupErr error
	lookups   []lookup
}

func (f *fakeChain) LatestBlock(ctx context.Context) (uint64, error) {
	return f.head, f.headErr
}

func (f *fakeChain) FetchDeposits(ctx context.Context, fromBlock, toBlock uint64) ([]model.DepositEvent, error) {
	return nil, nil
}

func (f *fakeChain) Withdraw(ctx context.Context, faucetAddress, recipient string, amount, dust *big.Int) (string, error) {
	return "", errors.New("withdrawals go through the executor")
}

func (f *fakeChain) FindWithdrawal(ctx context.Context, faucetAddress, recipient string, amount *big.Int, fromBlock uint64) (string, bool, error) {
	f.lookups = append(f.lookups, lookup{faucet: faucetAddress, recipient: recipient, amount: amount.String(), fromBlock: fromBlock})
	return f.foundTx, f.found, f.lookupErr
}

type fakeMetrics struct {
	outcomes []string
	block    uint64
	payouts  int
}

func (m *fakeMetrics) RecordOutcome(outcome string)  { m.outcomes = append(m.outcomes, outcome) }
func (m *fakeMetrics) SetListenerBlock(block uint64) { m.block = block }
func (m *fakeMetrics) ObservePayout(float64)         { m.payouts++ }

var _ = Describe("Reconciler", func() {
	var (
		db       *gorm.DB
		s        *store.Store
		chain    *fakeChain
		executor *fakeExecutor
		metrics  *fakeMetrics
		r        *reconciler.Reconciler
		ctx      context.Context
	)

	BeforeEach(func() {
		var err error
		db, err = storetest.OpenSQLite()
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(storetest.Close, db)

		s = store.New(db)
		chain = &fakeChain{head: 1000}
		executor = &fakeExecutor{txID: "0xpayout"}
		metrics = &fakeMetrics{}
		r = reconciler.New(db, s, chain, executor, metrics, logger.NewNop())
		ctx = context.Background()
	})

	createPending := func(address string, token model.TargetToken, amount string, ts time.Time) *model.SwapRequest {
		req, err := s.SwapRequest.Create(db, &model.SwapRequest{
			UserAddress: address,
			TargetToken: token,
			AmountAlph:  amount,
			Timestamp:   ts,
		})
		Expect(err).NotTo(HaveOccurred())
		return req
	}

	get := func(id string) *model.SwapRequest {
		req, err := s.SwapRequest.Get(db, id)
		Expect(err).NotTo(HaveOccurred())
		return req
	}

	claim := func(id, depositTx, depositAttos string) {
		Expect(s.SwapRequest.Transition(db, id, model.SwapRequestStatusPendingDeposit, model.SwapRequestStatusProcessing, swaprequest.Fields{
			DepositTxID:        &depositTx,
			DepositAmountAttos: &depositAttos,
		})).To(Succeed())
	}

	Describe("HandleDeposit", func() {
		It("pays out a matched deposit at the fixed rate", func() {
			req := createPending(user, model.TargetTokenUSDT, "1.0", time.Now())

			r.HandleDeposit(ctx, model.DepositEvent{From: user, Amount: units(1), TxID: "0xdep1", BlockNumber: 42})

			got := get(req.ID)
			Expect(got.Status).To(Equal(model.SwapRequestStatusComplete))
			Expect(*got.DepositTxID).To(Equal("0xdep1"))
			Expect(*got.DepositAmountAttos).To(Equal(oneUnit.String()))
			Expect(*got.AmountTargetToken).To(Equal("7000000"))
			Expect(*got.FaucetTxID).To(Equal("0xpayout"))
			Expect(got.FailureReason).To(BeNil())
			Expect(*got.PayoutFromBlock).To(Equal(uint64(42)))

			Expect(executor.calls).To(ConsistOf(withdrawal{
				token:     model.TargetTokenUSDT,
				amount:    "7000000",
				recipient: "0xabcdef0000000000000000000000000000000001",
			}))
			Expect(metrics.outcomes).To(Equal([]string{reconciler.OutcomeCompleted}))
			Expect(metrics.payouts).To(Equal(1))
		})

		It("computes the payout from the deposited amount when overpaid", func() {
			req := createPending(user, model.TargetTokenWETH, "1", time.Now())

			r.HandleDeposit(ctx, model.DepositEvent{From: user, Amount: units(2), TxID: "0xdep2"})

			got := get(req.ID)
			Expect(got.Status).To(Equal(model.SwapRequestStatusComplete))
			Expect(*got.AmountTargetToken).To(Equal(units(2).String()))
		})

		It("drops deposits without a pending request", func() {
			req := createPending(otherUser, model.TargetTokenUSDT, "1", time.Now())

			r.HandleDeposit(ctx, model.DepositEvent{From: user, Amount: units(1), TxID: "0xdep3"})

			Expect(get(req.ID).Status).To(Equal(model.SwapRequestStatusPendingDeposit))
			Expect(executor.calls).To(BeEmpty())
			Expect(metrics.outcomes).To(Equal([]string{reconciler.OutcomeUnmatched}))
		})

		It("ignores a deposit below the declared amount", func() {
			req := createPending(user, model.TargetTokenUSDT, "1.0", time.Now())
			half := new(big.Int).Div(oneUnit, big.NewInt(2))

			r.HandleDeposit(ctx, model.DepositEvent{From: user, Amount: half, TxID: "0xdep4"})

			got := get(req.ID)
			Expect(got.Status).To(Equal(model.SwapRequestStatusPendingDeposit))
			Expect(got.DepositTxID).To(BeNil())
			Expect(executor.calls).To(BeEmpty())
			Expect(metrics.outcomes).To(Equal([]string{reconciler.OutcomeUnderpaid}))
		})

		It("matches the oldest pending request first", func() {
			now := time.Now()
			older := createPending(user, model.TargetTokenUSDT, "1", now.Add(-time.Hour))
			newer := createPending(user, model.TargetTokenUSDT, "1", now)

			r.HandleDeposit(ctx, model.DepositEvent{From: user, Amount: units(1), TxID: "0xdep5"})

			Expect(get(older.ID).Status).To(Equal(model.SwapRequestStatusComplete))
			Expect(get(newer.ID).Status).To(Equal(model.SwapRequestStatusPendingDeposit))
		})

		It("fulfils a deposit only once when it is delivered twice", func() {
			now := time.Now()
			first := createPending(user, model.TargetTokenUSDT, "1", now.Add(-time.Minute))
			second := createPending(user, model.TargetTokenUSDT, "1", now)
			ev := model.DepositEvent{From: user, Amount: units(1), TxID: "0xdup"}

			r.HandleDeposit(ctx, ev)
			r.HandleDeposit(ctx, ev)

			Expect(get(first.ID).Status).To(Equal(model.SwapRequestStatusComplete))
			Expect(get(second.ID).Status).To(Equal(model.SwapRequestStatusPendingDeposit))
			Expect(executor.calls).To(HaveLen(1))
			Expect(metrics.outcomes).To(Equal([]string{reconciler.OutcomeCompleted, reconciler.OutcomeDuplicate}))
		})

		It("fails the request when the payout rounds to zero", func() {
			req := createPending(user, model.TargetTokenUSDT, "0.000000000000000001", time.Now())

			r.HandleDeposit(ctx, model.DepositEvent{From: user, Amount: big.NewInt(1), TxID: "0xdust"})

			got := get(req.ID)
			Expect(got.Status).To(Equal(model.SwapRequestStatusFailed))
			Expect(*got.FailureReason).To(ContainSubstring("not positive"))
			Expect(got.AmountTargetToken).To(BeNil())
			Expect(executor.calls).To(BeEmpty())
			Expect(metrics.outcomes).To(Equal([]string{reconciler.OutcomeRateFailed}))
		})

		It("fails the request and keeps the amount when the faucet errors", func() {
			executor.err = errors.New("faucet withdrawal failed: execution reverted")
			req := createPending(user, model.TargetTokenUSDT, "1", time.Now())

			r.HandleDeposit(ctx, model.DepositEvent{From: user, Amount: units(1), TxID: "0xdep6"})

			got := get(req.ID)
			Expect(got.Status).To(Equal(model.SwapRequestStatusFailed))
			Expect(*got.FailureReason).To(ContainSubstring("execution reverted"))
			Expect(*got.AmountTargetToken).To(Equal("7000000"))
			Expect(got.FaucetTxID).To(BeNil())
			Expect(metrics.outcomes).To(Equal([]string{reconciler.OutcomePayoutFailed}))
		})

		It("does not reuse a failed request's deposit for another request", func() {
			executor.err = errors.New("boom")
			createPending(user, model.TargetTokenUSDT, "1", time.Now().Add(-time.Minute))
			next := createPending(user, model.TargetTokenUSDT, "1", time.Now())
			ev := model.DepositEvent{From: user, Amount: units(1), TxID: "0xdep7"}

			r.HandleDeposit(ctx, ev)
			executor.err = nil
			r.HandleDeposit(ctx, ev)

			Expect(get(next.ID).Status).To(Equal(model.SwapRequestStatusPendingDeposit))
			Expect(executor.calls).To(HaveLen(1))
		})
	})

	Describe("Run", func() {
		It("handles batches in order and advances the cursor", func() {
			req := createPending(user, model.TargetTokenUSDT, "1", time.Now())
			batches := make(chan listener.Batch, 2)
			batches <- listener.Batch{ToBlock: 10}
			batches <- listener.Batch{
				Events:  []model.DepositEvent{{From: user, Amount: units(1), TxID: "0xrun", BlockNumber: 15}},
				ToBlock: 20,
			}
			close(batches)

			r.Run(ctx, batches)

			Expect(get(req.ID).Status).To(Equal(model.SwapRequestStatusComplete))
			block, found, err := s.ChainCursor.Get(db, consts.DepositListenerCursor)
			Expect(err).NotTo(HaveOccurred())
			Expect(found).To(BeTrue())
			Expect(block).To(Equal(uint64(20)))
			Expect(metrics.block).To(Equal(uint64(20)))
		})

		It("stops without advancing the cursor once cancelled", func() {
			createPending(user, model.TargetTokenUSDT, "1", time.Now())
			cancelled, cancel := context.WithCancel(ctx)
			cancel()

			batches := make(chan listener.Batch, 1)
			batches <- listener.Batch{
				Events:  []model.DepositEvent{{From: user, Amount: units(1), TxID: "0xlate"}},
				ToBlock: 30,
			}
			close(batches)

			r.Run(cancelled, batches)

			Expect(executor.calls).To(BeEmpty())
			_, found, err := s.ChainCursor.Get(db, consts.DepositListenerCursor)
			Expect(err).NotTo(HaveOccurred())
			Expect(found).To(BeFalse())
		})
	})

	Describe("RecoverProcessing", func() {
		It("resumes a request that never reached the faucet", func() {
			req := createPending(user, model.TargetTokenUSDT, "1", time.Now())
			claim(req.ID, "0xr1", oneUnit.String())

			Expect(r.RecoverProcessing(ctx)).To(Succeed())

			got := get(req.ID)
			Expect(got.Status).To(Equal(model.SwapRequestStatusComplete))
			Expect(*got.PayoutFromBlock).To(Equal(uint64(1000)))
			Expect(executor.calls).To(HaveLen(1))
			Expect(chain.lookups).To(BeEmpty())
		})

		Context("when a payout may already have been sent", func() {
			var req *model.SwapRequest

			BeforeEach(func() {
				req = createPending(user, model.TargetTokenUSDT, "1", time.Now())
				claim(req.ID, "0xr2", oneUnit.String())
				amount := "7000000"
				submitted := time.Now().Add(-time.Minute)
				fromBlock := uint64(900)
				Expect(s.SwapRequest.Update(db, req.ID, swaprequest.Fields{
					AmountTargetToken: &amount,
					PayoutSubmittedAt: &submitted,
					PayoutFromBlock:   &fromBlock,
				})).To(Succeed())
			})

			It("completes from the on-chain withdrawal without resubmitting", func() {
				chain.found = true
				chain.foundTx = "0xonchain"

				Expect(r.RecoverProcessing(ctx)).To(Succeed())

				got := get(req.ID)
				Expect(got.Status).To(Equal(model.SwapRequestStatusComplete))
				Expect(*got.FaucetTxID).To(Equal("0xonchain"))
				Expect(executor.calls).To(BeEmpty())
				Expect(chain.lookups).To(ConsistOf(lookup{
					faucet:    usdtAddr,
					recipient: "0xabcdef0000000000000000000000000000000001",
					amount:    "7000000",
					fromBlock: 900,
				}))
				Expect(metrics.outcomes).To(Equal([]string{reconciler.OutcomeRecovered}))
			})

			It("resubmits when the chain shows no withdrawal", func() {
				Expect(r.RecoverProcessing(ctx)).To(Succeed())

				got := get(req.ID)
				Expect(got.Status).To(Equal(model.SwapRequestStatusComplete))
				Expect(*got.FaucetTxID).To(Equal("0xpayout"))
				Expect(*got.PayoutFromBlock).To(Equal(uint64(900)))
				Expect(executor.calls).To(HaveLen(1))
			})

			It("leaves the request alone when the chain cannot be queried", func() {
				chain.lookupErr = errors.New("503 service unavailable")

				err := r.RecoverProcessing(ctx)
				Expect(err).To(MatchError(ContainSubstring("manual reconciliation")))

				Expect(get(req.ID).Status).To(Equal(model.SwapRequestStatusProcessing))
				Expect(executor.calls).To(BeEmpty())
			})
		})

		It("does nothing when no request is in flight", func() {
			createPending(user, model.TargetTokenUSDT, "1", time.Now())

			Expect(r.RecoverProcessing(ctx)).To(Succeed())
			Expect(executor.calls).To(BeEmpty())
		})
	})
})
