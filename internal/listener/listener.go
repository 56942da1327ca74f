package listener

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"gorm.io/gorm"

	"github.com/dwarvesf/faucet-swap-backend/internal/chainrpc"
	"github.com/dwarvesf/faucet-swap-backend/internal/consts"
	"github.com/dwarvesf/faucet-swap-backend/internal/model"
	"github.com/dwarvesf/faucet-swap-backend/internal/store"
	"github.com/dwarvesf/faucet-swap-backend/internal/utils/config"
	"github.com/dwarvesf/faucet-swap-backend/internal/utils/logger"
)

var ErrAlreadyRunning = errors.New("deposit listener already running")

// Batch is every deposit found in one scanned block window, in chain order.
// ToBlock is the last block of the window, even when Events is empty.
type Batch struct {
	Events  []model.DepositEvent
	ToBlock uint64
}

// Listener polls the deposit contract and feeds a single consumer.
// Delivery is at least once: windows after the persisted cursor are replayed on restart.
type Listener struct {
	db     *gorm.DB
	store  *store.Store
	rpc    chainrpc.IChainRPC
	cfg    config.ListenerConfig
	logger *logger.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

func New(db *gorm.DB, s *store.Store, rpc chainrpc.IChainRPC, cfg config.ListenerConfig, logger *logger.Logger) *Listener {
	if cfg.MaxBlockRange == 0 {
		cfg.MaxBlockRange = 10000
	}
	if cfg.ChannelCapacity <= 0 {
		cfg.ChannelCapacity = 16
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 2 * time.Second
	}
	if cfg.MaxRetryDelay < cfg.RetryDelay {
		cfg.MaxRetryDelay = cfg.RetryDelay
	}
	return &Listener{
		db:     db,
		store:  s,
		rpc:    rpc,
		cfg:    cfg,
		logger: logger,
	}
}

// scanState tracks the next block to scan. Until resolved, the start height
// is taken from the chain head on the first successful poll.
type scanState struct {
	next     uint64
	resolved bool
}

// Start resumes from the persisted cursor and returns the batch channel.
// The channel is closed once ctx is cancelled or Stop is called.
func (l *Listener) Start(ctx context.Context) (<-chan Batch, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.running {
		return nil, ErrAlreadyRunning
	}

	state, err := l.initialState()
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(ctx)
	out := make(chan Batch, l.cfg.ChannelCapacity)
	l.running = true
	l.cancel = cancel
	l.done = make(chan struct{})

	l.logger.Info("[Listener][Start]", map[string]string{
		"resolved":   strconv.FormatBool(state.resolved),
		"next_block": strconv.FormatUint(state.next, 10),
	})

	go l.run(runCtx, out, state, l.done)
	return out, nil
}

// Stop cancels the poll loop and waits for it to exit.
func (l *Listener) Stop() {
	l.mu.Lock()
	cancel, done := l.cancel, l.done
	l.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (l *Listener) initialState() (scanState, error) {
	block, found, err := l.store.ChainCursor.Get(l.db, consts.DepositListenerCursor)
	if err != nil {
		return scanState{}, fmt.Errorf("read listener cursor: %w", err)
	}
	switch {
	case found:
		return scanState{next: block + 1, resolved: true}, nil
	case l.cfg.StartBlock > 0:
		return scanState{next: l.cfg.StartBlock, resolved: true}, nil
	default:
		return scanState{}, nil
	}
}

func (l *Listener) newBackOff() *backoff.ExponentialBackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = l.cfg.RetryDelay
	bo.MaxInterval = l.cfg.MaxRetryDelay
	bo.MaxElapsedTime = 0
	bo.Reset()
	return bo
}

func (l *Listener) run(ctx context.Context, out chan<- Batch, state scanState, done chan struct{}) {
	defer func() {
		close(out)
		l.mu.Lock()
		l.running = false
		l.cancel = nil
		l.mu.Unlock()
		close(done)
	}()

	bo := l.newBackOff()
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			l.logger.Info("[Listener][Stopped]", map[string]string{
				"next_block": strconv.FormatUint(state.next, 10),
			})
			return
		case <-timer.C:
		}

		caughtUp, err := l.poll(ctx, out, &state)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			wait := bo.NextBackOff()
			l.logger.Warn("[Listener][Poll] retrying", map[string]string{
				"error":      err.Error(),
				"retry_in":   wait.String(),
				"next_block": strconv.FormatUint(state.next, 10),
			})
			timer.Reset(wait)
			continue
		}

		bo.Reset()
		if caughtUp {
			timer.Reset(l.cfg.PollInterval)
		} else {
			timer.Reset(0)
		}
	}
}

// poll scans at most one window and reports whether the safe head was reached.
func (l *Listener) poll(ctx context.Context, out chan<- Batch, state *scanState) (bool, error) {
	head, err := l.rpc.LatestBlock(ctx)
	if err != nil {
		return false, fmt.Errorf("latest block: %w", err)
	}

	if !state.resolved {
		state.next = head
		state.resolved = true
	}

	if head < l.cfg.Confirmations {
		return true, nil
	}
	safe := head - l.cfg.Confirmations
	if state.next > safe {
		return true, nil
	}

	to := state.next + l.cfg.MaxBlockRange - 1
	if to > safe {
		to = safe
	}

	events, err := l.rpc.FetchDeposits(ctx, state.next, to)
	if err != nil {
		return false, fmt.Errorf("fetch deposits [%d, %d]: %w", state.next, to, err)
	}

	if len(events) > 0 {
		l.logger.Debug("[Listener][Poll] deposits found", map[string]string{
			"from_block": strconv.FormatUint(state.next, 10),
			"to_block":   strconv.FormatUint(to, 10),
			"count":      strconv.Itoa(len(events)),
		})
	}

	select {
	case out <- Batch{Events: events, ToBlock: to}:
	case <-ctx.Done():
		return false, ctx.Err()
	}

	state.next = to + 1
	return to == safe, nil
}
