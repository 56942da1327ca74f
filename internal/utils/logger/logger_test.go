package logger

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/dwarvesf/faucet-swap-backend/internal/types/environments"
)

type fatalHook struct {
	called bool
}

func (h *fatalHook) OnWrite(_ *zapcore.CheckedEntry, _ []zapcore.Field) {
	h.called = true
}

func observed(level zapcore.Level) (*Logger, *observer.ObservedLogs) {
	core, logs := observer.New(level)
	return &Logger{wrappedLogger: zap.New(core)}, logs
}

var _ = Describe("Logger", func() {
	Describe("#New", func() {
		DescribeTable("builds a logger for every environment",
			func(env environments.Environment, debugEnabled bool) {
				l := New(env)
				Expect(l.wrappedLogger).NotTo(BeNil())
				Expect(l.wrappedLogger.Core().Enabled(zapcore.DebugLevel)).To(Equal(debugEnabled))
			},
			Entry("development", environments.Development, true),
			Entry("staging", environments.Staging, false),
			Entry("production", environments.Production, false),
			Entry("test", environments.Test, false),
			Entry("unknown falls back to production", environments.Environment("qa"), false),
		)
	})

	Describe("levels", func() {
		It("writes the message and its fields at the matching level", func() {
			l, logs := observed(zapcore.DebugLevel)

			l.Debug("[poll] scanning", map[string]string{"from": "10"})
			l.Info("[HandleDeposit] request claimed", map[string]string{"request_id": "abc"})
			l.Warn("[HandleDeposit] no pending swap request for depositor")
			l.Error("[submit][Withdraw]", map[string]string{"error": "reverted"})

			entries := logs.AllUntimed()
			Expect(entries).To(HaveLen(4))
			Expect(entries[0].Level).To(Equal(zapcore.DebugLevel))
			Expect(entries[1].ContextMap()).To(HaveKeyWithValue("request_id", "abc"))
			Expect(entries[2].Context).To(BeEmpty())
			Expect(entries[3].Level).To(Equal(zapcore.ErrorLevel))
			Expect(entries[3].Message).To(Equal("[submit][Withdraw]"))
		})

		It("drops entries below the configured level", func() {
			l, logs := observed(zapcore.ErrorLevel)

			l.Warn("deposit dropped", map[string]string{"tx": "0xabc"})
			l.Error("deposit failed", map[string]string{"tx": "0xabc"})

			Expect(logs.Len()).To(Equal(1))
			Expect(logs.All()[0].Message).To(Equal("deposit failed"))
		})

		It("runs the fatal hook", func() {
			hook := &fatalHook{}
			core, _ := observer.New(zapcore.FatalLevel)
			l := &Logger{wrappedLogger: zap.New(core, zap.WithFatalHook(hook))}

			l.Fatal("failed to open database connection", map[string]string{"error": "refused"})
			Expect(hook.called).To(BeTrue())
		})
	})

	Describe("#Named and #With", func() {
		It("scopes entries to a component and carries fixed fields", func() {
			l, logs := observed(zapcore.InfoLevel)

			scoped := l.Named("reconciler").With(map[string]string{"chain_id": "1"})
			scoped.Info("batch handled", map[string]string{"to_block": "120"})

			entry := logs.All()[0]
			Expect(entry.LoggerName).To(Equal("reconciler"))
			Expect(entry.ContextMap()).To(Equal(map[string]interface{}{
				"chain_id": "1",
				"to_block": "120",
			}))
		})

		It("leaves the parent logger untouched", func() {
			l, logs := observed(zapcore.InfoLevel)

			_ = l.With(map[string]string{"component": "listener"})
			l.Info("plain")

			Expect(logs.All()[0].Context).To(BeEmpty())
		})
	})

	Describe("#NewNop", func() {
		It("accepts every call", func() {
			nop := NewNop()
			Expect(func() {
				nop.Named("x").With(map[string]string{"k": "v"}).Info("no output")
				nop.Sync()
			}).NotTo(Panic())
		})
	})

	Describe("#fieldsOf", func() {
		It("returns no fields without maps", func() {
			Expect(fieldsOf(nil)).To(BeEmpty())
		})

		It("merges maps with later keys winning, sorted by key", func() {
			fields := fieldsOf([]map[string]string{
				{"status": "PENDING_DEPOSIT", "id": "1"},
				{"status": "PROCESSING"},
			})

			Expect(fields).To(Equal([]zap.Field{
				zap.String("id", "1"),
				zap.String("status", "PROCESSING"),
			}))
		})
	})
})
