package logger

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var _ = Describe("environment configs", func() {
	type expectation struct {
		level         zapcore.Level
		encoding      string
		development   bool
		disableCaller bool
		outputs       []string
	}

	DescribeTable("per environment",
		func(build func() zap.Config, want expectation) {
			cfg := build()

			Expect(cfg.Level.Level()).To(Equal(want.level))
			Expect(cfg.Encoding).To(Equal(want.encoding))
			Expect(cfg.Development).To(Equal(want.development))
			Expect(cfg.DisableCaller).To(Equal(want.disableCaller))
			Expect(cfg.OutputPaths).To(Equal(want.outputs))
		},
		Entry("production", newProductionLoggerConfig, expectation{zap.InfoLevel, "json", false, false, []string{"stdout"}}),
		Entry("staging", newStagingLoggerConfig, expectation{zap.InfoLevel, "json", false, true, []string{"stdout"}}),
		Entry("development", newDevelopmentLoggerConfig, expectation{zap.DebugLevel, "console", true, true, []string{"stdout"}}),
		Entry("test", newTestLoggerConfig, expectation{zap.InfoLevel, "json", false, false, []string{}}),
	)

	It("stamps json entries with an ISO8601 timestamp key", func() {
		enc := jsonEncoderConfig()

		Expect(enc.TimeKey).To(Equal("timestamp"))
		Expect(enc.EncodeTime).NotTo(BeNil())
	})
})
