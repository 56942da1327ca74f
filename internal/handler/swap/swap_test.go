package swap_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/gorm"

	"github.com/dwarvesf/faucet-swap-backend/internal/handler/swap"
	"github.com/dwarvesf/faucet-swap-backend/internal/model"
	"github.com/dwarvesf/faucet-swap-backend/internal/monitoring"
	"github.com/dwarvesf/faucet-swap-backend/internal/store"
	"github.com/dwarvesf/faucet-swap-backend/internal/store/storetest"
	"github.com/dwarvesf/faucet-swap-backend/internal/utils/logger"
)

type envelope struct {
	Data    json.RawMessage `json:"data"`
	Error   *string         `json:"error"`
	Message string          `json:"message"`
}

var _ = Describe("Swap handler", func() {
	var (
		db     *gorm.DB
		s      *store.Store
		router *gin.Engine
	)

	BeforeEach(func() {
		gin.SetMode(gin.TestMode)

		var err error
		db, err = storetest.OpenSQLite()
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(storetest.Close, db)

		s = store.New(db)
		h := swap.New(db, s, logger.NewNop(), monitoring.NewBusinessMetricsRecorder(monitoring.NewHTTPMetrics()))

		router = gin.New()
		router.POST("/api/v1/swap", h.CreateSwapRequest)
		router.GET("/api/v1/swap/:id", h.GetSwapRequest)
		router.GET("/api/v1/swap", h.ListSwapRequests)
	})

	do := func(method, path string, body interface{}) (*httptest.ResponseRecorder, envelope) {
		var reader *bytes.Reader
		if body != nil {
			raw, err := json.Marshal(body)
			Expect(err).NotTo(HaveOccurred())
			reader = bytes.NewReader(raw)
		} else {
			reader = bytes.NewReader(nil)
		}
		req := httptest.NewRequest(method, path, reader)
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		var env envelope
		Expect(json.Unmarshal(w.Body.Bytes(), &env)).To(Succeed())
		return w, env
	}

	Describe("POST /api/v1/swap", func() {
		It("registers a pending intent", func() {
			w, env := do(http.MethodPost, "/api/v1/swap", map[string]string{
				"user_address": "0x1111111111111111111111111111111111111111",
				"target_token": "USDT",
				"amount_alph":  "1.5",
			})

			Expect(w.Code).To(Equal(http.StatusOK))
			var created model.SwapRequest
			Expect(json.Unmarshal(env.Data, &created)).To(Succeed())
			Expect(created.ID).NotTo(BeEmpty())
			Expect(created.Status).To(Equal(model.SwapRequestStatusPendingDeposit))
			Expect(created.TargetToken).To(Equal(model.TargetTokenUSDT))
			Expect(created.AmountAlph).To(Equal("1.5"))
			Expect(created.DepositTxID).To(BeNil())

			stored, err := s.SwapRequest.Get(db, created.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.UserAddress).To(Equal("0x1111111111111111111111111111111111111111"))
		})

		DescribeTable("rejects invalid intents",
			func(body map[string]string) {
				w, env := do(http.MethodPost, "/api/v1/swap", body)

				Expect(w.Code).To(Equal(http.StatusBadRequest))
				Expect(env.Error).NotTo(BeNil())

				all, err := s.SwapRequest.ListAll(db)
				Expect(err).NotTo(HaveOccurred())
				Expect(all).To(BeEmpty())
			},
			Entry("missing address", map[string]string{"target_token": "USDT", "amount_alph": "1"}),
			Entry("malformed address", map[string]string{"user_address": "0x1234", "target_token": "USDT", "amount_alph": "1"}),
			Entry("unknown token", map[string]string{"user_address": "0x1111111111111111111111111111111111111111", "target_token": "DOGE", "amount_alph": "1"}),
			Entry("zero amount", map[string]string{"user_address": "0x1111111111111111111111111111111111111111", "target_token": "WETH", "amount_alph": "0"}),
			Entry("negative amount", map[string]string{"user_address": "0x1111111111111111111111111111111111111111", "target_token": "WETH", "amount_alph": "-1"}),
			Entry("too many decimals", map[string]string{"user_address": "0x1111111111111111111111111111111111111111", "target_token": "WETH", "amount_alph": "0.0000000000000000001"}),
		)
	})

	Describe("GET /api/v1/swap/:id", func() {
		It("returns the stored request", func() {
			created, err := s.SwapRequest.Create(db, &model.SwapRequest{
				UserAddress: "0x1111111111111111111111111111111111111111",
				TargetToken: model.TargetTokenWETH,
				AmountAlph:  "2",
			})
			Expect(err).NotTo(HaveOccurred())

			w, env := do(http.MethodGet, "/api/v1/swap/"+created.ID, nil)

			Expect(w.Code).To(Equal(http.StatusOK))
			var got model.SwapRequest
			Expect(json.Unmarshal(env.Data, &got)).To(Succeed())
			Expect(got.ID).To(Equal(created.ID))
			Expect(got.TargetToken).To(Equal(model.TargetTokenWETH))
		})

		It("returns 404 for an unknown id", func() {
			w, env := do(http.MethodGet, "/api/v1/swap/does-not-exist", nil)

			Expect(w.Code).To(Equal(http.StatusNotFound))
			Expect(env.Message).To(Equal("swap request not found"))
		})
	})

	Describe("GET /api/v1/swap", func() {
		BeforeEach(func() {
			for _, amount := range []string{"1", "2"} {
				_, err := s.SwapRequest.Create(db, &model.SwapRequest{
					UserAddress: "0x1111111111111111111111111111111111111111",
					TargetToken: model.TargetTokenUSDT,
					AmountAlph:  amount,
				})
				Expect(err).NotTo(HaveOccurred())
			}
		})

		It("lists every request", func() {
			w, env := do(http.MethodGet, "/api/v1/swap", nil)

			Expect(w.Code).To(Equal(http.StatusOK))
			var got []model.SwapRequest
			Expect(json.Unmarshal(env.Data, &got)).To(Succeed())
			Expect(got).To(HaveLen(2))
		})

		It("filters by status", func() {
			w, env := do(http.MethodGet, "/api/v1/swap?status=COMPLETE", nil)

			Expect(w.Code).To(Equal(http.StatusOK))
			var got []model.SwapRequest
			Expect(json.Unmarshal(env.Data, &got)).To(Succeed())
			Expect(got).To(BeEmpty())
		})

		It("rejects an unknown status", func() {
			w, _ := do(http.MethodGet, "/api/v1/swap?status=DONE", nil)
			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})
	})
})
