package swap

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"

	"github.com/dwarvesf/faucet-swap-backend/internal/model"
	"github.com/dwarvesf/faucet-swap-backend/internal/monitoring"
	"github.com/dwarvesf/faucet-swap-backend/internal/rate"
	"github.com/dwarvesf/faucet-swap-backend/internal/store"
	"github.com/dwarvesf/faucet-swap-backend/internal/store/swaprequest"
	"github.com/dwarvesf/faucet-swap-backend/internal/utils/logger"
	"github.com/dwarvesf/faucet-swap-backend/internal/view"
)

type CreateSwapRequest struct {
	UserAddress string `json:"user_address" binding:"required" validate:"required,eth_addr"`
	TargetToken string `json:"target_token" binding:"required" validate:"required,oneof=USDT WETH"`
	AmountAlph  string `json:"amount_alph" binding:"required" validate:"required,numeric"`
}

type handler struct {
	db       *gorm.DB
	store    *store.Store
	logger   *logger.Logger
	recorder *monitoring.BusinessMetricsRecorder
	validate *validator.Validate
}

func New(db *gorm.DB, store *store.Store, logger *logger.Logger, recorder *monitoring.BusinessMetricsRecorder) IHandler {
	return &handler{
		db:       db,
		store:    store,
		logger:   logger,
		recorder: recorder,
		validate: validator.New(),
	}
}

// CreateSwapRequest godoc
// @Summary Register a swap intent
// @Description Records the intent; the swap runs once a matching deposit is seen on chain
// @Tags Swap
// @Accept json
// @Produce json
// @Param request body CreateSwapRequest true "Swap intent"
// @Success 200 {object} view.Response[model.SwapRequest]
// @Failure 400 {object} view.ErrorResponse
// @Failure 500 {object} view.ErrorResponse
// @Router /swap [post]
func (h *handler) CreateSwapRequest(c *gin.Context) {
	start := time.Now()

	var req CreateSwapRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("[CreateSwapRequest][ShouldBindJSON]", map[string]string{
			"error": err.Error(),
		})
		c.JSON(http.StatusBadRequest, view.CreateResponse[any](nil, err, req, "invalid request"))
		return
	}

	if err := h.validate.Struct(req); err != nil {
		h.logger.Error("[CreateSwapRequest][Validator]", map[string]string{
			"error": err.Error(),
		})
		h.recorder.RecordSwapIntent(req.TargetToken, "invalid", time.Since(start).Seconds())
		c.JSON(http.StatusBadRequest, view.CreateResponse[any](nil, err, req, "invalid request"))
		return
	}

	token, _ := model.ParseTargetToken(req.TargetToken)
	if _, err := rate.ToAttos(req.AmountAlph); err != nil {
		h.recorder.RecordSwapIntent(string(token), "invalid", time.Since(start).Seconds())
		c.JSON(http.StatusBadRequest, view.CreateResponse[any](nil, err, req, "invalid amount"))
		return
	}

	created, err := h.store.SwapRequest.Create(h.db.WithContext(c.Request.Context()), &model.SwapRequest{
		UserAddress: req.UserAddress,
		TargetToken: token,
		AmountAlph:  req.AmountAlph,
	})
	if err != nil {
		h.logger.Error("[CreateSwapRequest][Create]", map[string]string{
			"error": err.Error(),
		})
		h.recorder.RecordSwapIntent(string(token), "error", time.Since(start).Seconds())
		c.JSON(http.StatusInternalServerError, view.CreateResponse[any](nil, err, nil, "failed to create swap request"))
		return
	}

	h.logger.Info("[CreateSwapRequest] intent registered", map[string]string{
		"id":           created.ID,
		"user_address": created.UserAddress,
		"target_token": string(created.TargetToken),
		"amount_alph":  created.AmountAlph,
	})
	h.recorder.RecordSwapIntent(string(token), "success", time.Since(start).Seconds())
	c.JSON(http.StatusOK, view.CreateResponse[any](created, nil, nil, ""))
}

// GetSwapRequest godoc
// @Summary Get a swap request
// @Tags Swap
// @Produce json
// @Param id path string true "Swap request id"
// @Success 200 {object} view.Response[model.SwapRequest]
// @Failure 404 {object} view.ErrorResponse
// @Router /swap/{id} [get]
func (h *handler) GetSwapRequest(c *gin.Context) {
	start := time.Now()
	id := c.Param("id")

	swapRequest, err := h.store.SwapRequest.Get(h.db.WithContext(c.Request.Context()), id)
	if err != nil {
		if errors.Is(err, swaprequest.ErrNotFound) {
			h.recorder.RecordSwapLookup("not_found", time.Since(start).Seconds())
			c.JSON(http.StatusNotFound, view.CreateResponse[any](nil, err, nil, "swap request not found"))
			return
		}
		h.logger.Error("[GetSwapRequest][Get]", map[string]string{
			"id":    id,
			"error": err.Error(),
		})
		h.recorder.RecordSwapLookup("error", time.Since(start).Seconds())
		c.JSON(http.StatusInternalServerError, view.CreateResponse[any](nil, err, nil, "failed to get swap request"))
		return
	}

	h.recorder.RecordSwapLookup("success", time.Since(start).Seconds())
	c.JSON(http.StatusOK, view.CreateResponse[any](swapRequest, nil, nil, ""))
}

// ListSwapRequests godoc
// @Summary List swap requests, newest first
// @Tags Swap
// @Produce json
// @Param status query string false "Filter by status"
// @Success 200 {object} view.Response[[]model.SwapRequest]
// @Router /swap [get]
func (h *handler) ListSwapRequests(c *gin.Context) {
	start := time.Now()
	db := h.db.WithContext(c.Request.Context())

	var (
		swapRequests []model.SwapRequest
		err          error
	)
	if status := model.SwapRequestStatus(c.Query("status")); status != "" {
		if !status.Valid() {
			c.JSON(http.StatusBadRequest, view.CreateResponse[any](nil, nil, nil, "unknown status"))
			return
		}
		swapRequests, err = h.store.SwapRequest.ListByStatus(db, status)
	} else {
		swapRequests, err = h.store.SwapRequest.ListAll(db)
	}
	if err != nil {
		h.logger.Error("[ListSwapRequests][List]", map[string]string{
			"error": err.Error(),
		})
		h.recorder.RecordDatabaseOperation("list_swap_requests", "error", time.Since(start).Seconds())
		c.JSON(http.StatusInternalServerError, view.CreateResponse[any](nil, err, nil, "failed to list swap requests"))
		return
	}

	h.recorder.RecordDatabaseOperation("list_swap_requests", "success", time.Since(start).Seconds())
	c.JSON(http.StatusOK, view.CreateResponse[any](swapRequests, nil, nil, ""))
}
