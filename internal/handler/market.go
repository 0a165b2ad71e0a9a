package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"tweetmarkets/internal/client/twitter"
	"tweetmarkets/internal/models"
	"tweetmarkets/internal/repository"
	"tweetmarkets/internal/service"
)

type MarketHandler struct {
	Repo     repository.MarketRepository
	Enricher *service.Enricher
	Logger   *zap.Logger

	// Pagination caps; zero values fall back to 10/100.
	DefaultLimit int
	MaxLimit     int
}

func (h *MarketHandler) Register(r *gin.Engine) {
	r.GET("/markets", h.listMarkets)
	r.POST("/markets", h.createMarket)
	r.GET("/markets/:id", h.getMarket)
	r.PUT("/markets/:id", h.updateMarket)
	r.DELETE("/markets/:id", h.deleteMarket)
	r.POST("/markets/:id/update-tweet", h.updateTweet)
	r.POST("/update-tweets", h.updateTweets)
}

// marketRequest is the create/update body. The decimal fields accept either
// a quoted decimal string or a bare number and always render back as strings,
// so values past float53 survive the round trip. They are pointers so an
// omitted field is distinguishable from an explicit zero: the financial
// fields are required, never defaulted.
type marketRequest struct {
	ID                 string           `json:"id"`
	TweetID            *string          `json:"tweetId"`
	CollateralAmount   *decimal.Decimal `json:"collateralAmount"`
	YesShares          *decimal.Decimal `json:"yesShares"`
	NoShares           *decimal.Decimal `json:"noShares"`
	Chance             *decimal.Decimal `json:"chance"`
	SettlementDeadline *decimal.Decimal `json:"settlementDeadline"`
}

func (r *marketRequest) hasAmounts() bool {
	return r.CollateralAmount != nil && r.YesShares != nil && r.NoShares != nil && r.Chance != nil
}

func (h *MarketHandler) listMarkets(c *gin.Context) {
	page := intQuery(c, "page", 1)
	if page < 1 {
		page = 1
	}
	defaultLimit := h.DefaultLimit
	if defaultLimit <= 0 {
		defaultLimit = 10
	}
	maxLimit := h.MaxLimit
	if maxLimit <= 0 {
		maxLimit = 100
	}
	limit := intQuery(c, "limit", defaultLimit)
	if limit < 1 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	ctx := c.Request.Context()
	totalCount, err := h.Repo.CountMarkets(ctx)
	if err != nil {
		h.warn("count markets failed", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "Error fetching markets")
		return
	}
	markets, err := h.Repo.ListMarkets(ctx, repository.ListMarketsParams{
		Limit:  limit,
		Offset: (page - 1) * limit,
	})
	if err != nil {
		h.warn("list markets failed", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "Error fetching markets")
		return
	}
	if markets == nil {
		markets = []models.Market{}
	}

	totalPages := int((totalCount + int64(limit) - 1) / int64(limit))
	c.JSON(http.StatusOK, gin.H{
		"markets":     markets,
		"totalPages":  totalPages,
		"currentPage": page,
		"totalCount":  totalCount,
	})
}

func (h *MarketHandler) createMarket(c *gin.Context) {
	var req marketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Error creating market")
		return
	}
	if req.ID == "" || !req.hasAmounts() {
		respondError(c, http.StatusBadRequest, "Error creating market")
		return
	}

	deadline := decimal.NewFromInt(time.Now().Add(24 * time.Hour).UnixMilli())
	if req.SettlementDeadline != nil && !req.SettlementDeadline.IsZero() {
		deadline = *req.SettlementDeadline
	}
	market := &models.Market{
		ID:                 req.ID,
		TweetID:            req.TweetID,
		CollateralAmount:   *req.CollateralAmount,
		YesShares:          *req.YesShares,
		NoShares:           *req.NoShares,
		Chance:             *req.Chance,
		SettlementDeadline: deadline,
	}

	ctx := c.Request.Context()
	if err := h.Repo.CreateMarket(ctx, market); err != nil {
		h.warn("create market failed", zap.String("market_id", req.ID), zap.Error(err))
		respondError(c, http.StatusBadRequest, "Error creating market")
		return
	}

	// Best-effort: a dead lookup service must not fail the create.
	if h.Enricher != nil {
		h.Enricher.AttachOnCreate(ctx, market)
		if detail, err := h.Repo.GetTweetDetailByMarketID(ctx, market.ID); err == nil {
			market.TweetDetail = detail
		}
	}

	c.JSON(http.StatusOK, market)
}

func (h *MarketHandler) getMarket(c *gin.Context) {
	market, err := h.Repo.GetMarketByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.warn("get market failed", zap.String("market_id", c.Param("id")), zap.Error(err))
		respondError(c, http.StatusInternalServerError, "Error fetching market")
		return
	}
	if market == nil {
		respondError(c, http.StatusNotFound, "Market not found")
		return
	}
	c.JSON(http.StatusOK, market)
}

func (h *MarketHandler) updateMarket(c *gin.Context) {
	id := c.Param("id")
	var req marketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Error updating market")
		return
	}
	if !req.hasAmounts() || req.SettlementDeadline == nil {
		respondError(c, http.StatusBadRequest, "Error updating market")
		return
	}

	ctx := c.Request.Context()
	market, err := h.Repo.GetMarketByID(ctx, id)
	if err != nil {
		h.warn("load market for update failed", zap.String("market_id", id), zap.Error(err))
		respondError(c, http.StatusBadRequest, "Error updating market")
		return
	}
	if market == nil {
		respondError(c, http.StatusNotFound, "Market not found")
		return
	}

	if req.TweetID != nil {
		market.TweetID = req.TweetID
	}
	market.CollateralAmount = *req.CollateralAmount
	market.YesShares = *req.YesShares
	market.NoShares = *req.NoShares
	market.Chance = *req.Chance
	market.SettlementDeadline = *req.SettlementDeadline

	if err := h.Repo.UpdateMarket(ctx, market); err != nil {
		h.warn("update market failed", zap.String("market_id", id), zap.Error(err))
		respondError(c, http.StatusBadRequest, "Error updating market")
		return
	}
	c.JSON(http.StatusOK, market)
}

func (h *MarketHandler) deleteMarket(c *gin.Context) {
	id := c.Param("id")
	rows, err := h.Repo.DeleteMarket(c.Request.Context(), id)
	if err != nil {
		h.warn("delete market failed", zap.String("market_id", id), zap.Error(err))
		respondError(c, http.StatusBadRequest, "Error deleting market")
		return
	}
	if rows == 0 {
		respondError(c, http.StatusNotFound, "Market not found")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Market deleted successfully"})
}

func (h *MarketHandler) updateTweet(c *gin.Context) {
	id := c.Param("id")
	detail, err := h.Enricher.RefreshOne(c.Request.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrMarketNotFound):
			respondError(c, http.StatusNotFound, "Market not found")
		case errors.Is(err, service.ErrNoTweetID):
			respondError(c, http.StatusNotFound, "Market has no tweet")
		case errors.Is(err, twitter.ErrNotFound):
			respondError(c, http.StatusNotFound, "Tweet not found")
		default:
			h.warn("tweet refresh failed", zap.String("market_id", id), zap.Error(err))
			respondError(c, http.StatusInternalServerError, "Error updating tweet details")
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":     "Tweet details updated successfully",
		"tweetDetail": detail,
	})
}

func (h *MarketHandler) updateTweets(c *gin.Context) {
	result, err := h.Enricher.RefreshAllMissing(c.Request.Context())
	if err != nil {
		h.warn("bulk tweet refresh failed", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "Error updating tweet details")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":        "Tweet details updated",
		"updatedMarkets": result.MarketIDs,
		"updatedCount":   result.Updated,
	})
}

func (h *MarketHandler) warn(msg string, fields ...zap.Field) {
	if h.Logger != nil {
		h.Logger.Warn(msg, fields...)
	}
}

func intQuery(c *gin.Context, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}
