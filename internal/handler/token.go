package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	cacheredis "creatorvault/internal/cache/redis"
	"creatorvault/internal/repository"
	"creatorvault/internal/settlement"
	"creatorvault/internal/stream"
)

type TokenHandler struct {
	Repo             repository.Repository
	Settlement       *settlement.Service
	Prices           *cacheredis.PriceCache
	Hub              *stream.Hub
	DefaultSteepness float64
	Logger           *zap.Logger
}

func (h *TokenHandler) Register(r *gin.Engine) {
	g := r.Group("/api/tokens")
	g.POST("", h.mint)
	g.GET("", h.list)
	g.GET("/:id", h.get)
	g.POST("/:id/trade", h.trade)
	g.POST("/:id/estimate", h.estimate)
	g.GET("/:id/trades", h.trades)
}

type mintRequest struct {
	Creator      string  `json:"creator" binding:"required"`
	Name         string  `json:"name" binding:"required"`
	Symbol       string  `json:"symbol" binding:"required"`
	TotalSupply  float64 `json:"total_supply" binding:"required"`
	InitialPrice float64 `json:"initial_price" binding:"required"`
	Steepness    float64 `json:"curve_steepness"`
	Platform     *string `json:"platform"`
	ContentURL   *string `json:"content_url"`
}

func (h *TokenHandler) mint(c *gin.Context) {
	var req mintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	token, err := h.Settlement.Mint(c.Request.Context(), settlement.MintParams{
		Creator:      req.Creator,
		Name:         req.Name,
		Symbol:       req.Symbol,
		TotalSupply:  req.TotalSupply,
		InitialPrice: req.InitialPrice,
		Steepness:    req.Steepness,
		Platform:     req.Platform,
		ContentURL:   req.ContentURL,
	}, h.DefaultSteepness)
	if err != nil {
		DomainError(c, err)
		return
	}
	Created(c, token)
}

func (h *TokenHandler) list(c *gin.Context) {
	limit := intQuery(c, "limit", 50)
	offset := intQuery(c, "offset", 0)
	params := repository.ListTokensParams{
		Creator: strQueryPtr(c, "creator"),
		Limit:   limit,
		Offset:  offset,
		OrderBy: c.Query("order_by"),
		Asc:     boolPtr(false),
	}
	items, err := h.Repo.ListTokens(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	total, err := h.Repo.CountTokens(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, paginationMeta(limit, offset, total))
}

func (h *TokenHandler) get(c *gin.Context) {
	item, err := h.Repo.GetTokenByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	if item == nil {
		Error(c, http.StatusNotFound, "token not found", nil)
		return
	}
	meta := map[string]any{}
	if volume, err := h.Settlement.Volume24h(c.Request.Context(), item.ID); err == nil {
		meta["volume_24h"] = volume
	}
	if h.Prices != nil {
		if price, ts, err := h.Prices.Get(c.Request.Context(), item.ID); err == nil {
			meta["cached_price"] = price
			meta["cached_price_ts"] = ts.UTC()
		}
	}
	Ok(c, item, meta)
}

type tradeRequest struct {
	Trader      string  `json:"trader" binding:"required"`
	Side        string  `json:"side" binding:"required"`
	TokenAmount float64 `json:"token_amount" binding:"required"`
}

func (h *TokenHandler) trade(c *gin.Context) {
	var req tradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	result, err := h.Settlement.ExecuteTrade(c.Request.Context(), c.Param("id"), req.Trader, req.Side, req.TokenAmount)
	if err != nil {
		DomainError(c, err)
		return
	}
	h.afterTrade(result)
	Ok(c, result, nil)
}

// afterTrade refreshes the price cache and notifies stream subscribers.
// Both are best-effort; the trade is already committed.
func (h *TokenHandler) afterTrade(result *settlement.TradeResult) {
	if h.Hub != nil {
		h.Hub.Publish("trade", result)
	}
	if h.Prices != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := h.Prices.Set(ctx, result.TokenID, result.UnitPrice, time.Now().UTC()); err != nil && h.Logger != nil {
			h.Logger.Warn("price cache update failed", zap.Error(err))
		}
	}
}

func (h *TokenHandler) estimate(c *gin.Context) {
	var req tradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	result, err := h.Settlement.Estimate(c.Request.Context(), c.Param("id"), req.Side, req.TokenAmount)
	if err != nil {
		DomainError(c, err)
		return
	}
	Ok(c, result, nil)
}

func (h *TokenHandler) trades(c *gin.Context) {
	limit := intQuery(c, "limit", 50)
	offset := intQuery(c, "offset", 0)
	tokenID := c.Param("id")
	params := repository.ListTradesParams{
		TokenID: &tokenID,
		Trader:  strQueryPtr(c, "trader"),
		Limit:   limit,
		Offset:  offset,
	}
	items, err := h.Repo.ListTrades(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	total, err := h.Repo.CountTrades(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, paginationMeta(limit, offset, total))
}
