package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"creatorvault/internal/metrics"
	"creatorvault/internal/models"
	"creatorvault/internal/prediction"
	"creatorvault/internal/repository"
	"creatorvault/internal/stream"
)

type PredictionHandler struct {
	Repo    repository.Repository
	Service *prediction.Service
	Reader  metrics.Reader
	Hub     *stream.Hub
}

func (h *PredictionHandler) Register(r *gin.Engine) {
	g := r.Group("/api/predictions")
	g.POST("", h.create)
	g.GET("", h.list)
	g.GET("/:id", h.get)
	g.POST("/:id/wagers", h.wager)
	g.POST("/:id/resolve", h.resolve)
	g.POST("/wagers/:id/claim", h.claim)
	g.GET("/winnings/:address", h.winnings)
}

type createMarketRequest struct {
	Creator        string  `json:"creator" binding:"required"`
	ContentRef     string  `json:"content_ref" binding:"required"`
	Platform       string  `json:"platform"`
	MetricType     string  `json:"metric_type" binding:"required"`
	TargetValue    float64 `json:"target_value" binding:"required"`
	TimeframeHours float64 `json:"timeframe_hours" binding:"required"`
}

func (h *PredictionHandler) create(c *gin.Context) {
	var req createMarketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	initial := 0.0
	if h.Reader != nil {
		if v, err := h.Reader.Read(c.Request.Context(), req.ContentRef, req.MetricType); err == nil {
			initial = v
		}
	}
	market, err := h.Service.CreateMarket(c.Request.Context(), prediction.CreateMarketParams{
		Creator:      req.Creator,
		ContentRef:   req.ContentRef,
		Platform:     req.Platform,
		MetricType:   req.MetricType,
		TargetValue:  req.TargetValue,
		Timeframe:    time.Duration(req.TimeframeHours * float64(time.Hour)),
		InitialValue: initial,
	})
	if err != nil {
		DomainError(c, err)
		return
	}
	Created(c, market)
}

func (h *PredictionHandler) list(c *gin.Context) {
	limit := intQuery(c, "limit", 50)
	offset := intQuery(c, "offset", 0)
	params := repository.ListMarketsParams{
		Status:  strQueryPtr(c, "status"),
		Creator: strQueryPtr(c, "creator"),
		Limit:   limit,
		Offset:  offset,
	}
	items, err := h.Repo.ListPredictionMarkets(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	total, err := h.Repo.CountPredictionMarkets(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, paginationMeta(limit, offset, total))
}

func (h *PredictionHandler) get(c *gin.Context) {
	market, err := h.Repo.GetPredictionMarketByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	if market == nil {
		Error(c, http.StatusNotFound, "market not found", nil)
		return
	}
	wagers, err := h.Repo.ListPredictionTrades(c.Request.Context(), market.ID)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, gin.H{
		"market":       market,
		"wagers":       wagers,
		"implied_odds": impliedOdds(market),
	}, nil)
}

// impliedOdds reports the current payout multiple a marginal stake of zero
// would see on each side. Empty sides show zero rather than infinity.
func impliedOdds(market *models.PredictionMarket) gin.H {
	total := market.YesPool.Add(market.NoPool)
	yes, no := decimal.Zero, decimal.Zero
	if market.YesPool.IsPositive() {
		yes = total.Div(market.YesPool)
	}
	if market.NoPool.IsPositive() {
		no = total.Div(market.NoPool)
	}
	return gin.H{"yes": yes, "no": no}
}

type wagerRequest struct {
	Trader string          `json:"trader" binding:"required"`
	Side   string          `json:"side" binding:"required"`
	Stake  decimal.Decimal `json:"stake" binding:"required"`
}

func (h *PredictionHandler) wager(c *gin.Context) {
	var req wagerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	trade, err := h.Service.PlaceWager(c.Request.Context(), c.Param("id"), req.Trader, req.Side, req.Stake)
	if err != nil {
		DomainError(c, err)
		return
	}
	if h.Hub != nil {
		h.Hub.Publish("wager", trade)
	}
	Created(c, trade)
}

type resolveRequest struct {
	// FinalValue overrides the metric reader; used when the reading was
	// verified out of band.
	FinalValue *float64 `json:"final_value"`
}

func (h *PredictionHandler) resolve(c *gin.Context) {
	var req resolveRequest
	// Body is optional; without a final_value the metric reader supplies one.
	_ = c.ShouldBindJSON(&req)
	marketID := c.Param("id")
	var finalValue float64
	if req.FinalValue != nil {
		finalValue = *req.FinalValue
	} else {
		market, err := h.Repo.GetPredictionMarketByID(c.Request.Context(), marketID)
		if err != nil {
			Error(c, http.StatusBadGateway, err.Error(), nil)
			return
		}
		if market == nil {
			Error(c, http.StatusNotFound, "market not found", nil)
			return
		}
		if h.Reader == nil {
			Error(c, http.StatusBadRequest, "final_value required: no metric reader configured", nil)
			return
		}
		finalValue, err = h.Reader.Read(c.Request.Context(), market.ContentRef, market.MetricType)
		if err != nil {
			Error(c, http.StatusBadGateway, err.Error(), nil)
			return
		}
	}
	result, err := h.Service.Resolve(c.Request.Context(), marketID, finalValue)
	if err != nil {
		DomainError(c, err)
		return
	}
	if h.Hub != nil {
		h.Hub.Publish("resolution", result)
	}
	Ok(c, result, nil)
}

type claimRequest struct {
	Claimant string `json:"claimant"`
}

func (h *PredictionHandler) claim(c *gin.Context) {
	var req claimRequest
	_ = c.ShouldBindJSON(&req)
	tradeID := c.Param("id")
	payout, err := h.Service.Claim(c.Request.Context(), tradeID, req.Claimant)
	if err != nil {
		DomainError(c, err)
		return
	}
	Ok(c, gin.H{"trade_id": tradeID, "payout": payout}, nil)
}

func (h *PredictionHandler) winnings(c *gin.Context) {
	items, err := h.Repo.ListUnclaimedWinnings(c.Request.Context(), c.Param("address"))
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	total := decimal.Zero
	for _, w := range items {
		total = total.Add(w.PayoutAmount)
	}
	Ok(c, gin.H{"winnings": items, "total": total}, nil)
}
