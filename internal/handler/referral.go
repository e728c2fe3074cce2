package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"creatorvault/internal/referral"
)

type ReferralHandler struct {
	Ledger *referral.Ledger
}

func (h *ReferralHandler) Register(r *gin.Engine) {
	g := r.Group("/api/referrals")
	g.POST("/code", h.code)
	g.POST("/register", h.register)
	g.GET("/:address", h.summary)
}

type codeRequest struct {
	Address string `json:"address" binding:"required"`
}

func (h *ReferralHandler) code(c *gin.Context) {
	var req codeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	code, err := h.Ledger.GenerateCode(c.Request.Context(), req.Address)
	if err != nil {
		DomainError(c, err)
		return
	}
	Ok(c, gin.H{"address": req.Address, "code": code}, nil)
}

type registerRequest struct {
	Code     string `json:"code" binding:"required"`
	Referred string `json:"referred" binding:"required"`
}

func (h *ReferralHandler) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	referrer, err := h.Ledger.Register(c.Request.Context(), req.Code, req.Referred)
	if err != nil {
		DomainError(c, err)
		return
	}
	Ok(c, gin.H{"referrer": referrer, "referred": req.Referred}, nil)
}

func (h *ReferralHandler) summary(c *gin.Context) {
	limit := intQuery(c, "limit", 50)
	summary, err := h.Ledger.Summary(c.Request.Context(), c.Param("address"), limit)
	if err != nil {
		DomainError(c, err)
		return
	}
	Ok(c, summary, nil)
}
