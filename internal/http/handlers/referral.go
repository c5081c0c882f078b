package handlers

import (
	"errors"
	"net/http"

	"rewards_app/internal/ledger"

	"github.com/gin-gonic/gin"
)

// ReferralInfo returns the caller's own share code and referral stats.
func (h *Handler) ReferralInfo(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	acct, err := h.Ledger.GetAccount(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, ledger.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "account not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load account"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"referral_code":  acct.ReferralCode,
		"referrals_made": acct.ReferralsMade,
		"bonus_claimed":  acct.BonusClaimed,
	})
}

type ProcessReferralRequest struct {
	Code string `json:"code"`
}

// ProcessReferral credits the owner of a referral code. An unknown code is
// reported but never fails the signup flow that submitted it.
func (h *Handler) ProcessReferral(c *gin.Context) {
	var req ProcessReferralRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	err := h.Ledger.ProcessReferral(c.Request.Context(), req.Code)
	if errors.Is(err, ledger.ErrReferralCodeNotFound) {
		c.JSON(http.StatusOK, gin.H{"processed": false, "reason": "referral code not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to process referral"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"processed": true})
}
