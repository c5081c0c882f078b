package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"rewards_app/internal/auth"
	"rewards_app/internal/ledger"
	"rewards_app/internal/logger"

	"github.com/gin-gonic/gin"
)

// The auth provider (OTP/email/Google) lives outside this service; it hands
// us a stable user id. Register trusts that id, bootstraps the wallet
// document and kicks off referral processing in the background.

type RegisterRequest struct {
	UserID       string `json:"user_id" binding:"required"`
	ReferralCode string `json:"referral_code"`
}

func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
		return
	}

	acct, err := h.Ledger.RegisterAccount(c.Request.Context(), req.UserID, req.ReferralCode)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to register account"})
		return
	}

	// One-time signup bonus for applying a referral code; the claim flag and
	// the credit commit together.
	if acct.AppliedReferralCode != "" {
		if _, err := h.Ledger.ClaimSignupBonus(c.Request.Context(), req.UserID); err != nil {
			logger.Error("signup bonus failed", "user_id", req.UserID, "error", err)
		}

		// Reward the referrer without blocking the signup response; a bad
		// code is logged and swallowed.
		code := acct.AppliedReferralCode
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := h.Ledger.ProcessReferral(ctx, code); err != nil {
				logger.Warn("referral processing failed", "code", code, "error", err)
			}
		}()
	}

	token, err := auth.GenerateJWT(req.UserID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to issue token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token, "account": acct})
}

type TokenRequest struct {
	UserID string `json:"user_id" binding:"required"`
}

// Token issues a JWT for an existing account.
func (h *Handler) Token(c *gin.Context) {
	var req TokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
		return
	}

	if _, err := h.Ledger.GetAccount(c.Request.Context(), req.UserID); err != nil {
		if errors.Is(err, ledger.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "account not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load account"})
		return
	}

	token, err := auth.GenerateJWT(req.UserID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to issue token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token})
}
