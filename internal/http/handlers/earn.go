package handlers

import (
	"errors"
	"net/http"

	"rewards_app/internal/ledger"

	"github.com/gin-gonic/gin"
)

func (h *Handler) creditAction(c *gin.Context, amount int64, title, category string) {
	userID, ok := getUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	acct, err := h.Ledger.Credit(c.Request.Context(), userID, amount, title, category)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, ledger.ErrUserNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "Failed to add coins: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"amount": amount, "account": acct})
}

// Checkin pays the flat daily check-in reward.
func (h *Handler) Checkin(c *gin.Context) {
	h.creditAction(c, h.Rewards.CheckinReward, "Daily Check-In Reward", "")
}

// WatchAd pays the watch-and-earn reward after an ad completes.
func (h *Handler) WatchAd(c *gin.Context) {
	h.creditAction(c, h.Rewards.WatchReward, "Watch & Earn Reward", ledger.CategoryWatchAndEarn)
}

// DailyBonus evaluates streak eligibility and awards the scheduled login
// bonus. Calling again the same day returns awarded=false.
func (h *Handler) DailyBonus(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	bonus, err := h.Ledger.AwardDailyBonus(c.Request.Context(), userID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, ledger.ErrUserNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "failed to award daily bonus"})
		return
	}

	c.JSON(http.StatusOK, bonus)
}
