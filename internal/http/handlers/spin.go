package handlers

import (
	"errors"
	"net/http"

	"rewards_app/internal/ledger"
	"rewards_app/internal/spin"

	"github.com/gin-gonic/gin"
)

// SpinStatus reports the wheel state and, while cooling, the countdown.
func (h *Handler) SpinStatus(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	status, err := h.Spinner.Status(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read spin status"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   status,
		"segments": spin.Segments(),
	})
}

// SpinStart fixes the prize and tells the client how far to animate. No
// balance write happens yet.
func (h *Handler) SpinStart(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	result, err := h.Spinner.Start(c.Request.Context(), userID)
	if err != nil {
		switch {
		case errors.Is(err, spin.ErrCooldownActive):
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "spin cooldown is active"})
		case errors.Is(err, spin.ErrSpinInProgress):
			c.JSON(http.StatusConflict, gin.H{"error": "spin already in progress"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to start spin"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"result":           result,
		"duration_seconds": int64(result.Duration.Seconds()),
	})
}

// SpinClaim acknowledges the spin: the cooldown starts and any positive
// prize is credited through the ledger.
func (h *Handler) SpinClaim(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	prize, err := h.Spinner.Resolve(c.Request.Context(), userID)
	if err != nil {
		switch {
		case errors.Is(err, spin.ErrNothingToResolve):
			c.JSON(http.StatusBadRequest, gin.H{"error": "no spin to claim"})
		case errors.Is(err, spin.ErrSpinInProgress):
			c.JSON(http.StatusConflict, gin.H{"error": "spin still animating"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to claim spin"})
		}
		return
	}

	if prize.Value > 0 {
		if _, err := h.Ledger.Credit(c.Request.Context(), userID, prize.Value,
			"Spin & Win Reward", ledger.CategorySpinAndWin); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to add coins: " + err.Error()})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{"prize": prize})
}
