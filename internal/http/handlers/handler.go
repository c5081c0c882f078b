package handlers

import (
	"rewards_app/internal/ledger"
	"rewards_app/internal/spin"
	"rewards_app/internal/store"
)

// RewardConfig carries the fixed earn amounts the action endpoints pay out.
type RewardConfig struct {
	CheckinReward int64
	WatchReward   int64
}

type Handler struct {
	Store   store.Store
	Ledger  *ledger.Service
	Spinner *spin.Scheduler
	Rewards RewardConfig
}

func NewHandler(st store.Store, ldg *ledger.Service, spinner *spin.Scheduler, rewards RewardConfig) *Handler {
	if rewards.CheckinReward <= 0 {
		rewards.CheckinReward = 10
	}
	if rewards.WatchReward <= 0 {
		rewards.WatchReward = 20
	}
	return &Handler{Store: st, Ledger: ldg, Spinner: spinner, Rewards: rewards}
}

// getUserID pulls the authenticated user id the middleware stored on the
// context.
func getUserID(c interface{ Get(any) (any, bool) }) (string, bool) {
	v, ok := c.Get("user_id")
	if !ok {
		return "", false
	}
	id, ok := v.(string)
	return id, ok && id != ""
}
