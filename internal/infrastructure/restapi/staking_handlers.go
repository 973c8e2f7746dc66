package restapi

import (
	"github.com/gin-gonic/gin"
)

func (h *Handlers) GetStaking(c *gin.Context) {
	st, err := h.Staking.Load(c.Request.Context())
	if err != nil {
		respondError(c, err, h.Staking.State())
		return
	}
	respond(c, st)
}

func (h *Handlers) Stake(c *gin.Context) {
	var req amountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	res, err := h.Staking.Stake(c.Request.Context(), req.Amount)
	if err != nil {
		respondError(c, err, h.Staking.State())
		return
	}
	respond(c, ActionResult{Tx: res, State: h.Staking.State()})
}

func (h *Handlers) Unstake(c *gin.Context) {
	var req amountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	res, err := h.Staking.Unstake(c.Request.Context(), req.Amount)
	if err != nil {
		respondError(c, err, h.Staking.State())
		return
	}
	respond(c, ActionResult{Tx: res, State: h.Staking.State()})
}

func (h *Handlers) ClaimRewards(c *gin.Context) {
	res, err := h.Staking.ClaimRewards(c.Request.Context())
	if err != nil {
		respondError(c, err, h.Staking.State())
		return
	}
	respond(c, ActionResult{Tx: res, State: h.Staking.State()})
}
