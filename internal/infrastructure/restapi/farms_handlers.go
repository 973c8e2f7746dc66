package restapi

import (
	"fmt"
	"strconv"

	"kaia_defi/internal/domain/entity"

	"github.com/gin-gonic/gin"
)

func (h *Handlers) GetFarms(c *gin.Context) {
	st, err := h.Farms.Load(c.Request.Context())
	if err != nil {
		respondError(c, err, h.Farms.State())
		return
	}
	respond(c, st)
}

func farmID(c *gin.Context) (uint64, bool) {
	pid, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		badRequest(c, fmt.Errorf("farm id %q is not a number", c.Param("id")))
		return 0, false
	}
	return pid, true
}

func (h *Handlers) FarmStake(c *gin.Context) {
	pid, ok := farmID(c)
	if !ok {
		return
	}
	var req amountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	h.farmAction(c, func() (entity.TxResult, error) { return h.Farms.Stake(c.Request.Context(), pid, req.Amount) })
}

func (h *Handlers) FarmUnstake(c *gin.Context) {
	pid, ok := farmID(c)
	if !ok {
		return
	}
	var req amountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	h.farmAction(c, func() (entity.TxResult, error) { return h.Farms.Unstake(c.Request.Context(), pid, req.Amount) })
}

func (h *Handlers) FarmHarvest(c *gin.Context) {
	pid, ok := farmID(c)
	if !ok {
		return
	}
	h.farmAction(c, func() (entity.TxResult, error) { return h.Farms.Harvest(c.Request.Context(), pid) })
}

func (h *Handlers) farmAction(c *gin.Context, action func() (entity.TxResult, error)) {
	res, err := action()
	if err != nil {
		respondError(c, err, h.Farms.State())
		return
	}
	respond(c, ActionResult{Tx: res, State: h.Farms.State()})
}
