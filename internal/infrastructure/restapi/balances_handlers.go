package restapi

import (
	"github.com/gin-gonic/gin"
)

type transferRequest struct {
	Symbol string `json:"symbol" binding:"required"`
	To     string `json:"to" binding:"required"`
	Amount string `json:"amount" binding:"required"`
}

func (h *Handlers) GetBalances(c *gin.Context) {
	st, err := h.Balances.Load(c.Request.Context())
	if err != nil {
		respondError(c, err, h.Balances.State())
		return
	}
	respond(c, st)
}

// MintTestTokens answers with every transaction that went through.
func (h *Handlers) MintTestTokens(c *gin.Context) {
	txs, err := h.Balances.MintTestTokens(c.Request.Context())
	if err != nil {
		respondError(c, err, h.Balances.State())
		return
	}
	respond(c, gin.H{"txs": txs, "state": h.Balances.State()})
}

func (h *Handlers) Wrap(c *gin.Context) {
	var req amountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	res, err := h.Balances.Wrap(c.Request.Context(), req.Amount)
	if err != nil {
		respondError(c, err, h.Balances.State())
		return
	}
	respond(c, ActionResult{Tx: res, State: h.Balances.State()})
}

func (h *Handlers) Unwrap(c *gin.Context) {
	var req amountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	res, err := h.Balances.Unwrap(c.Request.Context(), req.Amount)
	if err != nil {
		respondError(c, err, h.Balances.State())
		return
	}
	respond(c, ActionResult{Tx: res, State: h.Balances.State()})
}

func (h *Handlers) Transfer(c *gin.Context) {
	var req transferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	res, err := h.Balances.Transfer(c.Request.Context(), req.Symbol, req.To, req.Amount)
	if err != nil {
		respondError(c, err, h.Balances.State())
		return
	}
	respond(c, ActionResult{Tx: res, State: h.Balances.State()})
}
