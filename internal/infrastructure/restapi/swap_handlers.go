package restapi

import (
	"kaia_defi/internal/domain/entity"

	"github.com/gin-gonic/gin"
)

// swapUpdateRequest changes any subset of the swap form.
type swapUpdateRequest struct {
	FromToken  *string  `json:"fromToken"`
	ToToken    *string  `json:"toToken"`
	FromAmount *string  `json:"fromAmount"`
	Slippage   *float64 `json:"slippage"`
}

type poolRequest struct {
	TokenA string `json:"tokenA" form:"tokenA" binding:"required"`
	TokenB string `json:"tokenB" form:"tokenB" binding:"required"`
}

type liquidityRequest struct {
	TokenA  string `json:"tokenA" binding:"required"`
	TokenB  string `json:"tokenB" binding:"required"`
	AmountA string `json:"amountA" binding:"required"`
	AmountB string `json:"amountB" binding:"required"`
}

type removeLiquidityRequest struct {
	TokenA    string `json:"tokenA" binding:"required"`
	TokenB    string `json:"tokenB" binding:"required"`
	Liquidity string `json:"liquidity" binding:"required"`
}

func (h *Handlers) GetSwap(c *gin.Context) {
	respond(c, h.Swap.State())
}

// UpdateSwap applies the slippage first, then the tokens, then the amount,
// so only the last step needs a fresh quote.
func (h *Handlers) UpdateSwap(c *gin.Context) {
	var req swapUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	ctx := c.Request.Context()
	steps := []func() (entity.SwapQuoteState, error){}
	if req.Slippage != nil {
		steps = append(steps, func() (entity.SwapQuoteState, error) { return h.Swap.SetSlippage(*req.Slippage) })
	}
	if req.FromToken != nil {
		steps = append(steps, func() (entity.SwapQuoteState, error) { return h.Swap.SetFromToken(ctx, *req.FromToken) })
	}
	if req.ToToken != nil {
		steps = append(steps, func() (entity.SwapQuoteState, error) { return h.Swap.SetToToken(ctx, *req.ToToken) })
	}
	if req.FromAmount != nil {
		steps = append(steps, func() (entity.SwapQuoteState, error) { return h.Swap.SetFromAmount(ctx, *req.FromAmount) })
	}

	st := h.Swap.State()
	for i, step := range steps {
		var err error
		st, err = step()
		// an intermediate form may not quote; only the final state counts
		if err != nil && i == len(steps)-1 {
			respondError(c, err, st)
			return
		}
	}
	respond(c, st)
}

func (h *Handlers) GetSwapQuote(c *gin.Context) {
	q, err := h.Swap.Quote()
	if err != nil {
		respondError(c, err, h.Swap.State())
		return
	}
	respond(c, q)
}

func (h *Handlers) SwitchTokens(c *gin.Context) {
	st, err := h.Swap.SwitchTokens(c.Request.Context())
	if err != nil {
		respondError(c, err, st)
		return
	}
	respond(c, st)
}

func (h *Handlers) ExecuteSwap(c *gin.Context) {
	res, err := h.Swap.Execute(c.Request.Context())
	if err != nil {
		respondError(c, err, h.Swap.State())
		return
	}
	respond(c, ActionResult{Tx: res, State: h.Swap.State()})
}

func (h *Handlers) CreatePool(c *gin.Context) {
	var req poolRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	res, err := h.Swap.CreatePool(c.Request.Context(), req.TokenA, req.TokenB)
	if err != nil {
		respondError(c, err, nil)
		return
	}
	respond(c, ActionResult{Tx: res, State: h.Swap.State()})
}

func (h *Handlers) AddLiquidity(c *gin.Context) {
	var req liquidityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	res, err := h.Swap.AddLiquidity(c.Request.Context(), req.TokenA, req.TokenB, req.AmountA, req.AmountB)
	if err != nil {
		respondError(c, err, nil)
		return
	}
	respond(c, ActionResult{Tx: res, State: h.Swap.State()})
}

// GetPool reads ?tokenA=&tokenB= reserves and the account's liquidity.
func (h *Handlers) GetPool(c *gin.Context) {
	var req poolRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		badRequest(c, err)
		return
	}
	pos, err := h.Swap.Pool(c.Request.Context(), req.TokenA, req.TokenB)
	if err != nil {
		respondError(c, err, nil)
		return
	}
	respond(c, pos)
}

func (h *Handlers) RemoveLiquidity(c *gin.Context) {
	var req removeLiquidityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	res, err := h.Swap.RemoveLiquidity(c.Request.Context(), req.TokenA, req.TokenB, req.Liquidity)
	if err != nil {
		respondError(c, err, nil)
		return
	}
	respond(c, ActionResult{Tx: res, State: h.Swap.State()})
}
