package restapi

import (
	"kaia_defi/internal/domain/entity"

	"github.com/gin-gonic/gin"
)

type borrowUpdateRequest struct {
	CollateralToken  *string `json:"collateralToken"`
	CollateralAmount *string `json:"collateralAmount"`
	BorrowToken      *string `json:"borrowToken"`
	BorrowAmount     *string `json:"borrowAmount"`
}

type supplyRequest struct {
	Symbol string `json:"symbol" binding:"required"`
	Amount string `json:"amount" binding:"required"`
}

type repayRequest struct {
	LoanID *uint64 `json:"loanId" binding:"required"`
	Amount string  `json:"amount" binding:"required"`
}

func (h *Handlers) GetBorrow(c *gin.Context) {
	st, err := h.Borrow.Load(c.Request.Context())
	if err != nil {
		respondError(c, err, h.Borrow.State())
		return
	}
	respond(c, st)
}

// UpdateBorrow applies the borrow side before the collateral side, since
// the maximum borrow is read for the selected borrow token.
func (h *Handlers) UpdateBorrow(c *gin.Context) {
	var req borrowUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	ctx := c.Request.Context()
	st := h.Borrow.State()
	var err error
	if req.BorrowToken != nil || req.BorrowAmount != nil {
		st, err = h.Borrow.SetBorrow(ctx, pick(req.BorrowToken, st.Position.BorrowToken), pick(req.BorrowAmount, st.Position.BorrowAmount))
		if err != nil {
			respondError(c, err, st)
			return
		}
	}
	if req.CollateralToken != nil || req.CollateralAmount != nil {
		st, err = h.Borrow.SetCollateral(ctx, pick(req.CollateralToken, st.Position.CollateralToken), pick(req.CollateralAmount, st.Position.CollateralAmount))
		if err != nil {
			respondError(c, err, st)
			return
		}
	}
	respond(c, st)
}

func pick(v *string, current string) string {
	if v == nil {
		return current
	}
	return *v
}

func (h *Handlers) ExecuteBorrow(c *gin.Context) {
	h.borrowAction(c, func() (entity.TxResult, error) { return h.Borrow.Execute(c.Request.Context()) })
}

func (h *Handlers) Supply(c *gin.Context) {
	var req supplyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	h.borrowAction(c, func() (entity.TxResult, error) { return h.Borrow.Supply(c.Request.Context(), req.Symbol, req.Amount) })
}

func (h *Handlers) Repay(c *gin.Context) {
	var req repayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	h.borrowAction(c, func() (entity.TxResult, error) { return h.Borrow.Repay(c.Request.Context(), *req.LoanID, req.Amount) })
}

func (h *Handlers) borrowAction(c *gin.Context, action func() (entity.TxResult, error)) {
	res, err := action()
	if err != nil {
		respondError(c, err, h.Borrow.State())
		return
	}
	respond(c, ActionResult{Tx: res, State: h.Borrow.State()})
}
