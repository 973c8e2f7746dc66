package restapi

import (
	"io"
	"net/http"

	"kaia_defi/internal/app/port"
	"kaia_defi/internal/app/session"
	"kaia_defi/internal/domain/entity"

	"github.com/gin-gonic/gin"
)

// SessionEvents streams session transitions.
type SessionEvents interface {
	Subscribe() (<-chan session.Event, func())
}

// Handlers serves the feature services over HTTP. Events may be nil.
type Handlers struct {
	Sessions  port.SessionManager
	Events    SessionEvents
	Balances  port.BalancesService
	Swap      port.SwapService
	Staking   port.StakingService
	Borrow    port.BorrowService
	Farms     port.FarmsService
	Portfolio port.PortfolioService
	Network   port.NetworkService
}

// ActionResult is returned by every endpoint that submits a transaction.
type ActionResult struct {
	Tx    entity.TxResult `json:"tx"`
	State any             `json:"state"`
}

type amountRequest struct {
	Amount string `json:"amount" binding:"required"`
}

type switchNetworkRequest struct {
	ChainID uint64 `json:"chainId" binding:"required"`
}

func (h *Handlers) GetSession(c *gin.Context) {
	respond(c, h.Sessions.Current().SessionView)
}

func (h *Handlers) Connect(c *gin.Context) {
	view, err := h.Sessions.Connect(c.Request.Context())
	if err != nil {
		respondError(c, err, view)
		return
	}
	respond(c, view)
}

func (h *Handlers) Disconnect(c *gin.Context) {
	respond(c, h.Sessions.Disconnect())
}

func (h *Handlers) SwitchNetwork(c *gin.Context) {
	var req switchNetworkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	view, err := h.Sessions.SwitchNetwork(c.Request.Context(), req.ChainID)
	if err != nil {
		respondError(c, err, view)
		return
	}
	respond(c, view)
}

// StreamSessionEvents relays session transitions as server-sent events
// until the client goes away.
func (h *Handlers) StreamSessionEvents(c *gin.Context) {
	if h.Events == nil {
		c.AbortWithStatusJSON(http.StatusNotImplemented, APIResponse{Error: "session events are not available", RequestID: requestID(c)})
		return
	}
	events, cancel := h.Events.Subscribe()
	defer cancel()

	c.SSEvent("session", h.Sessions.Current().SessionView)
	c.Stream(func(io.Writer) bool {
		select {
		case ev, ok := <-events:
			if !ok {
				return false
			}
			c.SSEvent(string(ev.Kind), ev.Session)
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}
