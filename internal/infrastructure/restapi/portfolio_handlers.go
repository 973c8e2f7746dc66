package restapi

import (
	"github.com/gin-gonic/gin"
)

// GetPortfolio refreshes every source. A partially failed refresh still
// answers 200 with the snapshot's Error set.
func (h *Handlers) GetPortfolio(c *gin.Context) {
	snap, err := h.Portfolio.Refresh(c.Request.Context())
	if err != nil {
		respondError(c, err, h.Portfolio.Snapshot())
		return
	}
	respond(c, snap)
}

func (h *Handlers) GetNetwork(c *gin.Context) {
	info, err := h.Network.NetworkInfo(c.Request.Context())
	if err != nil {
		respondError(c, err, nil)
		return
	}
	respond(c, info)
}

func (h *Handlers) GetTransaction(c *gin.Context) {
	res, err := h.Network.TransactionStatus(c.Request.Context(), c.Param("hash"))
	if err != nil {
		respondError(c, err, nil)
		return
	}
	respond(c, res)
}
