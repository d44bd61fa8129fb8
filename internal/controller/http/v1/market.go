package v1

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yunseong-dev/madang/internal/controller/http/resp"
	"github.com/yunseong-dev/madang/internal/usecases"
	"github.com/yunseong-dev/madang/internal/usecases/modules/kis"
)

type marketRoutes struct {
	t usecases.Market
}

func NewMarketRoutes(handler *gin.RouterGroup, t usecases.Market) {
	r := &marketRoutes{t}

	h := handler.Group("/market")
	{
		h.GET("/ranking/fluctuation", r.getFluctuationRank)
		h.GET("/ranking/volume", r.getVolumeRank)
		h.GET("/price/:code", r.getCurrentPrice)
		h.GET("/status", r.getStatus)
	}
}

// getFluctuationRank /api/madang/v1/market/ranking/fluctuation [get].
func (r *marketRoutes) getFluctuationRank(c *gin.Context) {
	rank, err := r.t.FluctuationRank(c)
	if err != nil {
		r.failUpstream(c, err)
		return
	}
	resp.Success(c, http.StatusOK, gin.H{"ranking": rank})
}

// getVolumeRank /api/madang/v1/market/ranking/volume [get].
func (r *marketRoutes) getVolumeRank(c *gin.Context) {
	rank, err := r.t.VolumeRank(c)
	if err != nil {
		r.failUpstream(c, err)
		return
	}
	resp.Success(c, http.StatusOK, gin.H{"ranking": rank})
}

// getCurrentPrice /api/madang/v1/market/price/:code [get].
func (r *marketRoutes) getCurrentPrice(c *gin.Context) {
	code := c.Param("code")
	if _, err := kis.NormalizeCode(code); err != nil {
		resp.Fail(c, http.StatusBadRequest, resp.ErrCodeInvalid)
		return
	}
	detail, err := r.t.CurrentPrice(c, code)
	if err != nil {
		r.failUpstream(c, err)
		return
	}
	resp.Success(c, http.StatusOK, detail)
}

// getStatus /api/madang/v1/market/status [get].
func (r *marketRoutes) getStatus(c *gin.Context) {
	resp.Success(c, http.StatusOK, r.t.Status())
}

func (r *marketRoutes) failUpstream(c *gin.Context, err error) {
	var apiErr *kis.APIError
	if errors.As(err, &apiErr) {
		resp.Fail(c, http.StatusBadGateway, resp.ErrUpstreamUnavailable)
		return
	}
	if errors.Is(err, kis.ErrMissingAppKey) {
		resp.Fail(c, http.StatusServiceUnavailable, err)
		return
	}
	resp.Fail(c, http.StatusInternalServerError, err)
}
