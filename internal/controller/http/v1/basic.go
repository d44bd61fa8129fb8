package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yunseong-dev/madang/internal/controller/http/resp"
	"github.com/yunseong-dev/madang/internal/usecases"
	"github.com/yunseong-dev/madang/internal/usecases/entity"
)

type basicRoutes struct {
	t usecases.Basic
}

func NewBasicRoutes(handler *gin.RouterGroup, t usecases.Basic) {
	r := &basicRoutes{t}

	h := handler.Group("/basic")
	{
		h.GET("/instruments", r.getInstruments)
		h.GET("/instruments/:code", r.getInstrumentByCode)
		h.PUT("/instruments", r.updateInstruments)
	}
}

// getInstruments /api/madang/v1/basic/instruments [get].
func (r *basicRoutes) getInstruments(c *gin.Context) {
	instruments, err := r.t.GetAllInstrument(c)
	if err != nil {
		resp.Fail(c, http.StatusInternalServerError, err)
		return
	}
	resp.Success(c, http.StatusOK, gin.H{"instruments": instruments})
}

// getInstrumentByCode /api/madang/v1/basic/instruments/:code [get].
func (r *basicRoutes) getInstrumentByCode(c *gin.Context) {
	instrument, err := r.t.GetInstrumentByCode(c, c.Param("code"))
	if err != nil {
		switch err {
		case usecases.ErrInvalidInstrumentCode:
			resp.Fail(c, http.StatusBadRequest, err)
		case usecases.ErrInstrumentNotFound:
			resp.Fail(c, http.StatusNotFound, err)
		default:
			resp.Fail(c, http.StatusInternalServerError, err)
		}
		return
	}
	resp.Success(c, http.StatusOK, instrument)
}

// updateInstruments /api/madang/v1/basic/instruments [put].
func (r *basicRoutes) updateInstruments(c *gin.Context) {
	var instruments []*entity.Instrument
	if err := c.Bind(&instruments); err != nil {
		resp.Fail(c, http.StatusBadRequest, err)
		return
	}
	if err := r.t.UpdateInstruments(c, instruments); err != nil {
		resp.Fail(c, http.StatusInternalServerError, err)
		return
	}
	resp.Success(c, http.StatusOK, gin.H{"updated": len(instruments)})
}
