package v1

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yunseong-dev/madang/internal/controller/http/resp"
	"github.com/yunseong-dev/madang/internal/usecases"
	"github.com/yunseong-dev/madang/internal/usecases/entity"
	"github.com/yunseong-dev/madang/internal/version"
)

type systemRoutes struct {
	f usecases.Feed

	launchTime time.Time
}

func NewSystemRoutes(handler *gin.RouterGroup, f usecases.Feed) {
	r := &systemRoutes{
		f:          f,
		launchTime: time.Now(),
	}

	h := handler.Group("/system")
	{
		h.GET("/status", r.getStatus)
	}
}

type systemStatus struct {
	Version     string   `json:"version"`
	FeedState   string   `json:"feed_state"`
	Connected   bool     `json:"connected"`
	ActiveCodes []string `json:"active_codes"`
	LaunchTime  string   `json:"launch_time"`
}

// getStatus /api/madang/v1/system/status [get].
func (r *systemRoutes) getStatus(c *gin.Context) {
	resp.Success(c, http.StatusOK, &systemStatus{
		Version:     version.GetCore().Version,
		FeedState:   r.f.State(),
		Connected:   r.f.Connected(),
		ActiveCodes: r.f.ActiveCodes(),
		LaunchTime:  r.launchTime.Format(entity.LongTimeLayout),
	})
}
