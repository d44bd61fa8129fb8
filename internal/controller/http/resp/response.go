// Package resp package resp
package resp

import (
	"github.com/gin-gonic/gin"
	"github.com/yunseong-dev/madang/internal/usecases"
	"github.com/yunseong-dev/madang/internal/usecases/repo"
)

type apiResponse struct {
	Code     int64  `json:"code"`
	Response string `json:"response"`
}

func Fail(c *gin.Context, code int, err error) {
	body := &apiResponse{}
	switch v := err.(type) {
	case *repo.Error:
		body.Code = v.Code
		body.Response = v.Message
	case *usecases.UseCaseError:
		body.Code = v.Code
		body.Response = v.Message
	case *APIError:
		body.Code = v.Code
		body.Response = v.Message
	case error:
		body.Code = -1
		body.Response = v.Error()
	}
	c.JSON(code, body)
	c.Abort()
}

func Success(c *gin.Context, code int, data any) {
	c.JSON(code, data)
}
