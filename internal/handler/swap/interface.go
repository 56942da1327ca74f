package swap

import "github.com/gin-gonic/gin"

type IHandler interface {
	CreateSwapRequest(c *gin.Context)
	GetSwapRequest(c *gin.Context)
	ListSwapRequests(c *gin.Context)
}
