package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/revulabs/revu/backend/pkg/response"
)

// parseUintParam parses a numeric path parameter, responding 400 on failure.
func parseUintParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil {
		response.BadRequest(c, "invalid "+name)
		return 0, false
	}
	return uint(id), true
}
