package controllers

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/qr-restaurant/utils"
)

// uintParam reads a numeric path parameter, answering 400 itself when it is not one.
func uintParam(c *gin.Context, name string) (uint, bool) {
	raw := c.Param(name)
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		utils.RespondAppError(c, utils.NewAppError(utils.CodeInvalidInput, "invalid "+name).WithDetail(name, raw))
		return 0, false
	}
	return uint(id), true
}

func bindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		utils.RespondAppError(c, utils.WrapAppError(utils.CodeInvalidInput, "invalid request body", err))
		return false
	}
	return true
}
