package handlers

import (
	"github.com/geocoder89/storefront/internal/http/middlewares"
	"github.com/gin-gonic/gin"
)

// fail hands err to the central error translator and stops the chain.
func fail(ctx *gin.Context, err error) {
	middlewares.Fail(ctx, err)
}

func requestLog(ctx *gin.Context) []any {
	reqID, _ := ctx.Get(middlewares.CtxRequestID)
	return []any{"request_id", reqID, "route", ctx.FullPath()}
}
