package app

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/edtechhub/kerkoapp/internal/cache"
)

// message ids used directly by the page templates
var pageMessageIDs = []string{
	"SearchTitle",
	"SearchPlaceholder",
	"SearchButton",
	"ResultsCount",
	"SortBy",
	"NoResults",
	"Page",
	"PagePrevious",
	"PageNext",
	"ItemDate",
	"ItemAbstract",
	"ItemLink",
	"ItemAttachments",
	"ItemPrint",
	"BackToSearch",
}

func (a *App) ignoreHandler(c *gin.Context) {
}

func (a *App) homeHandler(c *gin.Context) {
	c.Redirect(http.StatusFound, libPath)
}

func (a *App) versionHandler(c *gin.Context) {
	c.JSON(http.StatusOK, a.version)
}

func (a *App) healthCheckHandler(c *gin.Context) {
	cl := clientFromContext(a, c)

	type hcResp struct {
		Healthy bool   `json:"healthy"`
		Message string `json:"message,omitempty"`
	}

	hcMap := make(map[string]hcResp)
	internalServiceError := false

	hcIndex := hcResp{Healthy: true}
	if err := a.index.Ping(c.Request.Context()); err != nil {
		cl.err("index ping failed: %s", err.Error())
		internalServiceError = true
		hcIndex = hcResp{Healthy: false, Message: err.Error()}
	}
	hcMap["index"] = hcIndex

	// an empty cache only means no sync has run yet
	hcCache := hcResp{Healthy: true}
	if _, err := a.store.Version(c.Request.Context()); err != nil && !errors.Is(err, cache.ErrEmpty) {
		cl.err("cache check failed: %s", err.Error())
		internalServiceError = true
		hcCache = hcResp{Healthy: false, Message: err.Error()}
	}
	hcMap["cache"] = hcCache

	hcStatus := http.StatusOK
	if internalServiceError {
		hcStatus = http.StatusInternalServerError
	}

	c.JSON(hcStatus, hcMap)
}
