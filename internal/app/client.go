package app

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nicksnyder/go-i18n/v2/i18n"
	log "github.com/sirupsen/logrus"
)

const clientKey = "client"

type clientContext struct {
	reqID       string          // internally generated
	start       time.Time       // internally set
	localizer   *i18n.Localizer // per-request localization
	ginCtx      *gin.Context    // gin context
	acceptLang  string          // languages requested by client
	contentLang string          // actual language we are responding with
	logger      *log.Entry
}

func (c *clientContext) init(a *App, ctx *gin.Context) {
	c.ginCtx = ctx

	c.start = time.Now()
	c.reqID = fmt.Sprintf("%08x", rand.Uint32())
	c.logger = log.WithField("req", c.reqID)

	// an explicit ?lang= wins over the browser's preferences
	langs := []string{}
	if ctx != nil {
		if lang := ctx.Query("lang"); lang != "" {
			langs = append(langs, lang)
		}
		c.acceptLang = ctx.GetHeader("Accept-Language")
		langs = append(langs, c.acceptLang)
	}
	langs = append(langs, a.composer.Language())

	c.localizer = i18n.NewLocalizer(a.translations, langs...)

	// the response language is the one a known message resolves to
	_, tag, err := c.localizer.LocalizeWithTag(&i18n.LocalizeConfig{MessageID: "SearchTitle"})
	if err != nil {
		c.contentLang = a.composer.Language()
	} else {
		c.contentLang = tag.String()
	}

	if ctx != nil {
		ctx.Header("Content-Language", c.contentLang)
	}
}

// clientFromContext returns the client context of the request, creating it
// for requests that did not go through clientHandler.
func clientFromContext(a *App, ctx *gin.Context) *clientContext {
	if val, ok := ctx.Get(clientKey); ok {
		if cl, ok := val.(*clientContext); ok {
			return cl
		}
	}

	cl := &clientContext{}
	cl.init(a, ctx)
	ctx.Set(clientKey, cl)

	return cl
}

func (a *App) clientHandler(ctx *gin.Context) {
	cl := clientFromContext(a, ctx)
	cl.logRequest()

	ctx.Next()

	cl.log("[RESPONSE] status: %d, elapsed: %d (ms)", ctx.Writer.Status(), time.Since(cl.start).Milliseconds())
}

func (c *clientContext) logRequest() {
	query := ""
	if c.ginCtx.Request.URL.RawQuery != "" {
		query = fmt.Sprintf("?%s", c.ginCtx.Request.URL.RawQuery)
	}

	c.log("[REQUEST] %s %s%s  (%s) => (%s)", c.ginCtx.Request.Method, c.ginCtx.Request.URL.Path, query, c.acceptLang, c.contentLang)
}

func (c *clientContext) printf(level log.Level, format string, args ...interface{}) {
	c.logger.Log(level, fmt.Sprintf(format, args...))
}

func (c *clientContext) log(format string, args ...interface{}) {
	c.printf(log.InfoLevel, format, args...)
}

func (c *clientContext) err(format string, args ...interface{}) {
	c.printf(log.ErrorLevel, "ERROR: "+format, args...)
}

// localize translates a message id. Ids are checked at startup, so a miss
// only means a template names an unknown id; the id itself is shown.
func (c *clientContext) localize(id string) string {
	msg, err := c.localizer.Localize(&i18n.LocalizeConfig{MessageID: id})
	if err != nil && msg == "" {
		c.err("missing translation for message ID: [%s]", id)
		return id
	}

	return msg
}
