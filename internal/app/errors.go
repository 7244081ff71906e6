package app

import (
	"errors"
	"fmt"
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"

	"github.com/edtechhub/kerkoapp/internal/index"
	"github.com/edtechhub/kerkoapp/internal/index/solr"
)

// errorCodes are the statuses with a dedicated error page. Any other error
// is shown as a 500.
var errorCodes = []int{
	http.StatusBadRequest,
	http.StatusForbidden,
	http.StatusNotFound,
	http.StatusInternalServerError,
	http.StatusServiceUnavailable,
}

// httpError is a request failure with the status to answer with.
type httpError struct {
	status int
	err    error
}

func (e *httpError) Error() string {
	return fmt.Sprintf("%d: %s", e.status, e.err.Error())
}

func (e *httpError) Unwrap() error {
	return e.err
}

func newHTTPError(status int, format string, args ...any) *httpError {
	return &httpError{status: status, err: fmt.Errorf(format, args...)}
}

type errorPageData struct {
	Status  int
	Message string
}

func errorPage(status int) string {
	return fmt.Sprintf("errors/%d", status)
}

// statusForError maps an error to the status shown to the client.
func statusForError(err error) int {
	var herr *httpError
	if errors.As(err, &herr) {
		return herr.status
	}

	if errors.Is(err, index.ErrNotFound) {
		return http.StatusNotFound
	}

	var serr *solr.Error
	if errors.As(err, &serr) {
		return http.StatusServiceUnavailable
	}

	return http.StatusInternalServerError
}

// errorHandler renders the error page of the last error a handler
// recorded, unless something was already written.
func (a *App) errorHandler(c *gin.Context) {
	c.Next()

	if len(c.Errors) == 0 || c.Writer.Written() {
		return
	}

	a.renderError(c, statusForError(c.Errors.Last().Err))
}

func (a *App) renderError(c *gin.Context, status int) {
	if !slices.Contains(errorCodes, status) {
		status = http.StatusInternalServerError
	}

	cl := clientFromContext(a, c)

	if len(c.Errors) > 0 {
		cl.err("%s", c.Errors.Last().Error())
	}

	page := errorPageData{
		Status:  status,
		Message: cl.localize(fmt.Sprintf("Error%dMessage", status)),
	}

	c.HTML(status, errorPage(status), a.newPageData(cl, cl.localize(fmt.Sprintf("Error%dTitle", status)), page))
}

func (a *App) recoveryHandler(c *gin.Context, recovered any) {
	cl := clientFromContext(a, c)
	cl.err("panic: %v", recovered)

	c.Abort()
	a.renderError(c, http.StatusInternalServerError)
}

func (a *App) notFoundHandler(c *gin.Context) {
	a.renderError(c, http.StatusNotFound)
}

// abort records err and stops the handler chain; the error page is
// rendered on the way out.
func abort(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}
