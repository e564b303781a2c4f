// Package httpapi implements the HTTP driver exposing POST /run
// and GET /schema, built on github.com/gin-gonic/gin.
package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gopkg.in/yaml.v3"

	"github.com/conduit-run/conduit/pkg/config"
	"github.com/conduit-run/conduit/pkg/conduiterr"
	"github.com/conduit-run/conduit/pkg/registry"
	"github.com/conduit-run/conduit/pkg/resolve"
	"github.com/conduit-run/conduit/pkg/runner"
	"github.com/conduit-run/conduit/pkg/schema"
)

// runRequest is the POST /run body: `pipeline` arrives as a JSON array
// of StageDescriptors, not a YAML document string — the same per-stage
// shape `conduit schema` describes, repeated.
type runRequest struct {
	Pipeline    []*config.Stage   `json:"pipeline" binding:"required"`
	Args        map[string]string `json:"args"`
	StopOnError bool              `json:"stop_on_error"`
}

// NewRouter builds the gin engine with gin.New() plus explicit
// middleware (never gin.Default's baked-in logger/recovery), so the
// slog-backed logging middleware is the only logger on the request
// path.
func NewRouter(logger gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if logger != nil {
		r.Use(logger)
	}

	r.POST("/run", handleRun)
	r.GET("/schema", handleSchema)
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })

	return r
}

func handleRun(c *gin.Context) {
	var req runRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": errorPayload(err)})
		return
	}

	// The pipeline arrives pre-parsed as stage descriptors, so it's
	// re-marshaled to YAML here rather than given its own build path —
	// one round-trip buys reuse of the exact resolve/parse/build
	// sequence conduit run uses, instead of a second entry point that
	// could drift from it.
	doc := config.Document{Name: "http-run", Stages: req.Pipeline}
	raw, err := yaml.Marshal(doc)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": errorPayload(err)})
		return
	}

	args := resolve.Args(req.Args)
	result, err := runner.Run(c.Request.Context(), raw, runner.Options{
		Args:        args,
		StopOnError: req.StopOnError,
	})
	if err != nil && result == nil {
		c.JSON(statusFor(err), gin.H{"success": false, "error": errorPayload(err)})
		return
	}

	c.JSON(statusForResult(result, err), result)
}

// errorPayload projects an error into the {kind, message} shape every
// non-2xx /run response carries. Errors that never became a
// *conduiterr.Error (JSON bind failures, YAML marshal failures) report
// KindInternal rather than leaking a bare Go error string.
func errorPayload(err error) gin.H {
	var ce *conduiterr.Error
	if conduiterr.As(err, &ce) {
		return gin.H{"kind": ce.Kind, "message": ce.Message}
	}
	return gin.H{"kind": conduiterr.KindInternal, "message": err.Error()}
}

func handleSchema(c *gin.Context) {
	doc := schema.Emit(registry.Schemas())
	body, err := schema.MarshalIndent(doc)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "application/json", body)
}

// statusFor maps a build-time failure (no Result at all) to an HTTP
// status, mirroring the CLI's exit-code mapping.
func statusFor(err error) int {
	switch conduiterr.ExitCode(err) {
	case 3:
		return http.StatusNotFound
	case 4:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadRequest
	}
}

// statusForResult maps a completed-or-failed run to an HTTP status: a
// run that built successfully but errored mid-execution still returns
// 200 with success=false and the partial Result body — execution
// failures are a payload detail, not a transport failure.
func statusForResult(result *runner.Result, err error) int {
	if result != nil {
		return http.StatusOK
	}
	return statusFor(err)
}
