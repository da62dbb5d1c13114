package httpapi

import (
	"context"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cesuma/contratos-api/internal/contract"
	"github.com/cesuma/contratos-api/internal/logging"
	"github.com/cesuma/contratos-api/internal/pdf/form"
	"github.com/cesuma/contratos-api/internal/service"
)

// Generator is the contract pipeline behind the handlers
type Generator interface {
	Generate(ctx context.Context, req *contract.Request, opts service.GenerateOptions) (*service.Document, error)
	ContractTypes() []service.TypeInfo
	TemplateFields(ctx context.Context, raw string) (*service.TemplateFields, error)
	RecoveredPanics() int
}

// Handler serves the contract endpoints
type Handler struct {
	gen        Generator
	production bool
	banner     string
}

// NewHandler creates the contract handlers. In production error causes are
// not returned to clients.
func NewHandler(gen Generator, production bool, banner string) *Handler {
	return &Handler{gen: gen, production: production, banner: banner}
}

// Banner answers the root path
func (h *Handler) Banner(c *gin.Context) {
	c.String(http.StatusOK, h.banner)
}

// Health reports liveness and the pdf operations that panicked since start
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":           "ok",
		"timestamp":        time.Now().UTC().Format(time.RFC3339),
		"recovered_panics": h.gen.RecoveredPanics(),
	})
}

// ContractTypes lists the permitted contract types
func (h *Handler) ContractTypes(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"contract_types": h.gen.ContractTypes()})
}

// GenerateContract fills the template of the requested contract type and
// returns it as a download
func (h *Handler) GenerateContract(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeError(c, contract.NewInvalidRequest("request body too large", err))
			return
		}
		h.writeError(c, contract.NewInvalidRequest("failed to read request body", err))
		return
	}

	req, err := contract.ParseRequestBytes(body)
	if err != nil {
		h.writeError(c, err)
		return
	}

	var opts service.GenerateOptions
	if raw := c.Query("flatten"); raw != "" {
		flatten, err := strconv.ParseBool(raw)
		if err != nil {
			h.writeError(c, contract.NewInvalidRequest("flatten must be true or false", err))
			return
		}
		opts.Flatten = &flatten
	}

	doc, err := h.gen.Generate(c.Request.Context(), req, opts)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": doc.Filename}))
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, doc.ContentType, doc.Bytes)
}

// TemplateFieldsResponse is the debug listing of a template's form
type TemplateFieldsResponse struct {
	*service.TemplateFields
	Count int `json:"count"`
}

// TemplateFields lists the physical fields of a contract type's template
func (h *Handler) TemplateFields(c *gin.Context) {
	tf, err := h.gen.TemplateFields(c.Request.Context(), c.Param("type"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	if tf.Fields == nil {
		tf.Fields = []form.Field{}
	}
	c.JSON(http.StatusOK, TemplateFieldsResponse{TemplateFields: tf, Count: len(tf.Fields)})
}

// writeError renders err as {"error", "detail", "request_id"}. Server side
// failures keep their cause and detail private in production.
func (h *Handler) writeError(c *gin.Context, err error) {
	var cerr *contract.Error
	if !errors.As(err, &cerr) {
		cerr = &contract.Error{Kind: contract.KindUnknown, Message: "internal server error", Err: err}
	}

	status := cerr.Kind.HTTPStatus()
	body := gin.H{
		"error":      cerr.Message,
		"kind":       cerr.Kind.String(),
		"request_id": GetRequestID(c),
	}

	internal := status >= http.StatusInternalServerError
	if cerr.Detail != nil && (!internal || !h.production) {
		body["detail"] = cerr.Detail
	}
	if cause := cerr.Cause(); cause != "" && !h.production {
		body["cause"] = cause
	}

	logger := logging.FromContext(c.Request.Context())
	if internal {
		logger.Error("request failed", zap.String("kind", cerr.Kind.String()), zap.Error(err))
	} else {
		logger.Info("request rejected", zap.String("kind", cerr.Kind.String()), zap.String("error", cerr.Message))
	}

	c.AbortWithStatusJSON(status, body)
}
