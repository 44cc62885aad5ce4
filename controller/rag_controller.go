package controller

import (
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github/itish2003/studybuddy/models"
	"github/itish2003/studybuddy/services"
)

// SessionHeader carries the session ID in both directions.
const SessionHeader = "X-Session-ID"

const (
	msgNoDocuments = "No valid documents to index."
	msgNoIndex     = "No index available. Please add and process study materials first."
)

// RAGController handles the HTTP requests for the study material pipeline.
// It depends on the RAGService for the business logic and on the
// SessionManager to find the caller's index.
type RAGController struct {
	ragService  services.RAGService
	sessions    *services.SessionManager
	maxPDFBytes int64
}

// NewRAGController is a constructor function that creates a new RAGController.
func NewRAGController(service services.RAGService, sessions *services.SessionManager, maxPDFBytes int64) *RAGController {
	if maxPDFBytes <= 0 {
		maxPDFBytes = services.DefaultMaxBodyBytes
	}
	return &RAGController{
		ragService:  service,
		sessions:    sessions,
		maxPDFBytes: maxPDFBytes,
	}
}

// session resolves the caller's session from the header (or the given
// fallback ID) and echoes its ID back.
func session(ctx *gin.Context, sessions *services.SessionManager, fallback string) *services.Session {
	id := ctx.GetHeader(SessionHeader)
	if id == "" {
		id = fallback
	}
	s, _ := sessions.Resolve(id)
	ctx.Header(SessionHeader, s.ID)
	return s
}

// ProcessMaterial is the Gin handler for POST /api/v1/materials.
func (c *RAGController) ProcessMaterial(ctx *gin.Context) {
	var req models.ProcessMaterialRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Invalid request body: " + err.Error()})
		return
	}
	s := session(ctx, c.sessions, "")

	kind, err := services.ParseKind(req.Kind)
	if err != nil {
		c.fail(ctx, s, err, msgNoDocuments)
		return
	}
	if kind == services.KindPDF {
		ctx.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "PDF material must be uploaded to /api/v1/materials/pdf", SessionID: s.ID})
		return
	}

	response, err := c.ragService.ProcessMaterial(ctx.Request.Context(), s, kind, []byte(req.Payload))
	if err != nil {
		c.fail(ctx, s, err, msgNoDocuments)
		return
	}
	ctx.JSON(http.StatusCreated, response)
}

// ProcessPDF is the Gin handler for POST /api/v1/materials/pdf (multipart field "file").
func (c *RAGController) ProcessPDF(ctx *gin.Context) {
	s := session(ctx, c.sessions, "")

	header, err := ctx.FormFile("file")
	if err != nil {
		ctx.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Missing PDF upload in field 'file'", SessionID: s.ID})
		return
	}
	if header.Size > c.maxPDFBytes {
		ctx.JSON(http.StatusRequestEntityTooLarge, models.ErrorResponse{Error: "PDF is too large", SessionID: s.ID})
		return
	}
	f, err := header.Open()
	if err != nil {
		ctx.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Could not read upload", SessionID: s.ID})
		return
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, c.maxPDFBytes))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Could not read upload", SessionID: s.ID})
		return
	}

	response, err := c.ragService.ProcessMaterial(ctx.Request.Context(), s, services.KindPDF, data)
	if err != nil {
		c.fail(ctx, s, err, msgNoDocuments)
		return
	}
	ctx.JSON(http.StatusCreated, response)
}

// QueryRAG is the Gin handler for the POST /api/v1/query endpoint.
func (c *RAGController) QueryRAG(ctx *gin.Context) {
	var req models.QueryTextRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Invalid request body: " + err.Error()})
		return
	}
	s := session(ctx, c.sessions, req.SessionID)

	response, err := c.ragService.QueryRAG(ctx.Request.Context(), s, req)
	if err != nil {
		c.fail(ctx, s, err, msgNoIndex)
		return
	}
	ctx.JSON(http.StatusOK, response)
}

// GetAllNotes is the Gin handler for the GET /api/v1/notes endpoint.
func (c *RAGController) GetAllNotes(ctx *gin.Context) {
	s := session(ctx, c.sessions, "")

	response, err := c.ragService.GetAllNotes(ctx.Request.Context(), s)
	if err != nil {
		log.Printf("CONTROLLER ERROR: listing notes for %s: %v", s.ID, err)
		ctx.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "Failed to retrieve notes", SessionID: s.ID})
		return
	}
	ctx.JSON(http.StatusOK, response)
}

// EndSession is the Gin handler for DELETE /api/v1/sessions/:id.
func (c *RAGController) EndSession(ctx *gin.Context) {
	id := ctx.Param("id")
	if !c.sessions.End(ctx.Request.Context(), id) {
		ctx.JSON(http.StatusNotFound, models.ErrorResponse{Error: "Session not found", SessionID: id})
		return
	}
	ctx.Status(http.StatusNoContent)
}

// fail maps pipeline errors to status codes without leaking internals.
// emptyMsg is the message for an empty index, which differs between
// processing and querying.
func (c *RAGController) fail(ctx *gin.Context, s *services.Session, err error, emptyMsg string) {
	log.Printf("CONTROLLER ERROR: session %s: %v", s.ID, err)

	var loadErr *services.LoadError
	switch {
	case errors.As(err, &loadErr):
		switch loadErr.Kind {
		case services.LoadUnsupportedKind:
			ctx.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Unsupported input kind", SessionID: s.ID})
		case services.LoadNetwork:
			ctx.JSON(http.StatusBadGateway, models.ErrorResponse{Error: "Could not fetch the study material", SessionID: s.ID})
		default:
			ctx.JSON(http.StatusUnprocessableEntity, models.ErrorResponse{Error: "Could not read the study material", SessionID: s.ID})
		}
	case services.IsEmptyIndex(err):
		status := http.StatusUnprocessableEntity
		if emptyMsg == msgNoIndex {
			status = http.StatusConflict
		}
		ctx.JSON(status, models.ErrorResponse{Error: emptyMsg, SessionID: s.ID})
	default:
		ctx.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "Failed to process request", SessionID: s.ID})
	}
}
