package frontend

import (
	"context"
	"embed"
	"encoding/base64"
	"errors"
	"fmt"
	"html/template"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mikey/mailguard/internal/adapters/extract"
	"github.com/mikey/mailguard/internal/adapters/render"
	"github.com/mikey/mailguard/internal/core"
	"github.com/mikey/mailguard/internal/ports"
	"go.uber.org/zap"
)

var _ ports.Frontend = (*WebFrontend)(nil)

//go:embed templates/*.html
var templateFS embed.FS

// Messages shown to users
const (
	MsgWaiting     = "Waiting for valid input data..."
	MsgVerified    = "Communication Format Verified"
	MsgRejected    = "Validation Failed: Irrelevant Content Detected"
	MsgUnsupported = "Unsupported file type. Upload a PDF, DOCX, TXT or EML file."
	MsgTooLarge    = "The uploaded file is too large."
	MsgUnreadable  = "Could not read any text from the uploaded document."
	MsgUnavailable = "The analysis engine is unavailable. Please try again later."
	MsgInternal    = "Something went wrong while scanning."
)

// formOverheadBytes is allowed on top of the upload limit for boundaries,
// part headers and the other form fields
const formOverheadBytes = 64 << 10

// Detection modes of the web form
const (
	ModeText     = "text"
	ModeDocument = "document"
)

// WebOptions configures the HTTP server
type WebOptions struct {
	ListenAddress   string
	MaxUploadBytes  int64
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// WebFrontend serves the scan form and the JSON API over HTTP
type WebFrontend struct {
	analyzer *Analyzer
	logger   *zap.Logger
	opts     WebOptions
	engine   *gin.Engine

	mu     sync.Mutex
	server *http.Server
	addr   net.Addr
}

// scanRequest is the JSON body accepted by the API
type scanRequest struct {
	Text string `json:"text"`
}

// apiStatus is shared by every API response
type apiStatus struct {
	RequestID string `json:"request_id"`
	Message   string `json:"message,omitempty"`
	Error     string `json:"error,omitempty"`
}

// scanResponse is the JSON body returned by /api/v1/scan
type scanResponse struct {
	apiStatus
	Report    *core.ScanReport   `json:"report,omitempty"`
	Words     []render.WordCount `json:"words,omitempty"`
	WordCloud string             `json:"wordcloud_png,omitempty"`
}

// screenResponse is the JSON body returned by /api/v1/screen
type screenResponse struct {
	apiStatus
	Verdict *core.ValidityVerdict `json:"verdict,omitempty"`
}

// pageData feeds the HTML template
type pageData struct {
	Mode      string
	Text      string
	FileName  string
	Notice    string
	Warning   string
	Error     string
	Verdict   *core.ValidityVerdict
	Result    *core.ClassificationResult
	Cached    bool
	Words     []render.WordCount
	WordCloud template.URL
	RequestID string
}

// NewWebFrontend builds the router. The server is not started.
func NewWebFrontend(analyzer *Analyzer, logger *zap.Logger, opts WebOptions) (*WebFrontend, error) {
	tmpl, err := template.New("").Funcs(template.FuncMap{
		"percent": func(v float64) string { return fmt.Sprintf("%.2f%%", v) },
	}).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse web templates: %w", err)
	}

	w := &WebFrontend{
		analyzer: analyzer,
		logger:   logger,
		opts:     opts,
		engine:   gin.New(),
	}

	w.engine.SetHTMLTemplate(tmpl)
	if opts.MaxUploadBytes > 0 {
		w.engine.MaxMultipartMemory = opts.MaxUploadBytes
	}
	w.engine.Use(gin.Recovery(), requestID(), accessLog(logger))

	var bodyLimit int64
	if opts.MaxUploadBytes > 0 {
		bodyLimit = opts.MaxUploadBytes + formOverheadBytes
	}

	w.engine.GET("/", w.handleIndex)
	w.engine.POST("/scan", limitBody(bodyLimit), w.handleScanPage)
	w.engine.GET("/healthz", w.handleHealth)

	api := w.engine.Group("/api/v1", limitBody(bodyLimit))
	api.POST("/scan", w.handleScanAPI)
	api.POST("/screen", w.handleScreenAPI)

	return w, nil
}

// Handler exposes the router, mainly for tests
func (w *WebFrontend) Handler() http.Handler {
	return w.engine
}

// Addr returns the bound address once Start has succeeded
func (w *WebFrontend) Addr() net.Addr {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.addr
}

// Start binds the listen address and serves in the background
func (w *WebFrontend) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.server != nil {
		return errors.New("web frontend already started")
	}

	ln, err := net.Listen("tcp", w.opts.ListenAddress)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", w.opts.ListenAddress, err)
	}

	w.server = &http.Server{
		Handler:      w.engine,
		ReadTimeout:  w.opts.ReadTimeout,
		WriteTimeout: w.opts.WriteTimeout,
	}
	w.addr = ln.Addr()

	go func(srv *http.Server) {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			w.logger.Error("Web frontend stopped unexpectedly", zap.Error(err))
		}
	}(w.server)

	w.logger.Info("Web frontend listening", zap.String("address", ln.Addr().String()))
	return nil
}

// Stop shuts the server down, waiting for in-flight requests
func (w *WebFrontend) Stop() error {
	w.mu.Lock()
	srv := w.server
	w.server = nil
	w.mu.Unlock()

	if srv == nil {
		return nil
	}

	timeout := w.opts.ShutdownTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shut down web frontend: %w", err)
	}
	w.logger.Info("Web frontend stopped")
	return nil
}

func (w *WebFrontend) handleIndex(c *gin.Context) {
	c.HTML(http.StatusOK, "index.html", pageData{Mode: ModeText, RequestID: c.GetString(requestIDKey)})
}

func (w *WebFrontend) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (w *WebFrontend) handleScanPage(c *gin.Context) {
	page := pageData{Mode: ModeText, RequestID: c.GetString(requestIDKey)}
	if err := w.parseForm(c); err != nil {
		w.renderPage(c, page, err)
		return
	}
	page.Mode = c.DefaultPostForm("mode", ModeText)

	var sub Submission
	if page.Mode == ModeDocument {
		doc, err := w.readUpload(c)
		if err != nil {
			w.renderPage(c, page, err)
			return
		}
		sub.Document = doc
		if doc != nil {
			page.FileName = doc.Name
		}
	} else {
		page.Mode = ModeText
		sub.Text = c.PostForm("text")
		page.Text = sub.Text
	}

	out, err := w.analyzer.Analyze(c.Request.Context(), sub)
	if out != nil && out.Report != nil {
		page.Verdict = out.Report.Verdict
		page.Result = out.Report.Result
		page.Cached = out.Report.Cached
		page.Words = out.Words
		if len(out.WordCloud) > 0 {
			page.WordCloud = template.URL("data:image/png;base64," + base64.StdEncoding.EncodeToString(out.WordCloud))
		}
		if page.Verdict != nil && page.Verdict.Valid {
			page.Notice = MsgVerified
		}
	}
	w.renderPage(c, page, err)
}

// renderPage writes the result page, turning err into the matching message
func (w *WebFrontend) renderPage(c *gin.Context, page pageData, err error) {
	status := StatusFor(err)
	if err != nil {
		w.noteError(c, err, status)
		switch {
		case errors.Is(err, core.ErrNoInput):
			page.Warning = MsgWaiting
		default:
			page.Error = MessageFor(err)
		}
	}
	c.HTML(status, "index.html", page)
}

func (w *WebFrontend) handleScanAPI(c *gin.Context) {
	resp := scanResponse{apiStatus: apiStatus{RequestID: c.GetString(requestIDKey)}}

	sub, err := w.readAPISubmission(c)
	if err != nil {
		w.writeAPIError(c, err, &resp.apiStatus, &resp)
		return
	}

	out, err := w.analyzer.Analyze(c.Request.Context(), sub)
	if out != nil {
		resp.Report = out.Report
		resp.Words = out.Words
		if len(out.WordCloud) > 0 && c.Query("wordcloud") != "false" {
			resp.WordCloud = base64.StdEncoding.EncodeToString(out.WordCloud)
		}
	}
	if err != nil {
		w.writeAPIError(c, err, &resp.apiStatus, &resp)
		return
	}

	if resp.Report.Verdict != nil {
		resp.Message = MsgVerified
	}
	c.JSON(http.StatusOK, resp)
}

func (w *WebFrontend) handleScreenAPI(c *gin.Context) {
	resp := screenResponse{apiStatus: apiStatus{RequestID: c.GetString(requestIDKey)}}

	sub, err := w.readAPISubmission(c)
	if err == nil {
		resp.Verdict, err = w.analyzer.Screen(c.Request.Context(), sub)
	}
	if err != nil {
		w.writeAPIError(c, err, &resp.apiStatus, &resp)
		return
	}

	if resp.Verdict.Valid {
		resp.Message = MsgVerified
	} else {
		resp.Message = MsgRejected
	}
	c.JSON(http.StatusOK, resp)
}

// writeAPIError fills st from err and writes body with the matching status
func (w *WebFrontend) writeAPIError(c *gin.Context, err error, st *apiStatus, body any) {
	status := StatusFor(err)
	w.noteError(c, err, status)
	st.Error = err.Error()
	st.Message = MessageFor(err)
	c.JSON(status, body)
}

// noteError attaches err to the request for the access log
func (w *WebFrontend) noteError(c *gin.Context, err error, status int) {
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
		return
	}
	w.logger.Debug("Scan request not completed",
		zap.String("request_id", c.GetString(requestIDKey)),
		zap.Int("status", status),
		zap.Error(err))
}

// readAPISubmission accepts either a JSON body or a multipart form with a
// "file" or "text" field
func (w *WebFrontend) readAPISubmission(c *gin.Context) (Submission, error) {
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		doc, err := w.readUpload(c)
		if err != nil {
			return Submission{}, err
		}
		if doc != nil {
			return Submission{Document: doc}, nil
		}
		return Submission{Text: c.PostForm("text")}, nil
	}

	var req scanRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		return Submission{}, bodyError(err)
	}
	return Submission{Text: req.Text}, nil
}

// parseForm reads the whole form up front so an oversized body is reported
// before any field lookup silently comes back empty
func (w *WebFrontend) parseForm(c *gin.Context) error {
	var err error
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		err = c.Request.ParseMultipartForm(w.engine.MaxMultipartMemory)
	} else {
		err = c.Request.ParseForm()
	}
	if err != nil {
		return bodyError(err)
	}
	return nil
}

// bodyError classifies a failure to read the request body
func bodyError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return fmt.Errorf("%w: request body over %d bytes", extract.ErrDocumentTooLarge, tooLarge.Limit)
	}
	return fmt.Errorf("%w: %w", errBadRequest, err)
}

// readUpload returns the uploaded "file" field, or nil when there is none
func (w *WebFrontend) readUpload(c *gin.Context) (*extract.Document, error) {
	header, err := c.FormFile("file")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return nil, nil
		}
		return nil, bodyError(err)
	}
	return w.readFileHeader(header)
}

func (w *WebFrontend) readFileHeader(header *multipart.FileHeader) (*extract.Document, error) {
	limit := w.opts.MaxUploadBytes
	if limit > 0 && header.Size > limit {
		return nil, fmt.Errorf("%w: %d bytes, limit %d", extract.ErrDocumentTooLarge, header.Size, limit)
	}

	f, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open upload %q: %w", header.Filename, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload %q: %w", header.Filename, err)
	}

	return &extract.Document{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

var errBadRequest = errors.New("malformed request")

// StatusFor maps a scan error to an HTTP status
func StatusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, core.ErrNoInput), errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrIrrelevantContent), errors.Is(err, ErrUnreadableDocument):
		return http.StatusUnprocessableEntity
	case errors.Is(err, extract.ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, extract.ErrDocumentTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, core.ErrClassifierFailed):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// MessageFor returns the user-facing message for a scan error
func MessageFor(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, core.ErrNoInput), errors.Is(err, errBadRequest):
		return MsgWaiting
	case errors.Is(err, core.ErrIrrelevantContent):
		return MsgRejected
	case errors.Is(err, extract.ErrUnsupportedFormat):
		return MsgUnsupported
	case errors.Is(err, extract.ErrDocumentTooLarge):
		return MsgTooLarge
	case errors.Is(err, ErrUnreadableDocument):
		return MsgUnreadable
	case errors.Is(err, core.ErrClassifierFailed), errors.Is(err, context.DeadlineExceeded):
		return MsgUnavailable
	default:
		return MsgInternal
	}
}
