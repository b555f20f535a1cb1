// Package server exposes workbooks over HTTP. Every workbook is a
// sheetcalc.Spreadsheet persisted in the store after each edit.
package server

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"

	"github.com/sheetcalc/sheetcalc"
	"github.com/sheetcalc/sheetcalc/internal/store"
	"github.com/sheetcalc/sheetcalc/internal/types"
)

// APIVersion is the path segment of the API routes.
const APIVersion = "v1"

// Server serves the workbook API.
type Server struct {
	store     *store.Store
	sheetOpts []sheetcalc.Option
	log       types.Logger

	mu    sync.Mutex // guards books
	books map[string]*workbook
}

// workbook is an open spreadsheet. mu serializes every access to sheet.
type workbook struct {
	mu    sync.Mutex
	sheet *sheetcalc.Spreadsheet
}

// Option configures New.
type Option func(*Server)

// WithLogger sets the logger for request and workbook logging.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.log = types.Logger{L: logger} }
}

// WithSheetOptions sets the options used to create and load workbooks.
func WithSheetOptions(opts ...sheetcalc.Option) Option {
	return func(s *Server) { s.sheetOpts = opts }
}

// New returns a server backed by st.
func New(st *store.Store, opts ...Option) *Server {
	s := &Server{
		store: st,
		books: make(map[string]*workbook),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router returns the HTTP handler.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), s.logRequests)

	api := router.Group("/api/" + APIVersion)
	api.GET("/:sheet", s.getSheet)
	api.DELETE("/:sheet", s.deleteSheet)
	api.GET("/:sheet/:cell", s.getCell)
	api.POST("/:sheet/:cell", s.setCell)

	router.GET("/healthcheck", func(c *gin.Context) {
		c.String(http.StatusOK, "health")
	})
	return router
}

func (s *Server) logRequests(c *gin.Context) {
	start := time.Now()
	c.Next()
	s.log.Log(slog.LevelDebug, "request",
		slog.String("method", c.Request.Method),
		slog.String("path", c.Request.URL.Path),
		slog.Int("status", c.Writer.Status()),
		slog.Duration("elapsed", time.Since(start)))
}

// CellResponse describes one cell.
type CellResponse struct {
	Name      string `json:"name"`
	Contents  string `json:"contents"`
	Value     string `json:"value"`
	ValueKind string `json:"kind"`
}

// SheetResponse lists the nonempty cells of a workbook.
type SheetResponse struct {
	Sheet string         `json:"sheet"`
	Cells []CellResponse `json:"cells"`
}

// SetCellRequest is the body of a cell update. An empty value clears the
// cell.
type SetCellRequest struct {
	Value *string `json:"value" binding:"required"`
}

// SetCellResponse is returned by a successful update.
type SetCellResponse struct {
	Affected []string     `json:"affected"`
	Cell     CellResponse `json:"cell"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) getSheet(c *gin.Context) {
	wb, err := s.workbook(c.Param("sheet"), false)
	if err != nil {
		s.fail(c, err)
		return
	}
	wb.mu.Lock()
	defer wb.mu.Unlock()

	names := wb.sheet.NonemptyCellNames()
	c.JSON(http.StatusOK, SheetResponse{
		Sheet: c.Param("sheet"),
		Cells: lo.Map(names, func(name string, _ int) CellResponse {
			return describe(wb.sheet, name)
		}),
	})
}

func (s *Server) deleteSheet(c *gin.Context) {
	name := c.Param("sheet")
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.store.Delete(name); err != nil {
		s.fail(c, err)
		return
	}
	delete(s.books, bookKey(name))
	c.Status(http.StatusNoContent)
}

func (s *Server) getCell(c *gin.Context) {
	wb, err := s.workbook(c.Param("sheet"), false)
	if err != nil {
		s.fail(c, err)
		return
	}
	wb.mu.Lock()
	defer wb.mu.Unlock()

	name := c.Param("cell")
	if _, err := wb.sheet.GetCellContents(name); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, describe(wb.sheet, name))
}

func (s *Server) setCell(c *gin.Context) {
	var req SetCellRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	sheetName := c.Param("sheet")
	wb, err := s.workbook(sheetName, true)
	if err != nil {
		s.fail(c, err)
		return
	}
	wb.mu.Lock()
	defer wb.mu.Unlock()

	name := c.Param("cell")
	affected, err := wb.sheet.SetContentsOfCell(name, *req.Value)
	if err != nil {
		s.fail(c, err)
		return
	}
	if err := s.store.Save(sheetName, wb.sheet); err != nil {
		s.fail(c, err)
		return
	}
	wb.sheet.SetChanged(false)

	s.log.Log(slog.LevelDebug, "cell set",
		slog.String("workbook", sheetName),
		slog.String("cell", name),
		slog.Int("affected", len(affected)))
	c.JSON(http.StatusCreated, SetCellResponse{
		Affected: affected,
		Cell:     describe(wb.sheet, name),
	})
}

// workbook returns the open workbook with the given name, loading it from
// the store if needed. With create set, a missing workbook starts empty.
func (s *Server) workbook(name string, create bool) (*workbook, error) {
	key := bookKey(name)
	s.mu.Lock()
	defer s.mu.Unlock()
	if wb, ok := s.books[key]; ok {
		return wb, nil
	}

	sheet, err := s.store.Load(name, s.sheetOpts...)
	switch {
	case errors.Is(err, store.ErrNotFound) && create:
		sheet = sheetcalc.New(s.sheetOpts...)
		s.log.Log(slog.LevelInfo, "workbook created", slog.String("workbook", key))
	case err != nil:
		return nil, err
	default:
		s.log.Log(slog.LevelDebug, "workbook loaded", slog.String("workbook", key))
	}
	wb := &workbook{sheet: sheet}
	s.books[key] = wb
	return wb, nil
}

func bookKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// describe must be called with the workbook locked and a valid cell name.
func describe(sheet *sheetcalc.Spreadsheet, name string) CellResponse {
	contents, _ := sheet.GetCellContents(name)
	value, _ := sheet.GetCellValue(name)
	return CellResponse{
		Name:      name,
		Contents:  contents.String(),
		Value:     value.String(),
		ValueKind: value.Kind().String(),
	}
}

// fail maps an error to a status code and writes it.
func (s *Server) fail(c *gin.Context, err error) {
	var (
		nameErr     *sheetcalc.InvalidNameError
		formatErr   *sheetcalc.FormatError
		circularErr *sheetcalc.CircularError
	)
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, store.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, store.ErrInvalidName), errors.As(err, &nameErr):
		status = http.StatusBadRequest
	case errors.As(err, &formatErr):
		status = http.StatusUnprocessableEntity
	case errors.As(err, &circularErr):
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		s.log.Log(slog.LevelError, "request failed", slog.String("error", err.Error()))
	}
	c.JSON(status, errorResponse{Error: err.Error()})
}
