package web

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/samber/lo"

	"yashubustudio/simmatch/simmatch"
)

const xlsxMIME = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Comparer is the part of simmatch.Service the handlers need.
type Comparer interface {
	Compare(ctx context.Context, left, right simmatch.Table, opts simmatch.CompareOptions) (simmatch.Result, error)
	Config() simmatch.Config
}

type Handler struct {
	svc       Comparer
	store     *ResultStore
	templates *template.Template
	logger    *log.Logger
}

func NewHandler(svc Comparer, store *ResultStore, logger *log.Logger) *Handler {
	return &Handler{
		svc:       svc,
		store:     store,
		templates: pageTemplates,
		logger:    logger,
	}
}

type indexPage struct {
	Threshold float32
	Error     string
}

type resultPage struct {
	Summary     string
	Report      []string
	Header      []string
	Rows        [][]string
	DownloadURL string
	ResultURL   string
}

func (h *Handler) Index(c *fiber.Ctx) error {
	return h.render(c, fiber.StatusOK, "index.html", indexPage{Threshold: h.svc.Config().Threshold})
}

// CompareForm handles the upload form and answers with an HTML page.
func (h *Handler) CompareForm(c *fiber.Ctx) error {
	entry, err := h.compare(c)
	if err != nil {
		status := statusFor(err)
		return h.render(c, status, "index.html", indexPage{Threshold: h.svc.Config().Threshold, Error: err.Error()})
	}
	res := entry.Result
	page := resultPage{
		Summary:     simmatch.Summary(res),
		Report:      simmatch.FormatReport(res),
		Header:      simmatch.ExportHeader(res),
		DownloadURL: downloadURL(entry.ID),
		ResultURL:   "/api/v1/results/" + entry.ID,
	}
	for _, m := range res.Matches {
		page.Rows = append(page.Rows, simmatch.MatchCells(m))
	}
	return h.render(c, fiber.StatusOK, "result.html", page)
}

// CompareAPI handles the same multipart form and answers with JSON.
func (h *Handler) CompareAPI(c *fiber.Ctx) error {
	entry, err := h.compare(c)
	if err != nil {
		return c.Status(statusFor(err)).JSON(fiber.Map{"error": err.Error()})
	}
	return c.Status(fiber.StatusCreated).JSON(newCompareResponse(entry))
}

func (h *Handler) GetResult(c *fiber.Ctx) error {
	entry, err := h.store.Get(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(newCompareResponse(entry))
}

// Download streams the stored result as a workbook attachment.
func (h *Handler) Download(c *fiber.Ctx) error {
	entry, err := h.store.Get(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	}
	cfg := h.svc.Config()
	var buf bytes.Buffer
	if err := simmatch.WriteMatchesXLSX(&buf, entry.Result, simmatch.ExportOptions{SheetName: cfg.Output.SheetName, IncludeBest: true}); err != nil {
		h.logf("export %s: %v", entry.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "cannot build workbook"})
	}
	c.Set(fiber.HeaderContentType, xlsxMIME)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="matches_%s.xlsx"`, entry.ID))
	return c.Send(buf.Bytes())
}

func (h *Handler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok", "results": h.store.Len()})
}

func (h *Handler) compare(c *fiber.Ctx) (StoredResult, error) {
	start := time.Now()
	left, err := readUpload(c, "left", c.FormValue("leftName"))
	if err != nil {
		CompareRequests.WithLabelValues("rejected").Inc()
		return StoredResult{}, err
	}
	right, err := readUpload(c, "right", c.FormValue("rightName"))
	if err != nil {
		CompareRequests.WithLabelValues("rejected").Inc()
		return StoredResult{}, err
	}
	opts, err := compareOptions(c)
	if err != nil {
		CompareRequests.WithLabelValues("rejected").Inc()
		return StoredResult{}, err
	}
	res, err := h.svc.Compare(c.UserContext(), left, right, opts)
	if err != nil {
		if errors.Is(err, simmatch.ErrColumnNotFound) || errors.Is(err, simmatch.ErrInvalidThreshold) {
			CompareRequests.WithLabelValues("rejected").Inc()
			return StoredResult{}, fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		CompareRequests.WithLabelValues("failed").Inc()
		h.logf("compare %s with %s: %v", left.Name, right.Name, err)
		return StoredResult{}, err
	}
	CompareDuration.Observe(time.Since(start).Seconds())
	CompareRequests.WithLabelValues("ok").Inc()
	PairsScored.Add(float64(res.Pairs()))
	MatchesFound.Add(float64(len(res.Matches)))
	return h.store.Put(res), nil
}

func readUpload(c *fiber.Ctx, field, name string) (simmatch.Table, error) {
	fh, err := c.FormFile(field)
	if err != nil {
		return simmatch.Table{}, fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("%s file is required", field))
	}
	if !simmatch.SupportedExtension(fh.Filename) {
		return simmatch.Table{}, fiber.NewError(fiber.StatusBadRequest,
			fmt.Sprintf("%s file %q: expected .xlsx, .csv or .tsv", field, fh.Filename))
	}
	f, err := fh.Open()
	if err != nil {
		return simmatch.Table{}, fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()
	table, err := simmatch.ReadTableFrom(f, fh.Filename, simmatch.ReadOptions{Name: name})
	if err != nil {
		return simmatch.Table{}, fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return table, nil
}

func compareOptions(c *fiber.Ctx) (simmatch.CompareOptions, error) {
	opts := simmatch.CompareOptions{
		Left: simmatch.TableSpec{
			TextColumn: c.FormValue("leftColumn"),
			IDColumns:  splitList(c.FormValue("leftIdColumns")),
		},
		Right: simmatch.TableSpec{
			TextColumn: c.FormValue("rightColumn"),
			IDColumns:  splitList(c.FormValue("rightIdColumns")),
		},
		SortByScore: c.FormValue("sort") == "score",
	}
	if raw := strings.TrimSpace(c.FormValue("threshold")); raw != "" {
		v, err := strconv.ParseFloat(raw, 32)
		if err != nil || !(v >= -1 && v <= 1) {
			return opts, fiber.NewError(fiber.StatusBadRequest, "threshold must be a number within [-1, 1]")
		}
		opts.Threshold = lo.ToPtr(float32(v))
	}
	return opts, nil
}

// splitList parses a comma separated form value. An empty value keeps the
// configured columns.
func splitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func statusFor(err error) int {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	return fiber.StatusInternalServerError
}

func (h *Handler) render(c *fiber.Ctx, status int, name string, data any) error {
	var buf bytes.Buffer
	if err := h.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return fmt.Errorf("render %s: %w", name, err)
	}
	c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
	return c.Status(status).Send(buf.Bytes())
}

func (h *Handler) logf(format string, args ...any) {
	if h.logger != nil {
		h.logger.Printf(format, args...)
	}
}
