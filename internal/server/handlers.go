package server

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/KaramelBytes/listingloom/internal/analysis"
	"github.com/KaramelBytes/listingloom/internal/importer"
	"github.com/KaramelBytes/listingloom/internal/model"
	"github.com/KaramelBytes/listingloom/internal/parser"
	"github.com/KaramelBytes/listingloom/internal/search"
	"github.com/KaramelBytes/listingloom/internal/store"
	"github.com/KaramelBytes/listingloom/internal/usage"
)

type previewResponse struct {
	Token       string             `json:"token"`
	Headers     []string           `json:"headers"`
	PreviewRows []model.PreviewRow `json:"preview_rows"`
	TotalRows   int                `json:"total_rows"`
	SkippedRows int                `json:"skipped_rows"`
	BatchSize   int                `json:"batch_size"`
	Batches     int                `json:"batches"`
	Warnings    []string           `json:"warnings,omitempty"`
}

func (h *handlers) preview(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.MaxUploadBytes)
	file, hdr, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "a CSV file is required in the \"file\" field")
		return
	}
	defer file.Close()

	res, err := parser.ParseNamed(file, hdr.Filename)
	if err != nil {
		if errors.Is(err, parser.ErrEmptyCSV) || errors.Is(err, parser.ErrUnsupported) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		zap.L().Warn("server: parse upload", zap.String("filename", hdr.Filename), zap.Error(err))
		writeError(w, http.StatusBadRequest, "could not read the uploaded file")
		return
	}

	s := h.Sessions.Open(res)
	rows := res.Preview(h.PreviewLimit)
	if rows == nil {
		rows = []model.PreviewRow{}
	}
	writeJSON(w, http.StatusOK, previewResponse{
		Token:       s.Token,
		Headers:     s.Headers,
		PreviewRows: rows,
		TotalRows:   len(s.Rows),
		SkippedRows: s.Skipped,
		BatchSize:   s.BatchSize,
		Batches:     s.Batches(),
		Warnings:    analysis.Profile(res).Warnings,
	})
}

type batchRequest struct {
	Token string         `json:"token"`
	Batch int            `json:"batch"`
	Edits map[int]string `json:"edits"`
}

type batchResponse struct {
	Results []importer.RowResult `json:"results"`
	importer.Progress
	Done bool `json:"done"`
}

func (h *handlers) batch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Token == "" {
		writeError(w, http.StatusBadRequest, "token is required")
		return
	}

	res, err := h.Sessions.SubmitBatch(r.Context(), req.Token, req.Batch, req.Edits)
	switch {
	case err == nil:
	case errors.Is(err, importer.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, "import session not found or expired")
		return
	case errors.Is(err, importer.ErrBatchInFlight), errors.Is(err, importer.ErrBatchOutOfOrder):
		writeError(w, http.StatusConflict, err.Error())
		return
	case errors.Is(err, importer.ErrInvalidEdit):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	default:
		zap.L().Error("server: submit batch", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "import failed")
		return
	}
	writeJSON(w, http.StatusOK, batchResponse{Results: res.Results, Progress: res.Progress, Done: res.Done})
}

type purgeResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func (h *handlers) purge(w http.ResponseWriter, r *http.Request) {
	n, err := h.Importer.DeleteAll(r.Context())
	if err != nil {
		zap.L().Error("server: delete records", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, purgeResponse{Message: "could not delete records"})
		return
	}
	writeJSON(w, http.StatusOK, purgeResponse{Success: true, Message: fmt.Sprintf("deleted %d records", n)})
}

func (h *handlers) record(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "externalID"))
	rec, err := h.Store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "listing not found")
			return
		}
		zap.L().Error("server: get record", zap.String("external_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not load listing")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

type statsResponse struct {
	Records  int        `json:"records"`
	LastSync *time.Time `json:"last_sync"`
}

func (h *handlers) stats(w http.ResponseWriter, r *http.Request) {
	n, err := h.Store.Count(r.Context())
	if err != nil {
		zap.L().Error("server: count records", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not load stats")
		return
	}
	last, err := h.Store.LastSync(r.Context())
	if err != nil {
		zap.L().Error("server: last sync", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not load stats")
		return
	}
	out := statsResponse{Records: n}
	if !last.IsZero() {
		out.LastSync = &last
	}
	writeJSON(w, http.StatusOK, out)
}

type searchRequest struct {
	Query string `json:"query"`
}

func (h *handlers) search(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := h.Search.Run(r.Context(), search.Request{
		Query:  req.Query,
		UserID: strings.TrimSpace(r.Header.Get("X-User-ID")),
		IP:     clientIP(r),
	})
	if err != nil {
		status, body := searchErrorStatus(err)
		writeJSON(w, status, body)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// searchErrorStatus maps the search error taxonomy to a status and body.
// Upstream failures carry the provider's message as is and are retryable.
func searchErrorStatus(err error) (int, errorBody) {
	var limitErr *usage.LimitError
	var upErr *search.UpstreamError
	switch {
	case search.IsInputError(err):
		if errors.Is(err, search.ErrQueryTooLong) {
			return http.StatusBadRequest, errorBody{Error: fmt.Sprintf("Please keep your question under %d characters.", search.MaxQueryChars)}
		}
		return http.StatusBadRequest, errorBody{Error: "Please enter a question."}
	case errors.As(err, &limitErr):
		return http.StatusTooManyRequests, errorBody{Error: limitMessage(limitErr)}
	case errors.As(err, &upErr):
		body := errorBody{Error: upErr.Error(), Retryable: upErr.Retryable()}
		if upErr.Timeout() {
			return http.StatusGatewayTimeout, body
		}
		return http.StatusBadGateway, body
	default:
		zap.L().Error("server: search", zap.Error(err))
		return http.StatusInternalServerError, errorBody{Error: "Something went wrong. Please try again."}
	}
}

func limitMessage(e *usage.LimitError) string {
	if e.Window == usage.Monthly {
		return fmt.Sprintf("You have reached the monthly limit of %d searches.", e.Limit)
	}
	return fmt.Sprintf("You have reached the daily limit of %d searches. Please come back tomorrow.", e.Limit)
}

// clientIP strips the port from RemoteAddr, which RealIP has already
// rewritten from proxy headers when present.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
