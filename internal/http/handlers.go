package http

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"ipvops/internal/audit"
	"ipvops/internal/backend"
	"ipvops/internal/core"
	"ipvops/internal/log"
	"ipvops/internal/middleware/trace"
	"ipvops/internal/sheets"
	"ipvops/internal/storage"
)

const auditTimeout = 5 * time.Second

func (s *Server) handleWelcome(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "Bienvenido a la API de IPV Ops"})
}

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ReadyResponse reports the state of every dependency.
type ReadyResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// handleReady checks every configured dependency concurrently. Sources
// without credentials are reported but do not fail readiness.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.readyTimeout)
	defer cancel()

	pingers := map[string]sheets.Pinger{}
	checks := map[string]string{}
	if s.src.Airtable != nil {
		pingers[audit.SourceAirtable] = s.src.Airtable
	} else {
		checks[audit.SourceAirtable] = "not_configured"
	}
	if s.src.Sheets != nil {
		pingers[audit.SourceSheets] = s.src.Sheets
	} else {
		checks[audit.SourceSheets] = "not_configured"
	}
	if p, ok := s.src.AuditLog.(sheets.Pinger); ok {
		pingers["audit"] = p
	}

	var (
		mu     sync.Mutex
		g      errgroup.Group
		failed bool
	)
	for name, p := range pingers {
		g.Go(func() error {
			err := p.Ping(ctx)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed = true
				checks[name] = "failed: " + err.Error()
				log.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed",
					log.FieldOperation, log.OpReadiness,
					log.FieldSource, name,
					log.FieldError, err.Error())
				return nil
			}
			checks[name] = "ok"
			return nil
		})
	}
	_ = g.Wait()

	resp := ReadyResponse{Status: "ready", Checks: checks}
	status := http.StatusOK
	if failed {
		resp.Status = "not_ready"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

// handleAirtableRecords returns a month of records when year and month are
// given, and a single raw page otherwise. In month mode max_records sets the
// page size of each upstream call.
func (s *Server) handleAirtableRecords(w http.ResponseWriter, r *http.Request) {
	at, ok := s.airtableSource(w, r)
	if !ok {
		return
	}
	query := r.URL.Query()

	month, byMonth, err := ParseMonthParams(query)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if byMonth {
		pageSize, err := intParam(query, "max_records", core.MaxPageSize, 1, core.MaxPageSize)
		if err != nil {
			writeError(w, r, err)
			return
		}
		q := core.PageQuery{PageSize: pageSize, View: sanitizeInput(query.Get("view"))}
		params := map[string]string{
			"year":        strconv.Itoa(month.Year),
			"month":       strconv.Itoa(month.Month),
			"max_records": strconv.Itoa(pageSize),
			"view":        q.View,
		}
		var records []core.Record
		err = s.observe(r.Context(), audit.SourceAirtable, log.OpGetByMonth, params, func(ctx context.Context) (int, error) {
			var err error
			records, err = at.GetByMonth(ctx, month.Year, month.Month, q)
			return len(records), err
		})
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, records)
		return
	}

	q, err := ParsePageQuery(query)
	if err != nil {
		writeError(w, r, err)
		return
	}
	params := map[string]string{
		"max_records":       strconv.Itoa(q.MaxRecords),
		"view":              q.View,
		"filter_by_formula": q.FilterByFormula,
		"offset":            q.Offset,
	}
	var page core.Page
	err = s.observe(r.Context(), audit.SourceAirtable, log.OpGetPage, params, func(ctx context.Context) (int, error) {
		var err error
		page, err = at.GetTableData(ctx, q)
		return len(page.Records), err
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// handleAirtableAll follows every page. max_records sets the page size.
func (s *Server) handleAirtableAll(w http.ResponseWriter, r *http.Request) {
	at, ok := s.airtableSource(w, r)
	if !ok {
		return
	}
	query := r.URL.Query()

	pageSize, err := intParam(query, "max_records", core.MaxPageSize, 1, core.MaxPageSize)
	if err != nil {
		writeError(w, r, err)
		return
	}
	q := core.PageQuery{PageSize: pageSize, View: sanitizeInput(query.Get("view"))}

	params := map[string]string{"page_size": strconv.Itoa(pageSize), "view": q.View}
	var records []core.Record
	err = s.observe(r.Context(), audit.SourceAirtable, log.OpFetchAll, params, func(ctx context.Context) (int, error) {
		var err error
		records, err = at.FetchAllRecords(ctx, q)
		return len(records), err
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

// TablesResponse mirrors the Airtable meta API listing.
type TablesResponse struct {
	Tables []core.Table `json:"tables"`
}

func (s *Server) handleAirtableTables(w http.ResponseWriter, r *http.Request) {
	at, ok := s.airtableSource(w, r)
	if !ok {
		return
	}

	var tables []core.Table
	err := s.observe(r.Context(), audit.SourceAirtable, log.OpListTables, nil, func(ctx context.Context) (int, error) {
		var err error
		tables, err = at.ListTables(ctx)
		return len(tables), err
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, TablesResponse{Tables: tables})
}

func (s *Server) handleSheetsData(w http.ResponseWriter, r *http.Request) {
	sh, ok := s.sheetsSource(w, r)
	if !ok {
		return
	}

	req, err := DecodeRangeRequest(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.serveRange(w, r, sh, req.Range)
}

func (s *Server) handleSheetsRange(w http.ResponseWriter, r *http.Request) {
	sh, ok := s.sheetsSource(w, r)
	if !ok {
		return
	}

	rng, err := ParseRangeParams(r.PathValue("sheet_name"), r.URL.Query())
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.serveRange(w, r, sh, rng)
}

func (s *Server) serveRange(w http.ResponseWriter, r *http.Request, sh backend.SheetsSource, rng string) {
	var rows []core.SheetRow
	err := s.observe(r.Context(), audit.SourceSheets, log.OpGetRange, map[string]string{"range": rng}, func(ctx context.Context) (int, error) {
		var err error
		rows, err = sh.GetRange(ctx, rng)
		return len(rows), err
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

// AuditResponse lists recent audit events, newest first.
type AuditResponse struct {
	Events []audit.Event `json:"events"`
}

func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	if s.src.AuditLog == nil {
		writeJSON(w, http.StatusNotFound, ErrorBody{
			Detail: "audit log is disabled: set AUDIT_DB_PATH",
			Kind:   kindNotFound,
		})
		return
	}

	limit, err := intParam(r.URL.Query(), "limit", storage.DefaultRecentLimit, 1, storage.MaxRecentLimit)
	if err != nil {
		writeError(w, r, err)
		return
	}

	events, err := s.src.AuditLog.Recent(r.Context(), limit)
	if err != nil {
		writeError(w, r, fmt.Errorf("read audit log: %w", err))
		return
	}
	writeJSON(w, http.StatusOK, AuditResponse{Events: events})
}

// airtableSource returns the Airtable source or answers with its configuration error.
func (s *Server) airtableSource(w http.ResponseWriter, r *http.Request) (backend.AirtableSource, bool) {
	if s.src.Airtable == nil {
		writeError(w, r, unavailable("airtable", s.src.AirtableErr))
		return nil, false
	}
	return s.src.Airtable, true
}

// sheetsSource returns the Sheets source or answers with its configuration error.
func (s *Server) sheetsSource(w http.ResponseWriter, r *http.Request) (backend.SheetsSource, bool) {
	if s.src.Sheets == nil {
		writeError(w, r, unavailable("sheets", s.src.SheetsErr))
		return nil, false
	}
	return s.src.Sheets, true
}

func unavailable(component string, err error) error {
	if err != nil {
		return err
	}
	return &core.ConfigError{Component: component}
}

// observe runs one upstream call, then logs it and records an audit event.
// Audit failures are logged and never reach the caller.
func (s *Server) observe(ctx context.Context, source, operation string, params map[string]string, call func(context.Context) (int, error)) error {
	event := audit.NewEvent(source, operation, params)
	event.RequestID = trace.GetRequestID(ctx)

	start := time.Now()
	n, err := call(ctx)
	took := time.Since(start)
	event.Finish(n, err, took)

	logger := log.FromContext(ctx)
	log.NewStructuredLogger(logger).LogFetch(ctx, source, operation, n, took, err, string(core.KindOf(err)))

	if s.src.Audit != nil {
		actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditTimeout)
		defer cancel()
		if aerr := s.src.Audit.Record(actx, event); aerr != nil {
			logger.WarnContext(ctx, "Failed to record audit event",
				"event_id", event.ID,
				log.FieldError, aerr.Error())
		}
	}
	return err
}
