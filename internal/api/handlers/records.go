package handlers

import (
	"math"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/eshaffer321/ledger-reconcile/internal/api/dto"
	"github.com/eshaffer321/ledger-reconcile/internal/infrastructure/storage"
)

// RecordsHandler handles record-related HTTP requests.
type RecordsHandler struct {
	*Base
}

// NewRecordsHandler creates a new records handler.
func NewRecordsHandler(repo storage.Repository) *RecordsHandler {
	return &RecordsHandler{
		Base: NewBase(repo),
	}
}

// List handles GET /api/records - returns a paginated list of records.
// Query params: origin, context_only, linked, from, to (YYYY-MM-DD), limit, offset
func (h *RecordsHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	filters := storage.RecordFilters{
		Origin:      r.URL.Query().Get("origin"),
		ContextOnly: ParseOptionalBoolParam(r, "context_only"),
		Linked:      ParseOptionalBoolParam(r, "linked"),
		Limit:       limit,
		Offset:      offset,
	}

	var err error
	if filters.From, err = parseDateParam(r, "from"); err != nil {
		h.WriteError(w, http.StatusBadRequest, dto.ValidationError("from must be YYYY-MM-DD"))
		return
	}
	if filters.To, err = parseDateParam(r, "to"); err != nil {
		h.WriteError(w, http.StatusBadRequest, dto.ValidationError("to must be YYYY-MM-DD"))
		return
	}

	result, err := h.repo.ListRecords(filters)
	if err != nil {
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}

	response := dto.RecordListResponse{
		Records:    make([]dto.RecordResponse, 0, len(result.Records)),
		TotalCount: result.TotalCount,
		Limit:      result.Limit,
		Offset:     result.Offset,
	}
	for _, record := range result.Records {
		response.Records = append(response.Records, toRecordResponse(record))
	}

	h.WriteJSON(w, http.StatusOK, response)
}

// Get handles GET /api/records/{id} - returns a single record.
func (h *RecordsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("record ID is required"))
		return
	}

	record, err := h.repo.GetRecord(id)
	if err != nil {
		h.WriteLookupError(w, err, "record")
		return
	}

	h.WriteJSON(w, http.StatusOK, toRecordResponse(record))
}

func parseDateParam(r *http.Request, name string) (time.Time, error) {
	val := r.URL.Query().Get(name)
	if val == "" {
		return time.Time{}, nil
	}
	return time.Parse("2006-01-02", val)
}

func toRecordResponse(record *storage.Record) dto.RecordResponse {
	response := dto.RecordResponse{
		ID:          record.ID,
		Description: record.Description,
		Beneficiary: record.Beneficiary,
		Origin:      record.Origin,
		ContextOnly: record.ContextOnly,
		Links:       record.Links,
		Source:      record.Source,
		ImportedAt:  record.ImportedAt.Format(time.RFC3339),
	}
	if response.Links == nil {
		response.Links = []string{}
	}
	if !record.Date.IsZero() {
		response.Date = record.Date.Format("2006-01-02")
	}
	if !math.IsNaN(record.Amount) && !math.IsInf(record.Amount, 0) {
		amount := record.Amount
		response.Amount = &amount
	}
	return response
}
