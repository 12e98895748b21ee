package handler

import (
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jimmi21/LogistikoCRM-sub003/internal/engine"
	"github.com/jimmi21/LogistikoCRM-sub003/internal/model"
	"github.com/jimmi21/LogistikoCRM-sub003/internal/store"
)

// GenerateMonth creates the month's obligations from client profiles.
// The operation is idempotent; rerunning reports skips, not errors.
func (h *Handlers) GenerateMonth(c *gin.Context) {
	var req GenerateMonthRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	result, err := h.generator.GenerateMonth(req.Month, req.Year, req.ClientIDs)
	if err != nil {
		respondError(c, err, "")
		return
	}
	c.JSON(http.StatusOK, result)
}

// BulkAssign assigns obligation types to many clients at once,
// optionally chaining into generation for a period.
func (h *Handlers) BulkAssign(c *gin.Context) {
	var req BulkAssignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	mode := engine.AssignMode(req.Mode)
	if req.Mode == "" {
		mode = engine.ModeAdd
	}
	result, err := h.lifecycle.BulkAssign(req.ClientIDs, engine.AssignOptions{
		ObligationTypeIDs: req.ObligationTypeIDs,
		ProfileGroupIDs:   req.ProfileGroupIDs,
		Mode:              mode,
		GenerateMonth:     req.GenerateMonth,
		GenerateYear:      req.GenerateYear,
	})
	if err != nil {
		respondError(c, err, "")
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetObligations lists obligations with filters and pagination. The
// status of each row is the effective one: a pending row past its
// deadline reads as overdue even before the sweep has moved it.
func (h *Handlers) GetObligations(c *gin.Context) {
	filter := store.ObligationFilter{Limit: 50}
	if v, err := strconv.Atoi(c.DefaultQuery("limit", "50")); err == nil && v > 0 && v <= 500 {
		filter.Limit = v
	}
	if v, err := strconv.Atoi(c.DefaultQuery("offset", "0")); err == nil && v >= 0 {
		filter.Offset = v
	}
	if v, err := strconv.Atoi(c.Query("client_id")); err == nil {
		filter.ClientID = uint(v)
	}
	if v, err := strconv.Atoi(c.Query("obligation_type_id")); err == nil {
		filter.TypeID = uint(v)
	}
	if v, err := strconv.Atoi(c.Query("month")); err == nil {
		filter.Month = v
	}
	if v, err := strconv.Atoi(c.Query("year")); err == nil {
		filter.Year = v
	}
	if s := c.Query("status"); s != "" {
		filter.Status = model.ObligationStatus(s)
	}
	now := time.Now()
	filter.Now = now

	obligations, total, err := h.store.ListObligations(filter)
	if err != nil {
		respondError(c, err, "Failed to fetch obligations")
		return
	}
	for i := range obligations {
		obligations[i].Status = obligations[i].EffectiveStatus(now)
	}
	c.JSON(http.StatusOK, gin.H{
		"obligations": obligations,
		"total":       total,
		"limit":       filter.Limit,
		"offset":      filter.Offset,
	})
}

// GetObligation returns a single obligation
func (h *Handlers) GetObligation(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	o, err := h.store.GetObligation(id)
	if err != nil {
		respondError(c, err, "Obligation not found")
		return
	}
	o.Status = o.EffectiveStatus(time.Now())
	c.JSON(http.StatusOK, o)
}

// GetDocument returns the metadata row of a stored document
func (h *Handlers) GetDocument(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	doc, err := h.store.GetDocument(id)
	if err != nil {
		respondError(c, err, "Document not found")
		return
	}
	c.JSON(http.StatusOK, doc)
}

// UpdateObligation updates mutable fields of an obligation. Status
// changes follow the transition rules; completed and cancelled rows
// reject further changes.
func (h *Handlers) UpdateObligation(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req ObligationUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	o, err := h.store.GetObligation(id)
	if err != nil {
		respondError(c, err, "Obligation not found")
		return
	}

	if req.Status != "" {
		next := model.ObligationStatus(req.Status)
		if next == model.StatusCompleted {
			badRequest(c, "Use the complete endpoint to complete an obligation")
			return
		}
		if !o.Status.CanTransitionTo(next) {
			c.JSON(http.StatusConflict, ErrorResponse{
				Error:   "invalid_state",
				Message: "Cannot move obligation from " + string(o.Status) + " to " + string(next),
				Code:    http.StatusConflict,
			})
			return
		}
		o.Status = next
	}
	if req.AssignedTo != "" {
		o.AssignedTo = req.AssignedTo
	}
	if req.Notes != "" {
		o.Notes = req.Notes
	}
	if req.TimeSpentMinutes != nil {
		o.TimeSpentMinutes = *req.TimeSpentMinutes
	}
	if err := h.store.SaveObligation(o); err != nil {
		respondError(c, err, "Failed to update obligation")
		return
	}
	c.JSON(http.StatusOK, o)
}

// CompleteObligation completes one obligation. A JSON body carries the
// plain completion; a multipart body may add a document that is stored
// before the state flips. A failed notification is reported inside the
// result and never fails the request.
func (h *Handlers) CompleteObligation(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	opts := engine.CompleteOptions{}
	if strings.HasPrefix(c.ContentType(), "multipart/form-data") {
		opts.Notes = c.PostForm("notes")
		opts.TimeSpentMinutes, _ = strconv.Atoi(c.PostForm("time_spent_minutes"))
		opts.Notify = c.PostForm("send_email") == "true"
		if fh, err := c.FormFile("document"); err == nil {
			upload, file, ferr := openUpload(fh, c.PostForm("category"), c.PostForm("description"))
			if ferr != nil {
				badRequest(c, "Unreadable document upload")
				return
			}
			defer file.Close()
			opts.Document = upload
		}
	} else {
		var req CompleteRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "Invalid request body")
			return
		}
		opts.Notes = req.Notes
		opts.TimeSpentMinutes = req.TimeSpentMinutes
		opts.Notify = req.SendEmail
	}

	result, err := h.lifecycle.Complete(c.Request.Context(), id, opts)
	if err != nil {
		respondError(c, err, "")
		return
	}
	c.JSON(http.StatusOK, result)
}

// BulkCompleteWithDocuments completes a batch of obligations from one
// multipart request. Files are matched to obligations by the form key
// document_<obligationID>. The response is always 200 with per-item
// outcomes; individual failures live in the result entries.
func (h *Handlers) BulkCompleteWithDocuments(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		badRequest(c, "Expected multipart form data")
		return
	}

	ids, err := parseIDList(c.PostForm("obligation_ids"))
	if err != nil || len(ids) == 0 {
		badRequest(c, "obligation_ids must be a comma-separated list of ids")
		return
	}

	opts := engine.BulkCompleteOptions{
		SaveToFolders:  c.PostForm("save_to_folders") == "true",
		SendEmails:     c.PostForm("send_emails") == "true",
		AttachToEmails: c.PostForm("attach_to_emails") == "true",
		Notes:          c.PostForm("notes"),
	}
	if v, err := strconv.Atoi(c.PostForm("template_id")); err == nil && v > 0 {
		tid := uint(v)
		opts.TemplateID = &tid
	}

	items := make([]engine.BulkItem, 0, len(ids))
	var open []multipart.File
	defer func() {
		for _, f := range open {
			f.Close()
		}
	}()
	for _, id := range ids {
		item := engine.BulkItem{ObligationID: id}
		if fhs := form.File["document_"+strconv.FormatUint(uint64(id), 10)]; len(fhs) > 0 {
			upload, file, ferr := openUpload(fhs[0], c.PostForm("category"), "")
			if ferr != nil {
				badRequest(c, "Unreadable document upload for obligation "+strconv.FormatUint(uint64(id), 10))
				return
			}
			open = append(open, file)
			item.Document = upload
		}
		items = append(items, item)
	}

	result, err := h.lifecycle.BulkComplete(c.Request.Context(), items, opts)
	if err != nil {
		respondError(c, err, "")
		return
	}
	c.JSON(http.StatusOK, result)
}

func openUpload(fh *multipart.FileHeader, category, description string) (*engine.DocumentUpload, multipart.File, error) {
	file, err := fh.Open()
	if err != nil {
		return nil, nil, err
	}
	return &engine.DocumentUpload{
		Filename:    fh.Filename,
		Category:    category,
		Description: description,
		Reader:      file,
		Size:        fh.Size,
	}, file, nil
}

func parseIDList(raw string) ([]uint, error) {
	var ids []uint
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		v, err := strconv.ParseUint(part, 10, 32)
		if err != nil {
			return nil, err
		}
		ids = append(ids, uint(v))
	}
	return ids, nil
}
