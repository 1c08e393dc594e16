package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/marketing-image-engine/internal/data/aggregates"
	domainagg "github.com/yungbote/marketing-image-engine/internal/domain/aggregates"
	"github.com/yungbote/marketing-image-engine/internal/domain/marketingimage"
	"github.com/yungbote/marketing-image-engine/internal/http/response"
	"github.com/yungbote/marketing-image-engine/internal/platform/ctxutil"
	"github.com/yungbote/marketing-image-engine/internal/services"
)

const maxEventPage = 500

type MarketingImageHandler struct {
	driving services.DrivingService
	query   services.QueryService
}

func NewMarketingImageHandler(driving services.DrivingService, query services.QueryService) *MarketingImageHandler {
	return &MarketingImageHandler{driving: driving, query: query}
}

type generateRequest struct {
	Prompt        string                    `json:"prompt"`
	Description   string                    `json:"description"`
	Keywords      []string                  `json:"keywords"`
	MinDimensions marketingimage.Dimensions `json:"min_dimensions"`
	MaxDimensions marketingimage.Dimensions `json:"max_dimensions"`
	MimeType      string                    `json:"mime_type"`
	Metadata      map[string]string         `json:"metadata"`
}

type approvalRequest struct {
	Status string `json:"status"`
}

// POST /api/marketing-images
func (h *MarketingImageHandler) Generate(c *gin.Context) {
	var body generateRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.RespondError(c, http.StatusBadRequest, string(domainagg.CodeMalformedCommand), err)
		return
	}
	mime := strings.TrimSpace(body.MimeType)
	if mime == "" {
		mime = "image/png"
	}
	req := h.base(c, services.RequestGenerate, uuid.Nil)
	req.Prompt = body.Prompt
	req.Description = body.Description
	req.Keywords = body.Keywords
	req.MinDimensions = body.MinDimensions
	req.MaxDimensions = body.MaxDimensions
	req.MimeType = mime
	req.Metadata = body.Metadata
	h.handle(c, req, http.StatusCreated)
}

// POST /api/marketing-images/:id/review
func (h *MarketingImageHandler) SubmitForReview(c *gin.Context) {
	h.transition(c, services.RequestModify)
}

// POST /api/marketing-images/:id/resubmit
func (h *MarketingImageHandler) Resubmit(c *gin.Context) {
	h.transition(c, services.RequestResubmit)
}

// DELETE /api/marketing-images/:id
func (h *MarketingImageHandler) Remove(c *gin.Context) {
	h.transition(c, services.RequestRemove)
}

// POST /api/marketing-images/:id/approval
func (h *MarketingImageHandler) SetApprovalStatus(c *gin.Context) {
	id, ok := imageID(c)
	if !ok {
		return
	}
	var body approvalRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.RespondError(c, http.StatusBadRequest, string(domainagg.CodeMalformedCommand), err)
		return
	}
	req := h.base(c, services.RequestSetApprovalStatus, id)
	req.ApprovalStatus = body.Status
	h.handle(c, req, http.StatusOK)
}

// PATCH /api/marketing-images/:id/metadata
func (h *MarketingImageHandler) ChangeMetadata(c *gin.Context) {
	id, ok := imageID(c)
	if !ok {
		return
	}
	var changes marketingimage.MetadataChanges
	if err := c.ShouldBindJSON(&changes); err != nil {
		response.RespondError(c, http.StatusBadRequest, string(domainagg.CodeMalformedCommand), err)
		return
	}
	req := h.base(c, services.RequestChange, id)
	req.Changes = changes
	h.handle(c, req, http.StatusOK)
}

// GET /api/marketing-images/:id
func (h *MarketingImageHandler) Get(c *gin.Context) {
	id, ok := imageID(c)
	if !ok {
		return
	}
	snap, err := h.query.Get(c.Request.Context(), id)
	if err != nil {
		response.RespondDomainError(c, err, nil)
		return
	}
	response.RespondOK(c, gin.H{"image": snap})
}

// GET /api/marketing-images
func (h *MarketingImageHandler) List(c *gin.Context) {
	snaps, err := h.query.List(c.Request.Context())
	if err != nil {
		response.RespondDomainError(c, err, nil)
		return
	}
	response.RespondOK(c, gin.H{"images": snaps})
}

// GET /api/marketing-images/:id/events?kind=&from=&to=&limit=
func (h *MarketingImageHandler) History(c *gin.Context) {
	id, ok := imageID(c)
	if !ok {
		return
	}
	f, ok := eventFilter(c)
	if !ok {
		return
	}
	evs, err := h.query.History(c.Request.Context(), id, f)
	if err != nil {
		response.RespondDomainError(c, err, nil)
		return
	}
	response.RespondOK(c, gin.H{"events": eventViews(evs)})
}

// GET /api/marketing-image-events?kind=&from=&to=&limit=
func (h *MarketingImageHandler) EventsByKind(c *gin.Context) {
	f, ok := eventFilter(c)
	if !ok {
		return
	}
	if f.Kind == "" {
		response.RespondError(c, http.StatusBadRequest, string(domainagg.CodeMalformedCommand), errMissingKind)
		return
	}
	evs, err := h.query.EventsByKind(c.Request.Context(), f.Kind, f)
	if err != nil {
		response.RespondDomainError(c, err, nil)
		return
	}
	response.RespondOK(c, gin.H{"events": eventViews(evs)})
}

func (h *MarketingImageHandler) transition(c *gin.Context, typ string) {
	id, ok := imageID(c)
	if !ok {
		return
	}
	h.handle(c, h.base(c, typ, id), http.StatusOK)
}

func (h *MarketingImageHandler) base(c *gin.Context, typ string, id uuid.UUID) services.Request {
	req := services.Request{Type: typ, ImageID: id}
	if td := ctxutil.GetTraceData(c.Request.Context()); td != nil {
		req.RequestID = td.RequestID
		req.Requestor = td.Requestor
	}
	return req
}

func (h *MarketingImageHandler) handle(c *gin.Context, req services.Request, okStatus int) {
	res, err := h.driving.Handle(c.Request.Context(), req)
	if err != nil {
		var persisted any
		if res.ImageID != uuid.Nil {
			persisted = res
		}
		response.RespondDomainError(c, err, persisted)
		return
	}
	if okStatus == http.StatusCreated {
		response.RespondCreated(c, gin.H{"result": res})
		return
	}
	response.RespondOK(c, gin.H{"result": res})
}

func imageID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_image_id", err)
		return uuid.Nil, false
	}
	return id, true
}

type queryError string

func (e queryError) Error() string { return string(e) }

const errMissingKind = queryError("kind is required")

func eventFilter(c *gin.Context) (aggregates.EventFilter, bool) {
	var f aggregates.EventFilter
	f.Kind = marketingimage.EventKind(strings.TrimSpace(c.Query("kind")))
	for name, dst := range map[string]*time.Time{"from": &f.From, "to": &f.To} {
		raw := strings.TrimSpace(c.Query(name))
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_"+name, err)
			return f, false
		}
		*dst = t.UTC()
	}
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			response.RespondError(c, http.StatusBadRequest, "invalid_limit", queryError("limit must be a non-negative integer"))
			return f, false
		}
		f.Limit = n
	}
	if f.Limit == 0 || f.Limit > maxEventPage {
		f.Limit = maxEventPage
	}
	return f, true
}

type eventView struct {
	ID               uuid.UUID                `json:"id"`
	Kind             marketingimage.EventKind `json:"kind"`
	Type             string                   `json:"type"`
	AggregateID      uuid.UUID                `json:"aggregate_id"`
	Source           string                   `json:"source"`
	Version          string                   `json:"version"`
	OccurredAt       time.Time                `json:"occurred_at"`
	Sequence         int64                    `json:"sequence"`
	Data             any                      `json:"data"`
	PublishStatus    string                   `json:"publish_status"`
	PublishAttempts  int                      `json:"publish_attempts"`
	MessageID        string                   `json:"message_id,omitempty"`
	LastPublishError string                   `json:"last_publish_error,omitempty"`
	PublishedAt      *time.Time               `json:"published_at,omitempty"`
}

func eventViews(evs []aggregates.StoredEvent) []eventView {
	out := make([]eventView, 0, len(evs))
	for _, ev := range evs {
		out = append(out, eventView{
			ID:               ev.ID,
			Kind:             ev.Kind,
			Type:             ev.Type,
			AggregateID:      ev.AggregateID,
			Source:           ev.Source,
			Version:          ev.Version,
			OccurredAt:       ev.OccurredAt,
			Sequence:         ev.Sequence,
			Data:             marketingimage.PayloadValue(ev.Data),
			PublishStatus:    ev.PublishStatus,
			PublishAttempts:  ev.PublishAttempts,
			MessageID:        ev.MessageID,
			LastPublishError: ev.LastPublishError,
			PublishedAt:      ev.PublishedAt,
		})
	}
	return out
}
