package commands

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/marketing-image-engine/internal/dispatch"
	domainagg "github.com/yungbote/marketing-image-engine/internal/domain/aggregates"
	"github.com/yungbote/marketing-image-engine/internal/domain/marketingimage"
)

// Kind is the closed set of command tags.
type Kind string

const (
	KindGenerate       Kind = "generate"
	KindModify         Kind = "modify"
	KindApprove        Kind = "approve"
	KindReject         Kind = "reject"
	KindRemove         Kind = "remove"
	KindChangeMetadata Kind = "change-metadata"
	KindResubmit       Kind = "resubmit"
)

func Kinds() []Kind {
	return []Kind{KindGenerate, KindModify, KindApprove, KindReject, KindRemove, KindChangeMetadata, KindResubmit}
}

const (
	DefaultCommandPrefix = "ai.dev.command.marketing-image"
	SchemaVersion        = "1.0"
)

// Envelope is the metadata every command carries.
type Envelope struct {
	ID       uuid.UUID         `json:"id"`
	Type     string            `json:"type"`
	Source   string            `json:"source"`
	Version  string            `json:"version"`
	IssuedAt time.Time         `json:"issued_at"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Command is implemented by every command object.
type Command interface {
	Kind() Kind
	Meta() Envelope
	// Correlation returns the request id and requestor.
	Correlation() (requestID, requestor string)
	Validate() error
}

// Dispatcher routes a command to its single core service.
type Dispatcher = dispatch.Registry[Kind, Command, Result]

func NewDispatcher() *Dispatcher {
	return dispatch.NewRegistry[Kind, Command, Result]("CommandDispatcher")
}

// Target identifies the request and the image a command acts on.
type Target struct {
	RequestID string    `json:"request_id"`
	Requestor string    `json:"requestor"`
	ImageID   uuid.UUID `json:"image_id"`
}

func (t Target) validate(op string, needImage bool) error {
	if strings.TrimSpace(t.RequestID) == "" {
		return domainagg.Malformed(op, "request_id is required")
	}
	if strings.TrimSpace(t.Requestor) == "" {
		return domainagg.Malformed(op, "requestor is required")
	}
	if needImage && t.ImageID == uuid.Nil {
		return domainagg.Malformed(op, "image_id is required")
	}
	return nil
}

type GenerateData struct {
	RequestID     string                    `json:"request_id"`
	Requestor     string                    `json:"requestor"`
	Prompt        string                    `json:"prompt"`
	Description   string                    `json:"description"`
	Keywords      []string                  `json:"keywords"`
	MinDimensions marketingimage.Dimensions `json:"min_dimensions"`
	MaxDimensions marketingimage.Dimensions `json:"max_dimensions"`
	MimeType      string                    `json:"mime_type"`
}

type Generate struct {
	Envelope
	Data GenerateData `json:"data"`
}

func (c Generate) Kind() Kind                    { return KindGenerate }
func (c Generate) Meta() Envelope                { return c.Envelope }
func (c Generate) Correlation() (string, string) { return c.Data.RequestID, c.Data.Requestor }

func (c Generate) Validate() error {
	const op = "commands.Generate"
	if err := (Target{RequestID: c.Data.RequestID, Requestor: c.Data.Requestor}).validate(op, false); err != nil {
		return withCommandRef(err, c.Envelope, "")
	}
	if strings.TrimSpace(c.Data.Prompt) == "" {
		return withCommandRef(domainagg.Malformed(op, "prompt is required"), c.Envelope, "")
	}
	if _, err := marketingimage.RequireMimeType(c.Data.MimeType); err != nil {
		return withCommandRef(err, c.Envelope, "")
	}
	lo, hi := c.Data.MinDimensions, c.Data.MaxDimensions
	if lo.Width < 0 || lo.Height < 0 || hi.Width < 0 || hi.Height < 0 {
		return withCommandRef(domainagg.Malformed(op, "dimensions must not be negative"), c.Envelope, "")
	}
	if !hi.IsZero() && (lo.Width > hi.Width || lo.Height > hi.Height) {
		return withCommandRef(domainagg.Malformed(op, "min_dimensions exceed max_dimensions"), c.Envelope, "")
	}
	return nil
}

// Transition is shared by the commands that only move an image between
// statuses.
type Transition struct {
	Envelope
	Data Target `json:"data"`
	kind Kind
}

func (c Transition) Kind() Kind                    { return c.kind }
func (c Transition) Meta() Envelope                { return c.Envelope }
func (c Transition) Correlation() (string, string) { return c.Data.RequestID, c.Data.Requestor }

func (c Transition) Validate() error {
	op := "commands." + string(c.kind)
	switch c.kind {
	case KindModify, KindApprove, KindReject, KindRemove, KindResubmit:
	default:
		return withCommandRef(domainagg.Malformed(op, "not a transition command"), c.Envelope, c.Data.ImageID.String())
	}
	return withCommandRef(c.Data.validate(op, true), c.Envelope, c.Data.ImageID.String())
}

type ChangeMetadataData struct {
	Target
	Changes marketingimage.MetadataChanges `json:"changes"`
}

type ChangeMetadata struct {
	Envelope
	Data ChangeMetadataData `json:"data"`
}

func (c ChangeMetadata) Kind() Kind                    { return KindChangeMetadata }
func (c ChangeMetadata) Meta() Envelope                { return c.Envelope }
func (c ChangeMetadata) Correlation() (string, string) { return c.Data.RequestID, c.Data.Requestor }

func (c ChangeMetadata) Validate() error {
	const op = "commands.ChangeMetadata"
	if err := c.Data.Target.validate(op, true); err != nil {
		return withCommandRef(err, c.Envelope, c.Data.ImageID.String())
	}
	if c.Data.Changes.IsEmpty() {
		return withCommandRef(domainagg.Malformed(op, "at least one metadata field is required"), c.Envelope, c.Data.ImageID.String())
	}
	return nil
}

func withCommandRef(err error, env Envelope, imageID string) error {
	if err == nil {
		return nil
	}
	cmdID := ""
	if env.ID != uuid.Nil {
		cmdID = env.ID.String()
	}
	if imageID == uuid.Nil.String() {
		imageID = ""
	}
	return domainagg.WithRef(err, cmdID, imageID)
}
