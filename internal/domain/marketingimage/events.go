package marketingimage

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	domainagg "github.com/yungbote/marketing-image-engine/internal/domain/aggregates"
)

// EventKind is the closed tag set for domain events.
type EventKind string

const (
	KindGenerated       EventKind = "generated"
	KindModified        EventKind = "modified"
	KindApproved        EventKind = "approved"
	KindRejected        EventKind = "rejected"
	KindRemoved         EventKind = "removed"
	KindMetadataChanged EventKind = "metadata-changed"
	KindResubmitted     EventKind = "resubmitted"
)

// EventKinds lists every kind in a stable order.
func EventKinds() []EventKind {
	return []EventKind{
		KindGenerated,
		KindModified,
		KindApproved,
		KindRejected,
		KindRemoved,
		KindMetadataChanged,
		KindResubmitted,
	}
}

const (
	DefaultDomainEventPrefix = "ai.dev.domainevent.marketing-image"
	DefaultEventSource       = "marketing-creative-agent"
	EventSchemaVersion       = "1.0"
)

// EventMeta controls how events raised by the aggregate are named.
type EventMeta struct {
	Prefix  string
	Source  string
	Version string
}

func DefaultEventMeta() EventMeta {
	return EventMeta{
		Prefix:  DefaultDomainEventPrefix,
		Source:  DefaultEventSource,
		Version: EventSchemaVersion,
	}
}

func (m EventMeta) withDefaults() EventMeta {
	def := DefaultEventMeta()
	if strings.TrimSpace(m.Prefix) == "" {
		m.Prefix = def.Prefix
	}
	if strings.TrimSpace(m.Source) == "" {
		m.Source = def.Source
	}
	if strings.TrimSpace(m.Version) == "" {
		m.Version = def.Version
	}
	return m
}

// TypeFor returns the fully qualified event type for kind.
func (m EventMeta) TypeFor(kind EventKind) string {
	return strings.TrimSuffix(m.withDefaults().Prefix, ".") + "." + string(kind)
}

// EventData is implemented by every payload; the kind it reports must match
// the event it travels in.
type EventData interface {
	EventKind() EventKind
}

// DomainEvent is an immutable record of one state change.
type DomainEvent struct {
	ID          uuid.UUID
	Kind        EventKind
	Type        string
	AggregateID uuid.UUID
	Data        EventData
	Source      string
	Version     string
	OccurredAt  time.Time
}

type GeneratedData struct {
	ID                   uuid.UUID            `json:"id"`
	URL                  string               `json:"url"`
	Description          string               `json:"description"`
	Keywords             Keywords             `json:"keywords"`
	GenerationModel      string               `json:"generation_model"`
	GenerationParameters GenerationParameters `json:"generation_parameters"`
	Dimensions           Dimensions           `json:"dimensions"`
	Size                 int64                `json:"size"`
	MimeType             string               `json:"mime_type"`
	Checksum             string               `json:"checksum"`
	CreatedBy            string               `json:"created_by"`
	CreatedAt            time.Time            `json:"created_at"`
	LastModifiedAt       time.Time            `json:"last_modified_at"`
}

func (GeneratedData) EventKind() EventKind { return KindGenerated }

type ModifiedData struct {
	ID                   uuid.UUID            `json:"id"`
	URL                  string               `json:"url"`
	Description          string               `json:"description"`
	Keywords             Keywords             `json:"keywords"`
	GenerationModel      string               `json:"generation_model"`
	GenerationParameters GenerationParameters `json:"generation_parameters"`
	Dimensions           Dimensions           `json:"dimensions"`
	Size                 int64                `json:"size"`
	MimeType             string               `json:"mime_type"`
	Checksum             string               `json:"checksum"`
	ModifiedBy           string               `json:"modified_by"`
	CreatedAt            time.Time            `json:"created_at"`
	LastModifiedAt       time.Time            `json:"last_modified_at"`
}

func (ModifiedData) EventKind() EventKind { return KindModified }

type ApprovedData struct {
	ID             uuid.UUID `json:"id"`
	URL            string    `json:"url"`
	Checksum       string    `json:"checksum"`
	ApprovedBy     string    `json:"approved_by"`
	ApprovedAt     time.Time `json:"approved_at"`
	CreatedAt      time.Time `json:"created_at"`
	LastModifiedAt time.Time `json:"last_modified_at"`
}

func (ApprovedData) EventKind() EventKind { return KindApproved }

type RejectedData struct {
	ID             uuid.UUID `json:"id"`
	URL            string    `json:"url"`
	Checksum       string    `json:"checksum"`
	RejectedBy     string    `json:"rejected_by"`
	RejectedAt     time.Time `json:"rejected_at"`
	CreatedAt      time.Time `json:"created_at"`
	LastModifiedAt time.Time `json:"last_modified_at"`
}

func (RejectedData) EventKind() EventKind { return KindRejected }

type RemovedData struct {
	ID        uuid.UUID `json:"id"`
	URL       string    `json:"url"`
	Size      int64     `json:"size"`
	Checksum  string    `json:"checksum"`
	RemovedBy string    `json:"removed_by"`
	RemovedAt time.Time `json:"removed_at"`
	CreatedAt time.Time `json:"created_at"`
}

func (RemovedData) EventKind() EventKind { return KindRemoved }

type ResubmittedData struct {
	ID            uuid.UUID `json:"id"`
	URL           string    `json:"url"`
	Checksum      string    `json:"checksum"`
	ResubmittedBy string    `json:"resubmitted_by"`
	ResubmittedAt time.Time `json:"resubmitted_at"`
}

func (ResubmittedData) EventKind() EventKind { return KindResubmitted }

// MetadataChanges is a sparse set of metadata edits. Nil means "not changed".
type MetadataChanges struct {
	Description *string     `json:"description,omitempty"`
	Keywords    *Keywords   `json:"keywords,omitempty"`
	Dimensions  *Dimensions `json:"dimensions,omitempty"`
	Size        *int64      `json:"size,omitempty"`
	URL         *string     `json:"url,omitempty"`
}

func (c MetadataChanges) IsEmpty() bool {
	return c.Description == nil && c.Keywords == nil && c.Dimensions == nil && c.Size == nil && c.URL == nil
}

// Fields names the set fields in a fixed order.
func (c MetadataChanges) Fields() []string {
	out := []string{}
	if c.Description != nil {
		out = append(out, "description")
	}
	if c.Keywords != nil {
		out = append(out, "keywords")
	}
	if c.Dimensions != nil {
		out = append(out, "dimensions")
	}
	if c.Size != nil {
		out = append(out, "size")
	}
	if c.URL != nil {
		out = append(out, "url")
	}
	return out
}

// MetadataChangedData flattens the changed fields next to the audit fields,
// so unchanged metadata has no key at all. Checksum is present only when the
// url moved, so the new object can be located.
type MetadataChangedData struct {
	ID        uuid.UUID `json:"id"`
	ChangedBy string    `json:"changed_by"`
	ChangedAt time.Time `json:"changed_at"`
	MetadataChanges
	Checksum string `json:"checksum,omitempty"`
}

func (MetadataChangedData) EventKind() EventKind { return KindMetadataChanged }

var eventDecoders = map[EventKind]func() EventData{
	KindGenerated:       func() EventData { return &GeneratedData{} },
	KindModified:        func() EventData { return &ModifiedData{} },
	KindApproved:        func() EventData { return &ApprovedData{} },
	KindRejected:        func() EventData { return &RejectedData{} },
	KindRemoved:         func() EventData { return &RemovedData{} },
	KindMetadataChanged: func() EventData { return &MetadataChangedData{} },
	KindResubmitted:     func() EventData { return &ResubmittedData{} },
}

// DecodeEventData rebuilds a typed payload from its stored JSON form.
func DecodeEventData(kind EventKind, raw []byte) (EventData, error) {
	const op = "marketingimage.DecodeEventData"
	newData, ok := eventDecoders[kind]
	if !ok {
		return nil, domainagg.NewError(domainagg.CodeUnsupportedEventType, op, fmt.Sprintf("unknown event kind %q", kind), nil)
	}
	ptr := newData()
	if err := json.Unmarshal(raw, ptr); err != nil {
		return nil, domainagg.Wrap(domainagg.CodeInternal, op, err)
	}
	return PayloadValue(ptr), nil
}

// PayloadValue returns the value form of a payload passed by pointer.
func PayloadValue(d EventData) EventData {
	switch v := d.(type) {
	case *GeneratedData:
		return *v
	case *ModifiedData:
		return *v
	case *ApprovedData:
		return *v
	case *RejectedData:
		return *v
	case *RemovedData:
		return *v
	case *MetadataChangedData:
		return *v
	case *ResubmittedData:
		return *v
	default:
		return d
	}
}
