package marketingimage

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	domainagg "github.com/yungbote/marketing-image-engine/internal/domain/aggregates"
)

// MarketingImage is the aggregate root for one generated image. The image
// bytes live in object storage; the aggregate holds metadata, status and the
// events raised since the last successful save.
type MarketingImage struct {
	id                   uuid.UUID
	url                  string
	description          string
	keywords             Keywords
	generationModel      string
	generationParameters GenerationParameters
	dimensions           Dimensions
	size                 int64
	mimeType             string
	checksum             string
	status               Status
	createdBy            string
	createdAt            time.Time
	lastModifiedAt       time.Time
	version              int

	meta    EventMeta
	clock   func() time.Time
	pending []DomainEvent
}

func defaultClock() time.Time { return time.Now().UTC().Truncate(time.Microsecond) }

func (m *MarketingImage) ID() uuid.UUID                              { return m.id }
func (m *MarketingImage) URL() string                                { return m.url }
func (m *MarketingImage) Description() string                        { return m.description }
func (m *MarketingImage) Keywords() Keywords                         { return m.keywords.Clone() }
func (m *MarketingImage) GenerationModel() string                    { return m.generationModel }
func (m *MarketingImage) GenerationParameters() GenerationParameters { return m.generationParameters.Clone() }
func (m *MarketingImage) Dimensions() Dimensions                     { return m.dimensions }
func (m *MarketingImage) Size() int64                                { return m.size }
func (m *MarketingImage) MimeType() string                           { return m.mimeType }
func (m *MarketingImage) Checksum() string                           { return m.checksum }
func (m *MarketingImage) Status() Status                             { return m.status }
func (m *MarketingImage) CreatedBy() string                          { return m.createdBy }
func (m *MarketingImage) CreatedAt() time.Time                       { return m.createdAt }
func (m *MarketingImage) LastModifiedAt() time.Time                  { return m.lastModifiedAt }

// Version is the persisted version this handle was loaded at. Zero means the
// aggregate has never been saved.
func (m *MarketingImage) Version() int { return m.version }

// PendingEvents returns a copy of the unsaved event buffer, oldest first.
func (m *MarketingImage) PendingEvents() []DomainEvent {
	out := make([]DomainEvent, len(m.pending))
	copy(out, m.pending)
	return out
}

// LatestEvent returns the newest buffered event.
func (m *MarketingImage) LatestEvent() (DomainEvent, bool) {
	if len(m.pending) == 0 {
		return DomainEvent{}, false
	}
	return m.pending[len(m.pending)-1], true
}

// HasPendingKind reports whether any buffered event has the given kind.
func (m *MarketingImage) HasPendingKind(kind EventKind) bool {
	for _, ev := range m.pending {
		if ev.Kind == kind {
			return true
		}
	}
	return false
}

// WithPersisted returns a new handle carrying version and an empty buffer.
// Only the repository calls this, after its transaction committed.
func (m *MarketingImage) WithPersisted(version int) *MarketingImage {
	cp := *m
	cp.keywords = m.keywords.Clone()
	cp.generationParameters = m.generationParameters.Clone()
	cp.pending = nil
	cp.version = version
	return &cp
}

// Modify submits the image for review.
func (m *MarketingImage) Modify(by string) error {
	const op = "MarketingImage.Modify"
	actor, err := m.begin(op, by, StatusReviewing)
	if err != nil {
		return err
	}
	now := m.touch(StatusReviewing)
	m.raise(KindModified, ModifiedData{
		ID:                   m.id,
		URL:                  m.url,
		Description:          m.description,
		Keywords:             m.keywords.Clone(),
		GenerationModel:      m.generationModel,
		GenerationParameters: m.generationParameters.Clone(),
		Dimensions:           m.dimensions,
		Size:                 m.size,
		MimeType:             m.mimeType,
		Checksum:             m.checksum,
		ModifiedBy:           actor,
		CreatedAt:            m.createdAt,
		LastModifiedAt:       now,
	}, now)
	return nil
}

func (m *MarketingImage) Approve(by string) error {
	const op = "MarketingImage.Approve"
	actor, err := m.begin(op, by, StatusAccepted)
	if err != nil {
		return err
	}
	now := m.touch(StatusAccepted)
	m.raise(KindApproved, ApprovedData{
		ID:             m.id,
		URL:            m.url,
		Checksum:       m.checksum,
		ApprovedBy:     actor,
		ApprovedAt:     now,
		CreatedAt:      m.createdAt,
		LastModifiedAt: now,
	}, now)
	return nil
}

func (m *MarketingImage) Reject(by string) error {
	const op = "MarketingImage.Reject"
	actor, err := m.begin(op, by, StatusRejected)
	if err != nil {
		return err
	}
	now := m.touch(StatusRejected)
	m.raise(KindRejected, RejectedData{
		ID:             m.id,
		URL:            m.url,
		Checksum:       m.checksum,
		RejectedBy:     actor,
		RejectedAt:     now,
		CreatedAt:      m.createdAt,
		LastModifiedAt: now,
	}, now)
	return nil
}

func (m *MarketingImage) Remove(by string) error {
	const op = "MarketingImage.Remove"
	actor, err := m.begin(op, by, StatusRemoved)
	if err != nil {
		return err
	}
	now := m.touch(StatusRemoved)
	m.raise(KindRemoved, RemovedData{
		ID:        m.id,
		URL:       m.url,
		Size:      m.size,
		Checksum:  m.checksum,
		RemovedBy: actor,
		RemovedAt: now,
		CreatedAt: m.createdAt,
	}, now)
	return nil
}

// Resubmit moves a rejected image back to GENERATED so it can be reviewed again.
func (m *MarketingImage) Resubmit(by string) error {
	const op = "MarketingImage.Resubmit"
	actor, err := m.begin(op, by, StatusGenerated)
	if err != nil {
		return err
	}
	now := m.touch(StatusGenerated)
	m.raise(KindResubmitted, ResubmittedData{
		ID:            m.id,
		URL:           m.url,
		Checksum:      m.checksum,
		ResubmittedBy: actor,
		ResubmittedAt: now,
	}, now)
	return nil
}

// ChangeMetadata applies the set fields of changes. Fields equal to the
// current value are dropped; if nothing differs the call fails and nothing
// is buffered. Status is unchanged, but removed images cannot be edited.
func (m *MarketingImage) ChangeMetadata(by string, changes MetadataChanges) error {
	const op = "MarketingImage.ChangeMetadata"
	actor, err := RequireActor(by)
	if err != nil {
		return m.ref(err)
	}
	if m.status.IsTerminal() {
		return m.invalidTransition(op, m.status)
	}
	diff, err := m.diff(changes)
	if err != nil {
		return m.ref(err)
	}
	if diff.IsEmpty() {
		return m.ref(domainagg.Malformed(op, "no metadata fields differ from current values"))
	}

	if diff.Description != nil {
		m.description = *diff.Description
	}
	if diff.Keywords != nil {
		m.keywords = diff.Keywords.Clone()
	}
	if diff.Dimensions != nil {
		m.dimensions = *diff.Dimensions
	}
	if diff.Size != nil {
		m.size = *diff.Size
	}
	if diff.URL != nil {
		m.url = *diff.URL
	}
	now := m.touch(m.status)

	data := MetadataChangedData{
		ID:              m.id,
		ChangedBy:       actor,
		ChangedAt:       now,
		MetadataChanges: diff,
	}
	if diff.URL != nil {
		data.Checksum = m.checksum
	}
	m.raise(KindMetadataChanged, data, now)
	return nil
}

func (m *MarketingImage) diff(in MetadataChanges) (MetadataChanges, error) {
	var out MetadataChanges
	if in.Description != nil {
		v, err := RequireDescription(*in.Description)
		if err != nil {
			return out, err
		}
		if v != m.description {
			out.Description = &v
		}
	}
	if in.Keywords != nil {
		v := NewKeywords(*in.Keywords)
		if len(v) == 0 {
			return out, domainagg.Malformed("marketingimage.keywords", "keywords must not be empty")
		}
		if !v.Equal(m.keywords) {
			out.Keywords = &v
		}
	}
	if in.Dimensions != nil {
		v, err := NewDimensions(in.Dimensions.Width, in.Dimensions.Height)
		if err != nil {
			return out, err
		}
		if v != m.dimensions {
			out.Dimensions = &v
		}
	}
	if in.Size != nil {
		v, err := RequireSize(*in.Size)
		if err != nil {
			return out, err
		}
		if v != m.size {
			out.Size = &v
		}
	}
	if in.URL != nil {
		v, err := RequireURL(*in.URL)
		if err != nil {
			return out, err
		}
		if v != m.url {
			out.URL = &v
		}
	}
	return out, nil
}

func (m *MarketingImage) begin(op, by string, next Status) (string, error) {
	actor, err := RequireActor(by)
	if err != nil {
		return "", m.ref(err)
	}
	if !m.status.CanTransitionTo(next) {
		return "", m.invalidTransition(op, next)
	}
	return actor, nil
}

func (m *MarketingImage) invalidTransition(op string, next Status) error {
	return &domainagg.Error{
		Code:    domainagg.CodeInvalidStateTransition,
		Op:      op,
		Message: fmt.Sprintf("cannot transition from %s to %s", m.status, next),
		ImageID: m.id.String(),
	}
}

func (m *MarketingImage) ref(err error) error {
	return domainagg.WithRef(err, "", m.id.String())
}

func (m *MarketingImage) now() time.Time {
	if m.clock != nil {
		return m.clock()
	}
	return defaultClock()
}

func (m *MarketingImage) touch(next Status) time.Time {
	now := m.now()
	m.status = next
	m.lastModifiedAt = now
	return now
}

func (m *MarketingImage) raise(kind EventKind, data EventData, at time.Time) {
	meta := m.meta.withDefaults()
	m.pending = append(m.pending, DomainEvent{
		ID:          uuid.New(),
		Kind:        kind,
		Type:        meta.TypeFor(kind),
		AggregateID: m.id,
		Data:        data,
		Source:      meta.Source,
		Version:     meta.Version,
		OccurredAt:  at,
	})
}
