package integration

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	domainagg "github.com/yungbote/marketing-image-engine/internal/domain/aggregates"
	"github.com/yungbote/marketing-image-engine/internal/domain/marketingimage"
)

// Factory turns domain events into integration events.
type Factory struct {
	Prefix  string
	Source  string
	Locator Locator
}

func NewFactory(prefix, source string, loc Locator) Factory {
	prefix = strings.TrimSuffix(strings.TrimSpace(prefix), ".")
	if prefix == "" {
		prefix = DefaultIntegrationEventPrefix
	}
	source = strings.TrimSpace(source)
	if source == "" {
		source = marketingimage.DefaultEventSource
	}
	if strings.TrimSpace(loc.Provider) == "" {
		loc.Provider = ProviderGCS
	}
	return Factory{Prefix: prefix, Source: source, Locator: loc}
}

type converter func(f Factory, data marketingimage.EventData) (any, error)

var converters = map[marketingimage.EventKind]converter{
	marketingimage.KindGenerated: func(f Factory, data marketingimage.EventData) (any, error) {
		d := data.(marketingimage.GeneratedData)
		token, err := f.token(d.URL, d.Checksum)
		if err != nil {
			return nil, err
		}
		return GeneratedPayload{
			ID:              d.ID,
			URL:             d.URL,
			Description:     d.Description,
			Dimensions:      d.Dimensions,
			Size:            d.Size,
			MimeType:        d.MimeType,
			Checksum:        d.Checksum,
			CreatedBy:       d.CreatedBy,
			CreatedAt:       d.CreatedAt,
			ClaimCheckToken: token,
		}, nil
	},
	marketingimage.KindModified: func(f Factory, data marketingimage.EventData) (any, error) {
		d := data.(marketingimage.ModifiedData)
		token, err := f.token(d.URL, d.Checksum)
		if err != nil {
			return nil, err
		}
		return ModifiedPayload{ID: d.ID, ModifiedBy: d.ModifiedBy, ModifiedAt: d.LastModifiedAt, ClaimCheckToken: token}, nil
	},
	marketingimage.KindApproved: func(f Factory, data marketingimage.EventData) (any, error) {
		d := data.(marketingimage.ApprovedData)
		token, err := f.token(d.URL, d.Checksum)
		if err != nil {
			return nil, err
		}
		return ApprovedPayload{ID: d.ID, ApprovedBy: d.ApprovedBy, ApprovedAt: d.ApprovedAt, ClaimCheckToken: token}, nil
	},
	marketingimage.KindRejected: func(f Factory, data marketingimage.EventData) (any, error) {
		d := data.(marketingimage.RejectedData)
		token, err := f.token(d.URL, d.Checksum)
		if err != nil {
			return nil, err
		}
		return RejectedPayload{ID: d.ID, RejectedBy: d.RejectedBy, RejectedAt: d.RejectedAt, ClaimCheckToken: token}, nil
	},
	marketingimage.KindResubmitted: func(f Factory, data marketingimage.EventData) (any, error) {
		d := data.(marketingimage.ResubmittedData)
		token, err := f.token(d.URL, d.Checksum)
		if err != nil {
			return nil, err
		}
		return ResubmittedPayload{ID: d.ID, ResubmittedBy: d.ResubmittedBy, ResubmittedAt: d.ResubmittedAt, ClaimCheckToken: token}, nil
	},
	marketingimage.KindRemoved: func(_ Factory, data marketingimage.EventData) (any, error) {
		d := data.(marketingimage.RemovedData)
		return RemovedPayload{ID: d.ID, RemovedBy: d.RemovedBy, RemovedAt: d.RemovedAt}, nil
	},
	marketingimage.KindMetadataChanged: func(f Factory, data marketingimage.EventData) (any, error) {
		d := data.(marketingimage.MetadataChangedData)
		out := MetadataChangedPayload{
			ID:              d.ID,
			ChangedBy:       d.ChangedBy,
			ChangedAt:       d.ChangedAt,
			ChangedMetadata: d.MetadataChanges,
		}
		if d.URL != nil {
			token, err := f.token(*d.URL, d.Checksum)
			if err != nil {
				return nil, err
			}
			out.ClaimCheckToken = token
		}
		return out, nil
	},
}

// CreateFromDomainEvent builds the integration event for ev. Kinds without a
// converter fail with UnsupportedEventType.
func (f Factory) CreateFromDomainEvent(ev marketingimage.DomainEvent) (IntegrationEvent, error) {
	const op = "integration.CreateFromDomainEvent"
	conv, ok := converters[ev.Kind]
	if !ok {
		return IntegrationEvent{}, domainagg.NewError(domainagg.CodeUnsupportedEventType, op, fmt.Sprintf("no integration mapping for %q", ev.Kind), nil)
	}
	if ev.Data == nil || ev.Data.EventKind() != ev.Kind {
		return IntegrationEvent{}, domainagg.WithRef(
			domainagg.NewError(domainagg.CodeInternal, op, fmt.Sprintf("payload does not match event kind %q", ev.Kind), nil),
			"", ev.AggregateID.String(),
		)
	}
	data, err := conv(f, marketingimage.PayloadValue(ev.Data))
	if err != nil {
		return IntegrationEvent{}, domainagg.WithRef(domainagg.Wrap(domainagg.CodeInternal, op, err), "", ev.AggregateID.String())
	}
	prefix := f.Prefix
	if prefix == "" {
		prefix = DefaultIntegrationEventPrefix
	}
	return IntegrationEvent{
		ID:          IntegrationEventID(ev.ID),
		Type:        prefix + "." + string(ev.Kind),
		Source:      f.Source,
		Version:     ev.Version,
		SpecVersion: SpecVersion,
		OccurredAt:  ev.OccurredAt,
		Data:        data,
		Metadata: map[string]any{
			MetaDomainEventID:   ev.ID.String(),
			MetaDomainEventType: ev.Type,
			MetaAggregateID:     ev.AggregateID.String(),
		},
	}, nil
}

// IntegrationEventID derives a stable id from the domain event id, so a
// republished event keeps the id consumers may already have seen.
func IntegrationEventID(domainEventID uuid.UUID) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("urn:marketing-image:integration-event:"+domainEventID.String()))
}

func (f Factory) token(rawURL, checksum string) (string, error) {
	c, err := ClaimCheckFromURL(f.Locator, rawURL, checksum)
	if err != nil {
		return "", err
	}
	return c.Format(), nil
}
