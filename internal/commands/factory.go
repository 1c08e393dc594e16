package commands

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/marketing-image-engine/internal/domain/marketingimage"
)

// Factory stamps command envelopes with a shared type prefix and source.
type Factory struct {
	Prefix string
	Source string
	Now    func() time.Time
}

func NewFactory(prefix, source string) Factory {
	prefix = strings.TrimSuffix(strings.TrimSpace(prefix), ".")
	if prefix == "" {
		prefix = DefaultCommandPrefix
	}
	source = strings.TrimSpace(source)
	if source == "" {
		source = marketingimage.DefaultEventSource
	}
	return Factory{Prefix: prefix, Source: source}
}

func (f Factory) envelope(kind Kind, metadata map[string]string) Envelope {
	now := time.Now().UTC()
	if f.Now != nil {
		now = f.Now()
	}
	prefix := f.Prefix
	if prefix == "" {
		prefix = DefaultCommandPrefix
	}
	var md map[string]string
	if len(metadata) > 0 {
		md = make(map[string]string, len(metadata))
		for k, v := range metadata {
			md[k] = v
		}
	}
	return Envelope{
		ID:       uuid.New(),
		Type:     prefix + "." + string(kind),
		Source:   f.Source,
		Version:  SchemaVersion,
		IssuedAt: now,
		Metadata: md,
	}
}

func (f Factory) Generate(data GenerateData, metadata map[string]string) Generate {
	return Generate{Envelope: f.envelope(KindGenerate, metadata), Data: data}
}

func (f Factory) Modify(t Target, metadata map[string]string) Transition {
	return f.transition(KindModify, t, metadata)
}

func (f Factory) Approve(t Target, metadata map[string]string) Transition {
	return f.transition(KindApprove, t, metadata)
}

func (f Factory) Reject(t Target, metadata map[string]string) Transition {
	return f.transition(KindReject, t, metadata)
}

func (f Factory) Remove(t Target, metadata map[string]string) Transition {
	return f.transition(KindRemove, t, metadata)
}

func (f Factory) Resubmit(t Target, metadata map[string]string) Transition {
	return f.transition(KindResubmit, t, metadata)
}

func (f Factory) ChangeMetadata(t Target, changes marketingimage.MetadataChanges, metadata map[string]string) ChangeMetadata {
	return ChangeMetadata{
		Envelope: f.envelope(KindChangeMetadata, metadata),
		Data:     ChangeMetadataData{Target: t, Changes: changes},
	}
}

func (f Factory) transition(kind Kind, t Target, metadata map[string]string) Transition {
	return Transition{Envelope: f.envelope(kind, metadata), Data: t, kind: kind}
}
