package marketingimage

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	domainagg "github.com/yungbote/marketing-image-engine/internal/domain/aggregates"
)

// GenerateInput carries everything known once the image bytes are stored.
type GenerateInput struct {
	ID                   uuid.UUID
	URL                  string
	Description          string
	Keywords             []string
	GenerationModel      string
	GenerationParameters map[string]any
	Dimensions           Dimensions
	Size                 int64
	MimeType             string
	Checksum             string
	CreatedBy            string
}

// Factory creates and rehydrates aggregates with a shared event naming.
type Factory struct {
	Meta  EventMeta
	Clock func() time.Time
}

func NewFactory(meta EventMeta) Factory {
	return Factory{Meta: meta.withDefaults()}
}

func (f Factory) clock() func() time.Time {
	if f.Clock != nil {
		return f.Clock
	}
	return defaultClock
}

// Generate validates in and returns a new GENERATED aggregate holding one
// generated event.
func (f Factory) Generate(in GenerateInput) (*MarketingImage, error) {
	const op = "MarketingImage.Generate"
	id := in.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	ref := func(err error) error { return domainagg.WithRef(err, "", id.String()) }

	url, err := RequireURL(in.URL)
	if err != nil {
		return nil, ref(err)
	}
	description, err := RequireDescription(in.Description)
	if err != nil {
		return nil, ref(err)
	}
	model, err := RequireModel(in.GenerationModel)
	if err != nil {
		return nil, ref(err)
	}
	dims, err := NewDimensions(in.Dimensions.Width, in.Dimensions.Height)
	if err != nil {
		return nil, ref(err)
	}
	size, err := RequireSize(in.Size)
	if err != nil {
		return nil, ref(err)
	}
	mime, err := RequireMimeType(in.MimeType)
	if err != nil {
		return nil, ref(err)
	}
	checksum, err := RequireChecksum(in.Checksum)
	if err != nil {
		return nil, ref(err)
	}
	createdBy, err := RequireActor(in.CreatedBy)
	if err != nil {
		return nil, ref(err)
	}

	clock := f.clock()
	now := clock()
	m := &MarketingImage{
		id:                   id,
		url:                  url,
		description:          description,
		keywords:             NewKeywords(in.Keywords),
		generationModel:      model,
		generationParameters: GenerationParameters(in.GenerationParameters).Clone(),
		dimensions:           dims,
		size:                 size,
		mimeType:             mime,
		checksum:             checksum,
		status:               StatusGenerated,
		createdBy:            createdBy,
		createdAt:            now,
		lastModifiedAt:       now,
		meta:                 f.Meta.withDefaults(),
		clock:                clock,
	}
	if m.generationParameters == nil {
		m.generationParameters = GenerationParameters{}
	}
	m.raise(KindGenerated, GeneratedData{
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
		CreatedBy:            m.createdBy,
		CreatedAt:            m.createdAt,
		LastModifiedAt:       m.lastModifiedAt,
	}, now)
	return m, nil
}

// Snapshot is the flat, serializable state of an aggregate without its
// event buffer.
type Snapshot struct {
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
	Status               Status               `json:"status"`
	CreatedBy            string               `json:"created_by"`
	CreatedAt            time.Time            `json:"created_at"`
	LastModifiedAt       time.Time            `json:"last_modified_at"`
	Version              int                  `json:"version"`
}

func (m *MarketingImage) Snapshot() Snapshot {
	return Snapshot{
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
		Status:               m.status,
		CreatedBy:            m.createdBy,
		CreatedAt:            m.createdAt,
		LastModifiedAt:       m.lastModifiedAt,
		Version:              m.version,
	}
}

// Rehydrate rebuilds an aggregate from stored state. The buffer starts empty.
func (f Factory) Rehydrate(s Snapshot) (*MarketingImage, error) {
	const op = "MarketingImage.Rehydrate"
	if s.ID == uuid.Nil {
		return nil, domainagg.NewError(domainagg.CodeInternal, op, "snapshot has no id", nil)
	}
	status, err := ParseStatus(string(s.Status))
	if err != nil {
		return nil, domainagg.NewError(domainagg.CodeInternal, op, fmt.Sprintf("snapshot %s: %v", s.ID, err), err)
	}
	params := s.GenerationParameters.Clone()
	if params == nil {
		params = GenerationParameters{}
	}
	keywords := s.Keywords.Clone()
	if keywords == nil {
		keywords = Keywords{}
	}
	return &MarketingImage{
		id:                   s.ID,
		url:                  strings.TrimSpace(s.URL),
		description:          s.Description,
		keywords:             keywords,
		generationModel:      s.GenerationModel,
		generationParameters: params,
		dimensions:           s.Dimensions,
		size:                 s.Size,
		mimeType:             s.MimeType,
		checksum:             s.Checksum,
		status:               status,
		createdBy:            s.CreatedBy,
		createdAt:            s.CreatedAt.UTC(),
		lastModifiedAt:       s.LastModifiedAt.UTC(),
		version:              s.Version,
		meta:                 f.Meta.withDefaults(),
		clock:                f.clock(),
	}, nil
}
