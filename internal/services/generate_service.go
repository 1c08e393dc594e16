package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/yungbote/marketing-image-engine/internal/commands"
	domainagg "github.com/yungbote/marketing-image-engine/internal/domain/aggregates"
	"github.com/yungbote/marketing-image-engine/internal/domain/marketingimage"
	"github.com/yungbote/marketing-image-engine/internal/platform/gcp"
	"github.com/yungbote/marketing-image-engine/internal/platform/imaging"
)

// CommandService is a core service: it owns exactly one command kind.
type CommandService interface {
	Kind() commands.Kind
	Handle(ctx context.Context, cmd commands.Command) (commands.Result, error)
}

type generateService struct {
	core      corePipeline
	generator ImageGenerator
	store     ObjectStore
}

func NewGenerateService(deps CoreDeps, generator ImageGenerator, store ObjectStore) CommandService {
	return &generateService{
		core:      newCorePipeline(deps, "GenerateService"),
		generator: generator,
		store:     store,
	}
}

func (s *generateService) Kind() commands.Kind { return commands.KindGenerate }

func (s *generateService) Handle(ctx context.Context, c commands.Command) (commands.Result, error) {
	cmd, ok := c.(commands.Generate)
	if !ok {
		return commands.Result{}, wrongCommand("GenerateService", commands.KindGenerate, c)
	}

	imageID := uuid.New()
	var storedKey string
	step := func(ctx context.Context) (*marketingimage.MarketingImage, error) {
		const op = "GenerateService.generate"
		d := cmd.Data
		gen, err := s.generator.Generate(ctx, imaging.GenerateRequest{
			Prompt:        d.Prompt,
			MinDimensions: d.MinDimensions,
			MaxDimensions: d.MaxDimensions,
			MimeType:      d.MimeType,
		})
		if err != nil {
			return nil, asDomainError(op, domainagg.CodeInternal, err)
		}
		mime := gen.MimeType
		if strings.TrimSpace(mime) == "" {
			mime = d.MimeType
		}

		key := ObjectKey(d.RequestID, imageID, mime)
		url, checksum, err := s.store.Save(ctx, gen.Bytes, key, mime)
		if err != nil {
			return nil, asDomainError(op, domainagg.CodePersistenceFailure, err)
		}
		storedKey = key

		description := strings.TrimSpace(d.Description)
		if description == "" {
			description = strings.TrimSpace(d.Prompt)
		}
		img, err := s.core.deps.Factory.Generate(marketingimage.GenerateInput{
			ID:                   imageID,
			URL:                  url,
			Description:          description,
			Keywords:             d.Keywords,
			GenerationModel:      gen.Model,
			GenerationParameters: gen.Parameters,
			Dimensions:           gen.Dimensions,
			Size:                 int64(len(gen.Bytes)),
			MimeType:             mime,
			Checksum:             checksum,
			CreatedBy:            d.Requestor,
		})
		if err != nil {
			s.discard(ctx, storedKey)
			storedKey = ""
			return nil, err
		}
		return img, nil
	}
	undo := func(ctx context.Context) { s.discard(ctx, storedKey) }

	out, err := s.core.run(ctx, cmd, imageID, step, undo)
	if out.Image == nil {
		return commands.Result{}, err
	}
	return baseResult(cmd, out), err
}

// discard removes an object whose aggregate was never persisted.
func (s *generateService) discard(ctx context.Context, key string) {
	if key == "" {
		return
	}
	octx, cancel := s.core.outboxContext(ctx)
	defer cancel()
	if _, err := s.store.Remove(octx, key); err != nil {
		s.core.log.Warn("Failed to remove orphaned image object", "key", key, "error", err)
		return
	}
	s.core.log.Debug("Removed orphaned image object", "key", key)
}

// ObjectKey names the stored object for a generated image:
// <request id>/<image id>.<ext>. The image id keeps retried requests from
// overwriting each other.
func ObjectKey(requestID string, imageID uuid.UUID, mime string) string {
	return fmt.Sprintf("%s/%s.%s", sanitizeKeySegment(requestID), imageID.String(), gcp.ExtensionForMimeType(mime))
}

func sanitizeKeySegment(raw string) string {
	raw = strings.TrimSpace(raw)
	var b strings.Builder
	for _, r := range raw {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}
	out := strings.Trim(b.String(), ".")
	if out == "" {
		return "request"
	}
	return out
}

// asDomainError keeps coded errors and files everything else under
// fallback, except context errors which are cancellations.
func asDomainError(op string, fallback domainagg.ErrorCode, err error) error {
	if err == nil {
		return nil
	}
	if domainagg.CodeOf(err) != "" {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return domainagg.Wrap(domainagg.CodeOperationCancelled, op, err)
	}
	return domainagg.Wrap(fallback, op, err)
}

func wrongCommand(service string, want commands.Kind, got commands.Command) error {
	gotKind := "<nil>"
	if got != nil {
		gotKind = string(got.Kind())
	}
	return domainagg.Malformed(service+".Handle", fmt.Sprintf("expected %s command, got %s", want, gotKind))
}
