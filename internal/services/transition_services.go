package services

import (
	"context"

	"github.com/yungbote/marketing-image-engine/internal/commands"
	domainagg "github.com/yungbote/marketing-image-engine/internal/domain/aggregates"
	"github.com/yungbote/marketing-image-engine/internal/domain/marketingimage"
	"github.com/yungbote/marketing-image-engine/internal/integration"
)

// transitionService handles the commands that only move an image between
// statuses. The aggregate enforces which moves are legal.
type transitionService struct {
	core   corePipeline
	kind   commands.Kind
	mutate func(img *marketingimage.MarketingImage, by string) error
}

func newTransitionService(deps CoreDeps, name string, kind commands.Kind, mutate func(*marketingimage.MarketingImage, string) error) *transitionService {
	return &transitionService{core: newCorePipeline(deps, name), kind: kind, mutate: mutate}
}

// NewModifyService submits a GENERATED image for review.
func NewModifyService(deps CoreDeps) CommandService {
	return newTransitionService(deps, "ModifyService", commands.KindModify, (*marketingimage.MarketingImage).Modify)
}

func NewApproveService(deps CoreDeps) CommandService {
	return newTransitionService(deps, "ApproveService", commands.KindApprove, (*marketingimage.MarketingImage).Approve)
}

func NewRejectService(deps CoreDeps) CommandService {
	return newTransitionService(deps, "RejectService", commands.KindReject, (*marketingimage.MarketingImage).Reject)
}

// NewResubmitService returns a REJECTED image to GENERATED.
func NewResubmitService(deps CoreDeps) CommandService {
	return newTransitionService(deps, "ResubmitService", commands.KindResubmit, (*marketingimage.MarketingImage).Resubmit)
}

func (s *transitionService) Kind() commands.Kind { return s.kind }

func (s *transitionService) Handle(ctx context.Context, c commands.Command) (commands.Result, error) {
	cmd, ok := c.(commands.Transition)
	if !ok || cmd.Kind() != s.kind {
		return commands.Result{}, wrongCommand(s.core.name, s.kind, c)
	}
	out, err := s.execute(ctx, cmd)
	if out.Image == nil {
		return commands.Result{}, err
	}
	return baseResult(cmd, out), err
}

func (s *transitionService) execute(ctx context.Context, cmd commands.Transition) (coreOutcome, error) {
	by := cmd.Data.Requestor
	step := s.core.load(cmd.Data.ImageID, func(img *marketingimage.MarketingImage) error {
		return s.mutate(img, by)
	})
	return s.core.run(ctx, cmd, cmd.Data.ImageID, step, nil)
}

// removeService marks an image REMOVED and then deletes its stored object.
// The object delete is best effort: the aggregate is already gone.
type removeService struct {
	*transitionService
	store ObjectStore
}

func NewRemoveService(deps CoreDeps, store ObjectStore) CommandService {
	return &removeService{
		transitionService: newTransitionService(deps, "RemoveService", commands.KindRemove, (*marketingimage.MarketingImage).Remove),
		store:             store,
	}
}

func (s *removeService) Handle(ctx context.Context, c commands.Command) (commands.Result, error) {
	cmd, ok := c.(commands.Transition)
	if !ok || cmd.Kind() != commands.KindRemove {
		return commands.Result{}, wrongCommand(s.core.name, commands.KindRemove, c)
	}
	out, err := s.execute(ctx, cmd)
	if out.Image == nil {
		return commands.Result{}, err
	}
	s.deleteObject(ctx, out.Image.URL())
	return baseResult(cmd, out), err
}

func (s *removeService) deleteObject(ctx context.Context, url string) {
	if s.store == nil || url == "" {
		return
	}
	key, err := s.store.KeyFromURL(url)
	if err != nil {
		s.core.log.Warn("Cannot derive object key for removed image", "url", url, "error", err)
		return
	}
	octx, cancel := s.core.outboxContext(ctx)
	defer cancel()
	removed, err := s.store.Remove(octx, key)
	if err != nil {
		s.core.log.Warn("Failed to delete object for removed image", "key", key, "error", err)
		return
	}
	s.core.log.Debug("Deleted object for removed image", "key", key, "existed", removed)
}

type changeMetadataService struct {
	core    corePipeline
	locator integration.Locator
}

// NewChangeMetadataService checks a new url against loc so every later
// event of the image can still carry a claim check.
func NewChangeMetadataService(deps CoreDeps, loc integration.Locator) CommandService {
	return &changeMetadataService{core: newCorePipeline(deps, "ChangeMetadataService"), locator: loc}
}

func (s *changeMetadataService) Kind() commands.Kind { return commands.KindChangeMetadata }

func (s *changeMetadataService) Handle(ctx context.Context, c commands.Command) (commands.Result, error) {
	cmd, ok := c.(commands.ChangeMetadata)
	if !ok {
		return commands.Result{}, wrongCommand(s.core.name, commands.KindChangeMetadata, c)
	}
	by, changes := cmd.Data.Requestor, cmd.Data.Changes
	step := s.core.load(cmd.Data.ImageID, func(img *marketingimage.MarketingImage) error {
		if changes.URL != nil {
			if _, err := integration.ClaimCheckFromURL(s.locator, *changes.URL, img.Checksum()); err != nil {
				return domainagg.NewError(domainagg.CodeMalformedCommand, s.core.name, "url does not address an object in the image bucket", err)
			}
		}
		return img.ChangeMetadata(by, changes)
	})
	out, err := s.core.run(ctx, cmd, cmd.Data.ImageID, step, nil)
	if out.Image == nil {
		return commands.Result{}, err
	}
	res := baseResult(cmd, out)
	if data, ok := marketingimage.PayloadValue(out.Event.Data).(marketingimage.MetadataChangedData); ok {
		changed := data.MetadataChanges
		res.ChangedMetadata = &changed
	}
	return res, err
}

// RegisterCommandServices binds each service to its command kind.
func RegisterCommandServices(d *commands.Dispatcher, svcs ...CommandService) error {
	for _, svc := range svcs {
		if err := d.Register(svc.Kind(), svc); err != nil {
			return err
		}
	}
	return nil
}
