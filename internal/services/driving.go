package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/yungbote/marketing-image-engine/internal/commands"
	domainagg "github.com/yungbote/marketing-image-engine/internal/domain/aggregates"
	"github.com/yungbote/marketing-image-engine/internal/domain/marketingimage"
	"github.com/yungbote/marketing-image-engine/internal/platform/logger"
)

// Request types accepted by DrivingService.
const (
	RequestGenerate          = "generate"
	RequestModify            = "modify"
	RequestRemove            = "remove"
	RequestChange            = "change"
	RequestSetApprovalStatus = "set_approval_status"
	RequestResubmit          = "resubmit"
)

// Approval values for set_approval_status.
const (
	ApprovalApproved = "approved"
	ApprovalRejected = "rejected"
)

// Request is the transport-neutral shape of an inbound action.
type Request struct {
	Type      string
	RequestID string
	Requestor string
	ImageID   uuid.UUID

	// generate
	Prompt        string
	Description   string
	Keywords      []string
	MinDimensions marketingimage.Dimensions
	MaxDimensions marketingimage.Dimensions
	MimeType      string

	// set_approval_status
	ApprovalStatus string

	// change
	Changes marketingimage.MetadataChanges

	Metadata map[string]string
}

// CommandRouter is the dispatch side of commands.Dispatcher.
type CommandRouter interface {
	Dispatch(ctx context.Context, kind commands.Kind, cmd commands.Command) (commands.Result, error)
}

var _ CommandRouter = (*commands.Dispatcher)(nil)

// DrivingService turns inbound requests into commands and routes them to
// their core service.
type DrivingService interface {
	Handle(ctx context.Context, req Request) (commands.Result, error)
	Command(req Request) (commands.Command, error)
}

type drivingService struct {
	log        *logger.Logger
	factory    commands.Factory
	dispatcher CommandRouter
}

func NewDrivingService(log *logger.Logger, factory commands.Factory, dispatcher CommandRouter) DrivingService {
	return &drivingService{
		log:        log.With("service", "DrivingService"),
		factory:    factory,
		dispatcher: dispatcher,
	}
}

func (s *drivingService) Handle(ctx context.Context, req Request) (commands.Result, error) {
	cmd, err := s.Command(req)
	if err != nil {
		return commands.Result{}, err
	}
	env := cmd.Meta()
	s.log.Debug("Dispatching command",
		"command_type", env.Type,
		"command_id", env.ID.String(),
		"request_id", req.RequestID,
	)
	return s.dispatcher.Dispatch(ctx, cmd.Kind(), cmd)
}

// Command builds the command for req without dispatching it.
func (s *drivingService) Command(req Request) (commands.Command, error) {
	const op = "DrivingService.Command"
	target := commands.Target{RequestID: req.RequestID, Requestor: req.Requestor, ImageID: req.ImageID}

	switch strings.ToLower(strings.TrimSpace(req.Type)) {
	case RequestGenerate:
		return s.factory.Generate(commands.GenerateData{
			RequestID:     req.RequestID,
			Requestor:     req.Requestor,
			Prompt:        req.Prompt,
			Description:   req.Description,
			Keywords:      req.Keywords,
			MinDimensions: req.MinDimensions,
			MaxDimensions: req.MaxDimensions,
			MimeType:      req.MimeType,
		}, req.Metadata), nil
	case RequestModify:
		return s.factory.Modify(target, req.Metadata), nil
	case RequestRemove:
		return s.factory.Remove(target, req.Metadata), nil
	case RequestResubmit:
		return s.factory.Resubmit(target, req.Metadata), nil
	case RequestChange:
		return s.factory.ChangeMetadata(target, req.Changes, req.Metadata), nil
	case RequestSetApprovalStatus:
		switch strings.ToLower(strings.TrimSpace(req.ApprovalStatus)) {
		case ApprovalApproved:
			return s.factory.Approve(target, req.Metadata), nil
		case ApprovalRejected:
			return s.factory.Reject(target, req.Metadata), nil
		default:
			return nil, withImageRef(domainagg.Malformed(op, fmt.Sprintf("approval status must be %q or %q, got %q", ApprovalApproved, ApprovalRejected, req.ApprovalStatus)), req.ImageID)
		}
	default:
		return nil, withImageRef(domainagg.Malformed(op, fmt.Sprintf("unknown request type %q", req.Type)), req.ImageID)
	}
}

func withImageRef(err error, id uuid.UUID) error {
	if id == uuid.Nil {
		return err
	}
	return domainagg.WithRef(err, "", id.String())
}
