package service

import (
	"context"

	"twym/internal/contacts/models"
	id "twym/pkg/domain"
	dErrors "twym/pkg/domain-errors"
)

// PairSide describes one direction of a bidirectional create: the owner who
// gains a contact and the draft describing the other participant.
type PairSide struct {
	OwnerID id.UserID
	Req     CreateContactRequest
}

// CreateEventPair creates both sides of an event check-in — the
// organizer's view of the guest and the guest's view of the organizer —
// atomically. If either side collides with an existing contact or fails to
// persist, neither side is kept and the whole operation is a BadRequest.
func (s *Service) CreateEventPair(ctx context.Context, eventID id.EventID, first, second PairSide) (*models.Contact, *models.Contact, error) {
	if eventID.IsNil() {
		return nil, nil, dErrors.New(dErrors.CodeBadRequest, "event_id is required")
	}
	first.Req.AcquiredVia = models.AcquiredEvent
	first.Req.EventID = &eventID
	second.Req.AcquiredVia = models.AcquiredEvent
	second.Req.EventID = &eventID

	return s.createPair(ctx, first, second, "event check-in failed: contact already exists")
}

// CreateLoungePair creates both sides of a lounge connection atomically,
// with the same all-or-nothing semantics as event check-in.
func (s *Service) CreateLoungePair(ctx context.Context, loungeID id.LoungeID, first, second PairSide) (*models.Contact, *models.Contact, error) {
	if loungeID.IsNil() {
		return nil, nil, dErrors.New(dErrors.CodeBadRequest, "lounge_session_id is required")
	}
	first.Req.AcquiredVia = models.AcquiredLounge
	first.Req.LoungeSessionID = &loungeID
	second.Req.AcquiredVia = models.AcquiredLounge
	second.Req.LoungeSessionID = &loungeID

	return s.createPair(ctx, first, second, "lounge connection failed: contact already exists")
}

func (s *Service) createPair(ctx context.Context, first, second PairSide, duplicateMsg string) (*models.Contact, *models.Contact, error) {
	var created [2]*models.Contact

	err := s.store.WithinTx(ctx, func(txCtx context.Context) error {
		for i, side := range [2]PairSide{first, second} {
			result, err := s.createOne(txCtx, side.OwnerID, side.Req)
			if err != nil {
				return err
			}
			if result.Duplicate {
				return dErrors.New(dErrors.CodeBadRequest, duplicateMsg)
			}
			created[i] = result.Contact
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	// Events go out only after the transaction commits.
	s.publishCreated(ctx, created[0])
	s.publishCreated(ctx, created[1])
	return created[0], created[1], nil
}
