package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"widget-sync-backend/internal/models"
	"widget-sync-backend/internal/repository"

	"github.com/rs/zerolog/log"
)

var (
	// ErrEmptyUsername is returned when pairing is attempted without a username.
	ErrEmptyUsername = errors.New("username cannot be empty")
	// ErrPartnerNotFound is returned when the partner code resolves to no account.
	ErrPartnerNotFound = errors.New("partner code not found")
	// ErrSelfPair is returned when a user enters their own code.
	ErrSelfPair = errors.New("cannot pair with yourself")
	// ErrNotPaired is returned by Unpair when no partner link exists.
	ErrNotPaired = errors.New("not paired")
)

// PairingService links two accounts bidirectionally via code exchange.
// Whichever side enters the other's code first completes the link for both:
// there is no request/accept handshake.
type PairingService struct {
	users UserStore
}

// NewPairingService creates a new pairing service
func NewPairingService(users UserStore) *PairingService {
	return &PairingService{users: users}
}

// PairResult is the outcome of a Pair call. Solo is true when no partner
// code was given: the username was saved but no link was created.
type PairResult struct {
	Solo    bool                `json:"solo"`
	Partner *models.PartnerInfo `json:"partner,omitempty"`
}

// CheckExistingPairing returns the partner info for an already-paired user,
// or nil when the user has no partner. A link whose other side is missing or
// points elsewhere is treated as not paired: the dangling half is cleared so
// a crash between the two pairing writes cannot wedge an account. Symmetric
// links are the invariant; this sweep is the repair path for the window in
// which the two non-transactional writes can be observed half-done.
func (s *PairingService) CheckExistingPairing(ctx context.Context, selfID string) (*models.PartnerInfo, error) {
	self, err := s.users.GetByID(ctx, selfID)
	if err != nil {
		return nil, fmt.Errorf("failed to load account: %w", err)
	}

	if self.PartnerUID == nil || *self.PartnerUID == "" {
		return nil, nil
	}
	partnerID := *self.PartnerUID

	partner, err := s.users.GetByID(ctx, partnerID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			log.Warn().
				Str("user_id", selfID).
				Str("partner_id", partnerID).
				Msg("Partner record missing, clearing dangling link")
			if clearErr := s.users.ClearPartner(ctx, selfID); clearErr != nil {
				return nil, fmt.Errorf("failed to clear dangling link: %w", clearErr)
			}
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load partner: %w", err)
	}

	if partner.PartnerUID == nil || *partner.PartnerUID != selfID {
		log.Warn().
			Str("user_id", selfID).
			Str("partner_id", partnerID).
			Msg("Asymmetric partner link detected, clearing")
		if clearErr := s.users.ClearPartner(ctx, selfID); clearErr != nil {
			return nil, fmt.Errorf("failed to clear asymmetric link: %w", clearErr)
		}
		return nil, nil
	}

	return &models.PartnerInfo{
		PartnerID:       partner.ID,
		PartnerUsername: displayName(partner),
	}, nil
}

// Pair saves the caller's username and, when a partner code is given, links
// the two accounts. The username write always happens first and is never
// rolled back: a failed code lookup still leaves the name saved. A blank
// code completes in solo mode. Both inputs are trimmed; a whitespace-only
// username counts as empty.
//
// The link itself is two sequential writes, self first, then partner. A
// crash between them leaves an asymmetric link that the next
// CheckExistingPairing repairs.
func (s *PairingService) Pair(ctx context.Context, selfID, username, partnerCode string) (*PairResult, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, ErrEmptyUsername
	}

	if err := s.users.UpdateUsername(ctx, selfID, username); err != nil {
		return nil, fmt.Errorf("failed to save username: %w", err)
	}

	partnerCode = strings.TrimSpace(partnerCode)
	if partnerCode == "" {
		return &PairResult{Solo: true}, nil
	}

	partner, err := s.users.GetByCode(ctx, partnerCode)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrPartnerNotFound
		}
		return nil, fmt.Errorf("failed to look up partner code: %w", err)
	}

	if partner.ID == selfID {
		return nil, ErrSelfPair
	}

	if err := s.users.SetPartner(ctx, selfID, partner.ID); err != nil {
		return nil, fmt.Errorf("failed to link account: %w", err)
	}
	if err := s.users.SetPartner(ctx, partner.ID, selfID); err != nil {
		return nil, fmt.Errorf("failed to link partner: %w", err)
	}

	log.Info().
		Str("user_id", selfID).
		Str("partner_id", partner.ID).
		Msg("Pair established")

	return &PairResult{
		Partner: &models.PartnerInfo{
			PartnerID:       partner.ID,
			PartnerUsername: displayName(partner),
		},
	}, nil
}

// Unpair dissolves an existing link from either side. Like pairing, this is
// two independent writes, self cleared first.
func (s *PairingService) Unpair(ctx context.Context, selfID string) (string, error) {
	self, err := s.users.GetByID(ctx, selfID)
	if err != nil {
		return "", fmt.Errorf("failed to load account: %w", err)
	}

	if self.PartnerUID == nil || *self.PartnerUID == "" {
		return "", ErrNotPaired
	}
	partnerID := *self.PartnerUID

	if err := s.users.ClearPartner(ctx, selfID); err != nil {
		return "", fmt.Errorf("failed to unlink account: %w", err)
	}
	if err := s.users.ClearPartner(ctx, partnerID); err != nil {
		return "", fmt.Errorf("failed to unlink partner: %w", err)
	}

	log.Info().
		Str("user_id", selfID).
		Str("partner_id", partnerID).
		Msg("Pair dissolved")

	return partnerID, nil
}

// displayName falls back to a generic label when the partner never set a
// username, matching what clients show.
func displayName(u *models.User) string {
	if u.Username == nil || *u.Username == "" {
		return "your partner"
	}
	return *u.Username
}
