package businessflow

import (
	"context"
	"errors"
	"log/slog"

	"github.com/amirphl/Omikuji/app/dto"
	"github.com/amirphl/Omikuji/config"
	"github.com/amirphl/Omikuji/models"
	"github.com/amirphl/Omikuji/repository"
	"github.com/amirphl/Omikuji/utils"
	"github.com/google/uuid"
)

// FinalizeFlow commits a session to one of its five cards
type FinalizeFlow interface {
	// FinalizeWithPick finalizes with the card at req.PickIndex
	FinalizeWithPick(ctx context.Context, req *dto.FinalizeSessionRequest, metadata *ClientMetadata) (*dto.FinalizeSessionResponse, error)
	// FinalizeWithDailyCheck finalizes with a uniformly chosen card
	FinalizeWithDailyCheck(ctx context.Context, req *dto.FinalizeSessionRequest, metadata *ClientMetadata) (*dto.FinalizeSessionResponse, error)
}

// FinalizeFlowImpl implements FinalizeFlow
type FinalizeFlowImpl struct {
	sessionRepo repository.SessionRepository
	cardRepo    repository.SessionCardRepository
	dailyRepo   repository.DailyOutcomeRepository
	tx          repository.Transactor
	rng         RandomSource
	clock       Clock
	gameCfg     config.GameConfig
	logger      *slog.Logger
}

func NewFinalizeFlow(
	sessionRepo repository.SessionRepository,
	cardRepo repository.SessionCardRepository,
	dailyRepo repository.DailyOutcomeRepository,
	tx repository.Transactor,
	rng RandomSource,
	clock Clock,
	gameCfg config.GameConfig,
	logger *slog.Logger,
) FinalizeFlow {
	return &FinalizeFlowImpl{
		sessionRepo: sessionRepo,
		cardRepo:    cardRepo,
		dailyRepo:   dailyRepo,
		tx:          tx,
		rng:         rng,
		clock:       clock,
		gameCfg:     gameCfg,
		logger:      logger,
	}
}

// pickSource chooses the index of the final card
type pickSource struct {
	kind string
	pick func() int
}

func fixedPick(index int) pickSource {
	return pickSource{kind: "explicit", pick: func() int { return index }}
}

func (f *FinalizeFlowImpl) uniformPick() pickSource {
	return pickSource{kind: "random", pick: func() int { return f.rng.IntN(utils.MaxDrawsPerSession) }}
}

func (f *FinalizeFlowImpl) FinalizeWithPick(ctx context.Context, req *dto.FinalizeSessionRequest, metadata *ClientMetadata) (*dto.FinalizeSessionResponse, error) {
	if req.PickIndex == nil || *req.PickIndex < 0 || *req.PickIndex >= utils.MaxDrawsPerSession {
		return nil, ErrInvalidPickIndex
	}
	return f.finalize(ctx, req, fixedPick(*req.PickIndex), metadata)
}

func (f *FinalizeFlowImpl) FinalizeWithDailyCheck(ctx context.Context, req *dto.FinalizeSessionRequest, metadata *ClientMetadata) (*dto.FinalizeSessionResponse, error) {
	return f.finalize(ctx, req, f.uniformPick(), metadata)
}

// finalize runs the shared finalize transaction.
// The session update and the ledger insert commit together or not at all.
func (f *FinalizeFlowImpl) finalize(ctx context.Context, req *dto.FinalizeSessionRequest, source pickSource, metadata *ClientMetadata) (resp *dto.FinalizeSessionResponse, err error) {
	defer func() {
		err = wrapUnexpected(ctx, f.logger, err, "FINALIZE_SESSION_FAILED", "Failed to finalize session", metadata)
	}()

	ownerKey, err := normalizeOwnerKey(req.OwnerKey)
	if err != nil {
		return nil, err
	}

	var (
		session  *models.Session
		outcome  *models.DailyOutcome
		official bool
		picked   int
	)
	err = f.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		session, err = loadOwnedSession(txCtx, f.sessionRepo, req.SessionID, ownerKey)
		if err != nil {
			return err
		}
		if session.IsFinalized() {
			return ErrSessionFinalized
		}

		cards, err := f.cardRepo.ListBySession(txCtx, session.ID)
		if err != nil {
			return err
		}
		if len(cards) != utils.MaxDrawsPerSession {
			return ErrNeed5Cards
		}

		picked = source.pick()
		var chosen *models.SessionCard
		for _, c := range cards {
			if c.Index == picked {
				chosen = c
				break
			}
		}
		if chosen == nil {
			return ErrInvalidCardIndex
		}

		now := f.clock.Now().UTC()
		today := utils.StartOfUTCDay(now)

		existing, err := f.dailyRepo.ByOwnerAndDate(txCtx, ownerKey, today)
		if err != nil {
			return err
		}
		official = existing == nil
		if !official && f.gameCfg.DailyReplayPolicy == config.ReplayPolicyReject {
			return ErrAlreadyPlayedToday
		}

		fin := models.SessionFinalization{
			FinalizedAt:     now,
			FinalCardID:     chosen.ID,
			FinalType:       chosen.Type,
			FinalLabel:      chosen.LabelSnapshot,
			FinalPickIndex:  picked,
			IsOfficialDaily: official,
		}
		if err := f.sessionRepo.MarkFinalized(txCtx, session.ID, fin); err != nil {
			if errors.Is(err, repository.ErrSessionAlreadyFinalized) {
				return ErrSessionFinalized
			}
			return err
		}
		applyFinalization(session, fin)

		if !official {
			return nil
		}
		outcome = &models.DailyOutcome{
			UUID:        uuid.New(),
			OwnerKey:    ownerKey,
			Date:        today,
			SessionID:   session.ID,
			FinalCardID: chosen.ID,
			FinalType:   chosen.Type,
			FinalLabel:  chosen.LabelSnapshot,
			CreatedAt:   now,
		}
		if err := f.dailyRepo.Save(txCtx, outcome); err != nil {
			if errors.Is(err, repository.ErrDailyOutcomeExists) {
				conflictsTotal.WithLabelValues("finalize").Inc()
				return ErrConflict
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	kind := "casual"
	message := "Card revealed. Today's official card was already chosen, this one is just for fun."
	if official {
		kind = "official"
		message = "Card of the day revealed! Come back tomorrow for a new draw."
	}
	sessionsFinalizedTotal.WithLabelValues(kind, source.kind).Inc()

	sessionDTO := toSessionDTO(session)
	return &dto.FinalizeSessionResponse{
		Message:      message,
		Official:     official,
		Final:        *sessionDTO.Final,
		PickedIndex:  picked,
		Session:      sessionDTO,
		DailyOutcome: toDailyOutcomeDTO(outcome, session.UUID),
	}, nil
}

func applyFinalization(s *models.Session, fin models.SessionFinalization) {
	finalizedAt := fin.FinalizedAt
	cardID := fin.FinalCardID
	cardType := fin.FinalType
	label := fin.FinalLabel
	pick := fin.FinalPickIndex

	s.Status = models.SessionStatusFinalized
	s.FinalizedAt = &finalizedAt
	s.FinalCardID = &cardID
	s.FinalType = &cardType
	s.FinalLabel = &label
	s.FinalPickIndex = &pick
	s.IsOfficialDaily = fin.IsOfficialDaily
}
