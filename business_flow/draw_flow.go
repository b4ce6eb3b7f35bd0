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

// DrawFlow adds cards to an open session
type DrawFlow interface {
	DrawCard(ctx context.Context, req *dto.DrawCardRequest, metadata *ClientMetadata) (*dto.DrawCardResponse, error)
}

// DrawFlowImpl implements DrawFlow
type DrawFlowImpl struct {
	sessionRepo repository.SessionRepository
	cardRepo    repository.SessionCardRepository
	catalog     CardCatalog
	tx          repository.Transactor
	rng         RandomSource
	clock       Clock
	gameCfg     config.GameConfig
	logger      *slog.Logger
}

func NewDrawFlow(
	sessionRepo repository.SessionRepository,
	cardRepo repository.SessionCardRepository,
	catalog CardCatalog,
	tx repository.Transactor,
	rng RandomSource,
	clock Clock,
	gameCfg config.GameConfig,
	logger *slog.Logger,
) DrawFlow {
	return &DrawFlowImpl{
		sessionRepo: sessionRepo,
		cardRepo:    cardRepo,
		catalog:     catalog,
		tx:          tx,
		rng:         rng,
		clock:       clock,
		gameCfg:     gameCfg,
		logger:      logger,
	}
}

func (f *DrawFlowImpl) maxDraws() int {
	if f.gameCfg.MaxDraws <= 0 {
		return utils.MaxDrawsPerSession
	}
	return f.gameCfg.MaxDraws
}

// DrawCard flips a fair coin for the card type, then picks a weighted label of that type
func (f *DrawFlowImpl) DrawCard(ctx context.Context, req *dto.DrawCardRequest, metadata *ClientMetadata) (resp *dto.DrawCardResponse, err error) {
	defer func() {
		err = wrapUnexpected(ctx, f.logger, err, "DRAW_CARD_FAILED", "Failed to draw card", metadata)
	}()

	ownerKey, err := normalizeOwnerKey(req.OwnerKey)
	if err != nil {
		return nil, err
	}

	var (
		card      *models.SessionCard
		remaining int
		fromCat   bool
	)
	err = f.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		session, err := loadOwnedSession(txCtx, f.sessionRepo, req.SessionID, ownerKey)
		if err != nil {
			return err
		}
		if session.IsFinalized() {
			return ErrSessionFinalized
		}

		count64, err := f.cardRepo.CountBySession(txCtx, session.ID)
		if err != nil {
			return err
		}
		count := int(count64)
		if count >= f.maxDraws() {
			return ErrDrawLimitReached
		}

		coin := f.rng.Float64()
		cardType := models.CardTypeBad
		if coin < 0.5 {
			cardType = models.CardTypeGood
		}

		label, templateID, err := f.pickLabel(txCtx, cardType)
		if err != nil {
			return err
		}
		fromCat = templateID != nil

		card = &models.SessionCard{
			UUID:           uuid.New(),
			SessionID:      session.ID,
			Index:          count,
			Type:           cardType,
			LabelSnapshot:  label,
			CardTemplateID: templateID,
			RandomValue:    coin,
			CreatedAt:      f.clock.Now(),
		}
		if err := f.cardRepo.Save(txCtx, card); err != nil {
			if errors.Is(err, repository.ErrSessionCardIndexTaken) {
				conflictsTotal.WithLabelValues("draw").Inc()
				return ErrConflict
			}
			return err
		}

		drawn := count + 1
		if status := models.StatusForCardCount(drawn, f.maxDraws()); status != session.Status {
			if err := f.sessionRepo.UpdateStatus(txCtx, session.ID, status); err != nil {
				if errors.Is(err, repository.ErrSessionAlreadyFinalized) {
					return ErrSessionFinalized
				}
				return err
			}
		}
		remaining = f.maxDraws() - drawn
		return nil
	})
	if err != nil {
		return nil, err
	}

	source := "fallback"
	if fromCat {
		source = "catalog"
	}
	cardsDrawnTotal.WithLabelValues(string(card.Type), source).Inc()

	return &dto.DrawCardResponse{
		Card:      toSessionCardDTO(card),
		Remaining: remaining,
	}, nil
}

// pickLabel selects a catalog label for cardType, or the fallback label when the catalog is empty
func (f *DrawFlowImpl) pickLabel(ctx context.Context, cardType models.CardType) (string, *uint, error) {
	candidates, err := f.catalog.FindActiveByType(ctx, cardType)
	if err != nil {
		return "", nil, err
	}

	chosen, err := PickWeighted(candidates, f.rng)
	if errors.Is(err, ErrEmptyCandidateSet) {
		return fallbackLabel(cardType), nil, nil
	}
	if err != nil {
		return "", nil, err
	}
	id := chosen.ID
	return chosen.Label, &id, nil
}

func fallbackLabel(cardType models.CardType) string {
	if cardType == models.CardTypeGood {
		return utils.GoodFallbackLabel
	}
	return utils.BadFallbackLabel
}
