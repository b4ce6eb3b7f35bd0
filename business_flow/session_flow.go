package businessflow

import (
	"context"
	"log/slog"

	"github.com/amirphl/Omikuji/app/dto"
	"github.com/amirphl/Omikuji/config"
	"github.com/amirphl/Omikuji/models"
	"github.com/amirphl/Omikuji/repository"
	"github.com/amirphl/Omikuji/utils"
	"github.com/google/uuid"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// SessionFlow handles session creation and read access
type SessionFlow interface {
	CreateSession(ctx context.Context, req *dto.CreateSessionRequest, metadata *ClientMetadata) (*dto.CreateSessionResponse, error)
	GetSession(ctx context.Context, req *dto.GetSessionRequest, metadata *ClientMetadata) (*dto.GetSessionResponse, error)
	GetSessionHistory(ctx context.Context, req *dto.SessionHistoryRequest, metadata *ClientMetadata) (*dto.SessionHistoryResponse, error)
	ExportSessionHistory(ctx context.Context, req *dto.ExportSessionHistoryRequest, metadata *ClientMetadata) (*dto.ExportSessionHistoryResponse, error)
}

// SessionFlowImpl implements SessionFlow
type SessionFlowImpl struct {
	sessionRepo repository.SessionRepository
	cardRepo    repository.SessionCardRepository
	gameCfg     config.GameConfig
	clock       Clock
	logger      *slog.Logger
}

func NewSessionFlow(
	sessionRepo repository.SessionRepository,
	cardRepo repository.SessionCardRepository,
	gameCfg config.GameConfig,
	clock Clock,
	logger *slog.Logger,
) SessionFlow {
	return &SessionFlowImpl{
		sessionRepo: sessionRepo,
		cardRepo:    cardRepo,
		gameCfg:     gameCfg,
		clock:       clock,
		logger:      logger,
	}
}

// CreateSession opens a new session with no cards
func (f *SessionFlowImpl) CreateSession(ctx context.Context, req *dto.CreateSessionRequest, metadata *ClientMetadata) (resp *dto.CreateSessionResponse, err error) {
	defer func() {
		err = wrapUnexpected(ctx, f.logger, err, "CREATE_SESSION_FAILED", "Failed to create session", metadata)
	}()

	ownerKey, err := normalizeOwnerKey(req.OwnerKey)
	if err != nil {
		return nil, err
	}

	seed, err := gonanoid.New()
	if err != nil {
		return nil, err
	}

	session := &models.Session{
		UUID:      uuid.New(),
		OwnerKey:  ownerKey,
		Seed:      seed,
		Status:    models.SessionStatusOpen,
		StartedAt: f.clock.Now(),
	}
	if err = f.sessionRepo.Save(ctx, session); err != nil {
		return nil, err
	}
	sessionsCreatedTotal.Inc()

	return &dto.CreateSessionResponse{
		Message: "Session created successfully",
		Session: toSessionDTO(session),
	}, nil
}

// GetSession returns a session with its cards.
// Ownership is checked before existence so a foreign owner learns nothing about the id.
func (f *SessionFlowImpl) GetSession(ctx context.Context, req *dto.GetSessionRequest, metadata *ClientMetadata) (resp *dto.GetSessionResponse, err error) {
	defer func() {
		err = wrapUnexpected(ctx, f.logger, err, "GET_SESSION_FAILED", "Failed to get session", metadata)
	}()

	ownerKey, err := normalizeOwnerKey(req.OwnerKey)
	if err != nil {
		return nil, err
	}

	id, err := parseSessionID(req.SessionID)
	if err != nil {
		return nil, ErrForbidden
	}
	session, err := f.sessionRepo.ByUUID(ctx, id)
	if err != nil {
		return nil, err
	}
	if session == nil || session.OwnerKey != ownerKey {
		return nil, ErrForbidden
	}

	cards, err := f.cardRepo.ListBySession(ctx, session.ID)
	if err != nil {
		return nil, err
	}

	out := make([]dto.SessionCardDTO, 0, len(cards))
	for _, c := range cards {
		out = append(out, toSessionCardDTO(c))
	}

	return &dto.GetSessionResponse{
		Session: toSessionDTO(session),
		Cards:   out,
	}, nil
}

// normalizePage clamps page and limit into their allowed ranges
func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if page > utils.MaxHistoryPage {
		page = utils.MaxHistoryPage
	}
	if limit <= 0 {
		limit = utils.DefaultHistoryLimit
	}
	if limit > utils.MaxHistoryLimit {
		limit = utils.MaxHistoryLimit
	}
	return page, limit
}

func finalizedSessionsFilter(ownerKey string, official *bool) models.SessionFilter {
	return models.SessionFilter{
		OwnerKey:        &ownerKey,
		IsFinalized:     utils.ToPtr(true),
		IsOfficialDaily: official,
	}
}

// GetSessionHistory lists finalized sessions, most recent first
func (f *SessionFlowImpl) GetSessionHistory(ctx context.Context, req *dto.SessionHistoryRequest, metadata *ClientMetadata) (resp *dto.SessionHistoryResponse, err error) {
	defer func() {
		err = wrapUnexpected(ctx, f.logger, err, "GET_SESSION_HISTORY_FAILED", "Failed to get session history", metadata)
	}()

	ownerKey, err := normalizeOwnerKey(req.OwnerKey)
	if err != nil {
		return nil, err
	}
	page, limit := normalizePage(req.Page, req.Limit)
	filter := finalizedSessionsFilter(ownerKey, req.Official)

	total, err := f.sessionRepo.Count(ctx, filter)
	if err != nil {
		return nil, err
	}

	sessions, err := f.sessionRepo.ByFilter(ctx, filter, "finalized_at DESC", limit, (page-1)*limit)
	if err != nil {
		return nil, err
	}

	items := make([]dto.SessionHistoryItem, 0, len(sessions))
	for _, s := range sessions {
		items = append(items, toHistoryItem(s))
	}

	return &dto.SessionHistoryResponse{
		Items: items,
		Pagination: dto.PaginationMeta{
			Page:    page,
			Limit:   limit,
			Total:   total,
			HasNext: int64(page*limit) < total,
		},
	}, nil
}

// wrapUnexpected logs and wraps errors that are not domain sentinels
func wrapUnexpected(ctx context.Context, logger *slog.Logger, err error, code, message string, metadata *ClientMetadata) error {
	if err == nil || isDomainError(err) {
		return err
	}
	if logger != nil {
		attrs := append([]any{slog.String("code", code), slog.Any("error", err)}, metadata.logAttrs()...)
		logger.ErrorContext(ctx, message, attrs...)
	}
	return NewBusinessError(code, message, err)
}
