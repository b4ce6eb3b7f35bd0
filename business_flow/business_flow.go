package businessflow

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/amirphl/Omikuji/app/dto"
	"github.com/amirphl/Omikuji/models"
	"github.com/amirphl/Omikuji/repository"
	"github.com/amirphl/Omikuji/utils"
	"github.com/google/uuid"
)

// ClientMetadata holds client-related information used for logging
type ClientMetadata struct {
	IPAddress string `json:"ip_address"`
	UserAgent string `json:"user_agent"`
	RequestID string `json:"request_id,omitempty"`
	Endpoint  string `json:"endpoint,omitempty"`
}

// NewClientMetadata creates a new ClientMetadata instance with basic information
func NewClientMetadata(ipAddress, userAgent string) *ClientMetadata {
	return &ClientMetadata{
		IPAddress: ipAddress,
		UserAgent: userAgent,
	}
}

// SetRequestID sets the request ID
func (cm *ClientMetadata) SetRequestID(requestID string) {
	cm.RequestID = requestID
}

// SetEndpoint sets the endpoint the request was made to
func (cm *ClientMetadata) SetEndpoint(endpoint string) {
	cm.Endpoint = endpoint
}

func (cm *ClientMetadata) logAttrs() []any {
	if cm == nil {
		return nil
	}
	return []any{
		slog.String("request_id", cm.RequestID),
		slog.String("endpoint", cm.Endpoint),
		slog.String("ip", cm.IPAddress),
	}
}

// Clock supplies the current instant
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return utils.UTCNow() }

// NewSystemClock returns a Clock reading the wall clock in UTC
func NewSystemClock() Clock { return systemClock{} }

// normalizeOwnerKey trims the key and rejects blanks
func normalizeOwnerKey(ownerKey string) (string, error) {
	key := strings.TrimSpace(ownerKey)
	if key == "" {
		return "", ErrOwnerKeyRequired
	}
	return key, nil
}

// parseSessionID turns a public id into a UUID; malformed ids cannot match a session
func parseSessionID(sessionID string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(sessionID))
	if err != nil {
		return uuid.Nil, ErrSessionNotFound
	}
	return id, nil
}

// loadOwnedSession resolves a session and enforces the existence, ownership order used by mutations
func loadOwnedSession(ctx context.Context, repo repository.SessionRepository, sessionID, ownerKey string) (*models.Session, error) {
	id, err := parseSessionID(sessionID)
	if err != nil {
		return nil, err
	}
	session, err := repo.ByUUID(ctx, id)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}
	if session.OwnerKey != ownerKey {
		return nil, ErrForbidden
	}
	return session, nil
}

func toSessionDTO(s *models.Session) dto.SessionDTO {
	out := dto.SessionDTO{
		ID:              s.UUID.String(),
		OwnerKey:        s.OwnerKey,
		Seed:            s.Seed,
		Status:          string(s.Status),
		StartedAt:       s.StartedAt.UTC().Format(time.RFC3339),
		FinalizedAt:     utils.FormatRFC3339Ptr(s.FinalizedAt),
		IsOfficialDaily: s.IsOfficialDaily,
	}
	if s.FinalizedAt != nil && s.FinalCardID != nil {
		out.Final = &dto.FinalCardDTO{
			CardID:    *s.FinalCardID,
			Type:      string(utils.Deref(s.FinalType)),
			Label:     utils.Deref(s.FinalLabel),
			PickIndex: utils.Deref(s.FinalPickIndex),
		}
	}
	return out
}

func toSessionCardDTO(c *models.SessionCard) dto.SessionCardDTO {
	return dto.SessionCardDTO{
		ID:             c.UUID.String(),
		Index:          c.Index,
		Type:           string(c.Type),
		LabelSnapshot:  c.LabelSnapshot,
		Label:          c.LabelSnapshot,
		CardTemplateID: c.CardTemplateID,
		CreatedAt:      c.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func toDailyOutcomeDTO(o *models.DailyOutcome, sessionUUID uuid.UUID) *dto.DailyOutcomeDTO {
	if o == nil {
		return nil
	}
	return &dto.DailyOutcomeDTO{
		ID:          o.UUID.String(),
		OwnerKey:    o.OwnerKey,
		Date:        o.Date.UTC().Format(time.DateOnly),
		SessionID:   sessionUUID.String(),
		FinalCardID: o.FinalCardID,
		FinalType:   string(o.FinalType),
		FinalLabel:  o.FinalLabel,
		CreatedAt:   o.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func toHistoryItem(s *models.Session) dto.SessionHistoryItem {
	item := dto.SessionHistoryItem{
		ID:              s.UUID.String(),
		StartedAt:       s.StartedAt.UTC().Format(time.RFC3339),
		FinalizedAt:     utils.FormatRFC3339Ptr(s.FinalizedAt),
		IsOfficialDaily: s.IsOfficialDaily,
		FinalLabel:      s.FinalLabel,
		FinalPickIndex:  s.FinalPickIndex,
	}
	if s.FinalType != nil {
		item.FinalType = utils.ToPtr(string(*s.FinalType))
	}
	return item
}
