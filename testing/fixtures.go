package testing

import (
	"fmt"
	"time"

	"github.com/amirphl/Omikuji/models"
	"github.com/amirphl/Omikuji/utils"
	"github.com/google/uuid"
	"github.com/lib/pq"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// TestFixtures provides helper methods for creating test data
type TestFixtures struct {
	DB *TestDB
}

// NewTestFixtures creates a new test fixtures instance
func NewTestFixtures(db *TestDB) *TestFixtures {
	return &TestFixtures{DB: db}
}

// RandomOwnerKey returns a fresh owner key so tests never share ledger rows
func RandomOwnerKey() string {
	return "owner-" + gonanoid.Must(12)
}

// CreateTestTemplate inserts an active catalog card
func (tf *TestFixtures) CreateTestTemplate(cardType models.CardType, label string, weight float64, tags ...string) (*models.CardTemplate, error) {
	if tags == nil {
		tags = []string{}
	}
	tpl := &models.CardTemplate{
		UUID:      uuid.New(),
		Type:      cardType,
		Label:     label,
		Intensity: 1,
		Tags:      pq.StringArray(tags),
		Locale:    "fr-FR",
		Weight:    weight,
		IsActive:  utils.ToPtr(true),
	}
	if err := tf.DB.DB.Create(tpl).Error; err != nil {
		return nil, fmt.Errorf("failed to create test template: %w", err)
	}
	return tpl, nil
}

// CreateTestSession inserts an open session for ownerKey started at startedAt
func (tf *TestFixtures) CreateTestSession(ownerKey string, startedAt time.Time) (*models.Session, error) {
	session := &models.Session{
		UUID:      uuid.New(),
		OwnerKey:  ownerKey,
		Seed:      gonanoid.Must(),
		Status:    models.SessionStatusOpen,
		StartedAt: startedAt.UTC(),
	}
	if err := tf.DB.DB.Create(session).Error; err != nil {
		return nil, fmt.Errorf("failed to create test session: %w", err)
	}
	return session, nil
}

// CreateTestCards draws count cards into the session, alternating GOOD and BAD
func (tf *TestFixtures) CreateTestCards(session *models.Session, count int) ([]*models.SessionCard, error) {
	cards := make([]*models.SessionCard, 0, count)
	for i := range count {
		cardType := models.CardTypeGood
		if i%2 == 1 {
			cardType = models.CardTypeBad
		}
		card := &models.SessionCard{
			UUID:          uuid.New(),
			SessionID:     session.ID,
			Index:         i,
			Type:          cardType,
			LabelSnapshot: fmt.Sprintf("card %d", i),
			RandomValue:   0.25,
		}
		if err := tf.DB.DB.Create(card).Error; err != nil {
			return nil, fmt.Errorf("failed to create test card %d: %w", i, err)
		}
		cards = append(cards, card)
	}
	return cards, nil
}

// CreateFinalizedSession inserts a session with five cards finalized on the card at pick
func (tf *TestFixtures) CreateFinalizedSession(ownerKey string, finalizedAt time.Time, pick int, official bool) (*models.Session, error) {
	session, err := tf.CreateTestSession(ownerKey, finalizedAt.Add(-time.Minute))
	if err != nil {
		return nil, err
	}
	cards, err := tf.CreateTestCards(session, utils.MaxDrawsPerSession)
	if err != nil {
		return nil, err
	}

	final := cards[pick]
	at := finalizedAt.UTC()
	session.Status = models.SessionStatusFinalized
	session.FinalizedAt = &at
	session.FinalCardID = &final.ID
	session.FinalType = &final.Type
	session.FinalLabel = &final.LabelSnapshot
	session.FinalPickIndex = &pick
	session.IsOfficialDaily = official
	if err := tf.DB.DB.Save(session).Error; err != nil {
		return nil, fmt.Errorf("failed to finalize test session: %w", err)
	}

	if official {
		outcome := &models.DailyOutcome{
			UUID:        uuid.New(),
			OwnerKey:    ownerKey,
			Date:        utils.StartOfUTCDay(at),
			SessionID:   session.ID,
			FinalCardID: final.ID,
			FinalType:   final.Type,
			FinalLabel:  final.LabelSnapshot,
		}
		if err := tf.DB.DB.Create(outcome).Error; err != nil {
			return nil, fmt.Errorf("failed to create daily outcome: %w", err)
		}
	}
	return session, nil
}
