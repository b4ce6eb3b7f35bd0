package dto

// SessionDTO is the public view of a session
type SessionDTO struct {
	ID              string        `json:"id"`
	OwnerKey        string        `json:"owner_key"`
	Seed            string        `json:"seed"`
	Status          string        `json:"status"`
	StartedAt       string        `json:"started_at"`
	FinalizedAt     *string       `json:"finalized_at"`
	IsOfficialDaily bool          `json:"is_official_daily"`
	Final           *FinalCardDTO `json:"final"`
}

// SessionCardDTO is one drawn card
// Label mirrors LabelSnapshot for clients that read either name
type SessionCardDTO struct {
	ID             string `json:"id"`
	Index          int    `json:"index"`
	Type           string `json:"type"`
	LabelSnapshot  string `json:"label_snapshot"`
	Label          string `json:"label"`
	CardTemplateID *uint  `json:"card_template_id"`
	CreatedAt      string `json:"created_at"`
}

// FinalCardDTO is the card a session was finalized with
type FinalCardDTO struct {
	CardID    uint   `json:"card_id"`
	Type      string `json:"type"`
	Label     string `json:"label"`
	PickIndex int    `json:"pick_index"`
}

// DailyOutcomeDTO is an official result of one UTC day
type DailyOutcomeDTO struct {
	ID          string `json:"id"`
	OwnerKey    string `json:"owner_key"`
	Date        string `json:"date"`
	SessionID   string `json:"session_id"`
	FinalCardID uint   `json:"final_card_id"`
	FinalType   string `json:"final_type"`
	FinalLabel  string `json:"final_label"`
	CreatedAt   string `json:"created_at"`
}

// CreateSessionRequest carries the owner of the new session
type CreateSessionRequest struct {
	OwnerKey string `json:"-"`
}

// CreateSessionResponse returns the new session
type CreateSessionResponse struct {
	Message string     `json:"message"`
	Session SessionDTO `json:"session"`
}

// DrawCardRequest identifies the session to draw into
type DrawCardRequest struct {
	SessionID string `json:"-"`
	OwnerKey  string `json:"-"`
}

// DrawCardResponse returns the drawn card and how many draws are left
type DrawCardResponse struct {
	Card      SessionCardDTO `json:"card"`
	Remaining int            `json:"remaining"`
}

// FinalizeSessionRequest finalizes a session.
// PickIndex selects the final card; nil is rejected by FinalizeWithPick.
type FinalizeSessionRequest struct {
	SessionID string `json:"-"`
	OwnerKey  string `json:"-"`
	PickIndex *int   `json:"pick_index,omitempty"`
}

// FinalizeSessionResponse reports the chosen card and whether the day's official result was recorded
type FinalizeSessionResponse struct {
	Message      string           `json:"message"`
	Official     bool             `json:"official"`
	Final        FinalCardDTO     `json:"final"`
	PickedIndex  int              `json:"picked_index"`
	Session      SessionDTO       `json:"session"`
	DailyOutcome *DailyOutcomeDTO `json:"daily_outcome"`
}

// GetSessionRequest identifies a session to read
type GetSessionRequest struct {
	SessionID string `json:"-"`
	OwnerKey  string `json:"-"`
}

// GetSessionResponse returns a session with its cards in draw order
type GetSessionResponse struct {
	Session SessionDTO       `json:"session"`
	Cards   []SessionCardDTO `json:"cards"`
}

// DailyOutcomeResponse wraps an optional ledger row
type DailyOutcomeResponse struct {
	DailyOutcome *DailyOutcomeDTO `json:"daily_outcome"`
}

// SessionHistoryRequest lists finalized sessions of an owner
// Official filters on is_official_daily when set
type SessionHistoryRequest struct {
	OwnerKey string `json:"-"`
	Page     int    `json:"page" validate:"gte=1,lte=1000000"`
	Limit    int    `json:"limit" validate:"gte=1,lte=50"`
	Official *bool  `json:"official,omitempty" validate:"omitempty"`
}

// SessionHistoryItem is one finalized session in a listing
type SessionHistoryItem struct {
	ID              string  `json:"id"`
	StartedAt       string  `json:"started_at"`
	FinalizedAt     *string `json:"finalized_at"`
	IsOfficialDaily bool    `json:"is_official_daily"`
	FinalType       *string `json:"final_type"`
	FinalLabel      *string `json:"final_label"`
	FinalPickIndex  *int    `json:"final_pick_index"`
}

// SessionHistoryResponse is one page of finalized sessions
type SessionHistoryResponse struct {
	Items      []SessionHistoryItem `json:"items"`
	Pagination PaginationMeta       `json:"pagination"`
}

// ExportSessionHistoryRequest selects sessions for the spreadsheet export
type ExportSessionHistoryRequest struct {
	OwnerKey string `json:"-"`
	Official *bool  `json:"official,omitempty"`
}

// ExportSessionHistoryResponse carries the generated workbook
type ExportSessionHistoryResponse struct {
	Filename string `json:"filename"`
	Rows     int    `json:"rows"`
	Content  []byte `json:"-"`
}
