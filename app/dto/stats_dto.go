package dto

// StreaksResponse summarizes an owner's official days
type StreaksResponse struct {
	TotalDays      int64   `json:"total_days"`
	CurrentStreak  int     `json:"current_streak"`
	LongestStreak  int     `json:"longest_streak"`
	LastPlayDate   *string `json:"last_play_date"`
	HasPlayedToday bool    `json:"has_played_today"`
}

// StatsOverview holds headline numbers over all finalized sessions
type StatsOverview struct {
	TotalSessions    int `json:"total_sessions"`
	OfficialSessions int `json:"official_sessions"`
	CurrentStreak    int `json:"current_streak"`
	LongestStreak    int `json:"longest_streak"`
	GoodPercentage   int `json:"good_percentage"`
	BadPercentage    int `json:"bad_percentage"`
}

// MonthlyStat counts finalized sessions of one calendar month
type MonthlyStat struct {
	Month string `json:"month"`
	Good  int    `json:"good"`
	Bad   int    `json:"bad"`
	Total int    `json:"total"`
}

// TagStat counts one tag across chosen cards
type TagStat struct {
	Tag   string `json:"tag"`
	Count int64  `json:"count"`
}

// StatisticsResponse is the full statistics view of an owner
type StatisticsResponse struct {
	Overview               StatsOverview        `json:"overview"`
	MonthlyData            []MonthlyStat        `json:"monthly_data"`
	RecentSessions         []SessionHistoryItem `json:"recent_sessions"`
	TopHour                int                  `json:"top_hour"`
	AverageCardsPerSession int                  `json:"average_cards_per_session"`
	TopTags                []TagStat            `json:"top_tags"`
}

// OwnerRequest identifies the owner whose data is read
type OwnerRequest struct {
	OwnerKey string `json:"-"`
}
