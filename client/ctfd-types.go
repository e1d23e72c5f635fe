package client

import "time"

type CTFdPagination struct {
	Page  int  `json:"page"`
	Pages int  `json:"pages"`
	Next  *int `json:"next"`
	Total int  `json:"total"`
}

type CTFdMeta struct {
	Pagination CTFdPagination `json:"pagination"`
}

// CTFdEnvelope wraps every CTFd api payload.
type CTFdEnvelope[T any] struct {
	Success bool      `json:"success"`
	Data    T         `json:"data"`
	Meta    *CTFdMeta `json:"meta"`
}

type CTFdTeam struct {
	Id    int     `json:"id"`
	Name  string  `json:"name"`
	Place *string `json:"place"`
	Score int     `json:"score"`
}

type CTFdUser struct {
	Id     int    `json:"id"`
	Name   string `json:"name"`
	TeamId *int   `json:"team_id"`
}

type CTFdChallenge struct {
	Id       int    `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category"`
	Value    int    `json:"value"`
}

type CTFdSolve struct {
	Id          int           `json:"id"`
	ChallengeId int           `json:"challenge_id"`
	Challenge   CTFdChallenge `json:"challenge"`
	User        CTFdUser      `json:"user"`
	Date        string        `json:"date"`
	Type        string        `json:"type"`
}

// SolvedAt falls back to the current time when the platform sends an unparsable date.
func (s *CTFdSolve) SolvedAt() time.Time {
	t, err := time.Parse(time.RFC3339, s.Date)
	if err != nil {
		return time.Now().UTC()
	}
	return t.UTC()
}

type ScoreboardEntry struct {
	Pos       int    `json:"pos"`
	AccountId int    `json:"account_id"`
	Name      string `json:"name"`
	Score     int    `json:"score"`
}
