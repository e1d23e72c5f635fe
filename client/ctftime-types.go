package client

import "time"

type Organizer struct {
	Id   int    `json:"id"`
	Name string `json:"name"`
}

type Duration struct {
	Hours int `json:"hours"`
	Days  int `json:"days"`
}

// CTFTimeEvent is one competition as listed on the calendar.
type CTFTimeEvent struct {
	Id            int         `json:"id"`
	CTFId         int         `json:"ctf_id"`
	Title         string      `json:"title"`
	Description   string      `json:"description"`
	URL           string      `json:"url"`
	CTFTimeURL    string      `json:"ctftime_url"`
	Logo          string      `json:"logo"`
	Start         string      `json:"start"`
	Finish        string      `json:"finish"`
	Format        string      `json:"format"`
	Location      string      `json:"location"`
	Onsite        bool        `json:"onsite"`
	Weight        float64     `json:"weight"`
	Prizes        string      `json:"prizes"`
	Restrictions  string      `json:"restrictions"`
	Participants  int         `json:"participants"`
	Duration      Duration    `json:"duration"`
	Organizers    []Organizer `json:"organizers"`
	IsVotableNow  bool        `json:"is_votable_now"`
	PublicVotable bool        `json:"public_votable"`
}

func (e *CTFTimeEvent) StartTime() (time.Time, error) {
	return time.Parse(time.RFC3339, e.Start)
}

func (e *CTFTimeEvent) FinishTime() (time.Time, error) {
	return time.Parse(time.RFC3339, e.Finish)
}

type ResultScore struct {
	TeamID int64  `json:"team_id"`
	Place  int    `json:"place"`
	Points string `json:"points"`
	Solves int    `json:"solves"`
}

type EventResults struct {
	Title  string        `json:"title"`
	Scores []ResultScore `json:"scores"`
}

// TeamResult is the final standing of one team in one event.
type TeamResult struct {
	Place  int
	Score  int
	Solves int
}
