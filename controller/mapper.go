package controller

import (
	"ctfbot/client"
	"ctfbot/repository"
)

type CTFResponse struct {
	Id          int    `json:"id" binding:"required"`
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	ChannelId   string `json:"channel_id" binding:"required"`
	CTFTimeId   int64  `json:"ctftime_id"`
	URL         string `json:"url"`
	IsCTFd      bool   `json:"is_ctfd"`
	TeamName    string `json:"team_name"`
}

func toCTFResponse(ctf *repository.CTF) *CTFResponse {
	return &CTFResponse{
		Id:          ctf.ID,
		Name:        ctf.Name,
		Description: ctf.Description,
		ChannelId:   ctf.TextChannelID,
		CTFTimeId:   ctf.CTFTimeID,
		URL:         ctf.URL,
		IsCTFd:      ctf.IsCTFd,
		TeamName:    ctf.TeamName,
	}
}

// ReportResponse leaves place and score out while they are unknown.
type ReportResponse struct {
	CTFId      int      `json:"ctf_id" binding:"required"`
	Name       string   `json:"name" binding:"required"`
	Place      *int     `json:"place,omitempty"`
	Score      *int     `json:"score,omitempty"`
	Solves     int      `json:"solves" binding:"required"`
	Challenges []string `json:"challenges" binding:"required"`
}

func toReportResponse(ctf *repository.CTF, report *repository.Report) *ReportResponse {
	response := &ReportResponse{
		CTFId:      ctf.ID,
		Name:       ctf.Name,
		Solves:     report.Solves,
		Challenges: []string(report.Challenges),
	}
	if response.Challenges == nil {
		response.Challenges = []string{}
	}
	if report.Place != repository.Unknown {
		place := report.Place
		response.Place = &place
	}
	if report.Score != repository.Unknown {
		score := report.Score
		response.Score = &score
	}
	return response
}

type UpcomingResponse struct {
	Id         int     `json:"id" binding:"required"`
	Title      string  `json:"title" binding:"required"`
	URL        string  `json:"url"`
	CTFTimeURL string  `json:"ctftime_url"`
	Logo       string  `json:"logo"`
	Start      string  `json:"start" binding:"required"`
	Finish     string  `json:"finish" binding:"required"`
	Format     string  `json:"format"`
	Weight     float64 `json:"weight"`
}

func toUpcomingResponse(event *client.CTFTimeEvent) *UpcomingResponse {
	return &UpcomingResponse{
		Id:         event.Id,
		Title:      event.Title,
		URL:        event.URL,
		CTFTimeURL: event.CTFTimeURL,
		Logo:       event.Logo,
		Start:      event.Start,
		Finish:     event.Finish,
		Format:     event.Format,
		Weight:     event.Weight,
	}
}
