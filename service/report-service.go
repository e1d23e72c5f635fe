package service

import (
	"context"
	"ctfbot/app_error"
	"ctfbot/metrics"
	"ctfbot/repository"
	"errors"
	"fmt"
	"log"

	"github.com/bwmarrin/discordgo"
	"gorm.io/gorm"
)

// ReportService keeps the per-ctf solve counter and the final standing.
type ReportService struct {
	ctfRepository    CTFStore
	reportRepository ReportStore
	cache            *ServerConfigCache
	platform         Platform
	eventInfo        EventInfo
}

func NewReportService(db *gorm.DB, cache *ServerConfigCache, platform Platform, eventInfo EventInfo) *ReportService {
	return &ReportService{
		ctfRepository:    repository.NewCTFRepository(db),
		reportRepository: repository.NewReportRepository(db),
		cache:            cache,
		platform:         platform,
		eventInfo:        eventInfo,
	}
}

func (s *ReportService) ctfForChannel(guildId string, channelId string) (*repository.CTF, error) {
	ctf, err := s.ctfRepository.GetCTFByChannelId(channelId, guildId)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, app_error.NotFound("This command must be used inside a CTF channel. ❌")
		}
		return nil, app_error.ExternalService("failed to find ctf", err)
	}
	return ctf, nil
}

func flagMessage(roleId string, userId string, flag string, challenge string) string {
	target := ""
	if challenge != "" {
		target = fmt.Sprintf(" for `%s`", challenge)
	}
	return fmt.Sprintf("<@&%s> NEW FLAG FOUND by <@%s>!%s 🎉\n> `%s`", roleId, userId, target, flag)
}

// RegisterFlag counts a solve for the ctf of the channel and celebrates it there.
func (s *ReportService) RegisterFlag(ctx context.Context, caller Caller, guildId string, channelId string, flag string, challenge string) (*repository.Report, error) {
	ctf, err := s.ctfForChannel(guildId, channelId)
	if err != nil {
		return nil, err
	}
	report, err := s.reportRepository.AddSolve(ctf.ID, challenge)
	if err != nil {
		return nil, app_error.ExternalService("failed to register flag", err)
	}
	metrics.FlagsCounter.Inc()
	msg, err := s.platform.SendMessage(ctx, channelId, &discordgo.MessageSend{
		Content: flagMessage(ctf.RoleID, caller.UserID, flag, challenge),
	})
	if err != nil {
		log.Printf("ctf %s: failed to announce flag: %v", ctf.Name, err)
		return report, nil
	}
	if err := s.platform.AddReaction(ctx, channelId, msg.ID, FlagEmoji); err != nil {
		log.Printf("ctf %s: failed to react to flag: %v", ctf.Name, err)
	}
	return report, nil
}

// DeleteFlag takes one solve back. The counter never drops below zero.
func (s *ReportService) DeleteFlag(caller Caller, guildId string, channelId string) (*repository.Report, error) {
	server, err := s.cache.Get(guildId)
	if err != nil {
		return nil, err
	}
	if !caller.CanManage(server) {
		return nil, errMissingRole
	}
	ctf, err := s.ctfForChannel(guildId, channelId)
	if err != nil {
		return nil, err
	}
	report, err := s.reportRepository.RemoveSolve(ctf.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return repository.NewReport(ctf.ID), nil
		}
		return nil, app_error.ExternalService("failed to delete flag", err)
	}
	return report, nil
}

// Report returns the report of the ctf in the channel, filling place and score from ctftime the
// first time they are available.
func (s *ReportService) Report(ctx context.Context, guildId string, channelId string) (*repository.CTF, *repository.Report, error) {
	ctf, err := s.ctfForChannel(guildId, channelId)
	if err != nil {
		return nil, nil, err
	}
	report, err := s.fillReport(ctx, ctf)
	if err != nil {
		return nil, nil, err
	}
	return ctf, report, nil
}

// ReportById serves the dashboard, which addresses ctfs by id.
func (s *ReportService) ReportById(ctx context.Context, guildId string, ctfId int) (*repository.CTF, *repository.Report, error) {
	ctf, err := s.ctfRepository.GetCTFById(ctfId)
	if err != nil || ctf.ServerID != guildId {
		return nil, nil, app_error.NotFound("ctf not found")
	}
	report, err := s.fillReport(ctx, ctf)
	if err != nil {
		return nil, nil, err
	}
	return ctf, report, nil
}

func (s *ReportService) fillReport(ctx context.Context, ctf *repository.CTF) (*repository.Report, error) {
	report, err := s.reportRepository.GetReport(ctf.ID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, app_error.ExternalService("failed to load report", err)
		}
		report = repository.NewReport(ctf.ID)
	}
	if report.ResultsKnown() || ctf.CTFTimeID == 0 {
		return report, nil
	}
	server, err := s.cache.Get(ctf.ServerID)
	if err != nil || server.TeamID == 0 {
		return report, nil
	}
	year, err := YearFromName(ctf.Name)
	if err != nil {
		log.Printf("ctf %s: %v", ctf.Name, err)
		return report, nil
	}
	result := s.eventInfo.FetchResults(ctx, ctf.CTFTimeID, year, server.TeamID)
	if !result.IsOk() {
		return report, nil
	}
	report.Place = result.Value.Place
	report.Score = result.Value.Score
	if err := s.reportRepository.UpdateReport(report); err != nil {
		log.Printf("ctf %s: failed to store results: %v", ctf.Name, err)
	}
	return report, nil
}

func ReportEmbed(ctf *repository.CTF, report *repository.Report) *discordgo.MessageEmbed {
	place := "N/A"
	if report.Place != repository.Unknown {
		place = fmt.Sprint(report.Place)
	}
	score := "N/A"
	if report.Score != repository.Unknown {
		score = fmt.Sprint(report.Score)
	}
	return &discordgo.MessageEmbed{
		Title: "Report of " + ctf.Name,
		Color: EmbedColor,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Place", Value: place},
			{Name: "Score", Value: score},
			{Name: "Solves", Value: fmt.Sprint(report.Solves)},
		},
	}
}
