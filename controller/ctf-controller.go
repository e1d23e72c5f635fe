package controller

import (
	"context"
	"ctfbot/app_error"
	"ctfbot/repository"
	"ctfbot/utils"
	"strconv"
	"time"

	"github.com/gin-contrib/cache"
	"github.com/gin-gonic/gin"
)

const upcomingCacheDuration = 5 * time.Minute

type CTFLister interface {
	ListCTFs(guildId string) ([]*repository.CTF, error)
}

type ReportFetcher interface {
	ReportById(ctx context.Context, guildId string, ctfId int) (*repository.CTF, *repository.Report, error)
}

type CTFController struct {
	ctfs     CTFLister
	reports  ReportFetcher
	calendar Calendar
}

func NewCTFController(ctfs CTFLister, reports ReportFetcher, calendar Calendar) *CTFController {
	return &CTFController{ctfs: ctfs, reports: reports, calendar: calendar}
}

func setupHealthController(version string) []RouteInfo {
	return []RouteInfo{
		{Method: "GET", Path: "/health", HandlerFunc: func(c *gin.Context) {
			c.JSON(200, gin.H{"status": "ok", "version": version})
		}},
	}
}

func setupCTFController(deps ApiDependencies) []RouteInfo {
	e := NewCTFController(deps.CTFs, deps.Reports, deps.Calendar)
	upcoming := e.getUpcomingHandler()
	if deps.CacheStore != nil {
		upcoming = cache.CachePage(deps.CacheStore, upcomingCacheDuration, upcoming)
	}
	return []RouteInfo{
		{Method: "GET", Path: "/ctfs/upcoming", HandlerFunc: upcoming},
		{Method: "GET", Path: "/servers/:server_id/ctfs", HandlerFunc: e.getCTFsHandler(), Authenticated: true},
		{Method: "GET", Path: "/servers/:server_id/ctfs/:ctf_id/report", HandlerFunc: e.getReportHandler(), Authenticated: true},
	}
}

func (e *CTFController) getUpcomingHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, err := strconv.Atoi(c.DefaultQuery("limit", "0"))
		if err != nil {
			c.JSON(400, gin.H{"error": "limit must be a number"})
			return
		}
		events, err := e.calendar.NextCTFs(c.Request.Context(), limit)
		if err != nil {
			if app_error.KindOf(err) == app_error.KindNotFound {
				c.JSON(200, []*UpcomingResponse{})
				return
			}
			app_error.WithHTTPStatus(c, err)
			return
		}
		c.JSON(200, utils.Map(events, toUpcomingResponse))
	}
}

func (e *CTFController) getCTFsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctfs, err := e.ctfs.ListCTFs(c.Param("server_id"))
		if err != nil {
			app_error.WithHTTPStatus(c, err)
			return
		}
		c.JSON(200, utils.Map(ctfs, toCTFResponse))
	}
}

func (e *CTFController) getReportHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctfId, err := strconv.Atoi(c.Param("ctf_id"))
		if err != nil {
			c.JSON(400, gin.H{"error": "ctf_id must be a number"})
			return
		}
		ctf, report, err := e.reports.ReportById(c.Request.Context(), c.Param("server_id"), ctfId)
		if err != nil {
			app_error.WithHTTPStatus(c, err)
			return
		}
		c.JSON(200, toReportResponse(ctf, report))
	}
}
