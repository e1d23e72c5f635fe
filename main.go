package main

import (
	"context"
	"ctfbot/client"
	"ctfbot/config"
	"ctfbot/controller"
	"ctfbot/cron"
	"ctfbot/repository"
	"ctfbot/service"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"regexp"
	"strings"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/gin-contrib/cache/persistence"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq"
	ginprometheus "github.com/zsais/go-gin-prometheus"
)

const intents = discordgo.IntentsGuilds |
	discordgo.IntentsGuildMessages |
	discordgo.IntentsGuildMessageReactions |
	discordgo.IntentsGuildScheduledEvents

func main() {
	t := time.Now()
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load and validate configuration
	cfg := config.Env()
	db, err := config.InitDB(
		cfg.DatabaseHost,
		cfg.DatabasePort,
		cfg.PostgresUser,
		cfg.PostgresPassword,
		cfg.DatabaseName,
	)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	session, err := discordgo.New("Bot " + cfg.DiscordBotToken)
	if err != nil {
		log.Fatalf("Failed to create discord session: %v", err)
	}
	session.Identify.Intents = intents
	platform := client.NewDiscordClient(session)

	eventInfo, err := client.NewCTFTimeClient(client.CTFTimeBaseURL)
	if err != nil {
		log.Fatalf("Failed to create ctftime client: %v", err)
	}

	hub := controller.NewSolveHub()
	dispatcher := cron.NewSolveDispatcher(100, cron.NewDiscordSolveSink(platform), hub)
	writer, err := config.GetSolveWriter()
	if err != nil {
		log.Printf("solve streaming disabled: %v", err)
	} else if writer != nil {
		dispatcher.AddSink(cron.NewKafkaSolveSink(writer))
		defer writer.Close()
	}
	go dispatcher.Run(ctx)
	relays := cron.NewRelaySupervisor(time.Duration(cfg.SolvePollSeconds)*time.Second, dispatcher.Events())

	cache := service.NewServerConfigCache(repository.NewServerRepository(db))
	serverService := service.NewServerService(db, cache)
	lifecycleService := service.NewLifecycleService(db, cache, platform, eventInfo, service.CTFdClientFactory, relays, service.PlatformAccount{
		Username: cfg.CTFdBotUsername,
		Email:    cfg.CTFdBotEmail,
		Password: cfg.CTFdBotPassword,
	})
	reportService := service.NewReportService(db, cache, platform, eventInfo)
	credentialsService := service.NewCredentialsService(db, cache)
	calendarService := service.NewCalendarService(eventInfo)

	bot := controller.NewBotController(serverService, lifecycleService, reportService, credentialsService, calendarService, platform, session, cfg.Version)
	bot.Register(session)
	if err := session.Open(); err != nil {
		log.Fatalf("Failed to open discord session: %v", err)
	}
	if err := controller.RegisterCommands(session, session.State.User.ID, cfg.DiscordGuildID); err != nil {
		log.Fatal(err)
	}

	presence, err := cron.NewPresenceRotator(platform, cfg.PresenceCron)
	if err != nil {
		log.Fatalf("Invalid presence schedule %q: %v", cfg.PresenceCron, err)
	}
	presence.Start()

	r := gin.New()
	r.Use(gin.Recovery())
	err = r.SetTrustedProxies(nil)
	if err != nil {
		fmt.Println("Failed to set trusted proxies:", err)
		return
	}
	addLogger(r)
	addMetrics(r)
	setCors(r)
	controller.SetRoutes(r, controller.ApiDependencies{
		CacheStore: persistence.NewInMemoryStore(60 * time.Second),
		CTFs:       lifecycleService,
		Reports:    reportService,
		Calendar:   calendarService,
		Solves:     hub,
		Version:    cfg.Version,
	})
	srv := &http.Server{Addr: ":" + cfg.HTTPPort, Handler: r}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("Failed to start server: %v", err)
			stop()
		}
	}()
	fmt.Println("Bot started in", time.Since(t))

	<-ctx.Done()
	log.Print("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	presence.Stop()
	relays.StopAll()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Failed to stop server: %v", err)
	}
	if err := session.Close(); err != nil {
		log.Printf("Failed to close discord session: %v", err)
	}
}

func addLogger(r *gin.Engine) {
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/api/metrics"},
		Skip: func(c *gin.Context) bool {
			return c.Request.URL.Query().Get("token") != ""
		},
	}))
}

func addMetrics(r *gin.Engine) {
	p := ginprometheus.NewPrometheus("gin")
	re := regexp.MustCompile(`\d+`)
	p.ReqCntURLLabelMappingFn = func(c *gin.Context) string {
		url := strings.Split(c.Request.URL.String(), "?")[0]
		url = re.ReplaceAllString(url, "?")
		return strings.TrimPrefix(url, "/api")
	}
	p.MetricsPath = "/api/metrics"
	p.Use(r)
}

func setCors(r *gin.Engine) {
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))
}
