package router

import (
	"net/http"
	"time"

	"github.com/bananalabs-oss/hatcher/internal/invites"
	"github.com/bananalabs-oss/hatcher/internal/logger"
	"github.com/bananalabs-oss/hatcher/internal/parties"
	"github.com/bananalabs-oss/hatcher/internal/social"
	potassium "github.com/bananalabs-oss/potassium/middleware"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/uptrace/bun"
)

type Options struct {
	ServiceToken string
	CORSOrigins  []string
	Invites      invites.Store
	Parties      []parties.Option
}

func Setup(db *bun.DB, log *logger.Logger, opts Options) *gin.Engine {
	r := gin.New()
	r.Use(log.Gin(), gin.Recovery())
	r.Use(cors.New(corsConfig(opts.CORSOrigins)))

	socialSvc := social.NewService(db)
	ph := parties.NewHandler(parties.NewService(db, opts.Parties...), log)
	sh := social.NewHandler(socialSvc, log)

	store := opts.Invites
	if store == nil {
		store = invites.NewSQLStore(db)
	}
	ih := invites.NewHandler(store, socialSvc, log)

	health := func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "hatcher"})
	}
	r.GET("/", health)
	r.GET("/health", health)

	api := r.Group("/api")

	party := api.Group("/party")
	{
		party.POST("/create", ph.CreateParty)
		party.POST("/join", ph.JoinParty)
		party.POST("/leave", ph.LeaveParty)
		party.GET("/status/:code", ph.GetStatus)
		party.POST("/set_game", ph.SetActiveGame)
		party.POST("/damage", ph.DealDamage)
		party.POST("/mega_egg/add", ph.AddMegaTime)
		party.POST("/mega_egg/claim", ph.ClaimMegaEgg)
		party.POST("/expedition/start", ph.StartExpedition)
		party.POST("/expedition/claim", ph.ClaimExpedition)
		party.POST("/expedition/wolf_damage", ph.WolfDamage)
	}

	api.POST("/users/sync", sh.SyncUser)
	api.POST("/friends/add", sh.AddFriend)
	api.GET("/friends/list/:user_id", sh.ListFriends)

	inv := api.Group("/invites")
	{
		inv.POST("/send", ih.Send)
		inv.GET("/check/:user_id", ih.Check)
		inv.POST("/clear", ih.Clear)
	}

	// Internal endpoints (service token auth via Potassium)
	if opts.ServiceToken != "" {
		internal := r.Group("/internal")
		internal.Use(potassium.ServiceAuth(opts.ServiceToken))
		{
			internal.GET("/parties/:code", ph.GetPartyByCode)
			internal.GET("/players/:user_id", ph.GetPlayerParty)
		}
	}

	return r
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}
