package api

import (
	"time"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	swaggerfiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/gorm"

	"github.com/kolstack/koltime-api/docs"
	v1 "github.com/kolstack/koltime-api/internal/api/handler/v1"
	"github.com/kolstack/koltime-api/internal/api/middleware"
	"github.com/kolstack/koltime-api/internal/config"
	"github.com/kolstack/koltime-api/internal/repository"
	"github.com/kolstack/koltime-api/internal/repository/dao"
	"github.com/kolstack/koltime-api/internal/service"
	"github.com/kolstack/koltime-api/internal/wallet"
)

type Server struct {
	Config *config.AppConfig
	Router *gin.Engine

	// Sweeper is exported so the app can run the periodic worker on
	// the same instance the admin endpoint uses.
	Sweeper *service.SweepService
}

func NewServer(conf *config.AppConfig, db *gorm.DB) *Server {
	gin.SetMode(conf.Gin.Mode)
	engine := gin.New()

	s := &Server{
		Config: conf,
		Router: engine,
	}

	s.MountMiddlewares()

	// The ledger and both stateful services are singletons: the escrow
	// engine holds per-booking locks and mutable fee terms, and the
	// reputation service holds the scoring config.
	ledger := wallet.NewLedger()
	clock := service.NewRealClock()

	userRepo := repository.NewUserRepository(dao.NewUserDAO(db))
	bookingRepo := repository.NewBookingRepository(dao.NewBookingDAO(db))
	ticketRepo := repository.NewTicketRepository(dao.NewTicketDAO(db))
	reputationRepo := repository.NewReputationRepository(dao.NewReputationDAO(db), s.newRedisClient(), s.cacheTTL())

	userSvc := service.NewUserService(userRepo)
	authSvc := service.NewAuthService(userRepo)
	ticketSvc := service.NewTicketService(ticketRepo, conf.Escrow.TicketsTransferable)
	reputationSvc := service.NewReputationService(reputationRepo, reputationRepo, ledger, clock, conf.Escrow.OwnerAddress)
	escrowSvc := service.NewEscrowService(bookingRepo, ticketSvc, ledger, reputationSvc, clock, service.EscrowParams{
		EscrowAddress: conf.Escrow.EscrowAddress,
		OwnerAddress:  conf.Escrow.OwnerAddress,
		FeeBps:        conf.Escrow.FeeBps,
		FeeRecipient:  conf.Escrow.FeeRecipient,
	})
	s.Sweeper = service.NewSweepService(escrowSvc, clock)

	authHandler := v1.NewAuthHandler(s.Config.API, authSvc)
	userHandler := v1.NewUserHandler(userSvc)
	bookingHandler := v1.NewBookingHandler(escrowSvc, ticketSvc, ledger, userSvc)
	reputationHandler := v1.NewReputationHandler(reputationSvc, userSvc)
	adminHandler := v1.NewAdminHandler(conf.Escrow.OwnerAddress, escrowSvc, reputationSvc, s.Sweeper, userSvc)

	s.MountHandlers(authHandler, userHandler, bookingHandler, reputationHandler, adminHandler)

	return s
}

func (s *Server) newRedisClient() *redis.Client {
	if s.Config.Redis == nil || s.Config.Redis.Addr == "" {
		return nil
	}

	return redis.NewClient(&redis.Options{
		Addr:     s.Config.Redis.Addr,
		Password: s.Config.Redis.Password,
		DB:       s.Config.Redis.DB,
	})
}

func (s *Server) cacheTTL() time.Duration {
	if s.Config.Redis == nil {
		return 0
	}

	return s.Config.Redis.CacheTTL
}

func (s *Server) MountMiddlewares() {
	// Logger and Recovery are needed unless we use gin.Default().
	s.Router.Use(gin.Logger())
	s.Router.Use(gin.Recovery())
	s.Router.Use(requestid.New())
	s.Router.Use(middleware.ConfigCORS(s.Config.API.AllowedCORSDomains))
}

func (s *Server) MountHandlers(authHandler *v1.AuthHandler, userHandler *v1.UserHandler, bookingHandler *v1.BookingHandler, reputationHandler *v1.ReputationHandler, adminHandler *v1.AdminHandler) {
	const basePath = "/api/v1"

	auth := s.Router.Group(basePath)
	{
		auth.POST("/auth/signup", authHandler.HandleSignup)
		auth.POST("/auth/login", authHandler.HandleLogin)
	}

	authed := s.Router.Group(basePath, middleware.NewAuthenticator(s.Config.API.JWTSigningKey).VerifyJWT())
	{
		authed.GET("/users/me", userHandler.HandleGetMe)
		authed.GET("/users/:userID", userHandler.HandleGetUser)

		authed.POST("/bookings", bookingHandler.HandleCreateBooking)
		authed.GET("/bookings", bookingHandler.HandleListMyBookings)
		authed.GET("/bookings/:bookingID", bookingHandler.HandleGetBooking)
		authed.POST("/bookings/:bookingID/accept", bookingHandler.HandleAcceptBooking)
		authed.POST("/bookings/:bookingID/reject", bookingHandler.HandleRejectBooking)
		authed.POST("/bookings/:bookingID/cancel", bookingHandler.HandleCancelBooking)
		authed.POST("/bookings/:bookingID/complete", bookingHandler.HandleCompleteSession)
		authed.POST("/bookings/:bookingID/dispute", bookingHandler.HandleReportDispute)
		authed.POST("/bookings/:bookingID/rate", bookingHandler.HandleRateSession)

		authed.GET("/tickets/:ticketID", bookingHandler.HandleGetTicket)
		authed.POST("/tickets/:ticketID/transfer", bookingHandler.HandleTransferTicket)

		authed.GET("/wallet/balance", bookingHandler.HandleGetWalletBalance)
		authed.POST("/wallet/deposit", bookingHandler.HandleDeposit)

		authed.GET("/reputation/:address", reputationHandler.HandleGetReputation)
		authed.GET("/reputation/:address/activity", reputationHandler.HandleGetActivity)
		authed.PUT("/social/metrics", reputationHandler.HandleUpdateSocialMetrics)

		authed.POST("/admin/transactions", reputationHandler.HandleTrackTransaction)
		authed.GET("/admin/fee", adminHandler.HandleGetFeeTerms)
		authed.PUT("/admin/fee", adminHandler.HandleSetPlatformFee)
		authed.PUT("/admin/fee/recipient", adminHandler.HandleSetFeeRecipient)
		authed.POST("/admin/bookings/:bookingID/resolve", adminHandler.HandleResolveDispute)
		authed.POST("/admin/sweep", adminHandler.HandleRunSweep)
		authed.GET("/admin/reputation/config", adminHandler.HandleGetPointConfig)
		authed.PUT("/admin/reputation/config", adminHandler.HandleSetPointConfig)
		authed.PUT("/admin/reputation/tiers", adminHandler.HandleSetTierThresholds)
		authed.POST("/admin/reputation/recompute", adminHandler.HandleRecomputeAll)
	}

	s.Router.GET("/", v1.HandleHealthcheck)

	// Setup Swagger UI.
	docs.SwaggerInfo.Host = s.Config.API.BaseURL
	docs.SwaggerInfo.BasePath = basePath
	docs.SwaggerInfo.Title = "KOL Time Booking API"
	docs.SwaggerInfo.Description = "Escrowed time-slot bookings between buyers and KOLs."
	docs.SwaggerInfo.Version = "1.0"
	s.Router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerfiles.Handler))
}
