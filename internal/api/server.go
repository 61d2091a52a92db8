package api

import (
	"fmt"
	"io"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	swaggerfiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/gorm"

	"github.com/bartime/bartime-api/docs"
	v1 "github.com/bartime/bartime-api/internal/api/handler/v1"
	"github.com/bartime/bartime-api/internal/api/middleware"
	"github.com/bartime/bartime-api/internal/config"
	"github.com/bartime/bartime-api/internal/domain"
	"github.com/bartime/bartime-api/internal/repository"
	"github.com/bartime/bartime-api/internal/repository/dao"
	"github.com/bartime/bartime-api/internal/scan"
	"github.com/bartime/bartime-api/internal/service"
)

// Stores is the persistence the server runs on.
type Stores struct {
	Members service.MemberRepository
	Badges  service.BadgeRepository
	Ledger  service.LedgerRepository
	Catalog service.CatalogRepository
}

func PostgresStores(db *gorm.DB) Stores {
	return Stores{
		Members: repository.NewMemberRepository(dao.NewMemberDAO(db)),
		Badges:  repository.NewBadgeRepository(dao.NewBadgeDAO(db)),
		Ledger:  repository.NewLedgerRepository(dao.NewLedgerDAO(db)),
		Catalog: repository.NewCatalogRepository(dao.NewCatalogDAO(db)),
	}
}

type Server struct {
	Config *config.AppConfig
	Router *gin.Engine

	Ledger *service.LedgerService
	Hub    *scan.Hub

	stores    Stores
	accessLog io.Writer
}

type Option func(*Server)

// WithAccessLog sends the request log to w instead of gin.DefaultWriter.
func WithAccessLog(w io.Writer) Option {
	return func(s *Server) {
		s.accessLog = w
	}
}

func NewServer(conf *config.AppConfig, stores Stores, opts ...Option) (*Server, error) {
	gin.SetMode(conf.Gin.Mode)
	engine := gin.New()

	s := &Server{
		Config:    conf,
		Router:    engine,
		stores:    stores,
		accessLog: gin.DefaultWriter,
	}
	for _, opt := range opts {
		opt(s)
	}

	settings, err := LedgerSettings(conf.Ledger)
	if err != nil {
		return nil, err
	}
	s.Ledger = service.NewLedgerService(stores.Ledger, stores.Badges, stores.Members, settings)

	badgeSvc := service.NewBadgeService(stores.Badges, stores.Members, stores.Ledger)
	s.Hub = scan.NewHub(badgeSvc)

	s.MountMiddlewares()
	s.MountHandlers(badgeSvc)

	return s, nil
}

// LedgerSettings turns the ledger config block into service settings.
func LedgerSettings(conf *config.LedgerConfig) (service.LedgerSettings, error) {
	policy, err := conf.Policy()
	if err != nil {
		return service.LedgerSettings{}, fmt.Errorf("conf.Policy -> %w", err)
	}

	return service.LedgerSettings{
		Policy:          policy,
		MaxRetries:      conf.MaxRetries,
		HistoryMaxLimit: conf.HistoryMaxLimit,
	}, nil
}

func (s *Server) initAuthHandler() *v1.AuthHandler {
	svc := service.NewAuthService(s.stores.Members, s.Config.API.LoginAttemptsPerMinute)
	handler := v1.NewAuthHandler(s.Config.API, svc)

	return handler
}

func (s *Server) initMemberHandler() *v1.MemberHandler {
	svc := service.NewMemberService(s.stores.Members)
	handler := v1.NewMemberHandler(svc)

	return handler
}

func (s *Server) initLedgerHandler() *v1.LedgerHandler {
	catalog := service.NewCatalogService(s.stores.Catalog)
	checkout := service.NewCheckoutService(catalog, s.Ledger)
	handler := v1.NewLedgerHandler(s.Ledger, checkout)

	return handler
}

func (s *Server) initCatalogHandler() *v1.CatalogHandler {
	svc := service.NewCatalogService(s.stores.Catalog)
	handler := v1.NewCatalogHandler(svc)

	return handler
}

func (s *Server) MountMiddlewares() {
	// Logger and Recovery are needed unless we use gin.Default().
	s.Router.Use(middleware.AccessLog(s.accessLog))
	s.Router.Use(gin.Recovery())
	s.Router.Use(requestid.New())
	s.Router.Use(middleware.ConfigCORS(s.Config.API.AllowedCORSDomains))
}

func (s *Server) MountHandlers(badgeSvc *service.BadgeService) {
	const basePath = "/api/v1"

	authHandler := s.initAuthHandler()
	memberHandler := s.initMemberHandler()
	badgeHandler := v1.NewBadgeHandler(badgeSvc)
	ledgerHandler := s.initLedgerHandler()
	catalogHandler := s.initCatalogHandler()
	scanHandler := v1.NewScanHandler(s.Hub, s.Config.API.AllowedCORSDomains)

	auth := s.Router.Group(basePath)
	{
		auth.POST("/auth/register", authHandler.HandleRegister)
		auth.POST("/auth/login", authHandler.HandleLogin)
	}

	authenticated := s.Router.Group(basePath, middleware.NewAuthenticator(s.Config.API.JWTSigningKey, s.stores.Members).VerifyJWT())

	manageBar := middleware.Require(domain.PermissionManageBar)
	association := middleware.RequireAssociation()
	holder := middleware.RequireBadgeHolderOr(badgeSvc, "tagID", domain.PermissionManageBar)
	selfOrManageBar := middleware.RequireSelfOr("memberID", domain.PermissionManageBar)

	members := authenticated.Group("")
	{
		members.GET("/members/me", memberHandler.HandleMe)
		members.GET("/members", association, memberHandler.HandleList)
		members.POST("/members", association, memberHandler.HandleCreate)
		members.PUT("/members/:memberID/permissions", association, memberHandler.HandleSetPermissions)
		members.GET("/members/:memberID/badges", selfOrManageBar, badgeHandler.HandleListByMember)
		members.GET("/members/:memberID/transactions", selfOrManageBar, ledgerHandler.HandleMemberHistory)
		members.GET("/association", association, memberHandler.HandleGetAssociation)
		members.PUT("/association", association, memberHandler.HandleUpdateAssociation)
	}

	badges := authenticated.Group("")
	{
		badges.GET("/badges", manageBar, badgeHandler.HandleList)
		badges.POST("/badges/pair", manageBar, badgeHandler.HandlePair)
		badges.GET("/badges/:tagID", holder, badgeHandler.HandleGet)
		badges.PUT("/badges/:tagID/activate", manageBar, badgeHandler.HandleActivate)
		badges.PUT("/badges/:tagID/deactivate", manageBar, badgeHandler.HandleDeactivate)
		badges.DELETE("/badges/:tagID", association, badgeHandler.HandleRemove)

		badges.GET("/badges/:tagID/balance", holder, ledgerHandler.HandleBalance)
		badges.GET("/badges/:tagID/transactions", holder, ledgerHandler.HandleHistory)
		badges.POST("/badges/:tagID/charge", manageBar, ledgerHandler.HandleCharge)
		badges.POST("/badges/:tagID/topup", manageBar, ledgerHandler.HandleTopUp)
		badges.POST("/badges/:tagID/purchase", manageBar, ledgerHandler.HandlePurchase)
		badges.POST("/badges/:tagID/adjust", manageBar, ledgerHandler.HandleAdjust)
		badges.GET("/badges/:tagID/reconcile", association, ledgerHandler.HandleReconcile)
	}

	transactions := authenticated.Group("")
	{
		transactions.GET("/transactions", association, ledgerHandler.HandleAssociationHistory)
		transactions.GET("/transactions/:transactionID", manageBar, ledgerHandler.HandleGetTransaction)
	}

	catalog := authenticated.Group("")
	{
		catalog.GET("/categories", catalogHandler.HandleListCategories)
		catalog.POST("/categories", association, catalogHandler.HandleCreateCategory)
		catalog.PUT("/categories/:categoryID", association, catalogHandler.HandleUpdateCategory)
		catalog.DELETE("/categories/:categoryID", association, catalogHandler.HandleDeleteCategory)
		catalog.GET("/categories/:categoryID/usage", catalogHandler.HandleCategoryUsage)

		catalog.GET("/products", catalogHandler.HandleListProducts)
		catalog.GET("/products/:productID", catalogHandler.HandleGetProduct)
		catalog.POST("/products", association, catalogHandler.HandleCreateProduct)
		catalog.PUT("/products/:productID", association, catalogHandler.HandleUpdateProduct)
		catalog.DELETE("/products/:productID", association, catalogHandler.HandleDeleteProduct)
	}

	stations := authenticated.Group("", manageBar)
	{
		stations.POST("/stations/:stationID/scans", scanHandler.HandlePublish)
		stations.GET("/stations/:stationID/scans/next", scanHandler.HandleNext)
		stations.GET("/stations/:stationID/ws", scanHandler.HandleStream)
	}

	s.Router.GET("/", v1.HandleHealthcheck)

	// Setup Swagger UI.
	docs.SwaggerInfo.Host = s.Config.API.BaseURL
	docs.SwaggerInfo.BasePath = basePath
	docs.SwaggerInfo.Title = "BarTime API"
	docs.SwaggerInfo.Description = "Badge ledger for association bars."
	docs.SwaggerInfo.Version = "1.0"
	s.Router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerfiles.Handler))
}
