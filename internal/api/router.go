package api

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/your-org/photomarket/internal/api/handlers"
	"github.com/your-org/photomarket/internal/api/ws"
	"github.com/your-org/photomarket/internal/auth"
	"github.com/your-org/photomarket/internal/ledger"
	"github.com/your-org/photomarket/internal/matching"
	"github.com/your-org/photomarket/internal/queue"
	"github.com/your-org/photomarket/internal/storage"
)

type RouterConfig struct {
	APIKey      string
	JWTSecret   string
	MaxUploadMB int64
	DB          storage.Store
	Objects     storage.ObjectStore
	Processing  handlers.Processing
	Index       *matching.Service
	Ledger      *ledger.Service
	// Tasks is nil when everything runs in-process.
	Tasks  queue.TaskPublisher
	Hub    *ws.Hub
	Checks map[string]handlers.Check
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(LoggingMiddleware())
	r.Use(cors.Default())

	// System endpoints (no auth)
	systemH := handlers.NewSystemHandler(cfg.Checks)
	r.GET("/healthz", systemH.Healthz)
	r.GET("/readyz", systemH.Readyz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	ledgerH := handlers.NewLedgerHandler(cfg.Ledger, cfg.Objects)
	r.POST("/webhooks/payments", ledgerH.PaymentWebhook)

	// API v1 (signed-in users)
	v1 := r.Group("/v1")
	v1.Use(auth.BearerMiddleware(cfg.JWTSecret))

	v1.GET("/ws", cfg.Hub.HandleWS)

	// Profiles
	profileH := handlers.NewProfileHandler(cfg.DB, cfg.Objects, cfg.Processing, cfg.Index)
	v1.POST("/me/photographer", profileH.CreatePhotographer)
	v1.POST("/me/client", profileH.CreateClient)
	v1.POST("/me/selfie", profileH.UploadSelfie)
	v1.GET("/me/selfie", profileH.GetSelfie)
	v1.POST("/me/rescan", profileH.Rescan)
	v1.GET("/me/photos", profileH.MyPhotos)
	v1.GET("/me/transactions", profileH.Transactions)

	// Events
	eventH := handlers.NewEventHandler(cfg.DB)
	v1.POST("/events", eventH.Create)
	v1.GET("/events/:id", eventH.Get)

	// Photos
	photoH := handlers.NewPhotoHandler(cfg.DB, cfg.Objects, cfg.Processing, cfg.MaxUploadMB)
	v1.POST("/photos", photoH.Upload)
	v1.GET("/photos/:id/faces", photoH.Faces)
	v1.POST("/photos/:id/visibility", photoH.SetVisibility)

	// Ledger
	v1.POST("/photos/:id/purchase", ledgerH.Purchase)
	v1.GET("/purchases/:id", ledgerH.GetPurchase)
	v1.GET("/purchases/:id/download/:token", ledgerH.Download)
	v1.POST("/photos/:id/deletion-requests", ledgerH.RequestDeletion)
	v1.GET("/deletion-requests/:id", ledgerH.GetDeletionRequest)
	v1.POST("/deletion-requests/:id/resolve", ledgerH.ResolveDeletion)
	v1.POST("/withdrawals", ledgerH.RequestWithdrawal)
	v1.GET("/withdrawals/:id", ledgerH.GetWithdrawal)

	// Operators
	admin := r.Group("/admin")
	admin.Use(auth.APIKeyMiddleware(cfg.APIKey))
	adminH := handlers.NewAdminHandler(cfg.Index, cfg.Ledger, cfg.Tasks)
	admin.POST("/rematch", adminH.Rematch)
	admin.POST("/withdrawals/:id/status", adminH.SetWithdrawalStatus)

	return r
}
