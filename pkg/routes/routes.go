package pkg

import (
	"Campus2Career/internal/application"
	"Campus2Career/internal/config"
	"Campus2Career/internal/marketplace"
	"Campus2Career/internal/notification"
	"Campus2Career/pkg/middleware"
	"context"
	"log"
	"os"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"go.uber.org/fx"
)

var ServerModules = fx.Module("server",
	fx.Provide(NewEchoServer),
	fx.Provide(config.NewMongoDBConfig),
	fx.Provide(config.NewMongoDBClient),
	fx.Provide(config.NewEmailConfig),
	fx.Provide(config.NewEmailService),
	fx.Provide(marketplace.NewClientConfig),
	fx.Provide(marketplace.NewHTTPClient),
	fx.Provide(notification.NewNotificationRepository),
	fx.Provide(notification.NewNotificationService),
	fx.Provide(notification.NewDispatchWorker),
	fx.Provide(notification.NewNotificationHandler),
	fx.Provide(application.NewApplicationRepository),
	fx.Provide(application.NewApplicationService),
	fx.Provide(application.NewApplicationHandler),
	fx.Invoke(EnsureIndexes),
	fx.Invoke(StartDispatchWorker),
	fx.Invoke(RegisterRoutes))

func NewEchoServer(lc fx.Lifecycle) *echo.Echo {
	e := echo.New()
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins: []string{"http://localhost:5173"},
		AllowMethods: []string{echo.GET, echo.POST, echo.PUT, echo.DELETE, echo.OPTIONS},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Println("Server running on http://localhost:" + port)
				if err := e.Start(":" + port); err != nil {
					log.Println("Server stopped:", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Println("Shutting down the server ...")
			return e.Shutdown(ctx)
		},
	})
	return e
}

func EnsureIndexes(client *config.MongoDBClient) {
	config.UniquePendingApplicationIndex(client.GetCollection("applications"))
	config.RecipientCreatedAtIndex(client.GetCollection("notifications"))
}

func StartDispatchWorker(worker *notification.DispatchWorker, lc fx.Lifecycle) {
	worker.StartWorker(lc)
}

func RegisterRoutes(e *echo.Echo, appHandler *application.ApplicationHandler, notifHandler *notification.NotificationHandler) {
	api := e.Group("/api")
	api.Use(middleware.JWTMiddleware)
	api.Use(middleware.CasbinMiddleware)

	api.POST("/applications", appHandler.Submit)
	api.GET("/applications/student", appHandler.ListMine)
	api.GET("/listings/:id/applications", appHandler.ListForListing)
	api.POST("/applications/:id/accept", appHandler.Accept)
	api.POST("/applications/:id/decline", appHandler.Decline)
	api.POST("/transactions/:id/complete", appHandler.Complete)

	api.POST("/invites", appHandler.CreateInvite)
	api.GET("/invites", appHandler.ListInvites)
	api.POST("/invites/:id/respond", appHandler.RespondInvite)

	api.POST("/ndas", appHandler.SignNDA)
	api.GET("/ndas/:listingId", appHandler.CheckNDA)

	api.GET("/notifications", notifHandler.ListNotifications)
	api.POST("/notifications/:id/read", notifHandler.MarkRead)
	api.POST("/notifications/read-all", notifHandler.MarkAllRead)

	api.POST("/admin/notifications", notifHandler.Broadcast)
}
