package httpserver

import (
	"log/slog"
	"net/http"

	"github.com/aicourt/backend/internal/middleware"
	"github.com/aicourt/backend/internal/models"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
)

type Deps struct {
	Auth      *AuthHTTP
	Documents *DocumentHTTP
	TokenAuth *middleware.TokenAuth

	Logger     *slog.Logger
	CORSOrigin string
}

func Register(e *echo.Echo, d *Deps) {
	e.Use(middleware.RequestLogger(d.Logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: []string{d.CORSOrigin},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAuthorization},
	}))

	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	api := e.Group("/api")

	auth := api.Group("/auth")
	auth.POST("/signup", d.Auth.Signup)
	auth.POST("/login", d.Auth.Login)
	auth.POST("/firebase-login", d.Auth.FirebaseLogin)
	auth.POST("/firebase-signup", d.Auth.FirebaseSignup)

	authPrivate := api.Group("/auth")
	authPrivate.Use(d.TokenAuth.RequireAuth)
	authPrivate.GET("/profile", d.Auth.Profile)
	authPrivate.PUT("/profile", d.Auth.UpdateProfile)
	authPrivate.PUT("/change-password", d.Auth.ChangePassword)
	authPrivate.POST("/verify", d.Auth.Verify)
	authPrivate.POST("/logout", d.Auth.Logout)

	docs := api.Group("/documents")
	docs.Use(d.TokenAuth.RequireAuth)
	docs.POST("/upload", d.Documents.Upload)
	docs.GET("/my-documents", d.Documents.MyDocuments)
	docs.GET("/all", d.Documents.AllDocuments, middleware.RequireRole(models.RoleOfficial))
	docs.GET("/:id", d.Documents.GetDocument)
	docs.GET("/:id/download", d.Documents.Download)
	docs.PATCH("/:id/sign", d.Documents.Sign, middleware.RequireRole(models.RoleOfficial))
	docs.PATCH("/:id/status", d.Documents.SetStatus, middleware.RequireRole(models.RoleOfficial))
	docs.DELETE("/:id", d.Documents.Delete)
}
