// Package router wires handlers and middleware onto the Echo
// instance. Everything lives under /api; the credential endpoints and
// the health probe are public, everything else requires a bearer
// token.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/holyokefd/portal/internal/config"
	"github.com/holyokefd/portal/internal/handler"
	"github.com/holyokefd/portal/internal/middleware"
)

// Handlers collects every handler the router mounts.
type Handlers struct {
	Auth        *handler.AuthHandler
	Users       *handler.UserHandler
	Bulletins   *handler.BulletinHandler
	Messages    *handler.MessageHandler
	Admin       *handler.AdminHandler
	Attachments *handler.AttachmentHandler
}

// Register mounts all routes. The token bucket guards the credential
// endpoints against brute force; the response cache sits only on the
// permission probe, which every page load hits once per category.
func Register(e *echo.Echo, h Handlers, jwtSecret string, rdb *redis.Client, rlCfg config.RateLimitConfig, cacheCfg config.CacheConfig) {
	e.GET("/healthz", handler.Health)

	limited := middleware.NewTokenBucket(rlCfg, rdb)
	cached := middleware.NewRedisCache(cacheCfg, rdb)

	api := e.Group("/api")
	api.POST("/login", h.Auth.Login, limited)
	api.POST("/register", h.Auth.Register, limited)
	api.POST("/request-password-reset", h.Auth.RequestPasswordReset, limited)

	auth := api.Group("", middleware.JWTAuth(jwtSecret))

	auth.POST("/change-password", h.Auth.ChangePassword)

	auth.GET("/users", h.Users.List)
	auth.GET("/users/:id", h.Users.Get)
	auth.GET("/users/role/:role", h.Users.ListByRole)

	auth.GET("/bulletins", h.Bulletins.ListVisible)
	auth.GET("/bulletins/category/:category", h.Bulletins.ListByCategory)
	auth.GET("/bulletins/permissions/:category", h.Bulletins.Permissions, cached)
	auth.GET("/bulletins/unread-counts", h.Bulletins.UnreadCounts)
	auth.GET("/bulletins/read-status/:userId", h.Bulletins.ReadStatus)
	auth.GET("/bulletins/:id/attachments", h.Bulletins.ListAttachments)
	auth.POST("/bulletins", h.Bulletins.Create)
	auth.POST("/bulletins/:id/read", h.Bulletins.MarkRead)
	auth.DELETE("/bulletins/:id", h.Bulletins.Delete)

	auth.GET("/messages/inbox/:userId", h.Messages.Inbox)
	auth.GET("/messages/sent/:userId", h.Messages.Sent)
	auth.GET("/messages/read-status/:userId", h.Messages.ReadStatus)
	auth.GET("/messages/thread/:threadId", h.Messages.Thread)
	auth.GET("/messages/thread/:threadId/participants", h.Messages.Participants)
	auth.GET("/messages/:id/attachments", h.Messages.ListAttachments)
	auth.POST("/messages", h.Messages.Send)
	auth.POST("/messages/:id/read", h.Messages.MarkRead)
	auth.DELETE("/messages/:id", h.Messages.DeleteParticipation)

	auth.GET("/attachments/bulletins/:id/download", h.Attachments.DownloadBulletinAttachment)
	auth.GET("/attachments/messages/:id/download", h.Attachments.DownloadMessageAttachment)
	auth.DELETE("/attachments/:id", h.Attachments.Delete)

	auth.GET("/admin/users", h.Admin.ListUsers)
	auth.POST("/admin/users", h.Admin.CreateUser)
	auth.PUT("/admin/users/:id", h.Admin.UpdateUser)
	auth.DELETE("/admin/users/:id", h.Admin.DeleteUser)
	auth.POST("/admin/users/:id/reset-password", h.Admin.ResetUserPassword)
	auth.GET("/admin/pending-users", h.Admin.ListPendingUsers)
	auth.POST("/admin/approve-user/:id", h.Admin.ApproveUser)
	auth.POST("/admin/reject-user/:id", h.Admin.RejectUser)
	auth.GET("/admin/password-reset-requests", h.Admin.ListResetRequests)
	auth.POST("/admin/password-reset-requests/:id/approve", h.Admin.ApproveResetRequest)
	auth.POST("/admin/password-reset-requests/:id/reject", h.Admin.RejectResetRequest)
}
