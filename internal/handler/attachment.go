package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/holyokefd/portal/internal/authz"
	"github.com/holyokefd/portal/internal/repository"
	"github.com/holyokefd/portal/internal/storage"
)

// AttachmentHandler streams and deletes stored files. Downloads are
// authorized against the owning bulletin's view policy or the owning
// thread's participant list; the two download routes can never serve
// each other's files.
type AttachmentHandler struct {
	Users       *repository.UserRepo
	Bulletins   *repository.BulletinRepo
	Messages    *repository.MessageRepo
	Attachments *repository.AttachmentRepo
	Store       *storage.Store
}

func NewAttachmentHandler(u *repository.UserRepo, b *repository.BulletinRepo, m *repository.MessageRepo, a *repository.AttachmentRepo, s *storage.Store) *AttachmentHandler {
	return &AttachmentHandler{Users: u, Bulletins: b, Messages: m, Attachments: a, Store: s}
}

// DownloadBulletinAttachment streams a bulletin's file to a viewer
// the category policy admits.
func (h *AttachmentHandler) DownloadBulletinAttachment(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid attachment id"})
	}
	viewerID, err := queryUserID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "userId required"})
	}
	if !actorAllowed(c, viewerID) {
		return forbidden(c)
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	viewer, err := h.Users.GetByID(ctx, viewerID)
	if err != nil {
		return fail(c, err, "download-bulletin-attachment", viewerID)
	}
	att, err := h.Attachments.GetBulletinAttachment(ctx, id)
	if err != nil {
		return fail(c, err, "download-bulletin-attachment", viewerID)
	}
	b, err := h.Bulletins.Get(ctx, *att.BulletinID)
	if err != nil {
		return fail(c, err, "download-bulletin-attachment", viewerID)
	}
	if !authz.CanView(viewer.Roles, b.Category) {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}
	return h.stream(c, att.FilePath, att.OriginalFilename, att.MimeType, viewerID)
}

// DownloadMessageAttachment streams a message's file to a current
// participant of its thread.
func (h *AttachmentHandler) DownloadMessageAttachment(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid attachment id"})
	}
	viewerID, err := queryUserID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "userId required"})
	}
	if !actorAllowed(c, viewerID) {
		return forbidden(c)
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	att, err := h.Attachments.GetMessageAttachment(ctx, id)
	if err != nil {
		return fail(c, err, "download-message-attachment", viewerID)
	}
	threadID, err := h.Messages.ThreadIDOf(ctx, *att.MessageID)
	if err != nil {
		return fail(c, err, "download-message-attachment", viewerID)
	}
	ok, err := h.Messages.IsParticipant(ctx, threadID, viewerID)
	if err != nil {
		return fail(c, err, "download-message-attachment", viewerID)
	}
	if !ok {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}
	return h.stream(c, att.FilePath, att.OriginalFilename, att.MimeType, viewerID)
}

// stream serves the blob under its original filename. Metadata whose
// blob has gone missing is reported as 410, distinct from the 404 a
// missing metadata row produces.
func (h *AttachmentHandler) stream(c echo.Context, path, originalName, mimeType string, viewerID uint64) error {
	f, err := h.Store.Open(path)
	if err != nil {
		if errors.Is(err, storage.ErrFileMissing) {
			return c.JSON(http.StatusGone, echo.Map{"error": "file no longer available"})
		}
		return fail(c, err, "stream-attachment", viewerID)
	}
	defer f.Close()

	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf(`attachment; filename=%q`, originalName))
	return c.Stream(http.StatusOK, mimeType, f)
}

// Delete removes an attachment row and its blob. Admin only.
func (h *AttachmentHandler) Delete(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid attachment id"})
	}
	var req actorReq
	if err := c.Bind(&req); err != nil || req.UserID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "userId required"})
	}
	if !actorAllowed(c, req.UserID) {
		return forbidden(c)
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	actor, err := h.Users.GetByID(ctx, req.UserID)
	if err != nil {
		return fail(c, err, "delete-attachment", req.UserID)
	}
	if !authz.IsOverride(actor.Roles) {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}
	path, err := h.Attachments.Delete(ctx, id)
	if err != nil {
		return fail(c, err, "delete-attachment", req.UserID)
	}
	_ = h.Store.Remove(path)
	return c.JSON(http.StatusOK, echo.Map{"success": true})
}
