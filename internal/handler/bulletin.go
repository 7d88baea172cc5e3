package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/holyokefd/portal/internal/authz"
	"github.com/holyokefd/portal/internal/model"
	"github.com/holyokefd/portal/internal/queue"
	"github.com/holyokefd/portal/internal/repository"
	notifier "github.com/holyokefd/portal/internal/service"
	"github.com/holyokefd/portal/internal/storage"
)

// BulletinHandler serves the category boards.
type BulletinHandler struct {
	Users       *repository.UserRepo
	Bulletins   *repository.BulletinRepo
	Attachments *repository.AttachmentRepo
	Store       *storage.Store
}

func NewBulletinHandler(u *repository.UserRepo, b *repository.BulletinRepo, a *repository.AttachmentRepo, s *storage.Store) *BulletinHandler {
	return &BulletinHandler{Users: u, Bulletins: b, Attachments: a, Store: s}
}

type bulletinResp struct {
	model.Bulletin
	Attachments []model.Attachment `json:"attachments"`
}

type actorReq struct {
	UserID uint64 `json:"userId"`
}

// viewer loads the acting user named by the userId query parameter.
// The named id must match the bearer token's subject.
func (h *BulletinHandler) viewer(ctx context.Context, c echo.Context) (*model.User, error) {
	id, err := queryUserID(c)
	if err != nil {
		return nil, repository.ErrValidation
	}
	if !actorAllowed(c, id) {
		return nil, repository.ErrForbidden
	}
	return h.Users.GetByID(ctx, id)
}

// ListByCategory returns a category's bulletins with their attachment
// metadata. A viewer the policy denies gets an empty array, the same
// shape an empty category produces.
func (h *BulletinHandler) ListByCategory(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	viewer, err := h.viewer(ctx, c)
	if err != nil {
		return fail(c, err, "list-bulletins", 0)
	}
	bulletins, err := h.Bulletins.ListByCategory(ctx, c.Param("category"), viewer)
	if err != nil {
		return fail(c, err, "list-bulletins", viewer.ID)
	}
	out := []bulletinResp{}
	for _, b := range bulletins {
		atts, err := h.Attachments.ListByBulletin(ctx, b.ID)
		if err != nil {
			return fail(c, err, "list-bulletins", viewer.ID)
		}
		out = append(out, bulletinResp{Bulletin: b, Attachments: atts})
	}
	return c.JSON(http.StatusOK, out)
}

// Permissions reports what the acting user may do in a category. The
// client uses it to decide which buttons to draw; every mutating
// endpoint re-checks on its own, so a stale answer here is harmless.
func (h *BulletinHandler) Permissions(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	viewer, err := h.viewer(ctx, c)
	if err != nil {
		return fail(c, err, "bulletin-permissions", 0)
	}
	category := c.Param("category")
	return c.JSON(http.StatusOK, echo.Map{
		"canView":   authz.CanView(viewer.Roles, category),
		"canPost":   authz.CanPost(viewer.Roles, category),
		"canDelete": authz.CanDelete(viewer.Roles, category),
	})
}

// Create posts a bulletin from a multipart form (title, body,
// category, userId, files[]). Uploaded blobs are unlinked again if
// the insert fails, so a rejected post leaves nothing on disk.
func (h *BulletinHandler) Create(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	actorID, err := queryOrFormUserID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "userId required"})
	}
	if !actorAllowed(c, actorID) {
		return forbidden(c)
	}
	author, err := h.Users.GetByID(ctx, actorID)
	if err != nil {
		return fail(c, err, "create-bulletin", actorID)
	}

	title := c.FormValue("title")
	body := c.FormValue("body")
	category := c.FormValue("category")
	if !authz.ValidCategory(category) {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}

	inputs, err := h.saveUploads(c)
	if err != nil {
		return uploadError(c, err)
	}

	id, err := h.Bulletins.Create(ctx, title, body, category, author, inputs)
	if err != nil {
		for _, in := range inputs {
			_ = h.Store.Remove(in.FilePath)
		}
		return fail(c, err, "create-bulletin", actorID)
	}

	_ = notifier.PublishBulletinPosted(ctx, queue.BulletinPostedEvent{
		BulletinID: id,
		Category:   category,
		Title:      title,
		AuthorID:   author.ID,
		AuthorName: author.Name,
		PostedAt:   time.Now().UTC().Format(time.RFC3339),
	})
	return c.JSON(http.StatusCreated, echo.Map{"success": true, "id": id})
}

// Delete removes a bulletin when the actor passes the category's
// delete policy or authored it.
func (h *BulletinHandler) Delete(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid bulletin id"})
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
		return fail(c, err, "delete-bulletin", req.UserID)
	}
	if err := h.Bulletins.Delete(ctx, id, actor); err != nil {
		return fail(c, err, "delete-bulletin", req.UserID)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true})
}

// MarkRead records a first view. Repeats are no-ops.
func (h *BulletinHandler) MarkRead(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid bulletin id"})
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

	if err := h.Bulletins.MarkRead(ctx, req.UserID, id); err != nil {
		return fail(c, err, "mark-bulletin-read", req.UserID)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true})
}

// ListVisible returns the id/category/timestamp of every bulletin the
// viewer's role set admits, for client-side badge computation.
func (h *BulletinHandler) ListVisible(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	viewer, err := h.viewer(ctx, c)
	if err != nil {
		return fail(c, err, "list-visible-bulletins", 0)
	}
	refs, err := h.Bulletins.ListVisible(ctx, viewer)
	if err != nil {
		return fail(c, err, "list-visible-bulletins", viewer.ID)
	}
	return c.JSON(http.StatusOK, refs)
}

// ReadStatus returns the ids of bulletins the user has opened.
func (h *BulletinHandler) ReadStatus(c echo.Context) error {
	userID, err := paramID(c, "userId")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user id"})
	}
	if !actorAllowed(c, userID) {
		return forbidden(c)
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	ids, err := h.Bulletins.ReadBulletinIDs(ctx, userID)
	if err != nil {
		return fail(c, err, "bulletin-read-status", userID)
	}
	return c.JSON(http.StatusOK, ids)
}

// UnreadCounts returns the viewer's unread-bulletin count per visible
// category, for the badge row on the home screen.
func (h *BulletinHandler) UnreadCounts(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	viewer, err := h.viewer(ctx, c)
	if err != nil {
		return fail(c, err, "bulletin-unread-counts", 0)
	}
	refs, err := h.Bulletins.ListVisible(ctx, viewer)
	if err != nil {
		return fail(c, err, "bulletin-unread-counts", viewer.ID)
	}
	readIDs, err := h.Bulletins.ReadBulletinIDs(ctx, viewer.ID)
	if err != nil {
		return fail(c, err, "bulletin-unread-counts", viewer.ID)
	}
	read := make(map[uint64]bool, len(readIDs))
	for _, id := range readIDs {
		read[id] = true
	}
	counts := map[string]int{}
	for _, ref := range refs {
		if !read[ref.ID] {
			counts[ref.Category]++
		}
	}
	return c.JSON(http.StatusOK, counts)
}

// ListAttachments returns a bulletin's attachment metadata, subject
// to the category view policy.
func (h *BulletinHandler) ListAttachments(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid bulletin id"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	viewer, err := h.viewer(ctx, c)
	if err != nil {
		return fail(c, err, "list-bulletin-attachments", 0)
	}
	b, err := h.Bulletins.Get(ctx, id)
	if err != nil {
		return fail(c, err, "list-bulletin-attachments", viewer.ID)
	}
	if !authz.CanView(viewer.Roles, b.Category) {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}
	atts, err := h.Attachments.ListByBulletin(ctx, id)
	if err != nil {
		return fail(c, err, "list-bulletin-attachments", viewer.ID)
	}
	return c.JSON(http.StatusOK, atts)
}

// saveUploads persists every file in the multipart form's files[]
// field and returns their metadata. A form without files is fine.
func (h *BulletinHandler) saveUploads(c echo.Context) ([]repository.AttachmentInput, error) {
	return saveUploads(c, h.Store)
}
