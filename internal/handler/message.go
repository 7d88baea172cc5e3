package handler

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/holyokefd/portal/internal/model"
	"github.com/holyokefd/portal/internal/queue"
	"github.com/holyokefd/portal/internal/repository"
	notifier "github.com/holyokefd/portal/internal/service"
	"github.com/holyokefd/portal/internal/storage"
)

// MessageHandler serves the internal messaging endpoints.
type MessageHandler struct {
	Users       *repository.UserRepo
	Messages    *repository.MessageRepo
	Attachments *repository.AttachmentRepo
	Store       *storage.Store
}

func NewMessageHandler(u *repository.UserRepo, m *repository.MessageRepo, a *repository.AttachmentRepo, s *storage.Store) *MessageHandler {
	return &MessageHandler{Users: u, Messages: m, Attachments: a, Store: s}
}

type messageResp struct {
	model.Message
	Attachments []model.Attachment `json:"attachments"`
}

// Inbox returns the latest message per thread the user participates
// in, most recent activity first.
func (h *MessageHandler) Inbox(c echo.Context) error {
	userID, err := paramID(c, "userId")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user id"})
	}
	if !actorAllowed(c, userID) {
		return forbidden(c)
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	entries, err := h.Messages.Inbox(ctx, userID)
	if err != nil {
		return fail(c, err, "inbox", userID)
	}
	return c.JSON(http.StatusOK, entries)
}

// Sent returns messages the user authored, newest first.
func (h *MessageHandler) Sent(c echo.Context) error {
	userID, err := paramID(c, "userId")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user id"})
	}
	if !actorAllowed(c, userID) {
		return forbidden(c)
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	msgs, err := h.Messages.Sent(ctx, userID)
	if err != nil {
		return fail(c, err, "sent-messages", userID)
	}
	return c.JSON(http.StatusOK, msgs)
}

// Send delivers a message from a multipart form (senderId, to as a
// JSON array of user ids, subject, body, optional threadId and
// parentMessageId, files[]). Attachments are linked after the send
// commits: a failed attachment insert logs and skips the file rather
// than unsending the message.
func (h *MessageHandler) Send(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	senderID, err := parseFormUint(c, "senderId")
	if err != nil || senderID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "senderId required"})
	}
	if !actorAllowed(c, senderID) {
		return forbidden(c)
	}
	sender, err := h.Users.GetByID(ctx, senderID)
	if err != nil {
		return fail(c, err, "send-message", senderID)
	}

	var recipientIDs []uint64
	if err := json.Unmarshal([]byte(c.FormValue("to")), &recipientIDs); err != nil || len(recipientIDs) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "to must be a non-empty array of user ids"})
	}

	var threadID, parentMessageID *uint64
	if v, err := parseFormUint(c, "threadId"); err == nil && v != 0 {
		threadID = &v
	}
	if v, err := parseFormUint(c, "parentMessageId"); err == nil && v != 0 {
		parentMessageID = &v
	}

	// Replies must come from a current participant; naming yourself a
	// recipient is not a way back into a deleted thread.
	if threadID != nil {
		ok, err := h.Messages.IsParticipant(ctx, *threadID, senderID)
		if err != nil {
			return fail(c, err, "send-message", senderID)
		}
		if !ok {
			return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
		}
	}

	inputs, err := saveUploads(c, h.Store)
	if err != nil {
		return uploadError(c, err)
	}

	msgID, resolvedThreadID, err := h.Messages.Send(ctx, senderID, recipientIDs,
		c.FormValue("subject"), c.FormValue("body"), threadID, parentMessageID)
	if err != nil {
		for _, in := range inputs {
			_ = h.Store.Remove(in.FilePath)
		}
		return fail(c, err, "send-message", senderID)
	}
	for _, in := range inputs {
		if err := h.Attachments.AddToMessage(ctx, msgID, in); err != nil {
			log.Printf("send-message: attach %s to message %d: %v", in.Filename, msgID, err)
			_ = h.Store.Remove(in.FilePath)
		}
	}

	_ = notifier.PublishMessageSent(ctx, queue.MessageSentEvent{
		MessageID:    msgID,
		ThreadID:     resolvedThreadID,
		SenderID:     senderID,
		SenderName:   sender.Name,
		Subject:      c.FormValue("subject"),
		RecipientIDs: recipientIDs,
		SentAt:       time.Now().UTC().Format(time.RFC3339),
	})
	return c.JSON(http.StatusCreated, echo.Map{"success": true, "id": msgID, "threadId": resolvedThreadID})
}

// Thread returns a thread's messages in posting order, with their
// attachments, for current participants only.
func (h *MessageHandler) Thread(c echo.Context) error {
	threadID, err := paramID(c, "threadId")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid thread id"})
	}
	requesterID, err := queryUserID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "userId required"})
	}
	if !actorAllowed(c, requesterID) {
		return forbidden(c)
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	msgs, err := h.Messages.Thread(ctx, threadID, requesterID)
	if err != nil {
		return fail(c, err, "thread", requesterID)
	}
	out := []messageResp{}
	for _, m := range msgs {
		atts, err := h.Attachments.ListByMessage(ctx, m.ID)
		if err != nil {
			return fail(c, err, "thread", requesterID)
		}
		out = append(out, messageResp{Message: m, Attachments: atts})
	}
	return c.JSON(http.StatusOK, out)
}

// Participants returns a thread's current audience, for participants
// only.
func (h *MessageHandler) Participants(c echo.Context) error {
	threadID, err := paramID(c, "threadId")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid thread id"})
	}
	requesterID, err := queryUserID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "userId required"})
	}
	if !actorAllowed(c, requesterID) {
		return forbidden(c)
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	ok, err := h.Messages.IsParticipant(ctx, threadID, requesterID)
	if err != nil {
		return fail(c, err, "thread-participants", requesterID)
	}
	if !ok {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}
	parts, err := h.Messages.Participants(ctx, threadID)
	if err != nil {
		return fail(c, err, "thread-participants", requesterID)
	}
	return c.JSON(http.StatusOK, parts)
}

// DeleteParticipation removes the caller from the audience of the
// thread the message belongs to. History survives for everyone else.
func (h *MessageHandler) DeleteParticipation(c echo.Context) error {
	msgID, err := paramID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid message id"})
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

	if err := h.Messages.DeleteParticipation(ctx, msgID, req.UserID); err != nil {
		return fail(c, err, "delete-participation", req.UserID)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true})
}

// MarkRead records that the user opened the message. Repeats are
// no-ops.
func (h *MessageHandler) MarkRead(c echo.Context) error {
	msgID, err := paramID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid message id"})
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

	if err := h.Messages.MarkRead(ctx, req.UserID, msgID); err != nil {
		return fail(c, err, "mark-message-read", req.UserID)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true})
}

// ListAttachments returns a message's attachment metadata, for
// current participants of its thread.
func (h *MessageHandler) ListAttachments(c echo.Context) error {
	msgID, err := paramID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid message id"})
	}
	requesterID, err := queryUserID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "userId required"})
	}
	if !actorAllowed(c, requesterID) {
		return forbidden(c)
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	threadID, err := h.Messages.ThreadIDOf(ctx, msgID)
	if err != nil {
		return fail(c, err, "list-message-attachments", requesterID)
	}
	ok, err := h.Messages.IsParticipant(ctx, threadID, requesterID)
	if err != nil {
		return fail(c, err, "list-message-attachments", requesterID)
	}
	if !ok {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}
	atts, err := h.Attachments.ListByMessage(ctx, msgID)
	if err != nil {
		return fail(c, err, "list-message-attachments", requesterID)
	}
	return c.JSON(http.StatusOK, atts)
}

// ReadStatus returns the ids of messages the user has opened, for
// unread badges and read receipts.
func (h *MessageHandler) ReadStatus(c echo.Context) error {
	userID, err := paramID(c, "userId")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user id"})
	}
	if !actorAllowed(c, userID) {
		return forbidden(c)
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	ids, err := h.Messages.ReadMessageIDs(ctx, userID)
	if err != nil {
		return fail(c, err, "message-read-status", userID)
	}
	return c.JSON(http.StatusOK, ids)
}
