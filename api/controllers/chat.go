package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/otesta/otesta-backend/api/middleware"
	"github.com/otesta/otesta-backend/api/responses"
	"github.com/otesta/otesta-backend/api/validators"
	"github.com/otesta/otesta-backend/internal/chat"
	"github.com/otesta/otesta-backend/pkg/enums"
	"github.com/otesta/otesta-backend/pkg/logger"

	pkgerrors "github.com/otesta/otesta-backend/pkg/errors"
)

type sendChatMessageRequest struct {
	Text       string           `json:"text" validate:"required"`
	ThreadID   string           `json:"thread_id"`
	ProductRef *chat.ProductRef `json:"product_ref"`
}

// participantRole maps the authenticated role onto the conversation side it
// speaks for. Everyone who is not an admin is the client.
func participantRole(r *http.Request) enums.ParticipantRole {
	if middleware.RoleFromContext(r.Context()) == string(enums.UserRoleAdmin) {
		return enums.ParticipantAdmin
	}
	return enums.ParticipantUser
}

// OpenConversation returns the shopper's active conversation, creating one
// seeded with the storefront welcome message when none exists.
func OpenConversation(svc chat.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "chat service unavailable"))
			return
		}
		email, ok := cartOwner(r, logg, w)
		if !ok {
			return
		}

		conversation, err := svc.Open(r.Context(), email, middleware.UserNameFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, conversation)
	}
}

// GetConversation fetches one conversation. Shoppers only see their own; a
// foreign conversation reads as not found. An optional sender query narrows
// the root messages to one side of the conversation.
func GetConversation(svc chat.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "chat service unavailable"))
			return
		}
		email, ok := cartOwner(r, logg, w)
		if !ok {
			return
		}

		conversation, err := svc.Get(r.Context(), chi.URLParam(r, "conversationID"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if participantRole(r) != enums.ParticipantAdmin && conversation.ClientEmail != email {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "conversation not found"))
			return
		}

		if raw := validators.QueryString(r, "sender", ""); raw != "" {
			sender, parseErr := enums.ParseParticipantRole(raw)
			if parseErr != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, parseErr, "invalid sender filter"))
				return
			}
			conversation.Messages = chat.FilterBySender(conversation.Messages, sender)
		}
		responses.WriteSuccess(w, conversation)
	}
}

// SendChatMessage appends a root message or a thread reply. Shoppers write to
// their own conversation only.
func SendChatMessage(svc chat.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "chat service unavailable"))
			return
		}
		email, ok := cartOwner(r, logg, w)
		if !ok {
			return
		}

		var req sendChatMessageRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		conversationID := chi.URLParam(r, "conversationID")
		role := participantRole(r)

		if role != enums.ParticipantAdmin {
			conversation, err := svc.Get(r.Context(), conversationID)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			if conversation.ClientEmail != email {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "conversation not found"))
				return
			}
		}

		message, err := svc.Send(r.Context(), conversationID, chat.SendInput{
			Sender:      role,
			SenderEmail: email,
			SenderName:  middleware.UserNameFromContext(r.Context()),
			Text:        req.Text,
			ThreadID:    req.ThreadID,
			ProductRef:  req.ProductRef,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, message)
	}
}

// MarkConversationRead clears the unread counter for the caller's side.
func MarkConversationRead(svc chat.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "chat service unavailable"))
			return
		}
		email, ok := cartOwner(r, logg, w)
		if !ok {
			return
		}

		conversationID := chi.URLParam(r, "conversationID")
		role := participantRole(r)

		if role != enums.ParticipantAdmin {
			conversation, err := svc.Get(r.Context(), conversationID)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			if conversation.ClientEmail != email {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "conversation not found"))
				return
			}
		}

		if err := svc.MarkRead(r.Context(), conversationID, role); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "read"})
	}
}

// ListConversations is the admin inbox.
func ListConversations(svc chat.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "chat service unavailable"))
			return
		}

		conversations, err := svc.List(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, conversations)
	}
}

func CloseConversation(svc chat.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "chat service unavailable"))
			return
		}

		if err := svc.CloseConversation(r.Context(), chi.URLParam(r, "conversationID")); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "closed"})
	}
}
