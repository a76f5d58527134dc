package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/euOvictin/messaging-service/internal/domain"
)

// GET /api/v1/messages?otherUserId&page&limit
func (s *Server) getMessages(c *fiber.Ctx) error {
	ident := identityFrom(c)

	res, err := s.history.History(c.Context(),
		ident.UserID,
		c.Query("otherUserId"),
		c.QueryInt("page", 1),
		c.QueryInt("limit", 50),
	)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(res)
}

// GET /api/v1/conversations
func (s *Server) getConversations(c *fiber.Ctx) error {
	ident := identityFrom(c)

	convs, err := s.history.Conversations(c.Context(), ident.UserID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"conversations": convs})
}

func writeError(c *fiber.Ctx, err error) error {
	var de *domain.Error
	if !errors.As(err, &de) {
		de = domain.ErrInternal()
	}

	status := fiber.StatusInternalServerError
	switch de.Code {
	case domain.CodeInvalidData, domain.CodeMessageTooLong, domain.CodeInvalidReceiver:
		status = fiber.StatusBadRequest
	case domain.CodeUnauthorized:
		status = fiber.StatusUnauthorized
	case domain.CodeForbidden:
		status = fiber.StatusForbidden
	case domain.CodeNotFound:
		status = fiber.StatusNotFound
	}
	return c.Status(status).JSON(fiber.Map{"error": de})
}
