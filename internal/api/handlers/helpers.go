package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/maheshrc27/postflow/internal/api/middleware"
)

func GetOrganizationID(c *fiber.Ctx) int64 {
	s, _ := c.Locals(middleware.OrganizationIDKey).(string)
	id, _ := strconv.ParseInt(s, 10, 64)
	return id
}

func postIDParam(c *fiber.Ctx) (int64, error) {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "invalid post id")
	}
	return int64(id), nil
}
