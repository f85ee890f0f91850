package catalog

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// Handler exposes the public directory endpoints.
type Handler struct {
	repo Repository
}

// NewHandler constructs a directory handler.
func NewHandler(repo Repository) *Handler {
	return &Handler{repo: repo}
}

type entryResponse struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	IsActive bool   `json:"is_active"`
}

// Countries lists active countries.
func (h *Handler) Countries(c *fiber.Ctx) error {
	countries, err := h.repo.ListCountries(c.UserContext(), true)
	if err != nil {
		return err
	}
	out := make([]entryResponse, len(countries))
	for i, country := range countries {
		out[i] = entryResponse{ID: country.ID, Name: country.Name, IsActive: country.IsActive}
	}
	return c.Status(http.StatusOK).JSON(out)
}

// Banks lists active banks, optionally filtered by the country_id query parameter.
func (h *Handler) Banks(c *fiber.Ctx) error {
	countryID := c.QueryInt("country_id", 0)
	if countryID < 0 {
		return fiber.NewError(http.StatusBadRequest, "invalid country_id")
	}
	banks, err := h.repo.ListBanks(c.UserContext(), int64(countryID), true)
	if err != nil {
		return err
	}
	out := make([]entryResponse, len(banks))
	for i, bank := range banks {
		out[i] = entryResponse{ID: bank.ID, Name: bank.DisplayName, IsActive: bank.IsActive}
	}
	return c.Status(http.StatusOK).JSON(out)
}
