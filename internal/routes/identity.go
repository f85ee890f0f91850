package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/nightlab/exchange/internal/catalog"
	"github.com/nightlab/exchange/internal/identity"
)

// RegisterIdentityRoutes wires the caller's profile endpoint.
func RegisterIdentityRoutes(r fiber.Router, h *identity.Handler) {
	r.Get("/user/profile", h.Profile)
}

// RegisterCatalogRoutes wires the public country and bank directory.
func RegisterCatalogRoutes(r fiber.Router, h *catalog.Handler) {
	r.Get("/countries", h.Countries)
	r.Get("/banks", h.Banks)
}
