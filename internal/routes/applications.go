package routes

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/nightlab/exchange/internal/application"
	"github.com/nightlab/exchange/internal/catalog"
	"github.com/nightlab/exchange/internal/identity"
	"github.com/nightlab/exchange/internal/presentation"
)

const unknownBank = "Unknown"

// RegisterApplicationRoutes wires the user's application endpoints.
func RegisterApplicationRoutes(r fiber.Router, h *ApplicationHandler) {
	r.Get("/applications", h.List)
	r.Post("/applications/create", h.Create)
	r.Get("/application/:id", h.Detail)
}

// RegisterMerchantRoutes wires the operator queue.
func RegisterMerchantRoutes(r fiber.Router, h *ApplicationHandler) {
	r.Get("/queue", h.Queue)
	r.Post("/applications/:id/requisites", h.AssignRequisites)
	r.Post("/applications/:id/status", h.Advance)
}

// ApplicationHandler serves user and operator application endpoints.
type ApplicationHandler struct {
	service *application.Service
	banks   catalog.Repository
	logger  *slog.Logger
}

func NewApplicationHandler(service *application.Service, banks catalog.Repository, logger *slog.Logger) *ApplicationHandler {
	return &ApplicationHandler{service: service, banks: banks, logger: logger}
}

type createRequest struct {
	CountryID int64   `json:"country_id"`
	BankID    int64   `json:"bank_id"`
	AmountUAH float64 `json:"amount_uah"`
}

type createResponse struct {
	Success     bool     `json:"success"`
	AppID       *int64   `json:"app_id"`
	Message     string   `json:"message"`
	Requisites  *string  `json:"requisites"`
	ExpiresAt   *string  `json:"expires_at"`
	BankName    *string  `json:"bank_name"`
	CountryName *string  `json:"country_name"`
	Amount      *float64 `json:"amount"`
}

type applicationView struct {
	ID               int64   `json:"id"`
	OwnerID          int64   `json:"owner_id,omitempty"`
	BankName         string  `json:"bank_name"`
	AmountUAH        float64 `json:"amount_uah"`
	PaymentCode      string  `json:"payment_code"`
	Status           string  `json:"status"`
	StatusLabel      string  `json:"status_label"`
	CreatedAt        string  `json:"created_at"`
	Requisites       *string `json:"requisites"`
	RequisitesSentAt *string `json:"requisites_sent_at"`
	ExpiresAt        *string `json:"expires_at"`
}

func (h *ApplicationHandler) Create(c *fiber.Ctx) error {
	uid, _ := c.Locals(identity.LocalsUserID).(int64)
	if uid == 0 {
		return fiber.NewError(http.StatusUnauthorized, "unauthorized")
	}

	var req createRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(http.StatusBadRequest).JSON(createResponse{
			Message: presentation.CreateFailure(application.ErrValidation),
		})
	}

	res, err := h.service.Create(c.UserContext(), application.CreateInput{
		OwnerID:   uid,
		BankID:    req.BankID,
		CountryID: req.CountryID,
		Amount:    toMinor(req.AmountUAH),
	})
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, application.ErrValidation):
			status = http.StatusBadRequest
		case errors.Is(err, application.ErrNotFound):
			status = http.StatusNotFound
		default:
			h.logger.Error("create application", slog.Int64("user_id", uid), slog.Any("error", err))
		}
		return c.Status(status).JSON(createResponse{Message: presentation.CreateFailure(err)})
	}

	app := res.Application
	amount := fromMinor(app.Amount)
	out := createResponse{
		Success:     true,
		AppID:       &app.ID,
		Message:     presentation.OutcomeMessage(res.Outcome),
		BankName:    &res.BankName,
		CountryName: &res.CountryName,
		Amount:      &amount,
		ExpiresAt:   formatTime(app.ExpiresAt),
	}
	if app.HasRequisites() {
		out.Requisites = &app.RequisitesText
	}
	return c.Status(http.StatusOK).JSON(out)
}

func (h *ApplicationHandler) List(c *fiber.Ctx) error {
	uid, _ := c.Locals(identity.LocalsUserID).(int64)
	if uid == 0 {
		return fiber.NewError(http.StatusUnauthorized, "unauthorized")
	}
	apps, err := h.service.List(c.UserContext(), uid, application.ListFilter{
		Limit:  c.QueryInt("limit", 0),
		Offset: c.QueryInt("offset", 0),
		Status: application.Status(c.Query("status")),
	})
	if err != nil {
		return lifecycleError(err)
	}
	return c.Status(http.StatusOK).JSON(h.views(c.UserContext(), apps, false))
}

func (h *ApplicationHandler) Detail(c *fiber.Ctx) error {
	uid, _ := c.Locals(identity.LocalsUserID).(int64)
	if uid == 0 {
		return fiber.NewError(http.StatusUnauthorized, "unauthorized")
	}
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return fiber.NewError(http.StatusBadRequest, "invalid application id")
	}
	app, err := h.service.Get(c.UserContext(), uid, int64(id))
	if err != nil {
		return lifecycleError(err)
	}
	return c.Status(http.StatusOK).JSON(h.views(c.UserContext(), []application.Application{app}, false)[0])
}

// Queue lists pending applications; status may name several states separated by commas.
func (h *ApplicationHandler) Queue(c *fiber.Ctx) error {
	var statuses []application.Status
	for _, raw := range strings.Split(c.Query("status"), ",") {
		if raw = strings.TrimSpace(raw); raw != "" {
			statuses = append(statuses, application.Status(strings.ToUpper(raw)))
		}
	}
	for _, st := range statuses {
		if !st.Valid() {
			return fiber.NewError(http.StatusBadRequest, "unknown status "+string(st))
		}
	}
	apps, err := h.service.Queue(c.UserContext(), statuses, application.ListFilter{
		Limit:  c.QueryInt("limit", 0),
		Offset: c.QueryInt("offset", 0),
	})
	if err != nil {
		return lifecycleError(err)
	}
	return c.Status(http.StatusOK).JSON(h.views(c.UserContext(), apps, true))
}

func (h *ApplicationHandler) AssignRequisites(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return fiber.NewError(http.StatusBadRequest, "invalid application id")
	}
	var req struct {
		Requisites string `json:"requisites"`
	}
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid body")
	}
	app, err := h.service.AssignRequisites(c.UserContext(), int64(id), req.Requisites)
	if err != nil {
		return lifecycleError(err)
	}
	return c.Status(http.StatusOK).JSON(h.views(c.UserContext(), []application.Application{app}, true)[0])
}

func (h *ApplicationHandler) Advance(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return fiber.NewError(http.StatusBadRequest, "invalid application id")
	}
	var req struct {
		Status string `json:"status"`
	}
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid body")
	}
	to, err := application.ParseStatus(strings.ToUpper(strings.TrimSpace(req.Status)))
	if err != nil {
		return lifecycleError(err)
	}
	app, err := h.service.Advance(c.UserContext(), int64(id), to)
	if err != nil {
		return lifecycleError(err)
	}
	return c.Status(http.StatusOK).JSON(h.views(c.UserContext(), []application.Application{app}, true)[0])
}

// views renders apps, resolving each bank name once.
func (h *ApplicationHandler) views(ctx context.Context, apps []application.Application, withOwner bool) []applicationView {
	names := make(map[int64]string)
	out := make([]applicationView, len(apps))
	for i, app := range apps {
		name, ok := names[app.BankID]
		if !ok {
			name = unknownBank
			if bank, err := h.banks.GetBank(ctx, app.BankID); err == nil {
				name = bank.DisplayName
			} else if !errors.Is(err, catalog.ErrBankNotFound) {
				h.logger.Warn("resolve bank name", slog.Int64("bank_id", app.BankID), slog.Any("error", err))
			}
			names[app.BankID] = name
		}
		v := applicationView{
			ID:               app.ID,
			BankName:         name,
			AmountUAH:        fromMinor(app.Amount),
			PaymentCode:      app.PaymentCode,
			Status:           string(app.Status),
			StatusLabel:      presentation.StatusLabel(app.Status),
			CreatedAt:        app.CreatedAt.UTC().Format(time.RFC3339),
			RequisitesSentAt: formatTime(app.RequisitesSentAt),
			ExpiresAt:        formatTime(app.ExpiresAt),
		}
		if withOwner {
			v.OwnerID = app.OwnerID
		}
		if app.HasRequisites() {
			text := app.RequisitesText
			v.Requisites = &text
		}
		out[i] = v
	}
	return out
}

// toMinor converts hryvnias to kopecks.
func toMinor(uah float64) int64 {
	if math.IsNaN(uah) || math.IsInf(uah, 0) {
		return 0
	}
	return int64(math.Round(uah * 100))
}

func fromMinor(minor int64) float64 {
	return float64(minor) / 100
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}
