package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/linemk/shop-bot/internal/domain/models"
	"github.com/linemk/shop-bot/internal/locale"
	"github.com/linemk/shop-bot/internal/service"
)

const (
	defaultPerPage = 5
	statusAll      = "all"
	timeLayout     = "2006-01-02 15:04:05"
)

// OrderItemResponse строка заказа в ответе API
type OrderItemResponse struct {
	ProductName string `json:"product_name"`
	Quantity    int    `json:"quantity"`
	Price       int64  `json:"price"`
}

type OrderResponse struct {
	ID          int64               `json:"id"`
	UserName    string              `json:"user_name"`
	Phone       string              `json:"phone"`
	Address     string              `json:"address"`
	TotalAmount int64               `json:"total_amount"`
	Status      models.OrderStatus  `json:"status"`
	CreatedAt   string              `json:"created_at"`
	Items       []OrderItemResponse `json:"items"`
}

// OrdersResponse — страница заказов
type OrdersResponse struct {
	Orders      []OrderResponse `json:"orders"`
	TotalOrders int             `json:"total_orders"`
	CurrentPage int             `json:"current_page"`
	PerPage     int             `json:"per_page"`
	HasNext     bool            `json:"has_next"`
}

// ordersQuery параметры GET /api/orders
type ordersQuery struct {
	Page    int    `validate:"gte=1"`
	PerPage int    `validate:"gte=1,lte=100"`
	Status  string `validate:"omitempty,oneof=new processing delivered cancelled"`
}

// StatusResponse ответ на смену статуса
type StatusResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func intParam(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}

func toOrderResponse(o *models.Order) OrderResponse {
	items := make([]OrderItemResponse, 0, len(o.Lines))
	for _, l := range o.Lines {
		name := l.Name(models.LanguageRU)
		if name == "" {
			name = locale.GetText(models.LanguageRU, "unknown_product")
		}
		items = append(items, OrderItemResponse{ProductName: name, Quantity: l.Quantity, Price: l.Price})
	}
	return OrderResponse{
		ID:          o.ID,
		UserName:    o.Name,
		Phone:       o.Phone,
		Address:     o.Address,
		TotalAmount: o.TotalAmount,
		Status:      o.Status,
		CreatedAt:   o.CreatedAt.Format(timeLayout),
		Items:       items,
	}
}

// OrdersHandler обрабатывает GET /api/orders?page=&per_page=&status=
func OrdersHandler(log *slog.Logger, orderService service.OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.OrdersHandler"
		logger := log.With(slog.String("op", op))

		page, err := intParam(r, "page", 1)
		if err != nil {
			http.Error(w, "invalid page", http.StatusBadRequest)
			return
		}
		perPage, err := intParam(r, "per_page", defaultPerPage)
		if err != nil {
			http.Error(w, "invalid per_page", http.StatusBadRequest)
			return
		}
		q := ordersQuery{Page: page, PerPage: perPage, Status: r.URL.Query().Get("status")}
		if q.Status == statusAll {
			q.Status = ""
		}
		if err := validate.Struct(q); err != nil {
			logger.Warn("invalid request: validation error", slog.Any("error", err))
			http.Error(w, "validation error", http.StatusBadRequest)
			return
		}

		orders, total, err := orderService.ListOrders(r.Context(), models.OrderStatus(q.Status), q.Page, q.PerPage)
		if err != nil {
			if errors.Is(err, service.ErrInvalidInput) {
				http.Error(w, "validation error", http.StatusBadRequest)
				return
			}
			logger.Error("failed to list orders", slog.Any("error", err))
			http.Error(w, "internal server error", http.StatusInternalServerError)
			return
		}

		resp := OrdersResponse{
			Orders:      make([]OrderResponse, 0, len(orders)),
			TotalOrders: total,
			CurrentPage: q.Page,
			PerPage:     q.PerPage,
			HasNext:     q.Page*q.PerPage < total,
		}
		for _, o := range orders {
			resp.Orders = append(resp.Orders, toOrderResponse(o))
		}
		writeJSON(w, logger, http.StatusOK, resp)
	}
}

// ChangeStatusHandler обрабатывает POST /api/change-status?orderId=&status=
func ChangeStatusHandler(log *slog.Logger, orderService service.OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.ChangeStatusHandler"
		logger := log.With(slog.String("op", op))

		rawID := r.URL.Query().Get("orderId")
		rawStatus := r.URL.Query().Get("status")
		if rawID == "" || rawStatus == "" {
			writeJSON(w, logger, http.StatusBadRequest, StatusResponse{Message: "orderId и status обязательны"})
			return
		}
		orderID, err := strconv.ParseInt(rawID, 10, 64)
		if err != nil || orderID <= 0 {
			writeJSON(w, logger, http.StatusBadRequest, StatusResponse{Message: "неверный формат orderId"})
			return
		}

		status := models.OrderStatus(rawStatus)
		_, changed, err := orderService.ChangeStatus(r.Context(), orderID, status)
		switch {
		case errors.Is(err, service.ErrInvalidInput):
			writeJSON(w, logger, http.StatusBadRequest, StatusResponse{Message: "недопустимый статус " + rawStatus})
			return
		case errors.Is(err, service.ErrNotFound):
			writeJSON(w, logger, http.StatusNotFound, StatusResponse{Message: "заказ не найден"})
			return
		case err != nil:
			logger.Error("failed to change status", slog.Any("error", err))
			writeJSON(w, logger, http.StatusInternalServerError, StatusResponse{Message: "внутренняя ошибка"})
			return
		case !changed:
			writeJSON(w, logger, http.StatusNotFound, StatusResponse{Message: "заказ уже в статусе " + rawStatus})
			return
		}

		writeJSON(w, logger, http.StatusOK, StatusResponse{
			Success: true,
			Message: "статус заказа #" + rawID + " изменён на " + rawStatus,
		})
	}
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("failed to encode response", slog.Any("error", err))
	}
}
