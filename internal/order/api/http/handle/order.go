package handle

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"comandero/internal/order/app/core"
	"comandero/internal/order/app/services"
	"comandero/internal/order/domain/dto"
	"comandero/internal/xpkg/logger"
)

type OrderHandler struct {
	orderService *services.OrderService
	mylog        logger.Logger
}

func NewOrderHandler(orderService *services.OrderService, mylog logger.Logger) *OrderHandler {
	return &OrderHandler{
		orderService: orderService,
		mylog:        mylog,
	}
}

func (oh *OrderHandler) Create() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req dto.CreateOrderRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			oh.mylog.Action("parse_failed").Error("Failed to parse order", err)
			JSONError(w, http.StatusBadRequest, errors.New("failed to parse JSON"))
			return
		}

		ctx, cancel := requestContext(r)
		defer cancel()

		order, err := oh.orderService.Create(ctx, req)
		if err != nil {
			JSONError(w, statusFor(err), err)
			return
		}

		JSONResponse(w, http.StatusCreated, dto.ViewFromOrder(order))
	}
}

func (oh *OrderHandler) List() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := claimsFrom(r)
		if !ok {
			JSONError(w, http.StatusUnauthorized, core.ErrUnauthorized)
			return
		}

		ctx, cancel := requestContext(r)
		defer cancel()

		orders, err := oh.orderService.List(ctx, claims, r.URL.Query().Get("status"))
		if err != nil {
			JSONError(w, statusFor(err), err)
			return
		}

		views := make([]dto.OrderView, 0, len(orders))
		for _, o := range orders {
			views = append(views, dto.ViewFromOrder(o))
		}
		JSONResponse(w, http.StatusOK, views)
	}
}

func (oh *OrderHandler) Get() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := claimsFrom(r)
		if !ok {
			JSONError(w, http.StatusUnauthorized, core.ErrUnauthorized)
			return
		}

		id, err := pathID(r)
		if err != nil {
			JSONError(w, http.StatusBadRequest, err)
			return
		}

		ctx, cancel := requestContext(r)
		defer cancel()

		detail, err := oh.orderService.GetDetail(ctx, id, claims)
		if err != nil {
			JSONError(w, statusFor(err), err)
			return
		}

		JSONResponse(w, http.StatusOK, dto.ViewFromDetail(detail))
	}
}

func (oh *OrderHandler) Events() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := claimsFrom(r)
		if !ok {
			JSONError(w, http.StatusUnauthorized, core.ErrUnauthorized)
			return
		}

		id, err := pathID(r)
		if err != nil {
			JSONError(w, http.StatusBadRequest, err)
			return
		}

		ctx, cancel := requestContext(r)
		defer cancel()

		events, err := oh.orderService.ListEvents(ctx, id, claims)
		if err != nil {
			JSONError(w, statusFor(err), err)
			return
		}

		views := make([]dto.EventView, 0, len(events))
		for _, ev := range events {
			views = append(views, dto.EventView{
				EventType:   ev.EventType,
				Description: ev.Description,
				CreatedAt:   ev.CreatedAt,
			})
		}
		JSONResponse(w, http.StatusOK, views)
	}
}

func (oh *OrderHandler) Transition() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := claimsFrom(r)
		if !ok {
			JSONError(w, http.StatusUnauthorized, core.ErrUnauthorized)
			return
		}

		id, err := pathID(r)
		if err != nil {
			JSONError(w, http.StatusBadRequest, err)
			return
		}

		var req dto.TransitionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			JSONError(w, http.StatusBadRequest, errors.New("failed to parse JSON"))
			return
		}

		ctx, cancel := requestContext(r)
		defer cancel()

		order, err := oh.orderService.Transition(ctx, id, req, claims)
		if err != nil {
			JSONError(w, statusFor(err), err)
			return
		}

		JSONResponse(w, http.StatusOK, dto.ViewFromOrder(order))
	}
}

func (oh *OrderHandler) ReplaceItems() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := claimsFrom(r)
		if !ok {
			JSONError(w, http.StatusUnauthorized, core.ErrUnauthorized)
			return
		}

		id, err := pathID(r)
		if err != nil {
			JSONError(w, http.StatusBadRequest, err)
			return
		}

		var req dto.ReplaceItemsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			JSONError(w, http.StatusBadRequest, errors.New("failed to parse JSON"))
			return
		}

		ctx, cancel := requestContext(r)
		defer cancel()

		order, err := oh.orderService.ReplaceItems(ctx, id, req, claims)
		if err != nil {
			JSONError(w, statusFor(err), err)
			return
		}

		JSONResponse(w, http.StatusOK, dto.ViewFromOrder(order))
	}
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		return 0, errors.New("order id must be numeric")
	}
	return id, nil
}

func requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), core.WaitTime*time.Second)
}
