package handle

import (
	"errors"
	"net/http"
	"strconv"

	"comandero/internal/order/app/services"
	"comandero/internal/order/domain/dto"
	"comandero/internal/xpkg/logger"
)

// KitchenHandler serves the unauthenticated kitchen display: tenant-scoped
// pending dine-in/takeout tickets and a single legal transition to ready.
type KitchenHandler struct {
	orderService *services.OrderService
	mylog        logger.Logger
}

func NewKitchenHandler(orderService *services.OrderService, mylog logger.Logger) *KitchenHandler {
	return &KitchenHandler{
		orderService: orderService,
		mylog:        mylog,
	}
}

func (kh *KitchenHandler) Tickets() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, err := strconv.ParseInt(r.URL.Query().Get("restaurant_id"), 10, 64)
		if err != nil || tenantID <= 0 {
			JSONError(w, http.StatusBadRequest, errors.New("restaurant_id is required"))
			return
		}

		ctx, cancel := requestContext(r)
		defer cancel()

		tickets, err := kh.orderService.KitchenTickets(ctx, tenantID)
		if err != nil {
			JSONError(w, statusFor(err), err)
			return
		}

		views := make([]dto.OrderView, 0, len(tickets))
		for _, t := range tickets {
			views = append(views, dto.ViewFromDetail(t))
		}
		JSONResponse(w, http.StatusOK, views)
	}
}

func (kh *KitchenHandler) MarkReady() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r)
		if err != nil {
			JSONError(w, http.StatusBadRequest, err)
			return
		}

		ctx, cancel := requestContext(r)
		defer cancel()

		order, err := kh.orderService.KitchenMarkReady(ctx, id)
		if err != nil {
			JSONError(w, statusFor(err), err)
			return
		}

		kh.mylog.Action("ticket_ready").Info("Kitchen marked ticket ready", "order_id", id)
		JSONResponse(w, http.StatusOK, dto.ViewFromOrder(order))
	}
}
