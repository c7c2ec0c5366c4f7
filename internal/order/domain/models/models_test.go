package models_test

import (
	"testing"

	"comandero/internal/order/domain/models"

	"github.com/stretchr/testify/assert"
)

func TestStatusTransitionTable(t *testing.T) {
	all := []models.Status{
		models.StatusPending,
		models.StatusInProgress,
		models.StatusReady,
		models.StatusDelivered,
		models.StatusCancelled,
	}

	legal := map[models.Status]map[models.Status]bool{
		models.StatusPending:    {models.StatusInProgress: true, models.StatusCancelled: true},
		models.StatusInProgress: {models.StatusReady: true, models.StatusCancelled: true},
		models.StatusReady:      {models.StatusDelivered: true},
		models.StatusDelivered:  {},
		models.StatusCancelled:  {},
	}

	for _, from := range all {
		for _, to := range all {
			want := legal[from][to]
			assert.Equal(t, want, from.CanTransition(to), "%s -> %s", from, to)
		}
	}
}

func TestStatusValid(t *testing.T) {
	assert.True(t, models.StatusPending.Valid())
	assert.True(t, models.StatusCancelled.Valid())
	assert.False(t, models.Status("listo").Valid())
	assert.False(t, models.Status("").Valid())
}

func TestPaymentStatusValid(t *testing.T) {
	assert.True(t, models.PaymentRefunded.Valid())
	assert.False(t, models.PaymentStatus("partial").Valid())
}

func TestOrderTypeValid(t *testing.T) {
	assert.True(t, models.TypeDineIn.Valid())
	assert.False(t, models.OrderType("drive_thru").Valid())
}
