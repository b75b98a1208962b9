package models_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"ms-express-checkout/internal/models"
)

func TestPaymentStatusOrdering(t *testing.T) {
	assert.True(t, models.StatusStarted.Before(models.StatusVerified))
	assert.True(t, models.StatusStarted.Before(models.StatusCompleted))
	assert.True(t, models.StatusVerified.Before(models.StatusCompleted))

	assert.False(t, models.StatusCompleted.Before(models.StatusVerified))
	assert.False(t, models.StatusVerified.Before(models.StatusStarted))
	assert.False(t, models.StatusStarted.Before(models.StatusStarted))
}
