package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartMaintenanceScheduler(t *testing.T) {
	l, stores := newTestLedger(t)
	ctx := context.Background()

	webhooks := NewPaymentWebhookService(testIPNSecret, NewGASClient("", "", "", 0), l, stores, nil, false)
	sched, err := StartMaintenanceScheduler(ctx, webhooks, l)
	require.NoError(t, err)
	assert.Len(t, sched.Jobs(), 1, "no archive retry without an archive")
	require.NoError(t, sched.Shutdown())

	webhooks.Archive = newMemArchive()
	sched, err = StartMaintenanceScheduler(ctx, webhooks, l)
	require.NoError(t, err)
	assert.Len(t, sched.Jobs(), 2)
	require.NoError(t, sched.Shutdown())
}
