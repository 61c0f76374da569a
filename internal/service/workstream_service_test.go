package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radicle-dev/workstreams-api/internal/domain"
	"github.com/radicle-dev/workstreams-api/internal/kv"
	"github.com/radicle-dev/workstreams-api/internal/service"
)

var (
	testOwner     = common.HexToAddress("0x71C7656EC7ab88b098defB751B7401B5f6d8976F")
	testApplicant = common.HexToAddress("0x1234567890AbcdEF1234567890aBcdef12345678")
	testHubAlias  = common.HexToAddress("0x000000000000000000000000000000000000dEaD")
	testHubActual = common.HexToAddress("0x00000000000000000000000000000000000Be3f0")
)

func newWorkstreamService(t *testing.T) (*miniredis.Miniredis, *service.WorkstreamService) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	users := kv.NewNamespace(client, "users")
	hubs := kv.NewNamespace(client, "dripshubs")

	// Registry maps a hub alias to the deployed hub address
	err := hubs.Put(context.Background(), testHubAlias.Hex(), []byte(testHubActual.Hex()), 0)
	require.NoError(t, err)

	return mr, service.NewWorkstreamService(users, hubs, fixedClock)
}

func createRequest() service.CreateWorkstreamRequest {
	start := testNow.Add(24 * time.Hour)
	end := testNow.Add(30 * 24 * time.Hour)
	return service.CreateWorkstreamRequest{
		Type:        domain.WorkstreamTypeRole,
		Description: "Maintain the seed node",
		StartingAt:  &start,
		EndingAt:    &end,
		DripsConfig: service.DripsConfigPayload{
			Receivers: []service.ReceiverPayload{{
				Address:         testApplicant.Hex(),
				PaymentRate:     100,
				PaymentCurrency: domain.PaymentCurrencyDAI,
			}},
			DripsAcct: 7,
			DripsHub:  testHubAlias.Hex(),
		},
	}
}

func TestWorkstreamService_Create(t *testing.T) {
	_, svc := newWorkstreamService(t)
	ctx := context.Background()

	ws, err := svc.Create(ctx, testOwner, createRequest())
	require.NoError(t, err)

	assert.NotEmpty(t, ws.ID)
	assert.Equal(t, domain.WorkstreamTypeRole, ws.Type)
	assert.Equal(t, testOwner, ws.Creator)
	assert.Equal(t, domain.WorkstreamStateOpen, ws.State)
	assert.True(t, ws.CreatedAt.Equal(testNow))
	// The hub comes from the registry, never from the client
	assert.Equal(t, testHubActual, ws.DripsConfig.DripsHub)

	loaded, err := svc.Get(ctx, testOwner, ws.ID)
	require.NoError(t, err)
	assert.Equal(t, ws.ID, loaded.ID)
}

func TestWorkstreamService_ListUnknownUser(t *testing.T) {
	_, svc := newWorkstreamService(t)

	_, err := svc.List(context.Background(), testOwner)
	assert.ErrorIs(t, err, service.ErrUserNotFound)
}

func TestWorkstreamService_List(t *testing.T) {
	_, svc := newWorkstreamService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, testOwner, createRequest())
	require.NoError(t, err)
	_, err = svc.Create(ctx, testOwner, createRequest())
	require.NoError(t, err)

	workstreams, err := svc.List(ctx, testOwner)
	require.NoError(t, err)
	assert.Len(t, workstreams, 2)
}

func TestWorkstreamService_GetUnknownID(t *testing.T) {
	_, svc := newWorkstreamService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, testOwner, createRequest())
	require.NoError(t, err)

	_, err = svc.Get(ctx, testOwner, "no-such-id")
	assert.ErrorIs(t, err, service.ErrWorkstreamNotFound)
}

func TestWorkstreamService_UnknownHub(t *testing.T) {
	_, svc := newWorkstreamService(t)

	req := createRequest()
	req.DripsConfig.DripsHub = "0x0000000000000000000000000000000000000042"

	_, err := svc.Create(context.Background(), testOwner, req)
	assert.ErrorIs(t, err, service.ErrUnknownDripsHub)
}

func TestWorkstreamService_InvalidDates(t *testing.T) {
	_, svc := newWorkstreamService(t)
	ctx := context.Background()

	past := testNow.Add(-time.Hour)
	future := testNow.Add(time.Hour)
	later := testNow.Add(2 * time.Hour)

	tests := []struct {
		name       string
		startingAt *time.Time
		endingAt   *time.Time
	}{
		{"start in the past", &past, &later},
		{"end in the past", nil, &past},
		{"end before start", &later, &future},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := createRequest()
			req.StartingAt = tt.startingAt
			req.EndingAt = tt.endingAt

			_, err := svc.Create(ctx, testOwner, req)
			assert.ErrorIs(t, err, service.ErrInvalidDates)
		})
	}
}

func TestWorkstreamService_Update(t *testing.T) {
	_, svc := newWorkstreamService(t)
	ctx := context.Background()

	ws, err := svc.Create(ctx, testOwner, createRequest())
	require.NoError(t, err)

	req := createRequest()
	update := service.UpdateWorkstreamRequest{
		Type:        domain.WorkstreamTypeGrant,
		Description: "Fund protocol research",
		StartingAt:  req.StartingAt,
		EndingAt:    req.EndingAt,
		DripsConfig: req.DripsConfig,
	}

	updated, err := svc.Update(ctx, testOwner, ws.ID, update)
	require.NoError(t, err)

	assert.Equal(t, domain.WorkstreamTypeGrant, updated.Type)
	assert.Equal(t, "Fund protocol research", updated.Description)
	// Server-side fields survive updates untouched
	assert.Equal(t, ws.ID, updated.ID)
	assert.Equal(t, ws.Creator, updated.Creator)
	assert.Equal(t, ws.State, updated.State)
	assert.True(t, ws.CreatedAt.Equal(updated.CreatedAt))
}

func TestWorkstreamService_UpdateUnknownWorkstream(t *testing.T) {
	_, svc := newWorkstreamService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, testOwner, createRequest())
	require.NoError(t, err)

	req := createRequest()
	update := service.UpdateWorkstreamRequest{
		Type:        req.Type,
		Description: req.Description,
		StartingAt:  req.StartingAt,
		EndingAt:    req.EndingAt,
		DripsConfig: req.DripsConfig,
	}

	_, err = svc.Update(ctx, testOwner, "no-such-id", update)
	assert.ErrorIs(t, err, service.ErrWorkstreamNotFound)
}

func TestWorkstreamService_Apply(t *testing.T) {
	_, svc := newWorkstreamService(t)
	ctx := context.Background()

	ws, err := svc.Create(ctx, testOwner, createRequest())
	require.NoError(t, err)

	start := testNow.Add(48 * time.Hour)
	application, err := svc.Apply(ctx, testOwner, ws.ID, testApplicant, service.ApplyRequest{
		Description: "I have maintained seed nodes before",
		Receivers: []service.ReceiverPayload{{
			Address:         testApplicant.Hex(),
			PaymentRate:     100,
			PaymentCurrency: domain.PaymentCurrencyDAI,
		}},
		StartingAt: &start,
	})
	require.NoError(t, err)

	assert.NotEmpty(t, application.ID)
	assert.Equal(t, ws.ID, application.WorkstreamID)
	assert.Equal(t, testApplicant, application.Creator)
	assert.Equal(t, domain.ApplicationStatePending, application.State)

	loaded, err := svc.Get(ctx, testOwner, ws.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Applications, 1)
	assert.Equal(t, application.ID, loaded.Applications[0].ID)
}

func TestWorkstreamService_StoreUnavailable(t *testing.T) {
	mr, svc := newWorkstreamService(t)

	mr.Close()

	_, err := svc.List(context.Background(), testOwner)
	assert.ErrorIs(t, err, kv.ErrStoreUnavailable)
}
