package usecase_test

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/trebuchet-org/dvm/internal/domain/calldata"
	"github.com/trebuchet-org/dvm/internal/domain/models"
	"github.com/trebuchet-org/dvm/internal/usecase"
)

// MockCallSelector is a mock implementation of CallSelector
type MockCallSelector struct {
	mock.Mock
}

func (m *MockCallSelector) SelectCalls(ctx context.Context, calls []models.Call) ([]models.Call, error) {
	args := m.Called(ctx, calls)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Call), args.Error(1)
}

func guardedWhitelist(t *testing.T, addr common.Address) usecase.ConfigureStep {
	t.Helper()
	check, err := calldata.Encode("isWhitelisted(address)", []any{addr})
	require.NoError(t, err)
	expect, err := calldata.EncodeReturn([]string{"bool"}, []any{true})
	require.NoError(t, err)

	call := whitelistCall(t, addr, false)
	call.Label = "whitelist-" + addr.Hex()[:6]
	return usecase.ConfigureStep{
		Name:  call.Label,
		Call:  call,
		Guard: &usecase.Guard{Target: registryAddr, Data: check, Expect: expect},
	}
}

func newConfigureCalls(t *testing.T, chain *fakeChain, selector usecase.CallSelector) *usecase.ConfigureCalls {
	t.Helper()
	executor := usecase.NewExecuteMulticall(testConfig(), chain, &recordingProgress{}, discardLogger())
	return usecase.NewConfigureCalls(chain, executor, selector, &recordingProgress{}, discardLogger())
}

func TestConfigureCalls_Apply(t *testing.T) {
	ctx := context.Background()
	pool := common.HexToAddress("0x1111111111111111111111111111111111111111")
	router := common.HexToAddress("0x2222222222222222222222222222222222222222")

	t.Run("second run skips what the first applied", func(t *testing.T) {
		chain := newFakeChain(t)
		uc := newConfigureCalls(t, chain, nil)
		steps := []usecase.ConfigureStep{guardedWhitelist(t, pool)}

		first, err := uc.Apply(ctx, steps, usecase.ConfigureOptions{})
		require.NoError(t, err)
		assert.Len(t, first.Submitted, 1)
		assert.Empty(t, first.Skipped)
		require.NotNil(t, first.Batch)

		second, err := uc.Apply(ctx, steps, usecase.ConfigureOptions{})
		require.NoError(t, err)
		assert.Empty(t, second.Submitted)
		assert.Len(t, second.Skipped, 1)
		assert.Nil(t, second.Batch)

		assert.Equal(t, 1, chain.sends)
	})

	t.Run("only unsatisfied steps are batched", func(t *testing.T) {
		chain := newFakeChain(t)
		chain.whitelisted[pool] = true
		uc := newConfigureCalls(t, chain, nil)

		result, err := uc.Apply(ctx, []usecase.ConfigureStep{
			guardedWhitelist(t, pool),
			guardedWhitelist(t, router),
		}, usecase.ConfigureOptions{})
		require.NoError(t, err)

		require.Len(t, result.Skipped, 1)
		require.Len(t, result.Submitted, 1)
		assert.Equal(t, guardedWhitelist(t, router).Name, result.Submitted[0].Name)
		require.Len(t, result.Batch.Outcomes, 1)
		assert.True(t, chain.whitelisted[router])
	})

	t.Run("selector narrows the batch", func(t *testing.T) {
		chain := newFakeChain(t)
		poolStep := guardedWhitelist(t, pool)
		routerStep := guardedWhitelist(t, router)

		selector := new(MockCallSelector)
		selector.On("SelectCalls", ctx, []models.Call{poolStep.Call, routerStep.Call}).
			Return([]models.Call{routerStep.Call}, nil)

		uc := newConfigureCalls(t, chain, selector)
		result, err := uc.Apply(ctx, []usecase.ConfigureStep{poolStep, routerStep}, usecase.ConfigureOptions{Select: true})
		require.NoError(t, err)

		selector.AssertExpectations(t)
		require.Len(t, result.Deselected, 1)
		assert.Equal(t, poolStep.Name, result.Deselected[0].Name)
		require.Len(t, result.Submitted, 1)
		assert.False(t, chain.whitelisted[pool])
		assert.True(t, chain.whitelisted[router])
	})

	t.Run("unguarded steps always run", func(t *testing.T) {
		chain := newFakeChain(t)
		uc := newConfigureCalls(t, chain, nil)
		step := usecase.ConfigureStep{Name: "whitelist", Call: whitelistCall(t, pool, false)}

		for i := 0; i < 2; i++ {
			result, err := uc.Apply(ctx, []usecase.ConfigureStep{step}, usecase.ConfigureOptions{})
			require.NoError(t, err)
			assert.Len(t, result.Submitted, 1)
		}
		assert.Equal(t, 2, chain.sends)
	})
}
