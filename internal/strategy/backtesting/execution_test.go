package backtesting

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"backtestEngine/internal/domain"
	"backtestEngine/internal/ports"
)

func newTestExecutor(t *testing.T, commission, slippage string) (*Executor, *mockLogger) {
	t.Helper()
	logger := &mockLogger{}
	ex, err := NewExecutor(dec(commission), dec(slippage), logger)
	require.NoError(t, err)
	return ex, logger
}

func TestNewExecutor_ValidatesRates(t *testing.T) {
	tests := []struct {
		name       string
		commission string
		slippage   string
		wantErr    bool
	}{
		{"zero rates", "0", "0", false},
		{"defaults", "0.001", "0.0005", false},
		{"negative commission", "-0.01", "0", true},
		{"commission of one", "1", "0", true},
		{"negative slippage", "0", "-0.0001", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewExecutor(dec(tt.commission), dec(tt.slippage), &mockLogger{})
			if tt.wantErr {
				assert.ErrorIs(t, err, ports.ErrConfigurationError)
			} else {
				assert.NoError(t, err)
			}
		})
	}

	_, err := NewExecutor(decimal.Zero, decimal.Zero, nil)
	assert.ErrorIs(t, err, ports.ErrConfigurationError)
}

func TestExecutor_BuyAppliesSlippageAndCommission(t *testing.T) {
	ex, _ := newTestExecutor(t, "0.001", "0.0005")
	ledger := NewLedger(decimal.NewFromInt(10000))
	bar := &domain.Bar{Symbol: "AAA", Date: day(1), Close: dec("100")}

	trade, err := ex.Fill(context.Background(), domain.Signal{Symbol: "AAA", Action: domain.Buy, Quantity: 10, Rationale: "entry"}, bar, ledger)
	require.NoError(t, err)
	require.NotNil(t, trade)

	assert.True(t, trade.Price.Equal(dec("100.05")), "fill %s", trade.Price)
	assert.True(t, trade.Notional.Equal(dec("1000.5")), "notional %s", trade.Notional)
	assert.True(t, trade.Commission.Equal(dec("1.0005")), "commission %s", trade.Commission)
	assert.True(t, ledger.Cash().Equal(dec("8998.4995")), "cash %s", ledger.Cash())
	assert.Equal(t, int64(10), ledger.Position("AAA"))
	assert.Equal(t, "entry", trade.Rationale)
	assert.Equal(t, day(1), trade.Date)
	assert.NotEmpty(t, trade.ID)
}

func TestExecutor_SellAppliesSlippageAndCommission(t *testing.T) {
	ex, _ := newTestExecutor(t, "0.001", "0.0005")
	ledger := NewLedger(decimal.NewFromInt(0))
	require.NoError(t, ledger.apply(day(1), "AAA", decimal.Zero, 10))
	bar := &domain.Bar{Symbol: "AAA", Date: day(2), Close: dec("100")}

	trade, err := ex.Fill(context.Background(), domain.Signal{Symbol: "AAA", Action: domain.Sell, Quantity: 10}, bar, ledger)
	require.NoError(t, err)

	assert.True(t, trade.Price.Equal(dec("99.95")))
	assert.True(t, trade.Commission.Equal(dec("0.9995")))
	assert.True(t, ledger.Cash().Equal(dec("998.5005")), "cash %s", ledger.Cash())
	assert.Zero(t, ledger.Position("AAA"))
}

func TestExecutor_SignalPriceOverridesClose(t *testing.T) {
	ex, _ := newTestExecutor(t, "0", "0")
	ledger := NewLedger(decimal.NewFromInt(1000))
	bar := &domain.Bar{Symbol: "AAA", Date: day(1), Close: dec("100")}

	trade, err := ex.Fill(context.Background(), domain.Signal{Symbol: "AAA", Action: domain.Buy, Quantity: 1, Price: dec("95")}, bar, ledger)
	require.NoError(t, err)
	assert.True(t, trade.Price.Equal(dec("95")))
}

func TestExecutor_SellClampedToHeld(t *testing.T) {
	ex, _ := newTestExecutor(t, "0", "0")
	ledger := NewLedger(decimal.NewFromInt(0))
	require.NoError(t, ledger.apply(day(1), "AAA", decimal.Zero, 4))
	bar := &domain.Bar{Symbol: "AAA", Date: day(2), Close: dec("50")}

	trade, err := ex.Fill(context.Background(), domain.Signal{Symbol: "AAA", Action: domain.Sell, Quantity: 100}, bar, ledger)
	require.NoError(t, err)
	assert.Equal(t, int64(4), trade.Quantity)
	assert.True(t, ledger.Cash().Equal(dec("200")))
	assert.Zero(t, ledger.Position("AAA"))
}

func TestExecutor_Rejections(t *testing.T) {
	bar := &domain.Bar{Symbol: "AAA", Date: day(1), Close: dec("100")}

	tests := []struct {
		name    string
		sig     domain.Signal
		bar     *domain.Bar
		wantErr error
	}{
		{"nil bar", domain.Signal{Symbol: "AAA", Action: domain.Buy, Quantity: 1}, nil, ports.ErrNoPrice},
		{"zero quantity", domain.Signal{Symbol: "AAA", Action: domain.Buy, Quantity: 0}, bar, ports.ErrInvalidRequest},
		{"negative quantity", domain.Signal{Symbol: "AAA", Action: domain.Sell, Quantity: -3}, bar, ports.ErrInvalidRequest},
		{"unknown action", domain.Signal{Symbol: "AAA", Action: "HOLD", Quantity: 1}, bar, ports.ErrInvalidRequest},
		{"insufficient cash", domain.Signal{Symbol: "AAA", Action: domain.Buy, Quantity: 1000}, bar, ports.ErrInsufficientFunds},
		{"sell without position", domain.Signal{Symbol: "AAA", Action: domain.Sell, Quantity: 1}, bar, ports.ErrNoPosition},
		{"zero close", domain.Signal{Symbol: "AAA", Action: domain.Buy, Quantity: 1}, &domain.Bar{Symbol: "AAA", Date: day(1)}, ports.ErrNoPrice},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ex, logger := newTestExecutor(t, "0.001", "0.0005")
			ledger := NewLedger(decimal.NewFromInt(10000))

			trade, err := ex.Fill(context.Background(), tt.sig, tt.bar, ledger)
			assert.Nil(t, trade)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.True(t, ledger.Cash().Equal(decimal.NewFromInt(10000)), "ledger cash changed")
			assert.Empty(t, ledger.Positions())
			assert.Len(t, logger.warnMsgs, 1)
		})
	}
}

func TestExecutor_BuyExactlyAffordable(t *testing.T) {
	ex, _ := newTestExecutor(t, "0", "0")
	ledger := NewLedger(decimal.NewFromInt(1000))
	bar := &domain.Bar{Symbol: "AAA", Date: day(1), Close: dec("100")}

	_, err := ex.Fill(context.Background(), domain.Signal{Symbol: "AAA", Action: domain.Buy, Quantity: 10}, bar, ledger)
	require.NoError(t, err)
	assert.True(t, ledger.Cash().IsZero())
}
