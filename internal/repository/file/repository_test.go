package filerepository

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"

	"fundwatch/internal/models"
	"fundwatch/internal/repository"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	return New(filepath.Join(dir, "portfolio.json"), filepath.Join(dir, "transactions.json"), nil)
}

func TestListHoldingsMissingFile(t *testing.T) {
	s := newTestStore(t)
	holdings, err := s.ListHoldings(context.Background())
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(holdings) != 0 {
		t.Fatalf("holdings=%v want empty", holdings)
	}
}

func TestLoadHoldingsTolerantDecoding(t *testing.T) {
	s := newTestStore(t)
	raw := `[
		{"code": 19005, "name": "Silver LOF Feeder", "cost": "1.872", "shares": 500.5},
		{"code": "161039", "channel": "on_exchange", "cost": -1, "confirm_days": 2}
	]`
	if err := os.WriteFile(s.portfolioPath, []byte(raw), 0o644); err != nil {
		t.Fatalf("seed file: %v", err)
	}

	holdings, err := s.ListHoldings(context.Background())
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(holdings) != 2 {
		t.Fatalf("holdings=%d want=2", len(holdings))
	}

	first := holdings[0]
	if first.Code != "019005" {
		t.Fatalf("code=%s want zero-padded 019005", first.Code)
	}
	if first.Channel != models.ChannelOffExchange {
		t.Fatalf("channel=%s want default %s", first.Channel, models.ChannelOffExchange)
	}
	if first.Cost.Cmp(decimal.RequireFromString("1.872")) != 0 {
		t.Fatalf("cost=%s want=1.872", first.Cost)
	}
	if first.Shares.Cmp(decimal.RequireFromString("500.5")) != 0 {
		t.Fatalf("shares=%s want=500.5", first.Shares)
	}
	if first.ConfirmDays != 1 {
		t.Fatalf("confirm_days=%d want default 1", first.ConfirmDays)
	}

	second := holdings[1]
	if second.Channel != models.ChannelOnExchange {
		t.Fatalf("channel=%s want=%s", second.Channel, models.ChannelOnExchange)
	}
	if !second.Cost.IsZero() {
		t.Fatalf("negative cost not clamped: %s", second.Cost)
	}
	if second.ConfirmDays != 2 {
		t.Fatalf("confirm_days=%d want=2", second.ConfirmDays)
	}
}

func TestSaveHoldingsRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	in := []models.Holding{{
		Code:        "19005",
		Name:        "Silver LOF Feeder",
		Channel:     models.ChannelBorrowed,
		Cost:        decimal.RequireFromString("1.872"),
		Shares:      decimal.RequireFromString("500"),
		ConfirmDays: 2,
	}}
	if err := s.SaveHoldings(ctx, in); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	out, err := s.ListHoldings(ctx)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("holdings=%d want=1", len(out))
	}
	if out[0].Code != "019005" {
		t.Fatalf("code=%s want=019005", out[0].Code)
	}
	if out[0].Cost.Cmp(in[0].Cost) != 0 || out[0].Shares.Cmp(in[0].Shares) != 0 {
		t.Fatalf("round trip lost quantities: %+v", out[0])
	}
	if out[0].ConfirmDays != 2 {
		t.Fatalf("confirm_days=%d want=2", out[0].ConfirmDays)
	}
}

func TestAppendAndRemoveTransaction(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first := models.Transaction{Code: "161039", Type: models.TxTypeBuy, Mode: models.TxModeAmount, Value: decimal.RequireFromString("1000")}
	if err := s.AppendTransaction(ctx, &first); err != nil {
		t.Fatalf("append failed: %v", err)
	}
	if first.ID != 1 {
		t.Fatalf("id=%d want=1", first.ID)
	}

	second := models.Transaction{Code: "019005", Type: models.TxTypeSell, Mode: models.TxModeShare, Value: decimal.RequireFromString("100")}
	if err := s.AppendTransaction(ctx, &second); err != nil {
		t.Fatalf("append failed: %v", err)
	}
	if second.ID != 2 {
		t.Fatalf("id=%d want=2", second.ID)
	}

	if err := s.RemoveTransaction(ctx, 1); err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	txs, err := s.ListTransactions(ctx)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(txs) != 1 || txs[0].ID != 2 {
		t.Fatalf("txs=%+v want only id 2", txs)
	}

	if err := s.RemoveTransaction(ctx, 1); err != repository.ErrNotFound {
		t.Fatalf("err=%v want=%v", err, repository.ErrNotFound)
	}
}

func TestAppendTransactionIDsSurviveRemoval(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		tx := models.Transaction{Code: "161039", Value: decimal.NewFromInt(int64(i + 1))}
		if err := s.AppendTransaction(ctx, &tx); err != nil {
			t.Fatalf("append failed: %v", err)
		}
	}
	if err := s.RemoveTransaction(ctx, 3); err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	tx := models.Transaction{Code: "161039", Value: decimal.NewFromInt(9)}
	if err := s.AppendTransaction(ctx, &tx); err != nil {
		t.Fatalf("append failed: %v", err)
	}
	if tx.ID != 3 {
		t.Fatalf("id=%d want=3 (max surviving id + 1)", tx.ID)
	}
}
