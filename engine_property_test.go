package match

import (
	"testing"

	"github.com/shopspring/decimal"
	"pgregory.net/rapid"
)

type genOrder struct {
	side     Side
	price    int64
	quantity int64
}

// genOrders draws a stream of orders around a narrow price band so they cross often.
// Some quantities are non-positive and must be rejected.
func genOrders() *rapid.Generator[[]genOrder] {
	one := rapid.Custom(func(t *rapid.T) genOrder {
		return genOrder{
			side:     rapid.SampledFrom([]Side{Buy, Sell}).Draw(t, "side"),
			price:    rapid.Int64Range(95, 105).Draw(t, "price"),
			quantity: rapid.Int64Range(-1, 10).Draw(t, "quantity"),
		}
	})
	return rapid.SliceOfN(one, 1, 200)
}

func TestProperty_MatchingInvariants(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		orders := genOrders().Draw(t, "orders")

		engine := NewEngine(WithPublishTrader(NewDiscardPublishTrader()))

		submittedPrice := map[uint64]decimal.Decimal{}
		submittedSide := map[uint64]Side{}
		accepted := decimal.Zero
		nextID := uint64(1)

		for _, o := range orders {
			before := engine.TradeLog().Len()
			price := decimal.NewFromInt(o.price)
			qty := decimal.NewFromInt(o.quantity)

			id := engine.AddOrder(o.side, price, qty)

			if o.quantity <= 0 {
				if id != 0 {
					t.Fatalf("non-positive quantity accepted with id %d", id)
				}
				if engine.TradeLog().Len() != before {
					t.Fatalf("rejected order produced trades")
				}
				continue
			}

			takerID := nextID
			nextID++
			submittedPrice[takerID] = price
			submittedSide[takerID] = o.side
			accepted = accepted.Add(qty)

			if id != 0 && id != takerID {
				t.Fatalf("expected id %d, got %d", takerID, id)
			}

			trades := engine.TradeLog().Since(before)
			for i, tr := range trades {
				if tr.TakerOrderID != takerID || tr.TakerSide != o.side {
					t.Fatalf("trade %d has wrong taker", tr.ID)
				}
				if submittedSide[tr.MakerOrderID] == o.side {
					t.Fatalf("trade %d matched two orders of the same side", tr.ID)
				}
				// execution at the maker's limit
				if !tr.Price.Equal(submittedPrice[tr.MakerOrderID]) {
					t.Fatalf("trade %d at %s, maker limit %s", tr.ID, tr.Price, submittedPrice[tr.MakerOrderID])
				}
				// never worse than the taker's limit
				if o.side == Buy && tr.Price.GreaterThan(price) || o.side == Sell && tr.Price.LessThan(price) {
					t.Fatalf("trade %d at %s crosses taker limit %s", tr.ID, tr.Price, price)
				}
				if tr.Quantity.Sign() <= 0 {
					t.Fatalf("trade %d has quantity %s", tr.ID, tr.Quantity)
				}

				if i == 0 {
					continue
				}
				prev := trades[i-1]
				better := prev.Price.LessThan(tr.Price)
				if o.side == Sell {
					better = prev.Price.GreaterThan(tr.Price)
				}
				if !better && !(prev.Price.Equal(tr.Price) && prev.MakerOrderID < tr.MakerOrderID) {
					t.Fatalf("trades %d and %d out of price-time priority", prev.ID, tr.ID)
				}
			}

			// a resting remainder means the opposite side no longer crosses
			if id != 0 {
				if o.side == Buy {
					if ask, ok := engine.BestAsk(); ok && ask.Price.LessThanOrEqual(price) {
						t.Fatalf("buy %d rests at %s against ask %s", id, price, ask.Price)
					}
				} else {
					if bid, ok := engine.BestBid(); ok && bid.Price.GreaterThanOrEqual(price) {
						t.Fatalf("sell %d rests at %s against bid %s", id, price, bid.Price)
					}
				}
			}

			bid, bidOK := engine.BestBid()
			ask, askOK := engine.BestAsk()
			if bidOK && askOK && bid.Price.GreaterThanOrEqual(ask.Price) {
				t.Fatalf("crossed book: bid %s ask %s", bid.Price, ask.Price)
			}
		}

		// every accepted unit is either resting or was consumed on both sides of a trade
		traded := decimal.Zero
		for _, tr := range engine.Trades() {
			traded = traded.Add(tr.Quantity)
		}
		resting := decimal.Zero
		live := 0
		for id := uint64(1); id < nextID; id++ {
			if o, ok := engine.Order(id); ok {
				resting = resting.Add(o.Quantity)
				live++
			}
		}
		if !accepted.Equal(resting.Add(traded.Mul(decimal.NewFromInt(2)))) {
			t.Fatalf("quantity not conserved: accepted %s, resting %s, traded %s", accepted, resting, traded)
		}
		if live != engine.Stats().LiveOrders {
			t.Fatalf("registry holds %d orders, lookup found %d", engine.Stats().LiveOrders, live)
		}
	})
}

func TestProperty_SnapshotRestoreIsTransparent(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		prefix := genOrders().Draw(t, "prefix")
		suffix := genOrders().Draw(t, "suffix")

		a := NewEngine(WithPublishTrader(NewDiscardPublishTrader()))
		for _, o := range prefix {
			a.AddOrder(o.side, decimal.NewFromInt(o.price), decimal.NewFromInt(o.quantity))
		}

		b := NewEngine(WithPublishTrader(NewDiscardPublishTrader()))
		if err := b.Restore(a.Snapshot()); err != nil {
			t.Fatalf("restore: %v", err)
		}

		startA, startB := a.TradeLog().Len(), b.TradeLog().Len()
		for _, o := range suffix {
			idA := a.AddOrder(o.side, decimal.NewFromInt(o.price), decimal.NewFromInt(o.quantity))
			idB := b.AddOrder(o.side, decimal.NewFromInt(o.price), decimal.NewFromInt(o.quantity))
			if idA != idB {
				t.Fatalf("ids diverged: %d vs %d", idA, idB)
			}
		}

		tradesA, tradesB := a.TradeLog().Since(startA), b.TradeLog().Since(startB)
		if len(tradesA) != len(tradesB) {
			t.Fatalf("trade count diverged: %d vs %d", len(tradesA), len(tradesB))
		}
		for i := range tradesA {
			x, y := tradesA[i], tradesB[i]
			if x.ID != y.ID || x.MakerOrderID != y.MakerOrderID || x.TakerOrderID != y.TakerOrderID ||
				!x.Price.Equal(y.Price) || !x.Quantity.Equal(y.Quantity) {
				t.Fatalf("trade %d diverged", i)
			}
		}
	})
}
