package cart

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wichananm65/storefront-backend/internal/apperr"
	"github.com/wichananm65/storefront-backend/internal/catalog"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func seedCatalog() []catalog.Product {
	return []catalog.Product{
		{ID: 1, ShopID: 1, Name: "P1", Price: dec("20"), DiscountPercent: dec("10"), StockQuantity: 50, Status: catalog.StatusActive},
		{
			ID: 2, ShopID: 1, Name: "P2", Price: dec("30"), DiscountPercent: dec("5"), StockQuantity: 0, Status: catalog.StatusActive,
			Variants: []catalog.Variant{
				{ID: "v-small", Position: 0, Attributes: map[string]string{"size": "S"}, Price: dec("12"), DiscountPercent: dec("0"), StockQuantity: 1},
				{ID: "v-large", Position: 1, Attributes: map[string]string{"size": "L"}, Price: dec("15"), DiscountPercent: dec("0"), StockQuantity: 8},
			},
		},
		{ID: 3, ShopID: 1, Name: "P3", Price: dec("9.99"), DiscountPercent: dec("0"), StockQuantity: 3, Status: catalog.StatusActive},
		{ID: 4, ShopID: 1, Name: "P4", Price: dec("5"), DiscountPercent: dec("0"), StockQuantity: 10, Status: catalog.StatusInactive},
		{ID: 5, ShopID: 1, Name: "P5", Price: dec("5"), DiscountPercent: dec("0"), StockQuantity: 0, Status: catalog.StatusActive},
		{ID: 9, ShopID: 2, Name: "Other shop", Price: dec("1"), DiscountPercent: dec("0"), StockQuantity: 5, Status: catalog.StatusActive},
	}
}

func newTestService(carts ...Cart) (*Service, *InMemoryRepository, *catalog.InMemoryRepository) {
	products := catalog.NewInMemoryRepository(seedCatalog())
	repo := NewInMemoryRepository(carts)
	return NewService(repo, products, nil), repo, products
}

var alice = Key{ShopID: 1, UserID: "42"}

func TestAddLine_SameLineTwiceMerges(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	_, err := svc.AddLine(ctx, alice, 1, 2, "")
	require.NoError(t, err)
	view, err := svc.AddLine(ctx, alice, 1, 3, "")
	require.NoError(t, err)

	require.Len(t, view.Lines, 1)
	assert.Equal(t, 5, view.Lines[0].Quantity)
	assert.Equal(t, 5, view.TotalItems)
}

func TestAddLine_VariantsAreSeparateLines(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	_, err := svc.AddLine(ctx, alice, 2, 1, "v-small")
	require.NoError(t, err)
	view, err := svc.AddLineAt(ctx, alice, 2, 1, 1)
	require.NoError(t, err)

	require.Len(t, view.Lines, 2)
	assert.Equal(t, "v-large", view.Lines[1].VariantID, "index is stored as the stable id")
	require.NotNil(t, view.Lines[1].Variant)
	assert.Equal(t, "L", view.Lines[1].Variant.Attributes["size"])
}

func TestAddLine_RejectsBadInput(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()

	for _, qty := range []int{0, -1, 100} {
		_, err := svc.AddLine(ctx, alice, 1, qty, "")
		assert.Equal(t, apperr.KindValidation, apperr.KindOf(err), "qty %d", qty)
	}
	_, err := svc.AddLine(ctx, Key{ShopID: 1}, 1, 1, "")
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = svc.AddLine(ctx, alice, 404, 1, "")
	assert.ErrorIs(t, err, catalog.ErrProductNotFound)
	_, err = svc.AddLine(ctx, alice, 2, 1, "v-gone")
	assert.ErrorIs(t, err, catalog.ErrVariantNotFound)
	_, err = svc.AddLineAt(ctx, alice, 2, 1, 7)
	assert.ErrorIs(t, err, catalog.ErrVariantNotFound)

	_, err = repo.Get(ctx, alice)
	assert.ErrorIs(t, err, ErrCartNotFound, "rejected input never creates a cart")
}

func TestSetQuantity(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()
	_, err := svc.AddLine(ctx, alice, 1, 2, "")
	require.NoError(t, err)

	view, err := svc.SetQuantity(ctx, alice, 1, 7, "")
	require.NoError(t, err)
	assert.Equal(t, 7, view.Lines[0].Quantity)

	view, err = svc.SetQuantity(ctx, alice, 1, 0, "")
	require.NoError(t, err)
	assert.Empty(t, view.Lines)

	_, err = svc.SetQuantity(ctx, alice, 3, 0, "")
	assert.NoError(t, err, "zero on a missing line is a no-op")

	_, err = svc.SetQuantity(ctx, alice, 3, 2, "")
	assert.ErrorIs(t, err, ErrLineNotFound)

	_, err = svc.SetQuantity(ctx, alice, 1, 100, "")
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	c, err := repo.Get(ctx, alice)
	require.NoError(t, err)
	assert.Empty(t, c.Lines)
}

func TestRemoveAndClear(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()

	_, err := svc.RemoveLine(ctx, alice, 1, "")
	require.NoError(t, err)
	require.NoError(t, svc.Clear(ctx, alice))
	_, err = repo.Get(ctx, alice)
	assert.ErrorIs(t, err, ErrCartNotFound, "no-ops do not create the cart")

	_, _ = svc.AddLine(ctx, alice, 1, 1, "")
	_, _ = svc.AddLine(ctx, alice, 3, 1, "")
	view, err := svc.RemoveLine(ctx, alice, 1, "")
	require.NoError(t, err)
	require.Len(t, view.Lines, 1)

	require.NoError(t, svc.Clear(ctx, alice))
	c, err := repo.Get(ctx, alice)
	require.NoError(t, err, "clear keeps the record")
	assert.Empty(t, c.Lines)
}

func TestGet_TotalsAndMissingProducts(t *testing.T) {
	svc, _, _ := newTestService(Cart{Key: alice, Lines: []Line{
		{ProductID: 1, Quantity: 2},
		{ProductID: 2, VariantID: "v-large", Quantity: 1},
		{ProductID: 999, Quantity: 4},
	}})
	view, err := svc.Get(context.Background(), alice)
	require.NoError(t, err)

	require.Len(t, view.Lines, 2, "vanished product is left out of the view")
	assert.Equal(t, "18", view.Lines[0].FinalUnitPrice.String())
	assert.Equal(t, "36", view.Lines[0].Subtotal.String())
	assert.Equal(t, "15", view.Lines[1].Subtotal.String())
	assert.Equal(t, "51", view.TotalAmount.String())
	assert.Equal(t, 3, view.TotalItems)
}

func TestGet_VanishedProductReappears(t *testing.T) {
	svc, repo, products := newTestService()
	ctx := context.Background()
	_, err := svc.AddLine(ctx, alice, 3, 1, "")
	require.NoError(t, err)

	p, _ := products.GetProduct(ctx, 3)
	require.NoError(t, products.Delete(ctx, 3))
	view, err := svc.Get(ctx, alice)
	require.NoError(t, err)
	assert.Empty(t, view.Lines)

	c, _ := repo.Get(ctx, alice)
	assert.Len(t, c.Lines, 1, "stored line survives")

	_, err = products.Create(ctx, p)
	require.NoError(t, err)
	view, err = svc.Get(ctx, alice)
	require.NoError(t, err)
	assert.Len(t, view.Lines, 1)
}

func TestGet_NeverWrittenIsEmpty(t *testing.T) {
	svc, _, _ := newTestService()
	view, err := svc.Get(context.Background(), alice)
	require.NoError(t, err)
	assert.Empty(t, view.Lines)
	assert.True(t, view.TotalAmount.IsZero())
}

func TestValidate_ClampsToStock(t *testing.T) {
	svc, repo, _ := newTestService(Cart{Key: alice, Lines: []Line{{ProductID: 3, Quantity: 10}}})
	ctx := context.Background()

	v, err := svc.Validate(ctx, alice)
	require.NoError(t, err)
	assert.False(t, v.Valid)
	require.Len(t, v.Problems, 1)
	assert.Equal(t, ProblemInsufficientStock, v.Problems[0].Code)
	assert.Equal(t, 3, v.Problems[0].Available)
	assert.Equal(t, []Line{{ProductID: 3, Quantity: 3}}, v.Corrected)

	c, _ := repo.Get(ctx, alice)
	assert.Equal(t, 10, c.Lines[0].Quantity, "validate does not mutate")
}

func TestValidate_AllProblemKinds(t *testing.T) {
	svc, _, _ := newTestService(Cart{Key: alice, Lines: []Line{
		{ProductID: 1, Quantity: 2},
		{ProductID: 999, Quantity: 1},
		{ProductID: 4, Quantity: 1},
		{ProductID: 2, VariantID: "v-gone", Quantity: 1},
		{ProductID: 5, Quantity: 1},
		{ProductID: 2, VariantID: "v-small", Quantity: 3},
	}})
	v, err := svc.Validate(context.Background(), alice)
	require.NoError(t, err)

	codes := make([]ProblemCode, 0, len(v.Problems))
	for _, p := range v.Problems {
		codes = append(codes, p.Code)
		assert.NotEmpty(t, p.Message)
	}
	assert.Equal(t, []ProblemCode{
		ProblemMissingProduct,
		ProblemInactiveProduct,
		ProblemMissingVariant,
		ProblemInsufficientStock,
		ProblemInsufficientStock,
	}, codes)
	assert.Equal(t, []Line{
		{ProductID: 1, Quantity: 2},
		{ProductID: 2, VariantID: "v-small", Quantity: 1},
	}, v.Corrected)
}

func TestApplyCorrection(t *testing.T) {
	svc, repo, _ := newTestService(Cart{Key: alice, Lines: []Line{
		{ProductID: 3, Quantity: 10},
		{ProductID: 5, Quantity: 1},
	}})
	ctx := context.Background()

	v, view, err := svc.ApplyCorrection(ctx, alice)
	require.NoError(t, err)
	assert.Len(t, v.Problems, 2)
	require.Len(t, view.Lines, 1)
	assert.Equal(t, 3, view.Lines[0].Quantity)

	c, _ := repo.Get(ctx, alice)
	assert.Equal(t, []Line{{ProductID: 3, Quantity: 3}}, c.Lines)

	v, _, err = svc.ApplyCorrection(ctx, alice)
	require.NoError(t, err)
	assert.True(t, v.Valid)
}

func TestMerge_SumsQuantities(t *testing.T) {
	svc, _, _ := newTestService(Cart{Key: alice, Lines: []Line{{ProductID: 1, Quantity: 3}}})
	view, err := svc.Merge(context.Background(), alice, []Line{
		{ProductID: 1, Quantity: 2},
		{ProductID: 3, Quantity: 1},
		{ProductID: 3, Quantity: 0},
	})
	require.NoError(t, err)
	require.Len(t, view.Lines, 2)
	assert.Equal(t, 5, view.Lines[0].Quantity)
	assert.Equal(t, 1, view.Lines[1].Quantity)
}

func TestMerge_OrderOfDistinctProductsDoesNotMatter(t *testing.T) {
	ctx := context.Background()
	a, _, _ := newTestService(Cart{Key: alice, Lines: []Line{{ProductID: 1, Quantity: 3}}})
	b, _, _ := newTestService(Cart{Key: alice, Lines: []Line{{ProductID: 1, Quantity: 3}}})

	_, _ = a.Merge(ctx, alice, []Line{{ProductID: 1, Quantity: 2}})
	va, _ := a.Merge(ctx, alice, []Line{{ProductID: 3, Quantity: 1}})
	_, _ = b.Merge(ctx, alice, []Line{{ProductID: 3, Quantity: 1}})
	vb, _ := b.Merge(ctx, alice, []Line{{ProductID: 1, Quantity: 2}})

	totals := func(v View) map[int64]int {
		out := map[int64]int{}
		for _, l := range v.Lines {
			out[l.ProductID] += l.Quantity
		}
		return out
	}
	assert.Equal(t, totals(va), totals(vb))
	assert.Equal(t, 5, totals(va)[1])
}

func TestAddLine_ProductOfAnotherShop(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()

	_, err := svc.AddLine(ctx, alice, 9, 1, "")
	assert.ErrorIs(t, err, catalog.ErrProductNotFound)
	_, err = svc.AddLineAt(ctx, alice, 9, 1, 0)
	assert.ErrorIs(t, err, catalog.ErrProductNotFound)

	_, err = repo.Get(ctx, alice)
	assert.ErrorIs(t, err, ErrCartNotFound, "nothing is stored")
}

func TestMerge_DropsLinesTheShopDoesNotSell(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()

	view, err := svc.Merge(ctx, alice, []Line{
		{ProductID: 1, Quantity: 1},
		{ProductID: 9, Quantity: 2},
		{ProductID: 999, Quantity: 1},
		{ProductID: 2, VariantID: "v-gone", Quantity: 1},
		{ProductID: 2, VariantID: "v-large", Quantity: 1},
	})
	require.NoError(t, err)
	require.Len(t, view.Lines, 2)

	c, err := repo.Get(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, []Line{
		{ProductID: 1, Quantity: 1},
		{ProductID: 2, VariantID: "v-large", Quantity: 1},
	}, c.Lines)

	_, err = svc.Merge(ctx, Key{ShopID: 1, UserID: "7"}, []Line{{ProductID: 9, Quantity: 1}})
	require.NoError(t, err)
	_, err = repo.Get(ctx, Key{ShopID: 1, UserID: "7"})
	assert.ErrorIs(t, err, ErrCartNotFound, "a merge that keeps nothing writes nothing")
}

func TestValidate_ForeignProductIsMissing(t *testing.T) {
	svc, _, _ := newTestService(Cart{Key: alice, Lines: []Line{
		{ProductID: 1, Quantity: 1},
		{ProductID: 9, Quantity: 1},
	}})
	ctx := context.Background()

	view, err := svc.Get(ctx, alice)
	require.NoError(t, err)
	require.Len(t, view.Lines, 1)
	assert.Equal(t, "18", view.TotalAmount.String())

	v, err := svc.Validate(ctx, alice)
	require.NoError(t, err)
	assert.False(t, v.Valid)
	require.Len(t, v.Problems, 1)
	assert.Equal(t, ProblemMissingProduct, v.Problems[0].Code)
	assert.Equal(t, int64(9), v.Problems[0].ProductID)
	assert.Equal(t, []Line{{ProductID: 1, Quantity: 1}}, v.Corrected)
}

func TestConsume_KeepsLinesAddedAfterTheOrder(t *testing.T) {
	svc, repo, _ := newTestService(Cart{Key: alice, Lines: []Line{
		{ProductID: 1, Quantity: 2},
		{ProductID: 3, Quantity: 1},
	}})
	ctx := context.Background()
	ordered := []Line{{ProductID: 1, Quantity: 2}, {ProductID: 3, Quantity: 1}}

	_, err := svc.AddLine(ctx, alice, 1, 1, "")
	require.NoError(t, err)
	_, err = svc.AddLine(ctx, alice, 2, 1, "v-small")
	require.NoError(t, err)

	require.NoError(t, svc.Consume(ctx, alice, ordered))
	c, err := repo.Get(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, []Line{
		{ProductID: 1, Quantity: 1},
		{ProductID: 2, VariantID: "v-small", Quantity: 1},
	}, c.Lines)

	version := c.Version
	require.NoError(t, svc.Consume(ctx, alice, ordered[1:]))
	c, _ = repo.Get(ctx, alice)
	assert.Equal(t, version, c.Version, "nothing left to consume")
}

func TestMergeCart_GuestIntoEmptyCart(t *testing.T) {
	guest := Key{ShopID: 1, UserID: "guest:abc"}
	svc, repo, _ := newTestService(Cart{Key: guest, Lines: []Line{{ProductID: 1, Quantity: 1}}})
	ctx := context.Background()

	view, err := svc.MergeCart(ctx, alice, guest)
	require.NoError(t, err)
	require.Len(t, view.Lines, 1)
	assert.Equal(t, int64(1), view.Lines[0].ProductID)
	assert.Equal(t, 1, view.Lines[0].Quantity)

	_, err = repo.Get(ctx, guest)
	assert.ErrorIs(t, err, ErrCartNotFound)
}

func TestMergeCart_AbsentSourceIsNoop(t *testing.T) {
	svc, repo, _ := newTestService(Cart{Key: alice, Lines: []Line{{ProductID: 1, Quantity: 2}}})
	ctx := context.Background()

	view, err := svc.MergeCart(ctx, alice, Key{ShopID: 1, UserID: "guest:nobody"})
	require.NoError(t, err)
	require.Len(t, view.Lines, 1)
	assert.Equal(t, 2, view.Lines[0].Quantity)

	view, err = svc.MergeCart(ctx, alice, alice)
	require.NoError(t, err)
	assert.Len(t, view.Lines, 1)

	_, err = svc.MergeCart(ctx, alice, Key{ShopID: 2, UserID: "guest:x"})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	c, _ := repo.Get(ctx, alice)
	assert.Equal(t, int64(1), c.Version)
}

func TestAddLine_ConcurrentIncrementsAreNotLost(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()

	const workers = 50
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.AddLine(ctx, alice, 1, 1, ""); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatal(err)
	}

	c, err := repo.Get(ctx, alice)
	require.NoError(t, err)
	require.Len(t, c.Lines, 1)
	assert.Equal(t, workers, c.Lines[0].Quantity)
	assert.Equal(t, int64(workers), c.Version)
}

func TestMergeCart_ConcurrentWithGuestWrites(t *testing.T) {
	guest := Key{ShopID: 1, UserID: "guest:g1"}
	svc, repo, _ := newTestService(Cart{Key: guest, Lines: []Line{{ProductID: 3, Quantity: 1}}})
	ctx := context.Background()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, _ = svc.MergeCart(ctx, alice, guest)
	}()
	go func() {
		defer wg.Done()
		_, _ = svc.AddLine(ctx, guest, 3, 1, "")
	}()
	wg.Wait()

	c, err := repo.Get(ctx, alice)
	require.NoError(t, err)
	total := c.Lines[0].Quantity
	if g, err := repo.Get(ctx, guest); err == nil {
		total += g.Lines[0].Quantity
	} else {
		require.True(t, errors.Is(err, ErrCartNotFound))
	}
	assert.Equal(t, 2, total, "units end up in exactly one of the carts")
}
