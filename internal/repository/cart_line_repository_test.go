package repository

import (
	"context"
	"testing"

	"storefront/internal/cart"
	"storefront/internal/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSessionLines(t *testing.T) *SessionCartLines {
	t.Helper()
	repo := NewCartLineRepository(testDB)
	sessionID := uuid.New().String()
	t.Cleanup(func() {
		_ = repo.DeleteSession(context.Background(), sessionID)
	})
	return repo.ForSession(sessionID)
}

func TestCartLineLifecycle(t *testing.T) {
	ctx := context.Background()
	p := newTestProduct(2, true)
	seedProduct(t, p)
	lines := newSessionLines(t)

	created, err := lines.CreateCartLine(ctx, p.ID, p.Variants[1].ID, 3)
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)
	assert.Equal(t, 3, created.Quantity)

	updated, err := lines.UpdateCartLine(ctx, created.ID, 5)
	require.NoError(t, err)
	assert.Equal(t, domain.LineKey{ProductID: p.ID, VariantID: p.Variants[1].ID}, updated.Key)
	assert.Equal(t, 5, updated.Quantity)

	listed, err := lines.ListCartLines(ctx)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, created.ID, listed[0].ID)
	assert.Equal(t, 5, listed[0].Quantity)
	assert.Equal(t, p.Title, listed[0].Product.Title)
	assert.Equal(t, p.Variants[1].PriceInCents, listed[0].Variant.PriceInCents)
	assert.Equal(t, []string{p.Variants[1].ID}, listed[0].Product.VariantIDs())

	require.NoError(t, lines.DeleteCartLine(ctx, created.ID))
	assert.ErrorIs(t, lines.DeleteCartLine(ctx, created.ID), domain.ErrNotFound)

	listed, err = lines.ListCartLines(ctx)
	require.NoError(t, err)
	assert.Empty(t, listed)
}

func TestCreateCartLineIsIdempotentPerKey(t *testing.T) {
	ctx := context.Background()
	p := newTestProduct(1, true)
	seedProduct(t, p)
	lines := newSessionLines(t)

	first, err := lines.CreateCartLine(ctx, p.ID, p.Variants[0].ID, 1)
	require.NoError(t, err)
	second, err := lines.CreateCartLine(ctx, p.ID, p.Variants[0].ID, 4)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 4, second.Quantity)

	listed, err := lines.ListCartLines(ctx)
	require.NoError(t, err)
	assert.Len(t, listed, 1)
}

func TestCartLinesAreScopedToSession(t *testing.T) {
	ctx := context.Background()
	p := newTestProduct(1, true)
	seedProduct(t, p)
	mine := newSessionLines(t)
	theirs := newSessionLines(t)

	line, err := mine.CreateCartLine(ctx, p.ID, p.Variants[0].ID, 2)
	require.NoError(t, err)

	_, err = theirs.UpdateCartLine(ctx, line.ID, 9)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, theirs.DeleteCartLine(ctx, line.ID), domain.ErrNotFound)

	listed, err := theirs.ListCartLines(ctx)
	require.NoError(t, err)
	assert.Empty(t, listed)
}

func TestCartLineUnknownRecords(t *testing.T) {
	ctx := context.Background()
	lines := newSessionLines(t)

	_, err := lines.CreateCartLine(ctx, "missing-product", "missing-variant", 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = lines.UpdateCartLine(ctx, "not-a-uuid", 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = lines.UpdateCartLine(ctx, uuid.New().String(), 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestEngineRoundTripThroughPostgres(t *testing.T) {
	ctx := context.Background()
	p := newTestProduct(2, true)
	seedProduct(t, p)
	lines := newSessionLines(t)

	engine := cart.NewEngine(lines, nil)
	_, err := engine.AddToCart(ctx, *p, p.Variants[0], 2, 10)
	require.NoError(t, err)
	_, err = engine.AddToCart(ctx, *p, p.Variants[1], 1, 10)
	require.NoError(t, err)
	_, err = engine.AddToCart(ctx, *p, p.Variants[0], 3, 10)
	require.NoError(t, err)

	reloaded := cart.NewEngine(lines, nil)
	require.NoError(t, reloaded.Load(ctx))

	assert.Equal(t, engine.ItemCount(), reloaded.ItemCount())
	assert.Equal(t, engine.TotalInCents(), reloaded.TotalInCents())
	got := reloaded.Lines()
	require.Len(t, got, 2)
	assert.Equal(t, p.Variants[0].ID, got[0].Key.VariantID)
	assert.Equal(t, 5, got[0].Quantity)
}
