package order

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookstore/internal/model"
)

func TestCreateFromCart(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	u, addr := seedUser(t, db, model.UserActive)
	bookA := seedBook(t, db, "A", 1000, 10)
	bookB := seedBook(t, db, "B", 500, 5)
	cart := seedCart(t, db, u.ID, "")
	itA := seedCartItem(t, db, cart.ID, bookA.ID, 2)
	itB := seedCartItem(t, db, cart.ID, bookB.ID, 1)

	o, err := svc.CreateFromCart(ctx, Identity{UserID: u.ID}, FromCartInput{
		CartID:    cart.ID,
		AddressID: addr.ID,
		ItemIDs:   []uint{itA.ID, itB.ID},
	})
	require.NoError(t, err)

	// 2×1000 + 1×500，两行，一条 PENDING COD 支付，金额与订单总额一致。
	assert.Equal(t, int64(2500), o.TotalAmount)
	assert.Len(t, o.Lines, 2)
	require.Len(t, o.Payments, 1)
	assert.Equal(t, model.MethodCOD, o.Payments[0].Method)
	assert.Equal(t, model.PaymentPending, o.Payments[0].Status)
	assert.Equal(t, int64(2500), o.Payments[0].Amount)

	// 下单不占库存。
	assert.Equal(t, int64(10), reloadBook(t, db, bookA.ID).Stock)
	assert.Equal(t, int64(5), reloadBook(t, db, bookB.ID).Stock)

	// 选中的条目被消费，整车清空后转 CHECKED_OUT。
	var left int64
	require.NoError(t, db.Model(&model.CartItem{}).Where("cart_id = ?", cart.ID).Count(&left).Error)
	assert.Zero(t, left)
	var reloaded model.Cart
	require.NoError(t, db.First(&reloaded, cart.ID).Error)
	assert.Equal(t, model.CartCheckedOut, reloaded.Status)
}

func TestCreateFromCartPartial(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	u, addr := seedUser(t, db, model.UserActive)
	bookA := seedBook(t, db, "A", 1000, 10)
	bookB := seedBook(t, db, "B", 500, 5)
	cart := seedCart(t, db, u.ID, "")
	itA := seedCartItem(t, db, cart.ID, bookA.ID, 1)
	itB := seedCartItem(t, db, cart.ID, bookB.ID, 3)

	o, err := svc.CreateFromCart(ctx, Identity{UserID: u.ID}, FromCartInput{
		CartID:    cart.ID,
		AddressID: addr.ID,
		ItemIDs:   []uint{itA.ID},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1000), o.TotalAmount)

	// 未选中的条目原样保留，购物车仍然 ACTIVE。
	var items []model.CartItem
	require.NoError(t, db.Where("cart_id = ?", cart.ID).Find(&items).Error)
	require.Len(t, items, 1)
	assert.Equal(t, itB.ID, items[0].ID)
	var reloaded model.Cart
	require.NoError(t, db.First(&reloaded, cart.ID).Error)
	assert.Equal(t, model.CartActive, reloaded.Status)
}

func TestCreateFromCartValidation(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	u, addr := seedUser(t, db, model.UserActive)
	other, otherAddr := seedUser(t, db, model.UserActive)
	book := seedBook(t, db, "A", 1000, 10)
	cart := seedCart(t, db, u.ID, "")
	it := seedCartItem(t, db, cart.ID, book.ID, 1)

	// 空选择：不存在“默认全选”。
	_, err := svc.CreateFromCart(ctx, Identity{UserID: u.ID}, FromCartInput{CartID: cart.ID, AddressID: addr.ID})
	assert.ErrorIs(t, err, ErrEmptySelection)

	// 别人的地址。
	_, err = svc.CreateFromCart(ctx, Identity{UserID: u.ID}, FromCartInput{
		CartID: cart.ID, AddressID: otherAddr.ID, ItemIDs: []uint{it.ID},
	})
	assert.ErrorIs(t, err, ErrAddressNotOwned)

	// 别人的购物车。
	_, err = svc.CreateFromCart(ctx, Identity{UserID: other.ID}, FromCartInput{
		CartID: cart.ID, AddressID: addr.ID, ItemIDs: []uint{it.ID},
	})
	assert.ErrorIs(t, err, ErrCartNotOwned)

	// 游客车必须先合并再结算。
	guestCart := seedCart(t, db, 0, "tok-g")
	guestItem := seedCartItem(t, db, guestCart.ID, book.ID, 1)
	_, err = svc.CreateFromCart(ctx, Identity{UserID: u.ID}, FromCartInput{
		CartID: guestCart.ID, AddressID: addr.ID, ItemIDs: []uint{guestItem.ID},
	})
	assert.ErrorIs(t, err, ErrCartGuestOwned)

	// 不属于该车的条目。
	otherCart := seedCart(t, db, other.ID, "")
	strayItem := seedCartItem(t, db, otherCart.ID, book.ID, 1)
	_, err = svc.CreateFromCart(ctx, Identity{UserID: u.ID}, FromCartInput{
		CartID: cart.ID, AddressID: addr.ID, ItemIDs: []uint{strayItem.ID},
	})
	assert.ErrorIs(t, err, ErrItemNotInCart)

	// 非 ACTIVE 购物车。
	require.NoError(t, db.Model(&model.Cart{}).Where("id = ?", cart.ID).
		Update("status", model.CartInactive).Error)
	_, err = svc.CreateFromCart(ctx, Identity{UserID: u.ID}, FromCartInput{
		CartID: cart.ID, AddressID: addr.ID, ItemIDs: []uint{it.ID},
	})
	assert.ErrorIs(t, err, ErrCartNotActive)

	// 校验失败不产生任何订单。
	var n int64
	require.NoError(t, db.Model(&model.Order{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestCreateInstant(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	u, addr := seedUser(t, db, model.UserActive)
	book := seedBook(t, db, "A", 1500, 3)

	o, err := svc.CreateInstant(ctx, Identity{UserID: u.ID}, InstantInput{
		AddressID: addr.ID, BookID: book.ID, Quantity: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3000), o.TotalAmount)
	require.Len(t, o.Lines, 1)
	assert.Equal(t, book.Title, o.Lines[0].Title)
	assert.Equal(t, int64(3), reloadBook(t, db, book.ID).Stock)

	_, err = svc.CreateInstant(ctx, Identity{UserID: u.ID}, InstantInput{
		AddressID: addr.ID, BookID: book.ID, Quantity: 0,
	})
	assert.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = svc.CreateInstant(ctx, Identity{UserID: u.ID}, InstantInput{
		AddressID: addr.ID, BookID: 9999, Quantity: 1,
	})
	assert.ErrorIs(t, err, ErrBookNotFound)
}

func TestCreateManual(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	admin := Identity{UserID: 999, Role: model.RoleAdmin}
	u, addr := seedUser(t, db, model.UserActive)
	inactive, inactiveAddr := seedUser(t, db, model.UserInactive)
	book := seedBook(t, db, "A", 2000, 10)

	override := int64(1200)
	o, err := svc.CreateManual(ctx, admin, ManualInput{
		UserID:    u.ID,
		AddressID: addr.ID,
		Items: []ManualItem{
			{BookID: book.ID, Quantity: 1},
			{BookID: book.ID, Quantity: 2, UnitPrice: &override},
		},
	})
	require.NoError(t, err)
	// 一行快照书价，一行用覆盖价。
	assert.Equal(t, int64(2000+2*1200), o.TotalAmount)
	assert.Equal(t, u.ID, o.UserID)

	// 非管理员。
	_, err = svc.CreateManual(ctx, Identity{UserID: u.ID}, ManualInput{
		UserID: u.ID, AddressID: addr.ID,
		Items: []ManualItem{{BookID: book.ID, Quantity: 1}},
	})
	assert.ErrorIs(t, err, ErrForbidden)

	// 目标用户非 ACTIVE。
	_, err = svc.CreateManual(ctx, admin, ManualInput{
		UserID: inactive.ID, AddressID: inactiveAddr.ID,
		Items: []ManualItem{{BookID: book.ID, Quantity: 1}},
	})
	assert.ErrorIs(t, err, ErrUserInactive)

	// 不存在的书：整单回滚。
	before := countOrders(t, svc)
	_, err = svc.CreateManual(ctx, admin, ManualInput{
		UserID: u.ID, AddressID: addr.ID,
		Items: []ManualItem{
			{BookID: book.ID, Quantity: 1},
			{BookID: 9999, Quantity: 1},
		},
	})
	assert.ErrorIs(t, err, ErrBookNotFound)
	assert.Equal(t, before, countOrders(t, svc))
}

func TestSnapshotImmutability(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	u, addr := seedUser(t, db, model.UserActive)
	book := seedBook(t, db, "A", 1000, 10)

	o, err := svc.CreateInstant(ctx, Identity{UserID: u.ID}, InstantInput{
		AddressID: addr.ID, BookID: book.ID, Quantity: 2,
	})
	require.NoError(t, err)

	// 改价不影响已有订单的行价与总额。
	require.NoError(t, db.Model(&model.Book{}).Where("id = ?", book.ID).
		Update("price", 9999).Error)

	reloaded := reloadOrder(t, db, o.ID)
	require.Len(t, reloaded.Lines, 1)
	assert.Equal(t, int64(1000), reloaded.Lines[0].UnitPrice)
	assert.Equal(t, int64(2000), reloaded.TotalAmount)
}

func countOrders(t *testing.T, svc *Service) int64 {
	t.Helper()
	var n int64
	require.NoError(t, svc.db.Model(&model.Order{}).Count(&n).Error)
	return n
}
