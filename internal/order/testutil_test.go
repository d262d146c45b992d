package order

import (
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"bookstore/internal/model"
)

// newTestDB 每个测试一个独立的内存库。命名 shared cache 避免连接池
// 里不同连接各自拿到一个空库。
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			return r
		}
		return '_'
	}, t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&model.User{}, &model.Address{}, &model.Book{},
		&model.Cart{}, &model.CartItem{},
		&model.Order{}, &model.OrderLine{}, &model.Payment{},
	))
	return db
}

func newTestService(t *testing.T, opts ...Option) (*Service, *gorm.DB) {
	t.Helper()
	db := newTestDB(t)
	return NewService(db, zap.NewNop(), opts...), db
}

var seedUserSeq atomic.Uint64

func seedUser(t *testing.T, db *gorm.DB, status model.UserStatus) (*model.User, *model.Address) {
	t.Helper()
	u := &model.User{Name: "reader", Email: fmt.Sprintf("%s-%d@example.com", t.Name(), seedUserSeq.Add(1)), Status: status}
	require.NoError(t, db.Create(u).Error)
	addr := &model.Address{UserID: u.ID, Recipient: u.Name, Line1: "1 book st"}
	require.NoError(t, db.Create(addr).Error)
	return u, addr
}

func seedBook(t *testing.T, db *gorm.DB, title string, price, stock int64) *model.Book {
	t.Helper()
	b := &model.Book{Title: title, Author: "anon", Price: price, Stock: stock}
	require.NoError(t, db.Create(b).Error)
	return b
}

func seedCart(t *testing.T, db *gorm.DB, userID uint, guestToken string) *model.Cart {
	t.Helper()
	c := &model.Cart{UserID: userID, GuestToken: guestToken, Status: model.CartActive}
	require.NoError(t, db.Create(c).Error)
	return c
}

func seedCartItem(t *testing.T, db *gorm.DB, cartID, bookID uint, qty int) *model.CartItem {
	t.Helper()
	it := &model.CartItem{CartID: cartID, BookID: bookID, Quantity: qty}
	require.NoError(t, db.Create(it).Error)
	return it
}

func reloadBook(t *testing.T, db *gorm.DB, id uint) *model.Book {
	t.Helper()
	var b model.Book
	require.NoError(t, db.First(&b, id).Error)
	return &b
}

func reloadOrder(t *testing.T, db *gorm.DB, id uint) *model.Order {
	t.Helper()
	var o model.Order
	require.NoError(t, db.Preload("Lines").Preload("Payments").First(&o, id).Error)
	return &o
}
