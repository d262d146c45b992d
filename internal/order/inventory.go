package order

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"bookstore/internal/model"
)

// reserve 库存守卫：条件更新一步完成「校验 + 扣减」，
// WHERE stock >= qty 使并发扣减不存在先读后写的窗口，库存永不为负。
// 只允许在支付完成事务内调用（因此不导出），下单阶段一律不碰库存。
func reserve(tx *gorm.DB, bookID uint, qty int) error {
	res := tx.Model(&model.Book{}).
		Where("id = ? AND stock >= ?", bookID, qty).
		UpdateColumn("stock", gorm.Expr("stock - ?", qty))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrInsufficientStock
	}
	return nil
}

// forUpdate 给查询加 SELECT ... FOR UPDATE 行锁。
// SQLite 不支持该语法，但其单写者模型本身已串行化写事务，直接透传。
func forUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "sqlite" {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}
