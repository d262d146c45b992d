package main

import (
	"flag"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"bookstore/internal/model"
)

// Result 记录单次请求的 HTTP 结果，便于聚合统计。
type Result struct {
	Status int
	Body   string
	Err    error
}

// 超卖/幂等压测：直接在库里造 N 个 PENDING COD 订单（每单买同一本书 1 件），
// 然后并发打运营确认接口（每单打 dup 次模拟重复回调），
// 结束后对账：最终库存 == 初始库存 - 实际完成单数，且不为负。
func main() {
	baseURL := flag.String("base", "http://localhost:8080", "server base url")
	dbPath := flag.String("db", "bookstore.db", "sqlite db path (same file as the server)")
	jwtSecret := flag.String("jwt-secret", "dev-jwt-secret", "shared jwt secret for minting the admin token")
	nOrders := flag.Int("orders", 100, "pending orders to create")
	stock := flag.Int64("stock", 50, "initial stock for the test book")
	dup := flag.Int("dup", 2, "duplicate completion attempts per order")
	concurrency := flag.Int("c", 50, "max concurrency")
	flag.Parse()

	db, err := gorm.Open(sqlite.Open(*dbPath), &gorm.Config{})
	if err != nil {
		panic(fmt.Sprintf("db open: %v", err))
	}

	book, orderIDs := seed(db, *nOrders, *stock)
	fmt.Printf("seeded book id=%d stock=%d, %d pending orders\n", book.ID, book.Stock, len(orderIDs))

	token := mintAdminToken(*jwtSecret)
	client := &http.Client{Timeout: 10 * time.Second}

	// 每个订单打 dup 次，乱序并发。
	var targets []uint
	for i := 0; i < *dup; i++ {
		targets = append(targets, orderIDs...)
	}

	results := make([]Result, len(targets))
	sem := make(chan struct{}, *concurrency)
	var wg sync.WaitGroup
	for i, oid := range targets {
		wg.Add(1)
		sem <- struct{}{}
		go func(idx int, orderID uint) {
			defer wg.Done()
			defer func() { <-sem }()
			results[idx] = completeOnce(client, *baseURL, token, orderID)
		}(i, oid)
	}
	wg.Wait()

	printSummary("complete", results)

	// 对账：完成单数与库存扣减必须严格相等，库存不得为负。
	var completed int64
	db.Model(&model.Order{}).Where("id IN ? AND status = ?", orderIDs, model.OrderCompleted).Count(&completed)
	var final model.Book
	db.First(&final, book.ID)
	expect := *stock - completed
	fmt.Printf("completed orders: %d\n", completed)
	fmt.Printf("final stock: %d (expect %d)\n", final.Stock, expect)
	if final.Stock < 0 || final.Stock != expect {
		fmt.Println("RECONCILIATION FAILED")
		return
	}
	fmt.Println("reconciliation ok")
}

// seed 造测试数据：一个用户 + 地址 + 一本书 + N 个 PENDING COD 订单。
func seed(db *gorm.DB, nOrders int, stock int64) (*model.Book, []uint) {
	user := &model.User{Name: "loadtest", Email: fmt.Sprintf("loadtest-%d@example.com", time.Now().UnixNano()), Status: model.UserActive}
	if err := db.Create(user).Error; err != nil {
		panic(err)
	}
	addr := &model.Address{UserID: user.ID, Recipient: "loadtest", Line1: "1 test st"}
	if err := db.Create(addr).Error; err != nil {
		panic(err)
	}
	book := &model.Book{Title: "loadtest book", Price: 1000, Stock: stock}
	if err := db.Create(book).Error; err != nil {
		panic(err)
	}

	ids := make([]uint, 0, nOrders)
	now := time.Now()
	for i := 0; i < nOrders; i++ {
		o := &model.Order{
			OrderNo:     fmt.Sprintf("LT%d-%d", now.UnixNano(), i),
			UserID:      user.ID,
			AddressID:   addr.ID,
			TotalAmount: book.Price,
			Status:      model.OrderPending,
			PlacedAt:    now,
		}
		if err := db.Create(o).Error; err != nil {
			panic(err)
		}
		line := &model.OrderLine{OrderID: o.ID, BookID: book.ID, Title: book.Title, Quantity: 1, UnitPrice: book.Price}
		if err := db.Create(line).Error; err != nil {
			panic(err)
		}
		p := &model.Payment{OrderID: o.ID, Method: model.MethodCOD, Amount: book.Price, Status: model.PaymentPending, TxnRef: fmt.Sprintf("lt-%d-%d", now.UnixNano(), i)}
		if err := db.Create(p).Error; err != nil {
			panic(err)
		}
		ids = append(ids, o.ID)
	}
	return book, ids
}

// mintAdminToken 用共享密钥签一枚管理员 JWT（与上游签发格式一致）。
func mintAdminToken(secret string) string {
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"uid":  1,
		"role": "admin",
		"exp":  time.Now().Add(time.Hour).Unix(),
	})
	s, err := tok.SignedString([]byte(secret))
	if err != nil {
		panic(err)
	}
	return s
}

func completeOnce(client *http.Client, baseURL, token string, orderID uint) Result {
	url := fmt.Sprintf("%s/api/admin/orders/%d/payments/complete", baseURL, orderID)
	req, _ := http.NewRequest(http.MethodPost, url, nil)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := client.Do(req)
	if err != nil {
		return Result{Err: err}
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return Result{Status: resp.StatusCode, Body: string(body)}
}

// printSummary 聚合输出不同状态码分布。
func printSummary(name string, results []Result) {
	count := map[int]int{}
	errCount := 0
	for _, r := range results {
		if r.Err != nil {
			errCount++
			continue
		}
		count[r.Status]++
	}
	fmt.Printf("[%s] http status summary:\n", name)
	for _, code := range []int{200, 400, 403, 404, 409, 429, 500} {
		if count[code] > 0 {
			fmt.Printf("  %d -> %d\n", code, count[code])
		}
	}
	if errCount > 0 {
		fmt.Printf("  errors -> %d\n", errCount)
	}
}
