package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"time"
)

// Result 记录单次请求的 HTTP 结果，便于聚合统计。
type Result struct {
	Status int
	Body   string
	Err    error
}

type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

func main() {
	baseURL := flag.String("base", "http://localhost:8080", "server base url")
	username := flag.String("user", "admin", "admin username")
	password := flag.String("password", "secret", "admin password")
	stock := flag.Int64("stock", 10, "initial stock of the test product")

	// 超卖测试参数：200 次并发售出抢 10 件库存
	nSales := flag.Int("sales", 200, "sale requests")
	concurrency := flag.Int("c", 50, "max concurrency")
	loginAttempts := flag.Int("login-attempts", 20, "wrong-password attempts for the rate limit test")
	flag.Parse()

	client := &http.Client{Timeout: 5 * time.Second}

	token, err := login(client, *baseURL, *username, *password)
	if err != nil {
		fmt.Println("login failed:", err)
		os.Exit(1)
	}
	fmt.Println("login ok")

	productID, err := createProduct(client, *baseURL, token, *stock)
	if err != nil {
		fmt.Println("create product failed:", err)
		os.Exit(1)
	}
	fmt.Printf("product %d created with stock %d\n", productID, *stock)

	// 1) 不超卖测试：同一商品并发售出
	fmt.Printf("start oversell test: product=%d sales=%d concurrency=%d\n", productID, *nSales, *concurrency)
	results := runSales(client, *baseURL, token, productID, *nSales, *concurrency)
	printSummary("oversell", results)

	finalStock, sold, err := getProduct(client, *baseURL, token, productID)
	if err != nil {
		fmt.Println("stock check err:", err)
	} else {
		ok := count(results, http.StatusOK)
		fmt.Printf("final stock=%d sold=%d successful sales=%d\n", finalStock, sold, ok)
		if finalStock < 0 || int64(ok) != *stock-finalStock || sold != int64(ok) {
			fmt.Println("OVERSELL DETECTED")
			os.Exit(2)
		}
	}

	// 2) 限流测试：同一用户名连续输错密码，应出现 429
	fmt.Printf("\nstart login rate limit test: user=%s attempts=%d\n", *username, *loginAttempts)
	results2 := runWrongLogins(client, *baseURL, *username, *loginAttempts)
	printSummary("login_rate_limit", results2)
}

func runSales(client *http.Client, baseURL, token string, productID uint, total, concurrency int) []Result {
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	results := make([]Result, total)

	url := fmt.Sprintf("%s/api/products/%d/sale", baseURL, productID)
	for i := 0; i < total; i++ {
		wg.Add(1)
		sem <- struct{}{}
		go func(idx int) {
			defer wg.Done()
			defer func() { <-sem }()
			results[idx] = send(client, http.MethodPost, url, token, nil)
		}(i)
	}

	wg.Wait()
	return results
}

func runWrongLogins(client *http.Client, baseURL, username string, total int) []Result {
	results := make([]Result, total)
	for i := 0; i < total; i++ {
		results[i] = send(client, http.MethodPost, baseURL+"/api/login", "", map[string]string{
			"username": username,
			"password": fmt.Sprintf("wrong-%d", i),
		})
	}
	return results
}

func send(client *http.Client, method, url, token string, body any) Result {
	var r io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		r = bytes.NewReader(b)
	}
	req, _ := http.NewRequest(method, url, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := client.Do(req)
	if err != nil {
		return Result{Err: err}
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return Result{Status: resp.StatusCode, Body: string(b)}
}

// call 发送请求并把成功响应的 data 解析到 out。
func call(client *http.Client, method, url, token string, body, out any) error {
	res := send(client, method, url, token, body)
	if res.Err != nil {
		return res.Err
	}
	if res.Status >= 300 {
		return fmt.Errorf("status=%d body=%s", res.Status, res.Body)
	}
	var env envelope
	if err := json.Unmarshal([]byte(res.Body), &env); err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(env.Data, out)
}

func login(client *http.Client, baseURL, username, password string) (string, error) {
	var sess struct {
		Token string `json:"token"`
	}
	err := call(client, http.MethodPost, baseURL+"/api/login", "", map[string]string{
		"username": username,
		"password": password,
	}, &sess)
	return sess.Token, err
}

func createProduct(client *http.Client, baseURL, token string, stock int64) (uint, error) {
	var p struct {
		ID uint `json:"id"`
	}
	err := call(client, http.MethodPost, baseURL+"/api/products", token, map[string]any{
		"title":            fmt.Sprintf("loadtest-%d", time.Now().Unix()),
		"product_category": "loadtest",
		"stock":            stock,
		"whole_price":      "1.00",
		"sale_price":       "2.00",
	}, &p)
	return p.ID, err
}

func getProduct(client *http.Client, baseURL, token string, id uint) (int64, int64, error) {
	var p struct {
		Stock int64 `json:"stock"`
		Sold  int64 `json:"sold"`
	}
	err := call(client, http.MethodGet, fmt.Sprintf("%s/api/products/%d", baseURL, id), token, nil, &p)
	return p.Stock, p.Sold, err
}

func count(results []Result, status int) int {
	n := 0
	for _, r := range results {
		if r.Err == nil && r.Status == status {
			n++
		}
	}
	return n
}

// printSummary 聚合输出不同状态码分布。
func printSummary(name string, results []Result) {
	counts := map[int]int{}
	errCount := 0
	for _, r := range results {
		if r.Err != nil {
			errCount++
			continue
		}
		counts[r.Status]++
	}
	fmt.Printf("[%s] http status summary:\n", name)
	for _, code := range []int{200, 400, 401, 404, 409, 429, 500} {
		if counts[code] > 0 {
			fmt.Printf("  %d -> %d\n", code, counts[code])
		}
	}
	if errCount > 0 {
		fmt.Printf("  errors -> %d\n", errCount)
	}
}
