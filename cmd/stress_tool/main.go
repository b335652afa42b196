package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"crowdvote/internal/pkg/config"
	"crowdvote/pkg/utils"

	"github.com/google/uuid"
)

// 压测：大量用户同时助力同一个活动，结束后核对 current_reservations 是否等于成功助力的金币总数
var (
	baseURL    = flag.String("url", "http://localhost:8080", "服务地址")
	totalUsers = flag.Int("users", 500, "并发用户数")
	rounds     = flag.Int("rounds", 4, "每个用户助力次数")
	coins      = flag.Int64("coins", 3, "每次助力金币数")
)

var httpClient *http.Client

func init() {
	// 优化 HTTP Client 配置
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.MaxIdleConns = 2000
	t.MaxIdleConnsPerHost = 2000
	t.MaxConnsPerHost = 2000
	httpClient = &http.Client{
		Transport: t,
		Timeout:   30 * time.Second,
	}
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func main() {
	flag.Parse()
	// 令牌用服务端同一份 JWT 配置签发
	config.LoadConfig()

	adminToken, err := utils.GenerateToken(uuid.NewString(), utils.RoleAdmin, time.Hour)
	if err != nil {
		log.Fatal(err)
	}

	// 1. 创建活动 (管理员操作)
	campaignID := createCampaign(adminToken)
	fmt.Printf("开始压测：%d 个用户各助力 %d 次 (CampaignID: %s)...\n", *totalUsers, *rounds, campaignID)

	// 2. 并发助力
	var wg sync.WaitGroup
	var successCount, failCount atomic.Int64
	start := time.Now()

	for i := 0; i < *totalUsers; i++ {
		token, err := utils.GenerateToken(uuid.NewString(), utils.RoleUser, time.Hour)
		if err != nil {
			log.Fatal(err)
		}
		wg.Add(1)
		go func(token string) {
			defer wg.Done()
			for r := 0; r < *rounds; r++ {
				if support(token, campaignID) {
					successCount.Add(1)
				} else {
					failCount.Add(1)
				}
			}
		}(token)
	}

	wg.Wait()
	duration := time.Since(start)
	total := int64(*totalUsers * *rounds)

	// 3. 核对总额
	expected := successCount.Load() * *coins
	actual := currentReservations(campaignID, adminToken)

	fmt.Println("--------------------------------------------------")
	fmt.Printf("压测结束，耗时: %v\n", duration)
	fmt.Printf("总请求数: %d\n", total)
	fmt.Printf("QPS: %.2f\n", float64(total)/duration.Seconds())
	fmt.Printf("成功助力: %d\n", successCount.Load())
	fmt.Printf("助力失败: %d\n", failCount.Load())
	fmt.Printf("current_reservations: %d (预期: %d)\n", actual, expected)
	fmt.Println("--------------------------------------------------")

	if actual != expected {
		// 请求路径上的重排失败会由对账任务修复，可手动触发一次再核对
		fmt.Println("总额不一致，尝试手动重排...")
		recalculate(campaignID, adminToken)
		fmt.Printf("重排后 current_reservations: %d\n", currentReservations(campaignID, adminToken))
	}
}

func call(method, url, token string, payload interface{}) (*envelope, int, error) {
	var body io.Reader
	if payload != nil {
		raw, _ := json.Marshal(payload)
		body = bytes.NewBuffer(raw)
	}
	req, err := http.NewRequest(method, url, body)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	var result envelope
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, resp.StatusCode, err
	}
	return &result, resp.StatusCode, nil
}

func createCampaign(token string) string {
	payload := map[string]interface{}{
		"title":           "压测专用活动",
		"reservationGoal": 1_000_000,
		"minimumBid":      1,
	}
	result, status, err := call(http.MethodPost, *baseURL+"/campaigns", token, payload)
	if err != nil || status != http.StatusOK {
		log.Fatalf("创建活动失败: status=%d err=%v", status, err)
	}

	var campaign struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(result.Data, &campaign); err != nil {
		log.Fatalf("解析响应失败: %v", err)
	}
	return campaign.ID
}

func support(token, campaignID string) bool {
	result, status, err := call(http.MethodPost, *baseURL+"/campaigns/"+campaignID+"/support", token, map[string]int64{"coins": *coins})
	if err != nil || status != http.StatusOK {
		return false
	}
	return result.Code == 0
}

func currentReservations(campaignID, token string) int64 {
	result, _, err := call(http.MethodGet, *baseURL+"/campaigns/"+campaignID, token, nil)
	if err != nil {
		log.Fatalf("查询活动失败: %v", err)
	}
	var campaign struct {
		CurrentReservations int64 `json:"currentReservations"`
	}
	_ = json.Unmarshal(result.Data, &campaign)
	return campaign.CurrentReservations
}

func recalculate(campaignID, token string) {
	if _, _, err := call(http.MethodPost, *baseURL+"/campaigns/"+campaignID+"/recalculate", token, nil); err != nil {
		log.Printf("重排失败: %v", err)
	}
}
