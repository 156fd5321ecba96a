package economy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/pickuphub/pickup-backend/pkg/logger"
)

// RefundStatus 예측 환불 결과.
// "환불할 예측이 없음"은 실패가 아니라 구분되는 정상 결과다.
type RefundStatus string

const (
	Refunded        RefundStatus = "refunded"
	NothingToRefund RefundStatus = "nothing_to_refund"
	Failed          RefundStatus = "failed"
)

// Client 이코노미(예측 마켓) 사이드카 HTTP 클라이언트.
// 게임 해소 커밋 이후에만 호출되며, 실패해도 이미 커밋된 해소를 되돌리지 않는다.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient 이코노미 클라이언트 생성
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type resolveRequest struct {
	GameID      string `json:"gameId"`
	WinningTeam int    `json:"winningTeam"`
}

type cancelResponse struct {
	Status string `json:"status"`
}

// ResolvePredictions 종료된 게임의 예측 정산 요청
func (c *Client) ResolvePredictions(ctx context.Context, gameID string, winningTeam int) error {
	body, err := json.Marshal(resolveRequest{GameID: gameID, WinningTeam: winningTeam})
	if err != nil {
		return fmt.Errorf("failed to marshal resolve request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/v1/predictions/resolve", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build resolve request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("economy resolve call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("economy resolve returned status %d", resp.StatusCode)
	}

	logger.Info("Predictions resolved", "gameId", gameID, "winningTeam", winningTeam)
	return nil
}

// CancelPredictions 취소된 게임의 예측 환불 요청.
// 예측이 하나도 없었으면 NothingToRefund를 돌려주며 이는 에러가 아니다.
func (c *Client) CancelPredictions(ctx context.Context, gameID string) (RefundStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		fmt.Sprintf("%s/api/v1/predictions/%s/cancel", c.baseURL, gameID), nil)
	if err != nil {
		return Failed, fmt.Errorf("failed to build cancel request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Failed, fmt.Errorf("economy cancel call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return NothingToRefund, nil
	}

	if resp.StatusCode >= 300 {
		return Failed, fmt.Errorf("economy cancel returned status %d", resp.StatusCode)
	}

	var body cancelResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err == nil && body.Status == "no_predictions" {
		return NothingToRefund, nil
	}

	return Refunded, nil
}
