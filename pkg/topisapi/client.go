// Package topisapi is the adapter for the secondary live-position feed used
// to correct primary-feed records.
package topisapi

import (
	"context"
	"net/url"
	"strings"

	"metrotrack/internal/domain"
	"metrotrack/internal/trainno"
	"metrotrack/pkg/feedhttp"
)

const source = "secondary_feed"

// CodeNoData is returned for valid lines during low-frequency periods.
const CodeNoData = "INFO-200"

type Client struct {
	baseURL string
	http    *feedhttp.Client
}

// New takes the position endpoint including the API key, e.g.
// http://swopenapi.seoul.go.kr/api/subway/KEY/json/realtimePosition/0/80/
func New(baseURL string, httpClient *feedhttp.Client) *Client {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return &Client{baseURL: baseURL, http: httpClient}
}

type apiStatus struct {
	Status  *int   `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type apiResponse struct {
	apiStatus
	ErrorMessage         *apiStatus    `json:"errorMessage"`
	RealtimePositionList []apiPosition `json:"realtimePositionList"`
}

type apiPosition struct {
	TrainNo    string `json:"trainNo"`
	StatnNm    string `json:"statnNm"`
	StatnTnm   string `json:"statnTnm"`
	UpdnLine   string `json:"updnLine"`
	DirectAt   string `json:"directAt"`
	TrainSttus string `json:"trainSttus"`
}

// Positions returns the live positions for the line with the given display
// name, keyed by bare train number. A nil map with a nil error means the
// upstream has no data for the line right now.
func (c *Client) Positions(ctx context.Context, lineName string) (map[string]domain.LivePosition, error) {
	var resp apiResponse
	if err := c.http.GetJSON(ctx, c.baseURL+url.PathEscape(lineName), nil, &resp); err != nil {
		return nil, err
	}

	if resp.Status != nil {
		if resp.Code == CodeNoData {
			return nil, nil
		}
		return nil, domain.Errorf(domain.KindUpstreamInvalid, source, "%s: %s", resp.Code, resp.Message)
	}
	if e := resp.ErrorMessage; e != nil && e.Status != nil && *e.Status != 200 {
		if e.Code == CodeNoData {
			return nil, nil
		}
		return nil, domain.Errorf(domain.KindUpstreamInvalid, source, "%s: %s", e.Code, e.Message)
	}

	if len(resp.RealtimePositionList) == 0 {
		return nil, nil
	}

	result := make(map[string]domain.LivePosition, len(resp.RealtimePositionList))
	for _, p := range resp.RealtimePositionList {
		bare, err := trainno.Bare(p.TrainNo)
		if err != nil {
			return nil, domain.NewError(domain.KindMalformedResponse, source, err)
		}

		pos := domain.LivePosition{
			StationName:     p.StatnNm,
			DestinationName: p.StatnTnm,
			Express:         p.DirectAt == "1",
			Status:          mapStatus(p.TrainSttus),
		}
		if p.UpdnLine != "" {
			dir := p.UpdnLine
			pos.LoopDirection = &dir
		}
		result[bare] = pos
	}
	return result, nil
}

func mapStatus(code string) *domain.Status {
	var s domain.Status
	switch code {
	case "0":
		s = domain.StatusApproaching
	case "1":
		s = domain.StatusArrived
	default:
		return nil
	}
	return &s
}
