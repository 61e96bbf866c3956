// Package korailapi is the adapter for the primary operator position feed.
package korailapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"metrotrack/internal/domain"
	"metrotrack/pkg/feedhttp"
)

const source = "primary_feed"

type Client struct {
	baseURL string
	http    *feedhttp.Client
}

func New(baseURL string, httpClient *feedhttp.Client) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    httpClient,
	}
}

type apiResponse struct {
	IsValid     *bool      `json:"isValid"`
	TrainVOList []apiTrain `json:"trainVOList"`
}

type apiTrain struct {
	TrainY   flexString  `json:"trainY"`
	TrainP   *flexString `json:"trainP"`
	Sts      flexString  `json:"sts"`
	Express  flexString  `json:"express"`
	StnNm    *flexString `json:"stnNm"`
	StnCd    *flexString `json:"stnCd"`
	Dir      *flexString `json:"dir"`
	OrgStnNm *flexString `json:"orgStnNm"`
	OrgStn   *flexString `json:"orgStn"`
	DstStnNm *flexString `json:"dstStnNm"`
	DstStn   *flexString `json:"dstStn"`
}

// flexString accepts either a JSON string or a JSON number; the feed is not
// consistent between endpoints.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", data)
	}
	*f = flexString(n.String())
	return nil
}

// TrainsByLine fetches the trains running on line in one direction code.
func (c *Client) TrainsByLine(ctx context.Context, line string, dirCode int) ([]domain.RawTrain, error) {
	params := url.Values{}
	params.Set("line", line)
	params.Set("gbn", "0")
	params.Set("dir", strconv.Itoa(dirCode))
	return c.fetch(ctx, c.baseURL+"/line", params)
}

// TrainsByStation fetches trains near stationCode on line.
func (c *Client) TrainsByStation(ctx context.Context, line, stationCode string) ([]domain.RawTrain, error) {
	params := url.Values{}
	params.Set("lineGbn", "0")
	params.Set("stationCd", stationCode)
	params.Set("lineCd", line)
	return c.fetch(ctx, c.baseURL+"/station", params)
}

func (c *Client) fetch(ctx context.Context, reqURL string, params url.Values) ([]domain.RawTrain, error) {
	var resp apiResponse
	if err := c.http.GetJSON(ctx, reqURL, params, &resp); err != nil {
		return nil, err
	}

	if resp.IsValid == nil {
		return nil, domain.Errorf(domain.KindMalformedResponse, source, "response has no validity flag")
	}
	if !*resp.IsValid {
		return nil, domain.Errorf(domain.KindUpstreamInvalid, source, "remote server reported an invalid result")
	}

	return toDomain(resp.TrainVOList)
}

func toDomain(trains []apiTrain) ([]domain.RawTrain, error) {
	result := make([]domain.RawTrain, 0, len(trains))
	for i, t := range trains {
		if t.TrainY == "" {
			return nil, domain.Errorf(domain.KindMalformedResponse, source, "train %d has no train number", i)
		}
		sts, err := strconv.Atoi(string(t.Sts))
		if err != nil {
			return nil, domain.Errorf(domain.KindMalformedResponse, source, "train %s has status %q", t.TrainY, t.Sts)
		}

		raw := domain.RawTrain{
			TrainNumber:     string(t.TrainY),
			FormationNumber: optional(t.TrainP),
			StatusCode:      sts,
			Express:         t.Express == "Y",
			StationName:     optional(t.StnNm),
			StationCode:     optional(t.StnCd),
			OriginName:      optional(t.OrgStnNm),
			OriginCode:      optional(t.OrgStn),
			DestinationName: optional(t.DstStnNm),
			DestinationCode: optional(t.DstStn),
		}

		if d := optional(t.Dir); d != nil {
			dir, err := strconv.Atoi(*d)
			if err != nil {
				return nil, domain.Errorf(domain.KindMalformedResponse, source, "train %s has direction %q", t.TrainY, *d)
			}
			raw.DirectionCode = &dir
		}

		result = append(result, raw)
	}
	return result, nil
}

// optional maps absent, empty and the feed's "0" placeholder to nil.
func optional(f *flexString) *string {
	if f == nil {
		return nil
	}
	s := strings.TrimSpace(string(*f))
	if s == "" || s == "0" {
		return nil
	}
	return &s
}
