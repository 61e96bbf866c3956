package korailapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"metrotrack/internal/domain"
	"metrotrack/pkg/feedhttp"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(srv.URL+"/", feedhttp.New(feedhttp.Config{Source: source, RateLimit: 100, RateBurst: 10}))
}

const lineResponse = `{
	"isValid": true,
	"trainVOList": [
		{
			"trainY": "K1234", "line": 1, "trainP": "0042", "sts": "1", "express": "Y",
			"stnNm": "청량리", "stnCd": "0158", "dir": 2,
			"orgStnNm": "청량리", "orgStn": "0158", "dstStnNm": "인천", "dstStn": "1822"
		},
		{
			"trainY": 2123, "line": "2", "trainP": "0", "sts": 3, "express": "N",
			"stnNm": "", "dir": "0", "dstStn": "88_1"
		}
	]
}`

func TestTrainsByLine(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/line", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "1", q.Get("line"))
		assert.Equal(t, "0", q.Get("gbn"))
		assert.Equal(t, "2", q.Get("dir"))
		w.Write([]byte(lineResponse))
	})

	trains, err := c.TrainsByLine(context.Background(), "1", 2)
	require.NoError(t, err)
	require.Len(t, trains, 2)

	first := trains[0]
	assert.Equal(t, "K1234", first.TrainNumber)
	assert.Equal(t, "0042", *first.FormationNumber)
	assert.Equal(t, 1, first.StatusCode)
	assert.True(t, first.Express)
	assert.Equal(t, "청량리", *first.StationName)
	assert.Equal(t, 2, *first.DirectionCode)
	assert.Equal(t, "인천", *first.DestinationName)
	assert.Equal(t, "1822", *first.DestinationCode)

	second := trains[1]
	assert.Equal(t, "2123", second.TrainNumber)
	assert.Equal(t, 3, second.StatusCode)
	assert.False(t, second.Express)
	assert.Nil(t, second.FormationNumber)
	assert.Nil(t, second.StationName)
	assert.Nil(t, second.DirectionCode)
	assert.Nil(t, second.OriginName)
	assert.Equal(t, "88_1", *second.DestinationCode)
}

func TestTrainsByStation(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/station", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "0", q.Get("lineGbn"))
		assert.Equal(t, "0158", q.Get("stationCd"))
		assert.Equal(t, "1", q.Get("lineCd"))
		w.Write([]byte(`{"isValid": true, "trainVOList": []}`))
	})

	trains, err := c.TrainsByStation(context.Background(), "1", "0158")
	require.NoError(t, err)
	assert.Empty(t, trains)
}

func TestFetch_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want error
	}{
		{name: "invalid result", body: `{"isValid": false, "trainVOList": []}`, want: domain.ErrUpstreamInvalid},
		{name: "missing validity", body: `{"trainVOList": []}`, want: domain.ErrMalformedResponse},
		{name: "missing train number", body: `{"isValid": true, "trainVOList": [{"sts": "1"}]}`, want: domain.ErrMalformedResponse},
		{name: "non numeric status", body: `{"isValid": true, "trainVOList": [{"trainY": "K1", "sts": "?"}]}`, want: domain.ErrMalformedResponse},
		{name: "non numeric direction", body: `{"isValid": true, "trainVOList": [{"trainY": "K1", "sts": "1", "dir": "U"}]}`, want: domain.ErrMalformedResponse},
		{name: "wrong shape", body: `{"isValid": true, "trainVOList": {"trainY": "K1"}}`, want: domain.ErrMalformedResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tt.body))
			})

			trains, err := c.TrainsByLine(context.Background(), "1", 1)
			require.Error(t, err)
			assert.Nil(t, trains)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}
