package topisapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"metrotrack/internal/domain"
	"metrotrack/pkg/feedhttp"
)

func newTestClient(t *testing.T, body string) *Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/realtimePosition/0/80/1호선"), r.URL.Path)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return New(srv.URL+"/api/subway/KEY/json/realtimePosition/0/80", feedhttp.New(feedhttp.Config{Source: source}))
}

func TestPositions(t *testing.T) {
	c := newTestClient(t, `{
		"errorMessage": {"status": 200, "code": "INFO-000", "message": "정상 처리되었습니다."},
		"realtimePositionList": [
			{"trainNo": "1234", "statnNm": "서울", "statnTnm": "인천", "updnLine": "1", "directAt": "1", "trainSttus": "1"},
			{"trainNo": "0777", "statnNm": "용산", "statnTnm": "광운대", "updnLine": "0", "directAt": "0", "trainSttus": "0"},
			{"trainNo": "55", "statnNm": "구로", "statnTnm": "서동탄", "directAt": "0", "trainSttus": "2"}
		]
	}`)

	positions, err := c.Positions(context.Background(), "1호선")
	require.NoError(t, err)
	require.Len(t, positions, 3)

	p := positions["1234"]
	assert.Equal(t, "서울", p.StationName)
	assert.Equal(t, "인천", p.DestinationName)
	assert.True(t, p.Express)
	require.NotNil(t, p.Status)
	assert.Equal(t, domain.StatusArrived, *p.Status)
	require.NotNil(t, p.LoopDirection)
	assert.Equal(t, "1", *p.LoopDirection)

	p = positions["0777"]
	assert.False(t, p.Express)
	require.NotNil(t, p.Status)
	assert.Equal(t, domain.StatusApproaching, *p.Status)

	p, ok := positions["0055"]
	require.True(t, ok, "keys are padded bare numbers")
	assert.Nil(t, p.Status, "other codes do not override")
	assert.Nil(t, p.LoopDirection)
}

func TestPositions_NoData(t *testing.T) {
	for name, body := range map[string]string{
		"top level info-200": `{"status": 500, "code": "INFO-200", "message": "해당하는 데이터가 없습니다."}`,
		"empty list":         `{"errorMessage": {"status": 200, "code": "INFO-000"}, "realtimePositionList": []}`,
	} {
		t.Run(name, func(t *testing.T) {
			positions, err := newTestClient(t, body).Positions(context.Background(), "1호선")
			require.NoError(t, err)
			assert.Nil(t, positions)
		})
	}
}

func TestPositions_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want error
	}{
		{name: "top level error", body: `{"status": 500, "code": "ERROR-337", "message": "일일 호출 한도 초과"}`, want: domain.ErrUpstreamInvalid},
		{name: "error message", body: `{"errorMessage": {"status": 500, "code": "ERROR-500", "message": "서버 오류"}}`, want: domain.ErrUpstreamInvalid},
		{name: "bad train number", body: `{"realtimePositionList": [{"trainNo": "??", "trainSttus": "1"}]}`, want: domain.ErrMalformedResponse},
		{name: "not json", body: `<RESULT>ERROR</RESULT>`, want: domain.ErrMalformedResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			positions, err := newTestClient(t, tt.body).Positions(context.Background(), "1호선")
			require.Error(t, err)
			assert.Nil(t, positions)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}
