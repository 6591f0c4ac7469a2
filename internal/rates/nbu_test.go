package rates

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var march1 = time.Date(2023, 3, 1, 0, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNBUClient_Rate(t *testing.T) {
	var gotQuery, gotAccept, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		gotAccept = r.Header.Get("Accept")
		_, _ = w.Write([]byte(`[{"r030":840,"txt":"Долар США","rate":36.5686,"cc":"USD","exchangedate":"01.03.2023"}]`))
	}))
	defer srv.Close()

	c := NewNBUClient(srv.URL+"/NBUStatService/v1/statdirectory/exchange", nil, nil)
	rate, err := c.Rate(context.Background(), march1)
	require.NoError(t, err)
	assert.Equal(t, "36.5686", rate.String())

	assert.Equal(t, "/NBUStatService/v1/statdirectory/exchange", gotPath)
	assert.Contains(t, gotQuery, "valcode=USD")
	assert.Contains(t, gotQuery, "date=20230301")
	assert.Contains(t, gotQuery, "&json")
	assert.Equal(t, "application/json", gotAccept)
}

func TestNBUClient_FirstElementWins(t *testing.T) {
	srv := newTestServer(t, http.StatusOK, `[{"rate":37.0,"cc":"USD"},{"rate":99.0,"cc":"USD"}]`)

	rate, err := NewNBUClient(srv.URL, nil, nil).Rate(context.Background(), march1)
	require.NoError(t, err)
	assert.Equal(t, "37", rate.String())
}

func TestNBUClient_EmptyArray(t *testing.T) {
	srv := newTestServer(t, http.StatusOK, `[]`)

	_, err := NewNBUClient(srv.URL, nil, nil).Rate(context.Background(), march1)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoRate)
	assert.Contains(t, err.Error(), "2023-03-01")
}

func TestNBUClient_MalformedPayload(t *testing.T) {
	tests := []struct {
		name string
		body string
		want error
	}{
		{"not json", `<html>maintenance</html>`, nil},
		{"object instead of array", `{"rate":37.0}`, nil},
		{"missing rate", `[{"cc":"USD"}]`, ErrInvalidRate},
		{"zero rate", `[{"rate":0,"cc":"USD"}]`, ErrInvalidRate},
		{"negative rate", `[{"rate":-1.5,"cc":"USD"}]`, ErrInvalidRate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, http.StatusOK, tt.body)

			rate, err := NewNBUClient(srv.URL, nil, nil).Rate(context.Background(), march1)
			require.Error(t, err)
			assert.True(t, rate.IsZero())
			if tt.want != nil {
				assert.ErrorIs(t, err, tt.want)
			} else {
				assert.Contains(t, err.Error(), "decoding rate response")
			}
		})
	}
}

func TestNBUClient_StatusError(t *testing.T) {
	srv := newTestServer(t, http.StatusServiceUnavailable, `try later`)

	_, err := NewNBUClient(srv.URL, nil, nil).Rate(context.Background(), march1)
	require.Error(t, err)

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusServiceUnavailable, statusErr.StatusCode)
	assert.Equal(t, "try later", statusErr.Body)
	assert.Contains(t, err.Error(), "status 503")
}

func TestNBUClient_Unreachable(t *testing.T) {
	srv := newTestServer(t, http.StatusOK, `[]`)
	srv.Close()

	_, err := NewNBUClient(srv.URL, nil, nil).Rate(context.Background(), march1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requesting rate for 2023-03-01")
}

func TestNBUClient_ContextCanceled(t *testing.T) {
	srv := newTestServer(t, http.StatusOK, `[{"rate":37.0}]`)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewNBUClient(srv.URL, nil, nil).Rate(ctx, march1)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNBUClient_DefaultEndpoint(t *testing.T) {
	c := NewNBUClient("", nil, nil)
	u, err := c.url(march1)
	require.NoError(t, err)
	assert.Equal(t, DefaultEndpoint+"?date=20230301&valcode=USD&json", u)
}
