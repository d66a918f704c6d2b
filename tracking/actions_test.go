// SPDX-License-Identifier: ice License 1.0

package tracking

import (
	"context"
	"net/http"
	"net/url"
	"testing"
	stdlibtime "time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ice-blockchain/tracker/time"
)

type (
	collectorCall struct {
		opts        *RequestOptions
		queryParams url.Values
		apiURL      string
	}
	collectorMock struct {
		result *Result
		err    error
		calls  []*collectorCall
	}
)

func (c *collectorMock) Get(_ context.Context, apiURL string, queryParams url.Values, opts *RequestOptions) (*Result, error) {
	c.calls = append(c.calls, &collectorCall{opts: opts, queryParams: queryParams, apiURL: apiURL})
	if c.err != nil {
		return nil, c.err
	}
	if c.result != nil {
		return c.result, nil
	}

	return &Result{Status: http.StatusOK, OK: true}, nil
}

func newTestTracker(idSite int64) (*Tracker, *collectorMock) {
	tr := New(idSite)
	tr.SetAPIURL("https://analytics.example.com/piwik.php")
	tr.SetURL("http://example.com")
	mock := new(collectorMock)
	tr.SetCollector(mock)

	return tr, mock
}

func TestSendRequiresAPIURL(t *testing.T) {
	t.Parallel()
	tr := New(1)
	tr.SetURL("http://example.com")
	mock := new(collectorMock)
	tr.SetCollector(mock)
	result, err := tr.Execute(context.Background())
	require.ErrorIs(t, err, ErrAPIURLNotSet)
	assert.Nil(t, result)
	assert.Empty(t, mock.calls, "validation has to fail before any network call")
}

func TestDoTrackPageView(t *testing.T) {
	t.Parallel()
	tr, mock := newTestTracker(1)
	result, err := tr.DoTrackPageView(context.Background(), "Help / Contact")
	require.NoError(t, err)
	assert.True(t, result.OK)
	require.Len(t, mock.calls, 1)
	assert.Equal(t, "https://analytics.example.com/piwik.php", mock.calls[0].apiURL)
	assert.Equal(t, "Help / Contact", mock.calls[0].queryParams.Get("action_name"))
}

func TestDoTrackActionValidatesType(t *testing.T) {
	t.Parallel()
	tr, mock := newTestTracker(1)
	result, err := tr.DoTrackAction(context.Background(), "http://example.com/file.zip", "click")
	require.ErrorIs(t, err, ErrInvalidParameter)
	assert.Nil(t, result)
	assert.Empty(t, mock.calls)

	_, err = tr.DoTrackAction(context.Background(), "http://example.com/file.zip", ActionDownload)
	require.NoError(t, err)
	_, err = tr.DoTrackAction(context.Background(), "http://other.example.com", ActionLink)
	require.NoError(t, err)
	require.Len(t, mock.calls, 2)
	assert.Equal(t, "http://example.com/file.zip", mock.calls[0].queryParams.Get("download"))
	assert.Equal(t, "http://other.example.com", mock.calls[1].queryParams.Get("link"))
}

func TestDoTrackSiteSearch(t *testing.T) {
	t.Parallel()
	tr, mock := newTestTracker(1)
	_, err := tr.DoTrackSiteSearch(context.Background(), "widgets", "", nil)
	require.NoError(t, err)
	noResults := int64(0)
	_, err = tr.DoTrackSiteSearch(context.Background(), "gadgets", "hardware", &noResults)
	require.NoError(t, err)
	require.Len(t, mock.calls, 2)
	assert.Equal(t, "widgets", mock.calls[0].queryParams.Get("search"))
	assert.False(t, mock.calls[0].queryParams.Has("search_cat"))
	assert.False(t, mock.calls[0].queryParams.Has("search_count"))
	assert.Equal(t, "gadgets", mock.calls[1].queryParams.Get("search"))
	assert.Equal(t, "hardware", mock.calls[1].queryParams.Get("search_cat"))
	assert.Equal(t, "0", mock.calls[1].queryParams.Get("search_count"), "an explicit zero count is meaningful")
}

func TestDoTrackEvent(t *testing.T) {
	t.Parallel()
	tr, mock := newTestTracker(1)
	_, err := tr.DoTrackEvent(context.Background(), "video", "play", "", 0)
	require.NoError(t, err)
	_, err = tr.DoTrackEvent(context.Background(), "video", "seek", "intro", 42)
	require.NoError(t, err)
	require.Len(t, mock.calls, 2)
	assert.Equal(t, "video", mock.calls[0].queryParams.Get("e_c"))
	assert.Equal(t, "play", mock.calls[0].queryParams.Get("e_a"))
	assert.False(t, mock.calls[0].queryParams.Has("e_n"))
	assert.False(t, mock.calls[0].queryParams.Has("e_v"))
	assert.Equal(t, "intro", mock.calls[1].queryParams.Get("e_n"))
	assert.Equal(t, "42", mock.calls[1].queryParams.Get("e_v"))
}

func TestDoTrackContent(t *testing.T) {
	t.Parallel()
	tr, mock := newTestTracker(1)
	result, err := tr.DoTrackContent(context.Background(), "", "", "", "")
	require.ErrorIs(t, err, ErrInvalidParameter)
	assert.Nil(t, result)
	assert.Empty(t, mock.calls)

	_, err = tr.DoTrackContent(context.Background(), "Ad Foo Bar", "http://example.com/foo.png", "http://example.com/landing", "click")
	require.NoError(t, err)
	require.Len(t, mock.calls, 1)
	assert.Equal(t, "Ad Foo Bar", mock.calls[0].queryParams.Get("c_n"))
	assert.Equal(t, "http://example.com/foo.png", mock.calls[0].queryParams.Get("c_p"))
	assert.Equal(t, "http://example.com/landing", mock.calls[0].queryParams.Get("c_t"))
	assert.Equal(t, "click", mock.calls[0].queryParams.Get("c_i"))
}

func TestDoTrackEcommerceOrder(t *testing.T) {
	t.Parallel()
	tr, mock := newTestTracker(1)
	tr.AddEcommerceItem("SKU1", "Widget", "Widgets", 80, 1)
	subTotal := 80.0
	_, err := tr.DoTrackEcommerceOrder(context.Background(), "ORDER1", 100, &OrderDetails{SubTotal: &subTotal})
	require.NoError(t, err)
	require.Len(t, mock.calls, 1)
	queryParams := mock.calls[0].queryParams
	assert.Equal(t, "0", queryParams.Get("idgoal"))
	assert.Equal(t, "100", queryParams.Get("revenue"))
	assert.Equal(t, "80", queryParams.Get("ec_st"))
	assert.Equal(t, "ORDER1", queryParams.Get("ec_id"))
	assert.Equal(t, `[["SKU1","Widget","Widgets",80,1]]`, queryParams.Get("ec_items"))
	assert.NotNil(t, tr.EcommerceLastOrderTime())

	_, err = tr.DoTrackEcommerceOrder(context.Background(), "ORDER2", 50, nil)
	require.NoError(t, err)
	require.Len(t, mock.calls, 2)
	assert.False(t, mock.calls[1].queryParams.Has("ec_items"), "items must not survive across orders")
}

func TestDoTrackEcommerceOrderForcedTime(t *testing.T) {
	t.Parallel()
	tr, _ := newTestTracker(1)
	forced, err := stdlibtime.Parse(stdlibtime.RFC3339, "2012-06-14T11:22:33Z")
	require.NoError(t, err)
	tr.SetForceVisitDateTime(time.New(forced))
	_, err = tr.DoTrackEcommerceOrder(context.Background(), "ORDER1", 100, nil)
	require.NoError(t, err)
	require.NotNil(t, tr.EcommerceLastOrderTime())
	assert.True(t, tr.EcommerceLastOrderTime().Equal(forced))
}

func TestDoTrackEcommerceCartUpdate(t *testing.T) {
	t.Parallel()
	tr, mock := newTestTracker(1)
	tr.AddEcommerceItem("SKU1", "Widget", "Widgets", 80, 2)
	_, err := tr.DoTrackEcommerceCartUpdate(context.Background(), 160)
	require.NoError(t, err)
	require.Len(t, mock.calls, 1)
	queryParams := mock.calls[0].queryParams
	assert.Equal(t, "0", queryParams.Get("idgoal"))
	assert.Equal(t, "160", queryParams.Get("revenue"))
	assert.False(t, queryParams.Has("ec_id"))
	assert.Equal(t, `[["SKU1","Widget","Widgets",80,2]]`, queryParams.Get("ec_items"))
	assert.Empty(t, tr.items)
}

func TestSendHeadersAndCookies(t *testing.T) {
	t.Parallel()
	tr, mock := newTestTracker(1)
	tr.SetUserAgent("Mozilla/5.0 (bogus)")
	tr.SetBrowserLanguage("de-DE")
	tr.SetRequestCookies(map[string]string{"piwik_visitor": "abc"})
	_, err := tr.Execute(context.Background())
	require.NoError(t, err)
	require.Len(t, mock.calls, 1)
	opts := mock.calls[0].opts
	assert.Equal(t, "Mozilla/5.0 (bogus)", opts.Headers["User-Agent"])
	assert.Equal(t, "de-DE", opts.Headers["Accept-Language"])
	assert.Equal(t, map[string]string{"piwik_visitor": "abc"}, opts.Cookies)
	assert.True(t, opts.VerifyTLS)

	tr.DisableCookieSupport()
	tr.SetSSLVerify(false)
	_, err = tr.Execute(context.Background())
	require.NoError(t, err)
	require.Len(t, mock.calls, 2)
	assert.Empty(t, mock.calls[1].opts.Cookies, "cookies are only forwarded while cookie support is enabled")
	assert.False(t, mock.calls[1].opts.VerifyTLS)
}

func TestSendPropagatesTransportFailure(t *testing.T) {
	t.Parallel()
	tr, mock := newTestTracker(1)
	mock.err = context.DeadlineExceeded
	result, err := tr.Execute(context.Background())
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Nil(t, result)
}

func TestSendSurfacesRemoteRejectionAsData(t *testing.T) {
	t.Parallel()
	tr, mock := newTestTracker(1)
	mock.result = &Result{Status: http.StatusBadRequest, Body: "nope", OK: false, Error: true}
	result, err := tr.Execute(context.Background())
	require.NoError(t, err)
	assert.False(t, result.OK)
	assert.True(t, result.Error)
	assert.Equal(t, http.StatusBadRequest, result.Status)
}
