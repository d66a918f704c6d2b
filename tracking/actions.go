// SPDX-License-Identifier: ice License 1.0

package tracking

import (
	"context"
	"net/url"
	"strconv"

	"github.com/pkg/errors"

	"github.com/ice-blockchain/tracker/log"
	"github.com/ice-blockchain/tracker/terror"
)

// Execute sends the current context as-is, without any per-action additions.
// Together with SetActionName/SetURL this is how a page view is tracked.
func (t *Tracker) Execute(ctx context.Context) (*Result, error) {
	return t.send(ctx, t.queryVars())
}

// DoTrackPageView tracks a page view under the given action name.
func (t *Tracker) DoTrackPageView(ctx context.Context, actionName string) (*Result, error) {
	t.SetActionName(actionName)

	return t.Execute(ctx)
}

// DoTrackAction tracks a download or an outlink.
func (t *Tracker) DoTrackAction(ctx context.Context, actionURL string, actionType ActionType) (*Result, error) {
	if actionType != ActionDownload && actionType != ActionLink {
		return nil, errors.Wrapf(terror.New(ErrInvalidParameter, map[string]any{"actionType": actionType}),
			"illegal action type %q, use one of [%v,%v]", actionType, ActionDownload, ActionLink)
	}
	queryVars := t.queryVars()
	queryVars.Set(string(actionType), actionURL)

	return t.send(ctx, queryVars)
}

// DoTrackSiteSearch tracks a site search query. A non-nil searchCount of 0 is
// meaningful: the request will appear under "No Result Search Keyword".
func (t *Tracker) DoTrackSiteSearch(ctx context.Context, search, searchCategory string, searchCount *int64) (*Result, error) {
	queryVars := t.queryVars()
	queryVars.Set("search", search)
	if searchCategory != "" {
		queryVars.Set("search_cat", searchCategory)
	}
	if searchCount != nil {
		queryVars.Set("search_count", strconv.FormatInt(*searchCount, 10))
	}

	return t.send(ctx, queryVars)
}

// DoTrackEvent tracks a single event.
func (t *Tracker) DoTrackEvent(ctx context.Context, category, action, name string, value float64) (*Result, error) {
	queryVars := t.queryVars()
	queryVars.Set("e_c", category)
	queryVars.Set("e_a", action)
	if name != "" {
		queryVars.Set("e_n", name)
	}
	if value != 0 {
		queryVars.Set("e_v", formatAmount(value))
	}

	return t.send(ctx, queryVars)
}

// DoTrackContent tracks a content impression, or an interaction if
// contentInteraction is set. To map an interaction to an impression use the
// same contentName and contentPiece for both.
func (t *Tracker) DoTrackContent(ctx context.Context, contentName, contentPiece, contentTarget, contentInteraction string) (*Result, error) {
	if contentName == "" {
		return nil, errors.Wrap(terror.New(ErrInvalidParameter, map[string]any{"contentName": contentName}),
			"content name must not be empty")
	}
	queryVars := t.queryVars()
	queryVars.Set("c_n", contentName)
	if contentPiece != "" {
		queryVars.Set("c_p", contentPiece)
	}
	if contentTarget != "" {
		queryVars.Set("c_t", contentTarget)
	}
	if contentInteraction != "" {
		queryVars.Set("c_i", contentInteraction)
	}

	return t.send(ctx, queryVars)
}

// DoTrackEcommerceOrder tracks an order. Every item has to have been added
// via AddEcommerceItem beforehand, the item snapshot is emptied by this call.
func (t *Tracker) DoTrackEcommerceOrder(ctx context.Context, orderID string, grandTotal float64, details *OrderDetails) (*Result, error) {
	queryVars := t.ecommerceVars(grandTotal, details)
	queryVars.Set("ec_id", orderID)
	t.lastOrderTime = t.timestamp()

	return t.send(ctx, queryVars)
}

// DoTrackEcommerceCartUpdate tracks a cart update. The full cart has to be
// re-added via AddEcommerceItem before every call, the item snapshot is
// emptied by this call.
func (t *Tracker) DoTrackEcommerceCartUpdate(ctx context.Context, grandTotal float64) (*Result, error) {
	return t.send(ctx, t.ecommerceVars(grandTotal, nil))
}

func (t *Tracker) send(ctx context.Context, queryVars url.Values) (*Result, error) {
	if t.apiURL == "" {
		return nil, errors.Wrap(ErrAPIURLNotSet, "tracking request can not be sent")
	}
	headers := make(map[string]string, 1+1)
	if t.userAgent != "" {
		headers["User-Agent"] = t.userAgent
	}
	if t.acceptLanguage != "" {
		headers["Accept-Language"] = t.acceptLanguage
	}
	var cookies map[string]string
	if t.cookieSupport && len(t.requestCookies) > 0 {
		cookies = t.requestCookies
	}
	if t.debug {
		log.Debug("tracking request", "url", t.apiURL, "params", queryVars.Encode())
	}
	result, err := t.collector.Get(ctx, t.apiURL, queryVars, &RequestOptions{Headers: headers, Cookies: cookies, VerifyTLS: t.sslVerify})

	return result, errors.Wrapf(err, "tracking get `%v` failed", t.apiURL)
}
