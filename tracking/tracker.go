// SPDX-License-Identifier: ice License 1.0

package tracking

import (
	"cmp"
	"crypto/rand"
	"fmt"
	"slices"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/zeebo/xxh3"

	appcfg "github.com/ice-blockchain/tracker/config"
	"github.com/ice-blockchain/tracker/log"
	"github.com/ice-blockchain/tracker/terror"
	"github.com/ice-blockchain/tracker/time"
)

// New returns a tracker for the given site. Everything besides the site id
// starts unset and is populated incrementally through the setters.
func New(idSite int64) *Tracker {
	return &Tracker{
		collector:       newHTTPCollector(),
		visitCustomVars: make(customVariables),
		pageCustomVars:  make(customVariables),
		eventCustomVars: make(customVariables),
		dimensions:      make(map[string]string),
		plugins:         make(map[string]int64, len(knownPlugins)),
		items:           make(map[string]*Item),
		idSite:          idSite,
		cookieSupport:   true,
		sslVerify:       true,
	}
}

// NewFromYAML builds a tracker from the `tracker/tracking` section of the
// given application.yaml key, falling back to the environment for the API URL
// and the auth token.
func NewFromYAML(applicationYAMLKey string) *Tracker {
	var cfg config
	appcfg.MustLoadFromKey(applicationYAMLKey, &cfg)
	if cfg.Tracking.APIURL == "" {
		cfg.Tracking.APIURL = appcfg.EnvValue(applicationYAMLKey, "TRACKING_API_URL")
	}
	if cfg.Tracking.TokenAuth == "" {
		cfg.Tracking.TokenAuth = appcfg.EnvValue(applicationYAMLKey, "TRACKING_TOKEN_AUTH")
	}
	if cfg.Tracking.SiteID == 0 {
		log.Panic(errors.Errorf("siteId is missing for key %q", applicationYAMLKey))
	}
	tr := New(cfg.Tracking.SiteID)
	tr.apiURL = cfg.Tracking.APIURL
	tr.tokenAuth = cfg.Tracking.TokenAuth

	return tr
}

// SetCollector overrides the default HTTP collector.
func (t *Tracker) SetCollector(collector Collector) {
	t.collector = collector
}

func (t *Tracker) SetAPIURL(apiURL string) {
	t.apiURL = apiURL
}

// SetTokenAuth sets the auth token for the request. It is required by the
// remote service for privileged overrides like SetIP/SetForceVisitDateTime,
// it is not enforced here.
func (t *Tracker) SetTokenAuth(tokenAuth string) {
	t.tokenAuth = tokenAuth
}

// SetIP sets the IP to be tracked instead of the one the request comes from.
func (t *Tracker) SetIP(ip string) {
	t.ip = ip
}

func (t *Tracker) SetUserAgent(userAgent string) {
	t.userAgent = userAgent
}

// SetBrowserLanguage sets the Accept-Language override. The collector uses it
// to guess the visitor's origin when GeoIP is not enabled.
func (t *Tracker) SetBrowserLanguage(language string) {
	t.acceptLanguage = language
}

// SetBrowserHasCookies marks the visitor's browser as supporting cookies.
func (t *Tracker) SetBrowserHasCookies() {
	t.hasCookies = true
}

// DisableCookieSupport stops forwarding the request cookie bag.
func (t *Tracker) DisableCookieSupport() {
	t.cookieSupport = false
}

func (t *Tracker) SetRequestCookies(cookies map[string]string) {
	t.requestCookies = cookies
}

func (t *Tracker) SetResolution(width, height int64) {
	t.width = width
	t.height = height
}

// SetLocalTime sets the visitor's local time, serialized as the h/m/s triple.
func (t *Tracker) SetLocalTime(localTime *time.Time) {
	t.localTime = localTime
}

// SetForceVisitDateTime overrides "now" for the tracking request, to track
// visits in the past. Requires the auth token on the remote side.
func (t *Tracker) SetForceVisitDateTime(forcedTime *time.Time) {
	t.forcedTime = forcedTime
}

func (t *Tracker) SetURL(pageURL string) {
	t.pageURL = pageURL
}

func (t *Tracker) SetURLReferrer(referrer string) {
	t.referrer = referrer
}

func (t *Tracker) SetActionName(actionName string) {
	t.actionName = actionName
}

// SetSendImageResponse controls whether the collector responds with a gif or
// with an empty HTTP 204.
func (t *Tracker) SetSendImageResponse(shouldSend bool) {
	t.sendImage = shouldSend
}

func (t *Tracker) SetDebug(shouldDebug bool) {
	t.debug = shouldDebug
}

func (t *Tracker) SetSSLVerify(verify bool) {
	t.sslVerify = verify
}

// SetNewVisitorID assigns a random new visitor id and returns it.
func (t *Tracker) SetNewVisitorID() string {
	t.visitorID = buildRandomVisitorID()

	return t.visitorID
}

// SetVisitorID sets the visitor id explicitly. It has to be exactly
// VisitorIDLength characters long.
func (t *Tracker) SetVisitorID(visitorID string) error {
	if len(visitorID) != VisitorIDLength {
		return errors.Wrapf(terror.New(ErrInvalidParameter, map[string]any{"visitorId": visitorID}),
			"visitor id has to be exactly %v characters long", VisitorIDLength)
	}
	t.visitorID = visitorID

	return nil
}

func (t *Tracker) GetVisitorID() string {
	return t.visitorID
}

// SetUserID forces the action to be recorded for a specific user. Only string
// and integer ids are accepted.
func (t *Tracker) SetUserID(userID any) error {
	switch userID.(type) {
	case string, int, int32, int64:
		t.userID = userID

		return nil
	default:
		return errors.Wrapf(terror.New(ErrInvalidParameter, map[string]any{"userId": userID}),
			"user id has to be a string or an integer, got %T", userID)
	}
}

// SetCustomVariable stores the (name, value) pair in the given slot of the
// given scope. Slots are sparse, 1-5 by convention.
func (t *Tracker) SetCustomVariable(slot int64, name, value string, scope Scope) error {
	switch scope {
	case ScopeVisit:
		t.visitCustomVars[slot] = &CustomVariable{Name: name, Value: value}
	case ScopePage:
		t.pageCustomVars[slot] = &CustomVariable{Name: name, Value: value}
	case ScopeEvent:
		t.eventCustomVars[slot] = &CustomVariable{Name: name, Value: value}
	default:
		return errors.Wrapf(terror.New(ErrInvalidParameter, map[string]any{"scope": scope}),
			"invalid scope %q, use one of [%v,%v,%v]", scope, ScopeVisit, ScopePage, ScopeEvent)
	}

	return nil
}

func (t *Tracker) GetCustomVariable(slot int64, scope Scope) (*CustomVariable, error) {
	switch scope {
	case ScopeVisit:
		return t.visitCustomVars[slot], nil
	case ScopePage:
		return t.pageCustomVars[slot], nil
	case ScopeEvent:
		return t.eventCustomVars[slot], nil
	default:
		return nil, errors.Wrapf(terror.New(ErrInvalidParameter, map[string]any{"scope": scope}),
			"invalid scope %q, use one of [%v,%v,%v]", scope, ScopeVisit, ScopePage, ScopeEvent)
	}
}

// SetDimension sets a custom dimension. The name is used verbatim as the
// query parameter key.
func (t *Tracker) SetDimension(name, value string) {
	t.dimensions[name] = value
}

// SetPlugins records the versions of the visitor's browser plugins. The whole
// call is rejected, without mutating anything, if any plugin is unknown.
func (t *Tracker) SetPlugins(plugins map[Plugin]int64) error {
	var mErr *multierror.Error
	for _, plugin := range sortedKeys(plugins) {
		if _, found := knownPlugins[plugin]; !found {
			mErr = multierror.Append(mErr, errors.Wrapf(terror.New(ErrUnknownPlugin, map[string]any{"plugin": plugin}),
				"unknown plugin %q, please use one of %v", plugin, sortedKeys(knownPlugins)))
		}
	}
	if err := mErr.ErrorOrNil(); err != nil {
		return err
	}
	for plugin, version := range plugins {
		t.plugins[knownPlugins[plugin]] = version
	}

	return nil
}

// sortedKeys returns the keys of `m` in ascending order.
func sortedKeys[K cmp.Ordered, V any](m map[K]V) []K {
	keys := make([]K, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	slices.Sort(keys)

	return keys
}

// SetAttributionInfo sets the attribution info for the visit, so that
// subsequent goal conversions are credited to the right referrer, timestamp,
// campaign name and keyword.
func (t *Tracker) SetAttributionInfo(campaignName, campaignKeyword string, referralTime *time.Time, referralURL string) error {
	if referralTime == nil || referralTime.Time == nil {
		return errors.Wrap(terror.New(ErrInvalidParameter, map[string]any{"referralTime": referralTime}),
			"referral time is required")
	}
	t.attributionInfo = &AttributionInfo{
		ReferralTime:    referralTime,
		CampaignName:    campaignName,
		CampaignKeyword: campaignKeyword,
		ReferralURL:     referralURL,
	}

	return nil
}

// SetTrackGoal records a goal conversion for the subsequent calls. It does
// not issue a request by itself.
func (t *Tracker) SetTrackGoal(idGoal int64, revenue *float64) {
	if t.goal == nil {
		t.goal = new(goalTracking)
	}
	t.goal.idGoal = idGoal
	if revenue != nil {
		t.goal.revenue = revenue
	}
}

// SetEventTracking sets the event state serialized with every request until
// it is replaced.
func (t *Tracker) SetEventTracking(category, action, name string, value float64) {
	t.event = &eventTracking{category: category, action: action, name: name, value: value}
}

// SetEcommerceView marks the page view as a product or category page view,
// via the fixed page-scope custom variable convention. `category` is either a
// string or a []string, the latter is JSON encoded. Sku and name are only
// recorded when both are present, so that category pages do not report
// "Product name not defined".
func (t *Tracker) SetEcommerceView(sku, name string, category any, price *float64) error {
	var categoryValue string
	switch typedCategory := category.(type) {
	case nil:
	case string:
		categoryValue = typedCategory
	case []string:
		if len(typedCategory) > 0 {
			categoryValue = mustMarshalJSON(typedCategory)
		}
	default:
		return errors.Wrapf(terror.New(ErrInvalidParameter, map[string]any{"category": category}),
			"category has to be a string or a []string, got %T", category)
	}
	t.pageCustomVars[5] = &CustomVariable{Name: "_pkc", Value: categoryValue}
	if price != nil {
		t.pageCustomVars[2] = &CustomVariable{Name: "_pkp", Value: formatAmount(*price)}
	}
	if sku != "" && name != "" {
		t.pageCustomVars[3] = &CustomVariable{Name: "_pks", Value: sku}
		t.pageCustomVars[4] = &CustomVariable{Name: "_pkn", Value: name}
	}

	return nil
}

// AddEcommerceItem adds a line item to the current order/cart snapshot.
// Re-adding a SKU replaces it. The snapshot is emptied by every order or
// cart-update call, items have to be re-added per call.
func (t *Tracker) AddEcommerceItem(sku, name, category string, price float64, quantity int64) {
	if _, found := t.items[sku]; !found {
		t.itemOrder = append(t.itemOrder, sku)
	}
	t.items[sku] = &Item{SKU: sku, Name: name, Category: category, Price: price, Quantity: quantity}
}

// EcommerceLastOrderTime returns the timestamp of the last tracked e-commerce
// order, or nil if none was tracked yet.
func (t *Tracker) EcommerceLastOrderTime() *time.Time {
	return t.lastOrderTime
}

func (t *Tracker) timestamp() *time.Time {
	if t.forcedTime != nil {
		return t.forcedTime
	}

	return time.Now()
}

func (t *Tracker) clearEcommerceItems() {
	clear(t.items)
	t.itemOrder = t.itemOrder[:0]
}

// Not suitable as a security token, it is a de-duplication identifier only.
func buildRandomVisitorID() string {
	entropy := make([]byte, 64) //nolint:gomnd // More than enough for a de-duplication id.
	if _, err := rand.Read(entropy); err != nil {
		log.Panic(errors.Wrap(err, "failed to read os randomness"))
	}

	return fmt.Sprintf("%016x", xxh3.Hash(entropy))
}
