// SPDX-License-Identifier: ice License 1.0

package tracking

import (
	"context"
	"net/url"
	stdlibtime "time"

	"github.com/pkg/errors"

	"github.com/ice-blockchain/tracker/time"
)

// Public API.

type (
	// Scope is the scope of a custom variable slot.
	Scope string
	// ActionType is the type of a tracked download/outlink action.
	ActionType string
	// Plugin is one of the browser plugins the collector knows about.
	Plugin string

	// Collector performs the actual tracking HTTP round trip.
	Collector interface {
		Get(ctx context.Context, apiURL string, queryParams url.Values, opts *RequestOptions) (*Result, error)
	}
	RequestOptions struct {
		Headers   map[string]string `json:"headers,omitempty"`
		Cookies   map[string]string `json:"cookies,omitempty"`
		VerifyTLS bool              `json:"verifyTls"`
	}
	// Result is the normalized collector response. A non-2xx/204 status is
	// returned as data, with OK=false, not as an error.
	Result struct {
		Body      string `json:"body,omitempty"`
		BodyBytes []byte `json:"bodyBytes,omitempty"`
		Status    int    `json:"status"`
		OK        bool   `json:"ok"`
		Error     bool   `json:"error"`
	}
	// CustomVariable is a (name, value) pair stored in one of the 5 numbered
	// slots. It serializes as the positional ["name","value"] tuple.
	CustomVariable struct {
		Name  string
		Value string
	}
	// AttributionInfo is the campaign metadata attached to a visit for
	// goal-conversion credit.
	AttributionInfo struct {
		ReferralTime    *time.Time
		CampaignName    string
		CampaignKeyword string
		ReferralURL     string
	}
	// OrderDetails are the optional amounts of an e-commerce order. Nil means
	// "not set", so a legitimate zero amount is preserved on the wire.
	OrderDetails struct {
		SubTotal *float64
		Tax      *float64
		Shipping *float64
		Discount *float64
	}
	// Item is a line item of the current order/cart snapshot. It serializes
	// as the positional [sku,name,category,price,quantity] tuple.
	Item struct {
		SKU      string
		Name     string
		Category string
		Price    float64
		Quantity int64
	}
	// Tracker accumulates the tracking context of one logical visit and
	// serializes it, plus one action per DoTrack* call, into the query
	// parameter set understood by the collector.
	// It is exclusively owned: concurrent use of the same instance is
	// undefined, use one instance per visit.
	Tracker struct {
		collector       Collector
		localTime       *time.Time
		forcedTime      *time.Time
		lastOrderTime   *time.Time
		attributionInfo *AttributionInfo
		goal            *goalTracking
		event           *eventTracking
		userID          any
		visitCustomVars customVariables
		pageCustomVars  customVariables
		eventCustomVars customVariables
		dimensions      map[string]string
		plugins         map[string]int64
		items           map[string]*Item
		itemOrder       []string
		requestCookies  map[string]string
		apiURL          string
		tokenAuth       string
		ip              string
		userAgent       string
		acceptLanguage  string
		pageURL         string
		referrer        string
		actionName      string
		visitorID       string
		idSite          int64
		width           int64
		height          int64
		cookieSupport   bool
		hasCookies      bool
		sendImage       bool
		debug           bool
		sslVerify       bool
	}
)

const (
	ScopeVisit Scope = "visit"
	ScopePage  Scope = "page"
	ScopeEvent Scope = "event"

	ActionDownload ActionType = "download"
	ActionLink     ActionType = "link"

	PluginFlash        Plugin = "flash"
	PluginJava         Plugin = "java"
	PluginDirector     Plugin = "director"
	PluginQuickTime    Plugin = "quick_time"
	PluginRealPlayer   Plugin = "real_player"
	PluginPDF          Plugin = "pdf"
	PluginWindowsMedia Plugin = "windows_media"
	PluginGears        Plugin = "gears"
	PluginSilverlight  Plugin = "silverlight"

	// VisitorIDLength is the exact length of a visitor id.
	VisitorIDLength = 16
)

var (
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrUnknownPlugin    = errors.New("unknown plugin")
	ErrAPIURLNotSet     = errors.New("api url not set")
)

// Private API.

const (
	apiVersion = 1
	randCeil   = 100_000

	requestDeadline = 25 * stdlibtime.Second
)

type (
	customVariables map[int64]*CustomVariable
	eventTracking   struct {
		category string
		action   string
		name     string
		value    float64
	}
	goalTracking struct {
		revenue *float64
		idGoal  int64
	}
	config struct {
		Tracking struct {
			APIURL    string `yaml:"apiUrl" mapstructure:"apiUrl"`
			TokenAuth string `yaml:"tokenAuth" mapstructure:"tokenAuth"`
			SiteID    int64  `yaml:"siteId" mapstructure:"siteId"`
		} `yaml:"tracker/tracking" mapstructure:"tracker/tracking"` //nolint:tagliatelle // Nope.
	}
)

// .
var (
	//nolint:gochecknoglobals // Immutable, the collector's fixed plugin vocabulary.
	knownPlugins = map[Plugin]string{
		PluginFlash:        "fla",
		PluginJava:         "java",
		PluginDirector:     "dir",
		PluginQuickTime:    "qt",
		PluginRealPlayer:   "realp",
		PluginPDF:          "pdf",
		PluginWindowsMedia: "wma",
		PluginGears:        "gears",
		PluginSilverlight:  "ag",
	}
)
