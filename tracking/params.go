// SPDX-License-Identifier: ice License 1.0

package tracking

import (
	"fmt"
	"math/rand"
	"net/url"
	"strconv"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"

	"github.com/ice-blockchain/tracker/log"
)

// queryVars serializes the current context into the base query parameter set.
// Absent fields are omitted entirely, no empty placeholders. `rand` is drawn
// fresh on every call to defeat caching.
//
//nolint:funlen // The parameter vocabulary is flat, splitting it would obscure it.
func (t *Tracker) queryVars() url.Values {
	queryVars := make(url.Values)
	queryVars.Set("idsite", strconv.FormatInt(t.idSite, 10))
	queryVars.Set("rec", "1")
	queryVars.Set("url", t.pageURL)
	queryVars.Set("apiv", strconv.Itoa(apiVersion))
	queryVars.Set("rand", strconv.Itoa(rand.Intn(randCeil)))
	if t.referrer != "" {
		queryVars.Set("referer", t.referrer)
	}
	if t.actionName != "" {
		queryVars.Set("action_name", t.actionName)
	}
	if t.localTime != nil {
		queryVars.Set("h", strconv.Itoa(t.localTime.Hour()))
		queryVars.Set("m", strconv.Itoa(t.localTime.Minute()))
		queryVars.Set("s", strconv.Itoa(t.localTime.Second()))
	}
	if t.ip != "" {
		queryVars.Set("cip", t.ip)
	}
	if t.tokenAuth != "" {
		queryVars.Set("token_auth", t.tokenAuth)
	}
	if t.hasCookies {
		queryVars.Set("cookie", "1")
	}
	if t.width != 0 && t.height != 0 {
		queryVars.Set("res", fmt.Sprintf("%vx%v", t.width, t.height))
	}
	if t.visitorID != "" {
		queryVars.Set("cid", t.visitorID)
		queryVars.Set("_id", t.visitorID)
	}
	if t.userID != nil {
		queryVars.Set("uid", fmt.Sprint(t.userID))
	}
	if t.sendImage {
		queryVars.Set("send_image", "1")
	} else {
		queryVars.Set("send_image", "0")
	}
	if len(t.eventCustomVars) > 0 {
		queryVars.Set("e_cvar", mustMarshalJSON(t.eventCustomVars))
	}
	if len(t.pageCustomVars) > 0 {
		queryVars.Set("cvar", mustMarshalJSON(t.pageCustomVars))
	}
	if len(t.visitCustomVars) > 0 {
		queryVars.Set("_cvar", mustMarshalJSON(t.visitCustomVars))
	}
	if t.event != nil {
		queryVars.Set("e_c", t.event.category)
		queryVars.Set("e_a", t.event.action)
		queryVars.Set("e_n", t.event.name)
		queryVars.Set("e_v", formatAmount(t.event.value))
	}
	for dimension, value := range t.dimensions {
		queryVars.Set(dimension, value)
	}
	for plugin, version := range t.plugins {
		queryVars.Set(plugin, strconv.FormatInt(version, 10))
	}
	if t.attributionInfo != nil {
		queryVars.Set("_rcn", t.attributionInfo.CampaignName)
		queryVars.Set("_rck", t.attributionInfo.CampaignKeyword)
		queryVars.Set("_refts", strconv.FormatInt(t.attributionInfo.ReferralTime.Unix(), 10))
		queryVars.Set("_ref", t.attributionInfo.ReferralURL)
	}
	if t.goal != nil {
		queryVars.Set("idgoal", strconv.FormatInt(t.goal.idGoal, 10))
		if t.goal.revenue != nil {
			queryVars.Set("revenue", formatAmount(*t.goal.revenue))
		}
	}
	if t.debug {
		queryVars.Set("debug", "1")
	}

	return queryVars
}

// ecommerceVars layers the shared e-commerce parameter set on top of the base
// one and empties the item snapshot as a side effect.
func (t *Tracker) ecommerceVars(grandTotal float64, details *OrderDetails) url.Values {
	queryVars := t.queryVars()
	queryVars.Set("idgoal", "0")
	queryVars.Set("revenue", formatAmount(grandTotal))
	if details != nil {
		if details.SubTotal != nil {
			queryVars.Set("ec_st", formatAmount(*details.SubTotal))
		}
		if details.Tax != nil {
			queryVars.Set("ec_tx", formatAmount(*details.Tax))
		}
		if details.Shipping != nil {
			queryVars.Set("ec_sh", formatAmount(*details.Shipping))
		}
		if details.Discount != nil {
			queryVars.Set("ec_dt", formatAmount(*details.Discount))
		}
	}
	if len(t.items) > 0 {
		items := make([]*Item, 0, len(t.items))
		for _, sku := range t.itemOrder {
			items = append(items, t.items[sku])
		}
		queryVars.Set("ec_items", mustMarshalJSON(items))
	}
	t.clearEcommerceItems()

	return queryVars
}

func (c *CustomVariable) MarshalJSON() ([]byte, error) {
	//nolint:wrapcheck // We're just proxying it.
	return json.Marshal([]string{c.Name, c.Value})
}

func (i *Item) MarshalJSON() ([]byte, error) {
	//nolint:wrapcheck // We're just proxying it.
	return json.Marshal([]any{i.SKU, i.Name, i.Category, i.Price, i.Quantity})
}

func formatAmount(amount float64) string {
	return strconv.FormatFloat(amount, 'f', -1, 64)
}

func mustMarshalJSON(val any) string {
	bytes, err := json.Marshal(val)
	log.Panic(errors.Wrapf(err, "failed to marshal %#v", val)) //nolint:revive // Intended.

	return string(bytes)
}
