// SPDX-License-Identifier: ice License 1.0

package tracking

import (
	"context"
	"net/http"
	"net/url"

	"github.com/goccy/go-json"
	"github.com/imroc/req/v3"
	"github.com/pkg/errors"
)

type (
	httpCollector struct {
		client         *req.Client
		insecureClient *req.Client
	}
)

func newHTTPCollector() *httpCollector {
	return &httpCollector{
		client:         newReqClient(),
		insecureClient: newReqClient().EnableInsecureSkipVerify(),
	}
}

func newReqClient() *req.Client {
	return req.C().
		SetTimeout(requestDeadline).
		SetJsonMarshal(json.Marshal).
		SetJsonUnmarshal(json.Unmarshal)
}

func (c *httpCollector) Get(ctx context.Context, apiURL string, queryParams url.Values, opts *RequestOptions) (*Result, error) {
	client := c.client
	if opts != nil && !opts.VerifyTLS {
		client = c.insecureClient
	}
	request := client.R().SetContext(ctx)
	for name, values := range queryParams {
		request = request.AddQueryParams(name, values...)
	}
	if opts != nil {
		for name, value := range opts.Headers {
			request = request.SetHeader(name, value)
		}
		for name, value := range opts.Cookies {
			request = request.SetCookies(&http.Cookie{Name: name, Value: value})
		}
	}
	resp, err := request.Get(apiURL)
	if err != nil {
		return nil, errors.Wrapf(err, "get `%v` failed", apiURL)
	}
	bodyBytes, err := resp.ToBytes()
	if err != nil {
		return nil, errors.Wrapf(err, "unable to read response body for get `%v`", apiURL)
	}
	ok := resp.GetStatusCode() == http.StatusOK || resp.GetStatusCode() == http.StatusNoContent

	return &Result{
		Body:      string(bodyBytes),
		BodyBytes: bodyBytes,
		Status:    resp.GetStatusCode(),
		OK:        ok,
		Error:     !ok,
	}, nil
}
